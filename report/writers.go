package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Title turns a snake_case column name into a heading
func Title(column string) string {
	// a Caser keeps state, so each call gets its own
	return cases.Title(language.English).String(strings.ReplaceAll(column, "_", " "))
}

// FormatCell renders one cell as text. Floats keep ten significant digits.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'g', 10, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// WriteJSON writes the whole report as indented JSON
func WriteJSON(w io.Writer, r *Report) error {
	return Encode(w, FormatJSON, r)
}

// WriteYAML writes the whole report as YAML
func WriteYAML(w io.Writer, r *Report) error {
	return Encode(w, FormatYAML, r)
}

// Encode writes any value as indented JSON or YAML
func Encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("cannot encode %s", format)
	}
}

// WriteCSV writes one table as CSV with a leading run_id column
func WriteCSV(w io.Writer, runID string, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"run_id"}, t.Columns...)); err != nil {
		return err
	}
	record := make([]string, len(t.Columns)+1)
	for _, row := range t.Rows {
		record[0] = runID
		for i, v := range row {
			record[i+1] = FormatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVDir writes every table to <dir>/<table>.csv and the run metadata
// with the effective configuration to <dir>/run.yaml. It returns the paths
// written.
func WriteCSVDir(dir string, r *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var paths []string
	for _, t := range r.Tables() {
		path := filepath.Join(dir, t.Name+".csv")
		if err := writeFile(path, func(w io.Writer) error { return WriteCSV(w, r.RunID, t) }); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	meta := struct {
		RunID     string `yaml:"run_id"`
		Tool      string `yaml:"tool"`
		CreatedAt string `yaml:"created_at"`
		Source    string `yaml:"source,omitempty"`
		Config    any    `yaml:"config"`
	}{r.RunID, r.Tool, r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), r.Source, r.Config}

	path := filepath.Join(dir, "run.yaml")
	err := writeFile(path, func(w io.Writer) error {
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(meta)
	})
	if err != nil {
		return paths, err
	}
	return append(paths, path), nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// RunSheet is the XLSX sheet holding the run ID and configuration
const RunSheet = "run"

// WriteXLSX writes a workbook with one sheet per table plus a run sheet
// listing the run ID and every configuration value
func WriteXLSX(path string, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RunSheet); err != nil {
		return err
	}
	meta, err := runRows(r)
	if err != nil {
		return err
	}
	if err := streamRows(f, RunSheet, []any{"Key", "Value"}, meta); err != nil {
		return err
	}

	for _, t := range r.Tables() {
		if _, err := f.NewSheet(t.Name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", t.Name, err)
		}
		header := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			header[i] = Title(c)
		}
		if err := streamRows(f, t.Name, header, t.Rows); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func streamRows(f *excelize.File, sheet string, header []any, rows [][]any) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("sheet %s: %w", sheet, err)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", sheet, i+2, err)
		}
	}
	return sw.Flush()
}

// runRows flattens the run metadata and configuration into dotted keys
func runRows(r *Report) ([][]any, error) {
	raw, err := json.Marshal(r.Config)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}

	flat := make(map[string]any)
	flatten("config", tree, flat)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := [][]any{
		{"run_id", r.RunID},
		{"tool", r.Tool},
		{"created_at", r.CreatedAt.Format("2006-01-02T15:04:05Z07:00")},
		{"source", r.Source},
	}
	for _, k := range keys {
		rows = append(rows, []any{k, flat[k]})
	}
	return rows, nil
}

func flatten(prefix string, v any, out map[string]any) {
	m, ok := v.(map[string]any)
	if !ok {
		out[prefix] = v
		return
	}
	for k, child := range m {
		flatten(prefix+"."+k, child, out)
	}
}

// WriteText prints one table as aligned columns with titled headings
func WriteText(w io.Writer, t Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = Title(c)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = textCell(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func textCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case float64:
		return strconv.FormatFloat(x, 'g', 6, 64)
	case string:
		if x == "" {
			return "-"
		}
		return x
	default:
		return FormatCell(v)
	}
}

// Write dispatches on format. Table output prints the summary, peaks and
// hit fit tables; csv treats dest as a directory and xlsx as a file path.
// dest is ignored for the streaming formats, which go to w.
func Write(w io.Writer, format Format, dest string, r *Report) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatYAML:
		return WriteYAML(w, r)
	case FormatCSV:
		if dest == "" {
			return fmt.Errorf("csv output needs a directory")
		}
		_, err := WriteCSVDir(dest, r)
		return err
	case FormatXLSX:
		if dest == "" {
			return fmt.Errorf("xlsx output needs a file path")
		}
		return WriteXLSX(dest, r)
	case FormatTable, "":
		for _, t := range []Table{PeaksTable(r.Result), SummaryTable(r.Result), HitFitsTable(r.Result)} {
			fmt.Fprintf(w, "\n%s\n", strings.ToUpper(strings.ReplaceAll(t.Name, "_", " ")))
			if err := WriteText(w, t); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
