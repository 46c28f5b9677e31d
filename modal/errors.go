package modal

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// ErrorKind separates the failure classes that halt a run
type ErrorKind string

const (
	KindConfig ErrorKind = "config"
	KindGrid   ErrorKind = "grid"
	KindInput  ErrorKind = "input"
)

// Error represents a run-halting failure. Data insufficiency is never an
// Error; it is reported through reason codes on the results.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrConfig) works
// for every configuration failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// Common error codes
const (
	ErrCodeInvalidConfig   = "INVALID_CONFIG"
	ErrCodeGridMismatch    = "PSD_GRID_MISMATCH"
	ErrCodeLengthMismatch  = "CHANNEL_LENGTH_MISMATCH"
	ErrCodeBadSampleRate   = "BAD_SAMPLE_RATE"
	ErrCodeNotStereo       = "NOT_STEREO"
	ErrCodeInvalidChannel  = "INVALID_CHANNEL"
	ErrCodeDecodingFailure = "DECODING_FAILED"
)

// Sentinels for errors.Is
var (
	ErrConfig       = &Error{Kind: KindConfig}
	ErrGridMismatch = &Error{Kind: KindGrid}
	ErrInput        = &Error{Kind: KindInput}
)

// NewError creates a new modal error
func NewError(kind ErrorKind, code, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ConfigError wraps a validation failure
func ConfigError(message string, cause error) *Error {
	return NewError(KindConfig, ErrCodeInvalidConfig, message, cause)
}

// InputError reports unusable input data
func InputError(code, message string) *Error {
	return NewError(KindInput, code, message, nil)
}
