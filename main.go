package main

import "github.com/RyanBlaney/sonido-modal/cmd"

func main() {
	cmd.Execute()
}
