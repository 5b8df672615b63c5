package config

import (
	"fmt"
	"io"
	"os"
)

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	ExitCodef(1, format, args...)
}

// ExitCodef writes a formatted message to stderr and exits with code.
// Command-line tools use it to report findings with a distinct status.
func ExitCodef(code int, format string, args ...any) {
	writeLine(os.Stderr, format, args...)
	os.Exit(code)
}

func writeLine(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}
