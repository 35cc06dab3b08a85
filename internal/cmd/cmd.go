// Package cmd provides small entry-point helpers shared by dogear's
// command-line tools, mirroring the conventions of a typical cobra-based CLI:
// a Mainify adapter for error-returning entry points, a colorized warning
// printer, and plain error/fatal printers.
package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Warning prints a warning message to standard error.
func Warning(message string) {
	fmt.Fprintln(color.Error, color.YellowString("Warning:"), message)
}

// Error prints an error message to standard error.
func Error(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
}

// Fatal prints an error message to standard error and terminates the process
// with an error exit code.
func Fatal(err error) {
	Error(err)
	os.Exit(1)
}

// Mainify wraps a non-standard Cobra entry point (one returning an error) and
// generates a standard Cobra entry point. This lets the entry point rely on
// defer-based cleanup, which wouldn't run if it called os.Exit itself.
func Mainify(entry func(*cobra.Command, []string) error) func(*cobra.Command, []string) {
	return func(command *cobra.Command, arguments []string) {
		if err := entry(command, arguments); err != nil {
			Fatal(err)
		}
	}
}
