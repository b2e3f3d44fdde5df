package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"clevertap-sync/internal/clevertap"
	"clevertap-sync/pkg/logger"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // records failed or configs unusable
	ExitCommandError = 2 // bad input files, flags or configuration
)

// ExitError carries the process exit code for a command failure.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors that are not
// ExitErrors map to ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

type outputFormatter struct {
	format  string
	w       io.Writer
	errW    io.Writer
	verbose bool
}

func newFormatter(opts *RootOptions, w, errW io.Writer) *outputFormatter {
	return &outputFormatter{format: opts.Format, w: w, errW: errW, verbose: opts.Verbose}
}

func (f *outputFormatter) json() bool { return f.format == "json" }

func (f *outputFormatter) writeJSON(v any) error {
	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f *outputFormatter) printf(format string, args ...any) {
	fmt.Fprintf(f.w, format, args...)
}

// logger writes structured logs to stderr when verbose, and nowhere otherwise,
// so that JSON output on stdout stays parseable.
func (f *outputFormatter) logger() *slog.Logger {
	if !f.verbose {
		return logger.Discard()
	}
	return logger.NewWriter(f.errW, "local")
}

func loadRegions(opts *RootOptions) (*clevertap.RegionTable, error) {
	if opts.RegionsFile == "" {
		return clevertap.Default(), nil
	}
	t, err := clevertap.LoadRegionTable(opts.RegionsFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load region table", err)
	}
	return t, nil
}
