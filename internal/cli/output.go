package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/contentq/internal/compiler"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // golden mismatch, or a query in a batch failed to compile
	ExitCommandError = 2 // unusable input: bad paths, registry, document or flags
)

// ExitError carries the exit code a failed command should end the process with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError with no underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err, or ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// codeHints holds the remediation printed under an error code.
var codeHints = map[string]string{
	ErrCodeNoFiles:      "point --fields at a directory holding the registry's .cue files",
	ErrCodeInvalidField: "run `contentq fields` against a known-good registry to compare",
	ErrCodeUnsupported:  "materialize the sequence before this call",
	ErrCodeNonConstant:  "pass a literal, or a value computed outside the query",
	ErrCodeUnknownField: "declare the field in the registry; `contentq fields` lists the known ones",
	ErrCodeUnknownType:  "add the type to the registry's content types",
	ErrCodeInvalidText:  "query text is field:value terms joined by AND, OR and NOT",
	ErrCodeInvalidFlag:  "see `contentq compile --help`",
}

// Hint returns the remediation for a CLI error code, or "".
func Hint(code string) string { return codeHints[code] }

// OutputFormatter renders command results as text or as a JSON envelope.
type OutputFormatter struct {
	Format    string // "text" or "json"
	Writer    io.Writer
	ErrWriter io.Writer // verbose logs; nil means Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status    string    `json:"status"` // "ok" or "error"
	Data      any       `json:"data,omitempty"`
	Error     *CLIError `json:"error,omitempty"`
	CompileID string    `json:"compile_id,omitempty"`
}

// CLIError is the error half of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"` // E001, E201, ...
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
	Details any    `json:"details,omitempty"`
}

// CompileDetails locates a compiler failure in the source expression.
type CompileDetails struct {
	Category  string `json:"category"`
	Construct string `json:"construct,omitempty"`
}

func (d CompileDetails) String() string {
	if d.Construct == "" {
		return d.Category
	}
	return d.Category + " at " + d.Construct
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetEscapeHTML(false)
	return enc.Encode(resp)
}

// Success writes a command result. Text output uses the result's String
// method when it has one and indented JSON otherwise.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}

	switch v := data.(type) {
	case string:
		_, err := fmt.Fprintln(f.Writer, v)
		return err
	case fmt.Stringer:
		_, err := fmt.Fprintln(f.Writer, v.String())
		return err
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("rendering result: %w", err)
	}
	_, err = fmt.Fprintf(f.Writer, "%s\n", out)
	return err
}

// Canonical writes a compiled query that is already canonical JSON. Text
// output is the document alone so it can be piped.
func (f *OutputFormatter) Canonical(doc []byte, compileID string) error {
	if f.isJSON() {
		return f.encode(CLIResponse{Status: "ok", Data: json.RawMessage(doc), CompileID: compileID})
	}
	_, err := fmt.Fprintf(f.Writer, "%s\n", doc)
	return err
}

// Error writes a failure under a CLI error code, followed by the code's
// hint unless the message already carries it.
func (f *OutputFormatter) Error(code, message string, details any) error {
	e := CLIError{Code: code, Message: message, Details: details}
	if hint := Hint(code); hint != "" && !strings.Contains(message, hint) {
		e.Hint = hint
	}
	if f.isJSON() {
		return f.encode(CLIResponse{Status: "error", Error: &e})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message)
	if e.Hint != "" {
		fmt.Fprintf(f.Writer, "  hint: %s\n", e.Hint)
	}
	if f.Verbose && e.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", e.Details)
	}
	return nil
}

// CompileFailure writes a failed compilation and returns the exit error for
// it. Compiler errors report their category and construct as details.
func (f *OutputFormatter) CompileFailure(err error) error {
	code := MapCompileErrorCode(err)
	var details any
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		details = CompileDetails{Category: string(ce.Code), Construct: ce.Construct}
	}
	_ = f.Error(code, err.Error(), details)
	return WrapExitError(ExitCommandError, code, err)
}

// VerboseLog writes a diagnostic line when verbose output is on.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
	}
}

// GetErrWriter returns where diagnostics go: ErrWriter, or Writer when unset.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
