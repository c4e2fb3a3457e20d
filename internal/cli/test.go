package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/contentq/internal/exprfile"
	"github.com/roach88/contentq/internal/query"
	"github.com/roach88/contentq/internal/schema"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // query file filter (glob pattern)
}

// QueryResult holds the result of checking a single query document.
type QueryResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Queries []QueryResult `json:"queries"`
	Passed  int           `json:"passed"`
	Failed  int           `json:"failed"`
	Total   int           `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <fields-dir> <queries-dir>",
		Short: "Check compiled queries against golden files",
		Long: `Compile every query document in a directory and compare the canonical
output with golden/<name>.golden next to the document.

A document without a golden file passes when it compiles. Use --update to
write the current output as the new golden files.

Exit codes:
  0 - All queries passed
  1 - One or more queries failed
  2 - Command error (invalid paths, bad registry, etc.)

Examples:
  contentq test ./fields ./queries
  contentq test ./fields ./queries --filter "adults-*"
  contentq test ./fields ./queries --update
  contentq test ./fields ./queries --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter query files by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, fieldsDir, queriesDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(queriesDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("queries directory not found: %s", queriesDir))
	}

	reg, err := LoadRegistry(fieldsDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load field registry", err)
	}

	queryFiles, err := findQueryFiles(queriesDir, opts.Filter)
	if err != nil {
		return fmt.Errorf("failed to find queries: %w", err)
	}

	if len(queryFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Queries: []QueryResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No queries found.")
		return nil
	}

	result := TestResult{
		Queries: make([]QueryResult, 0, len(queryFiles)),
		Total:   len(queryFiles),
	}

	for _, queryFile := range queryFiles {
		qr := checkQuery(reg, queryFile, opts)
		if opts.Format != "json" {
			printQueryResult(cmd, qr, opts.Update)
		}
		result.Queries = append(result.Queries, qr)

		if qr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findQueryFiles finds all YAML query documents in a directory, skipping
// golden directories.
func findQueryFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if path != dir && info.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// checkQuery compiles one query document and compares it with its golden file.
func checkQuery(reg *schema.Registry, queryFile string, opts *TestOptions) QueryResult {
	name := strings.TrimSuffix(filepath.Base(queryFile), filepath.Ext(queryFile))
	fail := func(format string, args ...any) QueryResult {
		return QueryResult{Name: name, Errors: []string{fmt.Sprintf(format, args...)}}
	}

	req, err := exprfile.Load(queryFile, reg)
	if err != nil {
		return fail("failed to load query: %v", err)
	}
	name = req.Name

	q, err := CompileRequest(reg, req, query.Overrides{}, nil)
	if err != nil {
		return fail("[%s] %v", MapCompileErrorCode(err), err)
	}
	current, err := q.MarshalCanonical()
	if err != nil {
		return fail("failed to encode compiled query: %v", err)
	}
	current = append(current, '\n')

	goldenPath := goldenFilePath(queryFile)
	if opts.Update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
			return fail("failed to create golden directory: %v", err)
		}
		if err := os.WriteFile(goldenPath, current, 0644); err != nil {
			return fail("failed to write golden file: %v", err)
		}
		return QueryResult{Name: name, Pass: true}
	}

	golden, err := os.ReadFile(goldenPath)
	if errors.Is(err, fs.ErrNotExist) {
		// No golden file: compiling is the whole check.
		return QueryResult{Name: name, Pass: true}
	}
	if err != nil {
		return fail("failed to read golden file: %v", err)
	}
	if !bytes.Equal(golden, current) {
		return fail("compiled query does not match golden file (run with --update to regenerate)")
	}
	return QueryResult{Name: name, Pass: true}
}

// goldenFilePath returns the path to the golden file for a query document.
func goldenFilePath(queryFile string) string {
	dir := filepath.Dir(queryFile)
	base := filepath.Base(queryFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

func printQueryResult(cmd *cobra.Command, qr QueryResult, updated bool) {
	w := cmd.OutOrStdout()
	if qr.Pass {
		if updated {
			fmt.Fprintf(w, "✓ %s (golden updated)\n", qr.Name)
		} else {
			fmt.Fprintf(w, "✓ %s\n", qr.Name)
		}
		return
	}
	fmt.Fprintf(w, "✗ %s\n", qr.Name)
	for _, e := range qr.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}

	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d query(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d query(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d query(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All queries passed")
	return nil
}
