package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/contentq/internal/compiler"
	"github.com/roach88/contentq/internal/cql"
	"github.com/roach88/contentq/internal/exprfile"
	"github.com/roach88/contentq/internal/query"
	"github.com/roach88/contentq/internal/schema"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Fields      string   // field registry directory
	Output      string   // output file path
	Text        string   // supplementary query text, overrides the document's
	Path        string   // scope path, overrides the document's
	PathUsage   string   // scope mode, overrides the document's
	Top         int      // only applied when the flag is set
	Skip        int      // only applied when the flag is set
	Sort        []string // ascending sort fields
	ReverseSort []string // descending sort fields, after Sort
	CountOnly   bool     // only applied when the flag is set

	// IDs generates compile IDs. Nil uses UUIDv7.
	IDs query.IDGenerator
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	return newCompileCommand(&CompileOptions{RootOptions: rootOpts})
}

func newCompileCommand(opts *CompileOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <query.yaml>",
		Short: "Compile a query document to a canonical index query",
		Long: `Compile a YAML query document against a CUE field registry.

The expression is constant-folded, lowered to a predicate tree, joined with
the supplementary query text and path scope, optimized, and printed as
canonical JSON together with its directives.

Directive flags are the caller's settings: they beat values derived from the
expression and lose to directives in the query text.

Examples:
  contentq compile adults.yaml --fields ./fields
  contentq compile adults.yaml --fields ./fields --top 10 --sort Name
  contentq compile adults.yaml --fields ./fields --path /Root/Docs --path-usage in_tree_and`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Fields, "fields", "", "field registry directory (CUE)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.Text, "text", "", "supplementary query text")
	cmd.Flags().StringVar(&opts.Path, "path", "", "content path to scope the query to")
	cmd.Flags().StringVar(&opts.PathUsage, "path-usage", "", "path scope mode (in_folder_and|in_folder_or|in_tree_and|in_tree_or)")
	cmd.Flags().IntVar(&opts.Top, "top", 0, "maximum number of results")
	cmd.Flags().IntVar(&opts.Skip, "skip", 0, "number of leading results to skip")
	cmd.Flags().StringSliceVar(&opts.Sort, "sort", nil, "ascending sort fields")
	cmd.Flags().StringSliceVar(&opts.ReverseSort, "reverse-sort", nil, "descending sort fields")
	cmd.Flags().BoolVar(&opts.CountOnly, "count-only", false, "return the result count only")
	_ = cmd.MarkFlagRequired("fields")

	return cmd
}

func runCompile(opts *CompileOptions, queryFile string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	reg, err := LoadRegistry(opts.Fields)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d field(s) and %d content type(s) from %s",
		len(reg.Fields()), len(reg.ContentTypes()), opts.Fields)

	req, err := exprfile.Load(queryFile, reg)
	if err != nil {
		code := ErrCodeInvalidDocument
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		return outputCompileError(formatter, code, err.Error())
	}
	formatter.VerboseLog("Compiling query: %s", req.Name)

	settings, err := flagOverrides(cmd, opts)
	if err != nil {
		return outputCompileError(formatter, ErrCodeInvalidFlag, err.Error())
	}
	if err := applyInputFlags(cmd, opts, req); err != nil {
		return outputCompileError(formatter, ErrCodeInvalidFlag, err.Error())
	}

	q, err := CompileRequest(reg, req, settings, opts.IDs)
	if err != nil {
		return formatter.CompileFailure(err)
	}
	formatter.VerboseLog("Compiled %s as %s", req.Name, q.ID)

	data, err := q.MarshalCanonical()
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("encoding compiled query: %v", err))
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, append(data, '\n'), 0644); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
		if formatter.Format != "json" {
			fmt.Fprintf(formatter.Writer, "Wrote compiled query %s to %s\n", req.Name, opts.Output)
			return nil
		}
	}

	return formatter.Canonical(data, q.ID)
}

// CompileRequest runs a decoded query document through the full pipeline.
// settings are layered over the document's own settings.
func CompileRequest(reg *schema.Registry, req *exprfile.Request, settings query.Overrides, ids query.IDGenerator) (query.CompiledQuery, error) {
	a := query.NewAssembler(query.Config{
		Compiler: compiler.New(reg, reg),
		Paths:    query.FieldPathScope{Fields: reg},
		Parser:   cql.NewParser(reg),
		Settings: req.Settings.Merge(settings),
		IDs:      ids,
	})
	return a.Compile(req.Expression, req.ElementType, req.Path, req.Text)
}

// flagOverrides collects the directive flags the user actually set.
func flagOverrides(cmd *cobra.Command, opts *CompileOptions) (query.Overrides, error) {
	var o query.Overrides
	flags := cmd.Flags()

	if flags.Changed("top") {
		if opts.Top < 0 {
			return o, fmt.Errorf("--top must be non-negative, got %d", opts.Top)
		}
		top := opts.Top
		o.Top = &top
	}
	if flags.Changed("skip") {
		if opts.Skip < 0 {
			return o, fmt.Errorf("--skip must be non-negative, got %d", opts.Skip)
		}
		skip := opts.Skip
		o.Skip = &skip
	}
	if flags.Changed("sort") || flags.Changed("reverse-sort") {
		o.Sort = []compiler.SortField{}
		for _, f := range opts.Sort {
			o.Sort = append(o.Sort, compiler.SortField{Field: f})
		}
		for _, f := range opts.ReverseSort {
			o.Sort = append(o.Sort, compiler.SortField{Field: f, Reverse: true})
		}
	}
	if flags.Changed("count-only") {
		countOnly := opts.CountOnly
		o.CountOnly = &countOnly
	}
	return o, nil
}

// applyInputFlags replaces the document's text and path scope with the
// flags the user set.
func applyInputFlags(cmd *cobra.Command, opts *CompileOptions, req *exprfile.Request) error {
	flags := cmd.Flags()
	if flags.Changed("text") {
		req.Text = opts.Text
	}
	if flags.Changed("path") {
		req.Path.Path = opts.Path
	}
	if flags.Changed("path-usage") {
		usage, err := query.ParsePathUsage(opts.PathUsage)
		if err != nil {
			return err
		}
		req.Path.Usage = usage
	}
	if req.Path.Usage == query.PathNotUsed && req.Path.Path != "" {
		return fmt.Errorf("--path %q needs a --path-usage", req.Path.Path)
	}
	return nil
}

// outputLoadError reports a field registry failure.
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		return WrapExitError(ExitCommandError, loadErr.Code, err)
	}
	return outputCompileError(formatter, ErrCodeGeneric, err.Error())
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
