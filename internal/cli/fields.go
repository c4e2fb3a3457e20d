package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// FieldsOptions holds flags for the fields command.
type FieldsOptions struct {
	*RootOptions
	Fields string // field registry directory
}

// FieldInfo describes one registered field in command output.
type FieldInfo struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	CaseInsensitive bool   `json:"case_insensitive"`
}

// FieldsResult is the payload of the fields command.
type FieldsResult struct {
	Fields       []FieldInfo `json:"fields"`
	ContentTypes []string    `json:"content_types"`
}

func (r FieldsResult) String() string {
	var b strings.Builder
	b.WriteString("Fields:\n")
	for _, f := range r.Fields {
		line := fmt.Sprintf("  %-16s %s", f.Name, f.Type)
		if f.CaseInsensitive {
			line += " (case-insensitive)"
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("Content types:\n")
	if len(r.ContentTypes) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, name := range r.ContentTypes {
		b.WriteString("  " + name + "\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewFieldsCommand creates the fields command.
func NewFieldsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FieldsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fields",
		Short: "List the fields and content types of a registry",
		Long: `Load a CUE field registry and list every field with its index type,
including the well-known fields, followed by the declared content types.

Examples:
  contentq fields --fields ./fields
  contentq fields --fields ./fields --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Fields, "fields", "", "field registry directory (CUE)")
	_ = cmd.MarkFlagRequired("fields")

	return cmd
}

func runFields(opts *FieldsOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	reg, err := LoadRegistry(opts.Fields)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	result := FieldsResult{ContentTypes: reg.ContentTypes()}
	for _, f := range reg.Fields() {
		result.Fields = append(result.Fields, FieldInfo{
			Name:            f.Name,
			Type:            f.Type.String(),
			CaseInsensitive: f.CaseInsensitive,
		})
	}

	return formatter.Success(result)
}
