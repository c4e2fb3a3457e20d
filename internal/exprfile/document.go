// Package exprfile loads content queries authored as YAML documents.
//
// It is the binding boundary for queries that are not built in Go: method
// names are resolved to expr.CallKind, operator names to expr.Op and type
// names to host types exactly once, here. Everything downstream works on the
// resulting expr.Node tree.
//
// A document looks like this:
//
//	name: active-adults
//	description: Active adults under the docs tree, oldest first
//	element_type: Document
//	path: /Root/Docs
//	path_usage: in_tree_and
//	text: ".SKIP:10"
//	settings:
//	  top: 25
//	query:
//	  - Where:
//	      AndAlso:
//	        - GreaterThan: [{field: Age}, 18]
//	        - field: IsActive
//	  - OrderByDescending: {field: Age}
//	  - Take: 5
//
// The query is a pipeline of operator steps applied to the whole content
// set. Lambda-taking steps receive an expression over the content item.
package exprfile

import (
	"bytes"
	"fmt"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/roach88/contentq/internal/compiler"
	"github.com/roach88/contentq/internal/expr"
	"github.com/roach88/contentq/internal/query"
)

// TypeResolver maps content-type names to host types.
// schema.Registry implements it.
type TypeResolver interface {
	TypeByName(name string) (reflect.Type, bool)
}

// Document is the raw YAML form of a query document.
type Document struct {
	// Name identifies the query. Required.
	Name string `yaml:"name"`

	Description string `yaml:"description,omitempty"`

	// ElementType is the content-type name of the queried sequence's
	// element type. Empty means the whole content set.
	ElementType string `yaml:"element_type,omitempty"`

	Path      string `yaml:"path,omitempty"`
	PathUsage string `yaml:"path_usage,omitempty"`

	// Text is supplementary content query text.
	Text string `yaml:"text,omitempty"`

	// Settings are the caller's explicit directive values.
	Settings Settings `yaml:"settings,omitempty"`

	// Query is the operator pipeline. Required.
	Query []yaml.Node `yaml:"query"`
}

// Settings is the YAML form of query.Overrides.
type Settings struct {
	Top              *int       `yaml:"top,omitempty"`
	Skip             *int       `yaml:"skip,omitempty"`
	Sort             []SortSpec `yaml:"sort,omitempty"`
	CountOnly        *bool      `yaml:"count_only,omitempty"`
	ExistenceOnly    *bool      `yaml:"existence_only,omitempty"`
	ElementSelection string     `yaml:"element_selection,omitempty"`
	ThrowIfEmpty     *bool      `yaml:"throw_if_empty,omitempty"`
}

// SortSpec is one sort key.
type SortSpec struct {
	Field   string `yaml:"field"`
	Reverse bool   `yaml:"reverse,omitempty"`
}

// Request is a decoded query document, ready for query.Assembler.Compile.
type Request struct {
	Name        string
	Description string
	Expression  expr.Node
	ElementType reflect.Type
	Path        query.PathContext
	Text        string
	Settings    query.Overrides
}

// Load reads and decodes a query document file.
func Load(path string, types TypeResolver) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query file: %w", err)
	}
	return Parse(data, types)
}

// Parse decodes a query document. Unknown keys are rejected.
func Parse(data []byte, types TypeResolver) (*Request, error) {
	var doc Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	req, err := doc.Build(types)
	if err != nil {
		return nil, fmt.Errorf("invalid query document: %w", err)
	}
	return req, nil
}

// Build validates the document and resolves it into a Request.
func (d *Document) Build(types TypeResolver) (*Request, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if len(d.Query) == 0 {
		return nil, fmt.Errorf("query list is required and must be non-empty")
	}

	req := &Request{
		Name:        d.Name,
		Description: d.Description,
		Text:        d.Text,
	}

	if d.ElementType != "" {
		if types == nil {
			return nil, fmt.Errorf("element_type %q given but no content types are configured", d.ElementType)
		}
		t, ok := types.TypeByName(d.ElementType)
		if !ok {
			return nil, fmt.Errorf("element_type: unknown content type %q", d.ElementType)
		}
		req.ElementType = t
	}

	usage, err := query.ParsePathUsage(d.PathUsage)
	if err != nil {
		return nil, fmt.Errorf("path_usage: %w", err)
	}
	if usage == query.PathNotUsed && d.Path != "" {
		return nil, fmt.Errorf("path %q given without a path_usage", d.Path)
	}
	req.Path = query.PathContext{Path: d.Path, Usage: usage}

	if req.Settings, err = d.Settings.overrides(); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}

	dec := &decoder{types: types}
	if req.Expression, err = dec.pipeline(d.Query); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return req, nil
}

func (s Settings) overrides() (query.Overrides, error) {
	o := query.Overrides{
		Top:           s.Top,
		Skip:          s.Skip,
		CountOnly:     s.CountOnly,
		ExistenceOnly: s.ExistenceOnly,
		ThrowIfEmpty:  s.ThrowIfEmpty,
	}
	if s.Top != nil && *s.Top < 0 {
		return o, fmt.Errorf("top must be non-negative, got %d", *s.Top)
	}
	if s.Skip != nil && *s.Skip < 0 {
		return o, fmt.Errorf("skip must be non-negative, got %d", *s.Skip)
	}
	for i, sf := range s.Sort {
		if sf.Field == "" {
			return o, fmt.Errorf("sort[%d]: field is required", i)
		}
		o.Sort = append(o.Sort, compiler.SortField{Field: sf.Field, Reverse: sf.Reverse})
	}
	if s.ElementSelection != "" {
		sel, err := compiler.ParseElementSelection(s.ElementSelection)
		if err != nil {
			return o, err
		}
		o.ElementSelection = &sel
	}
	return o, nil
}
