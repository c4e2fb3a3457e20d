package query

import "github.com/roach88/contentq/internal/compiler"

// Overrides is one layer of directive values. Nil fields are unset and
// leave the value from lower layers in place.
type Overrides struct {
	Top              *int
	Skip             *int
	Sort             []compiler.SortField
	CountOnly        *bool
	ExistenceOnly    *bool
	ElementSelection *compiler.ElementSelection
	ThrowIfEmpty     *bool
}

// IsZero reports whether no field is set.
func (o Overrides) IsZero() bool {
	return o.Top == nil && o.Skip == nil && o.Sort == nil && o.CountOnly == nil &&
		o.ExistenceOnly == nil && o.ElementSelection == nil && o.ThrowIfEmpty == nil
}

// apply writes every set field of o over d. Sort is replaced, never merged.
func (o Overrides) apply(d *compiler.Directives) {
	if o.Top != nil {
		d.Top = compiler.IntPtr(*o.Top)
	}
	if o.Skip != nil {
		d.Skip = *o.Skip
	}
	if o.Sort != nil {
		d.Sort = append([]compiler.SortField(nil), o.Sort...)
	}
	if o.CountOnly != nil {
		d.CountOnly = *o.CountOnly
	}
	if o.ExistenceOnly != nil {
		d.ExistenceOnly = *o.ExistenceOnly
	}
	if o.ElementSelection != nil {
		d.ElementSelection = *o.ElementSelection
	}
	if o.ThrowIfEmpty != nil {
		d.ThrowIfEmpty = *o.ThrowIfEmpty
	}
}

// fromDirectives treats every non-zero directive derived from an expression
// as set.
func fromDirectives(d compiler.Directives) Overrides {
	var o Overrides
	if d.Top != nil {
		o.Top = compiler.IntPtr(*d.Top)
	}
	if d.Skip != 0 {
		o.Skip = &d.Skip
	}
	if len(d.Sort) > 0 {
		o.Sort = d.Sort
	}
	if d.CountOnly {
		o.CountOnly = &d.CountOnly
	}
	if d.ExistenceOnly {
		o.ExistenceOnly = &d.ExistenceOnly
	}
	if d.ElementSelection != compiler.SelectNone {
		o.ElementSelection = &d.ElementSelection
	}
	if d.ThrowIfEmpty {
		o.ThrowIfEmpty = &d.ThrowIfEmpty
	}
	return o
}

// Layer resolves directives from layers in ascending priority: each field
// takes its value from the highest layer that sets it.
func Layer(layers ...Overrides) compiler.Directives {
	var d compiler.Directives
	for _, o := range layers {
		o.apply(&d)
	}
	return d
}

// Merge returns o with every field set in over replaced by over's value.
// Both inputs belong to the same layer; Merge never touches other layers.
func (o Overrides) Merge(over Overrides) Overrides {
	if over.Top != nil {
		o.Top = over.Top
	}
	if over.Skip != nil {
		o.Skip = over.Skip
	}
	if over.Sort != nil {
		o.Sort = over.Sort
	}
	if over.CountOnly != nil {
		o.CountOnly = over.CountOnly
	}
	if over.ExistenceOnly != nil {
		o.ExistenceOnly = over.ExistenceOnly
	}
	if over.ElementSelection != nil {
		o.ElementSelection = over.ElementSelection
	}
	if over.ThrowIfEmpty != nil {
		o.ThrowIfEmpty = over.ThrowIfEmpty
	}
	return o
}
