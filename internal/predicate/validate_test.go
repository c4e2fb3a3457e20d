package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_ValidTrees(t *testing.T) {
	trees := map[string]Predicate{
		"term":     nameBob,
		"range":    ageOver10,
		"wildcard": Wildcard{Field: "Name", Pattern: "*ob*"},
		"logical":  And(nameBob, Or(ageOver10, Not(activeTrue))),
		"all":      All(),
		"none":     None(),
	}

	for name, p := range trees {
		t.Run(name, func(t *testing.T) {
			result := Validate(p)
			assert.True(t, result.Valid, "problems: %v", result.Problems)
			assert.Empty(t, result.Problems)
		})
	}
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name    string
		pred    Predicate
		problem string
	}{
		{"nil", nil, "nil predicate"},
		{"empty logical", Logical{}, "no clauses"},
		{"empty field", Term{Value: Int(1)}, "empty field name"},
		{"missing value", Term{Field: "Name"}, "has no value"},
		{"unbounded range", Range{Field: "Age"}, "unbounded on both sides"},
		{"no wildcard", Wildcard{Field: "Name", Pattern: `Al\*`}, "no unescaped '*'"},
		{"nested", And(nameBob, Logical{}), "$[1]: logical predicate has no clauses"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Validate(tc.pred)
			assert.False(t, result.Valid)
			if assert.NotEmpty(t, result.Problems) {
				assert.Contains(t, result.Problems[0], tc.problem)
			}
		})
	}
}
