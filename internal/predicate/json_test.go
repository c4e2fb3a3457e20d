package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalJSON_Leaves(t *testing.T) {
	tests := []struct {
		name string
		pred Predicate
		want string
	}{
		{
			name: "term string",
			pred: nameBob,
			want: `{"term":{"field":"Name","value":"Bob"}}`,
		},
		{
			name: "term null",
			pred: Term{Field: "Name", Value: Null{}},
			want: `{"term":{"field":"Name","value":null}}`,
		},
		{
			name: "half open range",
			pred: ageOver10,
			want: `{"range":{"exclude_max":false,"exclude_min":true,"field":"Age","min":10}}`,
		},
		{
			name: "closed range",
			pred: Range{Field: "Age", Min: Int(1), Max: Int(9)},
			want: `{"range":{"exclude_max":false,"exclude_min":false,"field":"Age","max":9,"min":1}}`,
		},
		{
			name: "wildcard",
			pred: Wildcard{Field: "Name", Pattern: "Al*"},
			want: `{"wildcard":{"field":"Name","pattern":"Al*"}}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := MarshalJSON(tc.pred)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(data))
		})
	}
}

func TestMarshalJSON_Logical(t *testing.T) {
	data, err := MarshalJSON(Logical{Clauses: []Clause{
		{Predicate: nameBob, Occur: OccurMustNot},
		{Predicate: activeTrue, Occur: OccurMust},
	}})
	require.NoError(t, err)

	want := `{"bool":[` +
		`{"occur":"must_not","predicate":{"term":{"field":"Name","value":"Bob"}}},` +
		`{"occur":"must","predicate":{"term":{"field":"IsActive","value":true}}}]}`
	assert.Equal(t, want, string(data))
}

func TestMarshalJSON_Nil(t *testing.T) {
	data, err := MarshalJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{"q": "a<b>&c"})
	require.NoError(t, err)
	assert.Equal(t, `{"q":"a<b>&c"}`, string(data))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to a single code point.
	data, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(data))
}

func TestMarshalCanonical_RejectsFloats(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats")
}

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{"b": 1, "a": int64(2), "c": []any{true, nil}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1,"c":[true,null]}`, string(data))
}
