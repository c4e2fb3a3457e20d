package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealedPredicates(t *testing.T) {
	// Compile-time check that every variant implements Predicate.
	var _ Predicate = Term{}
	var _ Predicate = Range{}
	var _ Predicate = Wildcard{}
	var _ Predicate = Logical{}

	var _ Value = Null{}
	var _ Value = String("")
	var _ Value = Int(0)
	var _ Value = Bool(false)
}

func TestCombinators(t *testing.T) {
	and := And(nameBob, ageOver10)
	require.Len(t, and.Clauses, 2)
	assert.Equal(t, OccurMust, and.Clauses[0].Occur)
	assert.Equal(t, OccurMust, and.Clauses[1].Occur)

	or := Or(nameBob, nameAlice)
	require.Len(t, or.Clauses, 2)
	assert.Equal(t, OccurShould, or.Clauses[0].Occur)

	not := Not(nameBob)
	require.Len(t, not.Clauses, 1)
	assert.Equal(t, OccurMustNot, not.Clauses[0].Occur)
	assert.Equal(t, nameBob, not.Clauses[0].Predicate)
}

func TestAllAndNone(t *testing.T) {
	all, ok := All().(Range)
	require.True(t, ok)
	assert.Equal(t, IDField, all.Field)
	assert.Equal(t, Int(0), all.Min)
	assert.True(t, all.ExcludeMin)
	assert.Nil(t, all.Max)

	assert.True(t, IsNone(None()))
	assert.False(t, IsNone(All()))
	assert.False(t, IsNone(Term{Field: IDField, Value: Int(7)}))
	assert.False(t, IsNone(Term{Field: "Name", Value: Int(0)}))
}

func TestOccurrenceString(t *testing.T) {
	tests := []struct {
		occ  Occurrence
		want string
	}{
		{OccurDefault, "default"},
		{OccurMust, "must"},
		{OccurShould, "should"},
		{OccurMustNot, "must_not"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.occ.String())
		})
	}
}

func TestClauseCount(t *testing.T) {
	assert.Equal(t, 0, ClauseCount(nil))
	assert.Equal(t, 1, ClauseCount(nameBob))
	assert.Equal(t, 3, ClauseCount(And(nameBob, Or(nameAlice, ageOver10))))
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "Bob", ValueString(String("Bob")))
	assert.Equal(t, "42", ValueString(Int(42)))
	assert.Equal(t, "true", ValueString(Bool(true)))
	assert.Equal(t, "null", ValueString(Null{}))
	assert.Equal(t, "<nil>", ValueString(nil))
}
