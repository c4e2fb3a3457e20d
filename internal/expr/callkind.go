package expr

import (
	"fmt"
	"strings"
)

// CallKind is the closed set of operations the compiler recognizes.
// Method names are resolved to a CallKind once, where the tree is built;
// the compiler never compares operation names.
type CallKind int

const (
	CallUnknown CallKind = iota

	// Query operators (receiver is the content sequence).
	CallWhere
	CallOfType
	CallTake
	CallSkip
	CallOrderBy
	CallOrderByDescending
	CallThenBy
	CallThenByDescending
	CallCount
	CallLongCount
	CallAny
	CallFirst
	CallFirstOrDefault
	CallSingle
	CallSingleOrDefault
	CallLast
	CallLastOrDefault
	CallElementAt
	CallElementAtOrDefault

	// Content and string operations.
	CallStartsWith
	CallEndsWith
	CallContains
	CallType
	CallTypeIs
	CallGetType
	CallIsAssignableFrom

	// OData canonical functions (static, field passed as an argument).
	CallODataStartsWith
	CallODataEndsWith
	CallODataSubstringOf

	// CallFunc invokes a host function. It is only valid in subtrees that
	// fold to a constant.
	CallFunc
)

var callNames = map[CallKind]string{
	CallWhere:              "Where",
	CallOfType:             "OfType",
	CallTake:               "Take",
	CallSkip:               "Skip",
	CallOrderBy:            "OrderBy",
	CallOrderByDescending:  "OrderByDescending",
	CallThenBy:             "ThenBy",
	CallThenByDescending:   "ThenByDescending",
	CallCount:              "Count",
	CallLongCount:          "LongCount",
	CallAny:                "Any",
	CallFirst:              "First",
	CallFirstOrDefault:     "FirstOrDefault",
	CallSingle:             "Single",
	CallSingleOrDefault:    "SingleOrDefault",
	CallLast:               "Last",
	CallLastOrDefault:      "LastOrDefault",
	CallElementAt:          "ElementAt",
	CallElementAtOrDefault: "ElementAtOrDefault",
	CallStartsWith:         "StartsWith",
	CallEndsWith:           "EndsWith",
	CallContains:           "Contains",
	CallType:               "Type",
	CallTypeIs:             "TypeIs",
	CallGetType:            "GetType",
	CallIsAssignableFrom:   "IsAssignableFrom",
	CallODataStartsWith:    "startswith",
	CallODataEndsWith:      "endswith",
	CallODataSubstringOf:   "substringof",
	CallFunc:               "Func",
}

func (k CallKind) String() string {
	if name, ok := callNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CallKind(%d)", int(k))
}

// ParseCallKind resolves a method name. OData canonical function names
// match case-insensitively; all other names match exactly.
func ParseCallKind(name string) (CallKind, bool) {
	for k, n := range callNames {
		if k == CallFunc {
			continue
		}
		if k.IsOData() {
			if strings.EqualFold(n, name) {
				return k, true
			}
			continue
		}
		if n == name {
			return k, true
		}
	}
	return CallUnknown, false
}

// IsOData reports whether k is an OData canonical function.
func (k CallKind) IsOData() bool {
	return k == CallODataStartsWith || k == CallODataEndsWith || k == CallODataSubstringOf
}

// IsStringMatch reports whether k lowers to a wildcard predicate.
func (k CallKind) IsStringMatch() bool {
	switch k {
	case CallStartsWith, CallEndsWith, CallContains,
		CallODataStartsWith, CallODataEndsWith, CallODataSubstringOf:
		return true
	}
	return false
}

// IsSort reports whether k appends a sort key.
func (k CallKind) IsSort() bool {
	switch k {
	case CallOrderBy, CallOrderByDescending, CallThenBy, CallThenByDescending:
		return true
	}
	return false
}

// IsDescending reports whether a sort call orders in reverse.
func (k CallKind) IsDescending() bool {
	return k == CallOrderByDescending || k == CallThenByDescending
}

// IsHostEvaluable reports whether a call of kind k can run host-side during
// constant folding. Query operators and type-name calls only have meaning to
// the compiler.
func (k CallKind) IsHostEvaluable() bool {
	switch k {
	case CallFunc, CallStartsWith, CallEndsWith, CallContains,
		CallODataStartsWith, CallODataEndsWith, CallODataSubstringOf,
		CallGetType, CallIsAssignableFrom:
		return true
	}
	return false
}
