package core

import (
	"fmt"
	"strings"
)

// TestType identifies a declared schema test.
type TestType string

const (
	// TestNotNull fails on rows where the column is NULL.
	TestNotNull TestType = "not_null"
	// TestUnique fails on key values that appear more than once.
	TestUnique TestType = "unique"
	// TestAcceptedValues fails on rows outside the allowed value set.
	TestAcceptedValues TestType = "accepted_values"
)

// SchemaTest is one declared data test on a model column. A test fails when
// its check query returns any row, or when the query itself errors.
type SchemaTest struct {
	Type   TestType
	Column string
	// Values is the allowed set for accepted_values tests.
	Values []string
}

// CheckSQL builds the failure-detecting query for this test against the
// given qualified relation name. The returned SQL selects the offending
// rows, so zero rows means the test passes.
func (t SchemaTest) CheckSQL(qualifiedName string) string {
	qt := QuoteQualified(qualifiedName)
	qc := QuoteIdent(t.Column)

	switch t.Type {
	case TestUnique:
		return fmt.Sprintf("SELECT %s, COUNT(*) AS cnt FROM %s GROUP BY %s HAVING COUNT(*) > 1", qc, qt, qc)
	case TestNotNull:
		return fmt.Sprintf("SELECT * FROM %s WHERE %s IS NULL", qt, qc)
	case TestAcceptedValues:
		if len(t.Values) == 0 {
			// Empty allowed set: every row fails.
			return fmt.Sprintf("SELECT * FROM %s", qt)
		}
		quoted := make([]string, len(t.Values))
		for i, v := range t.Values {
			quoted[i] = "'" + EscapeString(v) + "'"
		}
		return fmt.Sprintf("SELECT * FROM %s WHERE %s NOT IN (%s)", qt, qc, strings.Join(quoted, ", "))
	default:
		// Unknown test types must fail loudly rather than silently pass.
		return fmt.Sprintf("SELECT 'unknown test type: %s' AS error", EscapeString(string(t.Type)))
	}
}
