package run

import "errors"

// Failure categories. Each per-model failure wraps exactly one of these so
// callers can classify results without string matching. All of them are
// fatal to the failing model only; ErrAudit additionally cascades Skipped
// to every transitive dependent.
var (
	// ErrConfiguration marks invalid model configuration, such as a merge
	// strategy without a unique key. No DML is attempted.
	ErrConfiguration = errors.New("configuration error")

	// ErrHook marks a failed pre- or post-hook statement.
	ErrHook = errors.New("hook failed")

	// ErrMaterialization marks a failed create/insert/merge against the target.
	ErrMaterialization = errors.New("materialization failed")

	// ErrContract marks a declared-schema contract violation.
	ErrContract = errors.New("contract violation")

	// ErrSchemaChange marks drift rejected by the fail policy.
	ErrSchemaChange = errors.New("schema change detected")

	// ErrAudit marks failed WAP schema tests.
	ErrAudit = errors.New("audit failed")
)
