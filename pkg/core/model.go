// Package core defines the domain types shared between the scheduler,
// the execution engine, and the database adapters: compiled models,
// materialization kinds, run results, schema contracts, and SQL helpers.
package core

// Materialization defines the physical form a model takes in the database.
type Materialization string

// Materialization kinds. The executor switches exhaustively over these;
// adding a kind is a compile-visible change.
const (
	MaterializationView        Materialization = "view"
	MaterializationTable       Materialization = "table"
	MaterializationIncremental Materialization = "incremental"
	MaterializationEphemeral   Materialization = "ephemeral"
)

// IncrementalStrategy selects how new rows are folded into an existing
// incremental table.
type IncrementalStrategy string

const (
	// StrategyAppend inserts the query result without deduplication.
	StrategyAppend IncrementalStrategy = "append"
	// StrategyMerge deletes rows matching the unique key, then inserts all
	// new rows. Requires at least one unique-key column.
	StrategyMerge IncrementalStrategy = "merge"
	// StrategyDeleteInsert behaves like merge; kept as a separate strategy so
	// a backend with a native MERGE can diverge without engine changes.
	StrategyDeleteInsert IncrementalStrategy = "delete_insert"
)

// OnSchemaChange controls what happens when the live table's columns drift
// from the columns of the new query.
type OnSchemaChange string

const (
	// SchemaChangeIgnore skips the drift check entirely.
	SchemaChangeIgnore OnSchemaChange = "ignore"
	// SchemaChangeFail raises an error enumerating added/removed columns.
	SchemaChangeFail OnSchemaChange = "fail"
	// SchemaChangeAppendNew adds new columns via ALTER TABLE; removed columns
	// are never dropped.
	SchemaChangeAppendNew OnSchemaChange = "append_new_columns"
)

// ColumnDef is a declared column (name + type) from a model's schema file.
// Used both for contract validation and for first-run stub table DDL.
type ColumnDef struct {
	Name string
	Type string
}

// ModelSchema is the declared output schema of a model.
type ModelSchema struct {
	// Columns lists the declared columns in order.
	Columns []ColumnDef
	// ContractEnforced makes contract violations fatal rather than advisory.
	ContractEnforced bool
	// Tests are the declared schema tests, run by the WAP audit step.
	Tests []SchemaTest
}

// CompiledModel is a model after templating and dependency extraction,
// ready for execution. The engine never parses SQL; it receives the final
// text and the already-extracted dependency names.
type CompiledModel struct {
	// Name is the model name, unique within a run.
	Name string
	// SQL is the final compiled SELECT text. It is never mutated by the
	// engine; query comments are injected into a copy at execution time so
	// checksums over SQL stay stable.
	SQL string
	// Materialization selects the execution path.
	Materialization Materialization
	// Schema is the target schema. Empty means the connection default.
	Schema string
	// Dependencies are the names of upstream models this model reads from.
	Dependencies []string
	// UniqueKey lists the key columns for merge/delete_insert strategies.
	UniqueKey []string
	// Strategy is the incremental strategy. Empty defaults to append.
	Strategy IncrementalStrategy
	// OnSchemaChange is the drift policy. Empty defaults to ignore.
	OnSchemaChange OnSchemaChange
	// PreHooks and PostHooks are SQL statements run around materialization.
	// `{{ this }}` resolves to the quoted qualified relation name.
	PreHooks  []string
	PostHooks []string
	// ModelSchema is the declared column schema, if any.
	ModelSchema *ModelSchema
	// WAP opts this model into Write-Audit-Publish when a staging schema is
	// configured. Only honored for table and incremental materializations.
	WAP bool
	// QueryComment, when set, is injected into executed SQL.
	QueryComment *QueryComment
	// Tags are metadata labels used by tag: selectors.
	Tags []string
	// Path is the source file path, used by path: selectors.
	Path string
}

// QualifiedName returns the schema-qualified relation name, unquoted.
func (m *CompiledModel) QualifiedName() string {
	if m.Schema == "" {
		return m.Name
	}
	return m.Schema + "." + m.Name
}

// DefaultStrategy returns the configured strategy or append.
func (m *CompiledModel) DefaultStrategy() IncrementalStrategy {
	if m.Strategy == "" {
		return StrategyAppend
	}
	return m.Strategy
}

// SchemaChangePolicy returns the configured policy or ignore.
func (m *CompiledModel) SchemaChangePolicy() OnSchemaChange {
	if m.OnSchemaChange == "" {
		return SchemaChangeIgnore
	}
	return m.OnSchemaChange
}
