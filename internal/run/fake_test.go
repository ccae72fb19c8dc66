package run

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/quarrydata/quarry/pkg/adapter"
	"github.com/quarrydata/quarry/pkg/core"
)

// fakeDB is an in-memory adapter.Database that records every call so tests
// can assert on the exact statement sequence a scenario produces.
type fakeDB struct {
	mu      sync.Mutex
	calls   []string
	tables  map[string]bool
	schemas map[string]bool

	// tableSchemas feeds GetTableSchema; describeCols feeds DescribeQuery.
	tableSchemas map[string][]core.ColumnDef
	describeCols []core.ColumnDef

	// countFn overrides QueryCount when set.
	countFn func(sql string) (int64, error)
	// execErr fails Exec for statements containing the substring key.
	execErr map[string]error
	// existsErr makes RelationExists fail.
	existsErr error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		tables:       make(map[string]bool),
		schemas:      make(map[string]bool),
		tableSchemas: make(map[string][]core.ColumnDef),
		execErr:      make(map[string]error),
	}
}

func (f *fakeDB) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeDB) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeDB) callsMatching(substr string) []string {
	var out []string
	for _, c := range f.callLog() {
		if strings.Contains(c, substr) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeDB) hasTable(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[name]
}

func (f *fakeDB) setTable(name string, cols ...core.ColumnDef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = true
	if len(cols) > 0 {
		f.tableSchemas[name] = cols
	}
}

func (f *fakeDB) Connect(ctx context.Context, cfg adapter.Config) error { return nil }
func (f *fakeDB) Close() error                                          { return nil }
func (f *fakeDB) DialectName() string                                   { return "fake" }

func (f *fakeDB) Exec(ctx context.Context, sql string) error {
	f.record("exec: " + sql)
	f.mu.Lock()
	defer f.mu.Unlock()
	for substr, err := range f.execErr {
		if strings.Contains(sql, substr) {
			return err
		}
	}
	return nil
}

func (f *fakeDB) Query(ctx context.Context, sql string) (*adapter.Rows, error) {
	f.record("query: " + sql)
	return nil, fmt.Errorf("fake database does not return rows")
}

func (f *fakeDB) CreateTableAs(ctx context.Context, name, selectSQL string, replace bool) error {
	f.record(fmt.Sprintf("create_table_as: %s replace=%v", name, replace))
	f.mu.Lock()
	defer f.mu.Unlock()
	for substr, err := range f.execErr {
		if strings.Contains(selectSQL, substr) || strings.Contains(name, substr) {
			return err
		}
	}
	f.tables[name] = true
	return nil
}

func (f *fakeDB) CreateViewAs(ctx context.Context, name, selectSQL string, replace bool) error {
	f.record(fmt.Sprintf("create_view_as: %s replace=%v", name, replace))
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = true
	return nil
}

func (f *fakeDB) RelationExists(ctx context.Context, name string) (bool, error) {
	f.record("relation_exists: " + name)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.tables[name], nil
}

func (f *fakeDB) DropIfExists(ctx context.Context, name string) error {
	f.record("drop_if_exists: " + name)
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tables, name)
	return nil
}

func (f *fakeDB) CreateSchemaIfNotExists(ctx context.Context, schema string) error {
	f.record("create_schema: " + schema)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schemas[schema] = true
	return nil
}

func (f *fakeDB) QueryCount(ctx context.Context, sql string) (int64, error) {
	f.record("query_count: " + sql)
	f.mu.Lock()
	countFn := f.countFn
	f.mu.Unlock()
	if countFn != nil {
		return countFn(sql)
	}
	return 0, nil
}

func (f *fakeDB) DescribeQuery(ctx context.Context, sql string) ([]core.ColumnDef, error) {
	f.record("describe_query")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.describeCols, nil
}

func (f *fakeDB) GetTableSchema(ctx context.Context, table string) ([]core.ColumnDef, error) {
	f.record("get_table_schema: " + table)
	f.mu.Lock()
	defer f.mu.Unlock()
	cols, ok := f.tableSchemas[table]
	if !ok {
		return nil, fmt.Errorf("table %s not found", table)
	}
	return cols, nil
}

func (f *fakeDB) AddColumns(ctx context.Context, table string, cols []core.ColumnDef) error {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	f.record(fmt.Sprintf("add_columns: %s %s", table, strings.Join(names, ",")))
	return nil
}

func (f *fakeDB) MergeInto(ctx context.Context, table, selectSQL string, uniqueKeys []string) error {
	f.record(fmt.Sprintf("merge_into: %s keys=%s", table, strings.Join(uniqueKeys, ",")))
	return nil
}

func (f *fakeDB) DeleteInsert(ctx context.Context, table, selectSQL string, uniqueKeys []string) error {
	f.record(fmt.Sprintf("delete_insert: %s keys=%s", table, strings.Join(uniqueKeys, ",")))
	return nil
}

var _ adapter.Database = (*fakeDB)(nil)
