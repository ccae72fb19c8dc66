package run

import (
	"context"
	"fmt"
	"strings"

	"github.com/quarrydata/quarry/pkg/adapter"
)

// executeHooks runs hook SQL statements sequentially. `{{ this }}` and
// `{{this}}` resolve to the quoted qualified relation name; hooks support
// only that one variable. Comment-only hooks are skipped since some
// backends reject statements with no executable SQL.
func executeHooks(ctx context.Context, db adapter.Database, hooks []string, quotedName string) error {
	for _, hook := range hooks {
		sql := strings.ReplaceAll(hook, "{{ this }}", quotedName)
		sql = strings.ReplaceAll(sql, "{{this}}", quotedName)
		if isCommentOnly(sql) {
			continue
		}
		if err := db.Exec(ctx, sql); err != nil {
			return fmt.Errorf("%w: %v", ErrHook, err)
		}
	}
	return nil
}

// isCommentOnly reports whether sql contains only line comments and whitespace.
func isCommentOnly(sql string) bool {
	for _, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
