package run

import (
	"context"
	"errors"
	"testing"
)

func TestExecuteHooks_ReplacesThis(t *testing.T) {
	db := newFakeDB()

	err := executeHooks(context.Background(), db, []string{
		"GRANT SELECT ON {{ this }} TO reporting",
		"ANALYZE {{this}}",
	}, `"marts"."orders"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := db.callLog()
	if len(calls) != 2 {
		t.Fatalf("expected 2 statements, got %v", calls)
	}
	if calls[0] != `exec: GRANT SELECT ON "marts"."orders" TO reporting` {
		t.Errorf("unexpected first hook: %s", calls[0])
	}
	if calls[1] != `exec: ANALYZE "marts"."orders"` {
		t.Errorf("unexpected second hook: %s", calls[1])
	}
}

func TestExecuteHooks_SkipsCommentOnly(t *testing.T) {
	db := newFakeDB()

	err := executeHooks(context.Background(), db, []string{
		"-- placeholder hook\n-- nothing to do",
		"  ",
	}, "t")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls := db.callLog(); len(calls) != 0 {
		t.Errorf("expected comment-only hooks to be skipped, got %v", calls)
	}
}

func TestExecuteHooks_FailureWrapsErrHook(t *testing.T) {
	db := newFakeDB()
	db.execErr["GRANT"] = errors.New("permission denied")

	err := executeHooks(context.Background(), db, []string{"GRANT ALL ON {{ this }} TO x"}, "t")
	if !errors.Is(err, ErrHook) {
		t.Errorf("expected ErrHook, got %v", err)
	}
}
