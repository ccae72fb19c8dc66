package core

import (
	"encoding/json"
	"os/user"

	"github.com/google/uuid"
)

// CommentPlacement controls where the query comment is injected.
type CommentPlacement string

const (
	// PlacementAppend puts the comment after the SQL text.
	PlacementAppend CommentPlacement = "append"
	// PlacementPrepend puts the comment before the SQL text.
	PlacementPrepend CommentPlacement = "prepend"
)

// QueryComment describes the metadata comment injected into executed SQL so
// queries in database logs can be traced back to their originating model and
// invocation. The stored model SQL is never mutated; injection happens on a
// copy at execution time.
type QueryComment struct {
	// Project is the project name.
	Project string
	// InvocationID identifies this run. Generated if empty.
	InvocationID string
	// Placement selects append (default) or prepend.
	Placement CommentPlacement
	// FullRefresh records whether --full-refresh was active.
	FullRefresh bool
}

// commentBody is the serialized comment payload.
type commentBody struct {
	Model           string `json:"model"`
	Materialization string `json:"materialization"`
	Schema          string `json:"schema,omitempty"`
	Project         string `json:"project,omitempty"`
	InvocationID    string `json:"invocation_id"`
	User            string `json:"user,omitempty"`
	FullRefresh     bool   `json:"full_refresh"`
}

// NewQueryComment builds a comment context for one invocation.
func NewQueryComment(project string, fullRefresh bool) *QueryComment {
	return &QueryComment{
		Project:      project,
		InvocationID: uuid.NewString(),
		Placement:    PlacementAppend,
		FullRefresh:  fullRefresh,
	}
}

// Inject returns sql with the metadata comment added at the configured
// placement. On marshalling failure the SQL is returned unchanged.
func (q *QueryComment) Inject(sql string, m *CompiledModel) string {
	id := q.InvocationID
	if id == "" {
		id = uuid.NewString()
	}

	body := commentBody{
		Model:           m.Name,
		Materialization: string(m.Materialization),
		Schema:          m.Schema,
		Project:         q.Project,
		InvocationID:    id,
		User:            currentUser(),
		FullRefresh:     q.FullRefresh,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return sql
	}
	comment := "/* quarry_metadata: " + string(data) + " */"

	if q.Placement == PlacementPrepend {
		return comment + "\n" + sql
	}
	return sql + "\n" + comment
}

func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return u.Username
}
