package bdclient

import "time"

// Issue mirrors the fields bd emits with --json. The dashboard renders
// these verbatim; bd owns the schema and its semantics.
type Issue struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Status       string        `json:"status,omitempty"`
	Priority     int           `json:"priority"`
	IssueType    string        `json:"issue_type,omitempty"`
	Assignee     string        `json:"assignee,omitempty"`
	Labels       []string      `json:"labels,omitempty"`
	Dependencies []*Dependency `json:"dependencies,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	ClosedAt     *time.Time    `json:"closed_at,omitempty"`
	CloseReason  string        `json:"close_reason,omitempty"`
}

// Dependency is one edge in bd's dependency graph.
type Dependency struct {
	IssueID     string `json:"issue_id"`
	DependsOnID string `json:"depends_on_id"`
	Type        string `json:"dep_type,omitempty"`
}

// Stats is bd's aggregate issue count summary.
type Stats struct {
	TotalIssues      int `json:"total_issues"`
	OpenIssues       int `json:"open_issues"`
	InProgressIssues int `json:"in_progress_issues"`
	BlockedIssues    int `json:"blocked_issues"`
	ClosedIssues     int `json:"closed_issues"`
	ReadyIssues      int `json:"ready_issues"`
}

// ListFilter narrows bd list output. Zero values are omitted from the
// argv. Priority is a string because 0 is a valid bd priority.
type ListFilter struct {
	Status   string
	Assignee string
	Label    string
	Priority string
	Limit    int
}

// CreateRequest carries the fields for bd create. Priority is a string so
// an unset value is omitted from the argv and bd applies its own default;
// "0" still files a P0.
type CreateRequest struct {
	Title       string
	Description string
	IssueType   string
	Priority    string
	Assignee    string
	Labels      []string
}

// UpdateRequest carries the fields for bd update. Empty fields are left
// untouched.
type UpdateRequest struct {
	Status   string
	Priority string
	Assignee string
}
