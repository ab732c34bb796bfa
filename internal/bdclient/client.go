// Package bdclient is a thin typed layer over the bd CLI. It marshals
// operations into argv, runs them through the process supervisor, and
// decodes bd's --json stdout. All issue semantics (status transitions,
// dependency resolution, ready logic) live in bd itself.
package bdclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/steveyegge/beads-ui/internal/debug"
	"github.com/steveyegge/beads-ui/internal/supervisor"
)

// Client invokes the bd binary. All reads retry transient failures with
// exponential backoff; mutations run exactly once (retrying a create could
// double-file an issue).
type Client struct {
	run       supervisor.Runner
	bin       string
	workspace string

	// maxRetries bounds read retries on timeout / non-zero exit.
	maxRetries uint64
}

// New creates a bd client that executes bin through run, with the given
// working directory (the bd project root).
func New(run supervisor.Runner, bin, workspace string) *Client {
	return &Client{run: run, bin: bin, workspace: workspace, maxRetries: 2}
}

// List returns issues matching filter.
func (c *Client) List(ctx context.Context, filter ListFilter) ([]*Issue, error) {
	args := []string{"list", "--json"}
	if filter.Status != "" {
		args = append(args, "--status", filter.Status)
	}
	if filter.Assignee != "" {
		args = append(args, "--assignee", filter.Assignee)
	}
	if filter.Label != "" {
		args = append(args, "--label", filter.Label)
	}
	if filter.Priority != "" {
		args = append(args, "--priority", filter.Priority)
	}
	if filter.Limit > 0 {
		args = append(args, "--limit", strconv.Itoa(filter.Limit))
	}

	var issues []*Issue
	if err := c.readJSON(ctx, args, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// Ready returns issues with no open blockers, in bd's priority order.
func (c *Client) Ready(ctx context.Context) ([]*Issue, error) {
	var issues []*Issue
	if err := c.readJSON(ctx, []string{"ready", "--json"}, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// Blocked returns issues waiting on unresolved dependencies.
func (c *Client) Blocked(ctx context.Context) ([]*Issue, error) {
	var issues []*Issue
	if err := c.readJSON(ctx, []string{"blocked", "--json"}, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// Show returns a single issue by ID, with dependencies populated.
func (c *Client) Show(ctx context.Context, id string) (*Issue, error) {
	if id == "" {
		return nil, fmt.Errorf("issue id must not be empty")
	}
	var issue Issue
	if err := c.readJSON(ctx, []string{"show", id, "--json"}, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// Stats returns bd's aggregate counters for the dashboard summary row.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.readJSON(ctx, []string{"stats", "--json"}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Create files a new issue and returns its assigned ID.
func (c *Client) Create(ctx context.Context, req CreateRequest) (string, error) {
	if req.Title == "" {
		return "", fmt.Errorf("title must not be empty")
	}
	args := []string{"create", req.Title, "--json"}
	if req.Description != "" {
		args = append(args, "-d", req.Description)
	}
	if req.IssueType != "" {
		args = append(args, "-t", req.IssueType)
	}
	if req.Priority != "" {
		args = append(args, "-p", req.Priority)
	}
	if req.Assignee != "" {
		args = append(args, "--assignee", req.Assignee)
	}
	if len(req.Labels) > 0 {
		args = append(args, "--labels", strings.Join(req.Labels, ","))
	}

	res, err := c.exec(ctx, args)
	if err != nil {
		return "", err
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(res.Stdout), &created); err != nil {
		return "", fmt.Errorf("failed to parse bd create output: %w", err)
	}
	return created.ID, nil
}

// Update applies the non-empty fields of req to an issue.
func (c *Client) Update(ctx context.Context, id string, req UpdateRequest) error {
	if id == "" {
		return fmt.Errorf("issue id must not be empty")
	}
	args := []string{"update", id}
	if req.Status != "" {
		args = append(args, "--status", req.Status)
	}
	if req.Priority != "" {
		args = append(args, "--priority", req.Priority)
	}
	if req.Assignee != "" {
		args = append(args, "--assignee", req.Assignee)
	}
	if len(args) == 2 {
		return fmt.Errorf("no fields to update")
	}
	_, err := c.exec(ctx, args)
	return err
}

// Close closes an issue, optionally recording a reason.
func (c *Client) Close(ctx context.Context, id, reason string) error {
	if id == "" {
		return fmt.Errorf("issue id must not be empty")
	}
	args := []string{"close", id}
	if reason != "" {
		args = append(args, "--reason", reason)
	}
	_, err := c.exec(ctx, args)
	return err
}

// exec runs one bd invocation through the supervisor, in the workspace.
func (c *Client) exec(ctx context.Context, args []string) (*supervisor.Result, error) {
	debug.Logf("bd %s\n", strings.Join(args, " "))
	return c.run.Execute(ctx, c.bin, args, supervisor.WithDir(c.workspace))
}

// readJSON runs a read operation with retry and decodes its stdout.
//
// Timeouts and non-zero exits are retried with exponential backoff; circuit
// rejections and spawn errors are permanent. An open circuit means bd is
// already struggling, and a missing binary never fixes itself.
func (c *Client) readJSON(ctx context.Context, args []string, out interface{}) error {
	var res *supervisor.Result

	op := func() error {
		var err error
		res, err = c.exec(ctx, args)
		if err == nil {
			return nil
		}
		if retryable(err) {
			debug.Logf("bd %s failed (%v), retrying\n", args[0], err)
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newRetryBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(res.Stdout), out); err != nil {
		return fmt.Errorf("failed to parse bd %s output: %w", args[0], err)
	}
	return nil
}

// retryable reports whether a supervisor failure is worth retrying.
func retryable(err error) bool {
	var (
		timeoutErr *supervisor.TimeoutError
		exitErr    *supervisor.ExitError
	)
	return errors.As(err, &timeoutErr) || errors.As(err, &exitErr)
}

func newRetryBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	return b
}
