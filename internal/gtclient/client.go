// Package gtclient is a thin typed layer over the gt agent-orchestration
// CLI, mirroring bdclient: argv marshaling in, --json stdout out.
package gtclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/beads-ui/internal/debug"
	"github.com/steveyegge/beads-ui/internal/supervisor"
)

// Agent is one gt-managed worker as reported by gt agent list.
type Agent struct {
	Name      string    `json:"name"`
	Role      string    `json:"role,omitempty"`
	State     string    `json:"state"`
	Bead      string    `json:"bead,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Session is one active gt terminal session.
type Session struct {
	ID        string    `json:"id"`
	Agent     string    `json:"agent"`
	StartedAt time.Time `json:"started_at"`
}

// TownStatus is gt's overall orchestrator health summary.
type TownStatus struct {
	Running    bool `json:"running"`
	AgentCount int  `json:"agent_count"`
	ActiveWork int  `json:"active_work"`
	QueuedWork int  `json:"queued_work"`
}

// Client invokes the gt binary through the supervisor.
type Client struct {
	run       supervisor.Runner
	bin       string
	workspace string
}

// New creates a gt client executing bin through run in workspace.
func New(run supervisor.Runner, bin, workspace string) *Client {
	return &Client{run: run, bin: bin, workspace: workspace}
}

// Agents lists gt's managed agents.
func (c *Client) Agents(ctx context.Context) ([]*Agent, error) {
	var agents []*Agent
	if err := c.readJSON(ctx, []string{"agent", "list", "--json"}, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// Sessions lists active gt sessions.
func (c *Client) Sessions(ctx context.Context) ([]*Session, error) {
	var sessions []*Session
	if err := c.readJSON(ctx, []string{"session", "list", "--json"}, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Status returns gt's orchestrator summary.
func (c *Client) Status(ctx context.Context) (*TownStatus, error) {
	var status TownStatus
	if err := c.readJSON(ctx, []string{"status", "--json"}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) readJSON(ctx context.Context, args []string, out interface{}) error {
	debug.Logf("gt %s\n", strings.Join(args, " "))
	res, err := c.run.Execute(ctx, c.bin, args, supervisor.WithDir(c.workspace))
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(res.Stdout), out); err != nil {
		return fmt.Errorf("failed to parse gt %s output: %w", args[0], err)
	}
	return nil
}
