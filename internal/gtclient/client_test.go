package gtclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/beads-ui/internal/supervisor"
)

type fakeRunner struct {
	calls  [][]string
	stdout string
	err    error
}

func (f *fakeRunner) Execute(ctx context.Context, command string, args []string, opts ...supervisor.CallOption) (*supervisor.Result, error) {
	f.calls = append(f.calls, append([]string{command}, args...))
	if f.err != nil {
		return nil, f.err
	}
	return &supervisor.Result{Stdout: f.stdout}, nil
}

func TestAgents(t *testing.T) {
	fake := &fakeRunner{stdout: `[
		{"name":"crier","role":"notifier","state":"idle"},
		{"name":"mason","role":"builder","state":"working","bead":"bd-12"}
	]`}
	c := New(fake, "gt", "/srv/town")

	agents, err := c.Agents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "mason", agents[1].Name)
	assert.Equal(t, "bd-12", agents[1].Bead)
	assert.Equal(t, []string{"gt", "agent", "list", "--json"}, fake.calls[0])
}

func TestSessions(t *testing.T) {
	fake := &fakeRunner{stdout: `[{"id":"s-1","agent":"mason"}]`}
	c := New(fake, "gt", ".")

	sessions, err := c.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "mason", sessions[0].Agent)
}

func TestStatus(t *testing.T) {
	fake := &fakeRunner{stdout: `{"running":true,"agent_count":3,"active_work":2,"queued_work":5}`}
	c := New(fake, "gt", ".")

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, 5, status.QueuedWork)
}

func TestStatus_BadJSON(t *testing.T) {
	fake := &fakeRunner{stdout: `not json`}
	c := New(fake, "gt", ".")

	_, err := c.Status(context.Background())
	assert.Error(t, err)
}

func TestAgents_PropagatesSupervisorError(t *testing.T) {
	fake := &fakeRunner{err: &supervisor.SpawnError{Command: "gt"}}
	c := New(fake, "gt", ".")

	_, err := c.Agents(context.Background())
	var spawnErr *supervisor.SpawnError
	require.ErrorAs(t, err, &spawnErr)
}
