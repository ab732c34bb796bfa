// Package supervisor is the single point through which beads-ui executes
// external commands (bd, gt, git). It provides safety (argv execution, never
// a shell), fairness (bounded concurrency with FIFO queueing), efficiency
// (deduplication of identical in-flight invocations), and resilience
// (per-call timeouts and a circuit breaker).
//
// This is particularly effective during dashboard refresh storms where many
// browser tabs simultaneously trigger the same bd read: only one process
// runs and every caller receives its result.
package supervisor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Runner is the execution interface consumed by the bd/gt clients and the
// HTTP layer. *Supervisor implements it; telemetry.WrapRunner decorates it.
type Runner interface {
	Execute(ctx context.Context, command string, args []string, opts ...CallOption) (*Result, error)
}

// Config controls a Supervisor instance. Zero values fall back to defaults.
type Config struct {
	// Timeout is the default per-call wall-clock timeout, measured from
	// process spawn (queued wait does not count).
	Timeout time.Duration

	// MaxConcurrent bounds simultaneously executing (non-deduplicated)
	// processes. Deduplicated waiters do not consume a slot.
	MaxConcurrent int

	// BreakerThreshold is the number of consecutive failures before the
	// circuit opens. BreakerResetTimeout is how long the circuit stays
	// open before the next call is allowed through as a trial.
	BreakerThreshold    int
	BreakerResetTimeout time.Duration

	// KillGrace is how long a timed-out process gets between SIGTERM and
	// SIGKILL.
	KillGrace time.Duration

	// Dir and Env are defaults applied to every invocation unless
	// overridden per call. Env nil means inherit the parent environment.
	Dir string
	Env []string
}

// Defaults applied by New for zero Config fields.
const (
	DefaultTimeout             = 30 * time.Second
	DefaultMaxConcurrent       = 4
	DefaultBreakerThreshold    = 5
	DefaultBreakerResetTimeout = 30 * time.Second
	DefaultKillGrace           = 2 * time.Second
)

// Result is the outcome of a successfully completed invocation.
// Deduplicated callers all receive the same *Result; treat it as read-only.
type Result struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration_ms"`
}

// Supervisor executes external commands with bounded concurrency, in-flight
// deduplication, timeouts and circuit breaking. Instances are independent;
// beads-ui keeps one per command family (bd, gt).
type Supervisor struct {
	cfg     Config
	sem     *semaphore.Weighted
	breaker *breaker

	mu       sync.Mutex
	inflight map[string]*call

	active atomic.Int64
	closed atomic.Bool
}

// call tracks one in-flight invocation shared by every deduplicated caller.
// res and err are written exactly once, before done is closed. The process
// runs under its own context, canceled only when the last caller departs,
// so one caller's cancellation cannot fail the others.
type call struct {
	done    chan struct{}
	res     *Result
	err     error
	waiters int
	started time.Time

	cancel context.CancelFunc
}

// ErrClosed is returned by Execute after Close.
var ErrClosed = errors.New("supervisor closed")

// New creates a Supervisor with the given configuration.
func New(cfg Config) *Supervisor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = DefaultBreakerThreshold
	}
	if cfg.BreakerResetTimeout <= 0 {
		cfg.BreakerResetTimeout = DefaultBreakerResetTimeout
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = DefaultKillGrace
	}
	return &Supervisor{
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		breaker:  newBreaker(cfg.BreakerThreshold, cfg.BreakerResetTimeout),
		inflight: make(map[string]*call),
	}
}

// CallOption overrides per-call execution settings.
type CallOption func(*callSettings)

type callSettings struct {
	timeout time.Duration
	dir     string
	env     []string
}

// WithTimeout overrides the default timeout for this call only.
func WithTimeout(d time.Duration) CallOption {
	return func(s *callSettings) { s.timeout = d }
}

// WithDir sets the working directory for this call only.
func WithDir(dir string) CallOption {
	return func(s *callSettings) { s.dir = dir }
}

// WithEnv sets additional environment variables (KEY=VALUE) appended to the
// inherited environment for this call only.
func WithEnv(env []string) CallOption {
	return func(s *callSettings) { s.env = env }
}

// Execute runs command with args and returns its captured output.
//
// Identical concurrent calls (same command, same args, compared by value)
// are deduplicated: the process runs at most once and every caller receives
// the same result. The process outlives any individual caller — canceling
// one ctx detaches that caller only, and the run is killed when the last
// one departs. Distinct calls are admitted FIFO up to MaxConcurrent at a
// time. Failures are classified as exactly one of *CircuitOpenError,
// *TimeoutError, *ExitError or *SpawnError; ctx cancellation while queued
// or attached returns ctx.Err() and does not count toward the breaker.
//
// Arguments are passed as a literal argv — no shell ever interprets them.
func (s *Supervisor) Execute(ctx context.Context, command string, args []string, opts ...CallOption) (*Result, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	settings := callSettings{timeout: s.cfg.Timeout, dir: s.cfg.Dir, env: s.cfg.Env}
	for _, opt := range opts {
		opt(&settings)
	}

	if err := s.breaker.allow(); err != nil {
		return nil, err
	}

	key := identityKey(command, args)

	s.mu.Lock()
	c, ok := s.inflight[key]
	if !ok {
		c = &call{done: make(chan struct{}), started: time.Now()}
		// Detach the run from the spawning caller's cancellation; only
		// the per-call timeout and the last-waiter departure can kill it.
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c.cancel = cancel
		s.inflight[key] = c

		go func() {
			res, err := s.run(runCtx, command, args, settings)

			// Settle on every path: remove the entry before waking
			// waiters so a new identical request started after
			// settlement spawns fresh.
			s.mu.Lock()
			if s.inflight[key] == c {
				delete(s.inflight, key)
			}
			s.mu.Unlock()

			c.res, c.err = res, err
			close(c.done)
			cancel()
		}()
	}
	c.waiters++
	s.mu.Unlock()

	select {
	case <-c.done:
		return c.res, c.err
	case <-ctx.Done():
		s.detach(key, c)
		return nil, ctx.Err()
	}
}

// detach drops one caller from an in-flight invocation. When nobody is left
// waiting for the result, the run itself is canceled and the entry removed
// so a later identical request spawns fresh.
func (s *Supervisor) detach(key string, c *call) {
	s.mu.Lock()
	c.waiters--
	abandoned := c.waiters == 0
	if abandoned && s.inflight[key] == c {
		delete(s.inflight, key)
	}
	s.mu.Unlock()

	if abandoned {
		c.cancel()
	}
}

// run admits the call past the concurrency gate, spawns the process and
// classifies its outcome. ctx is the shared run context: it expires only
// when every attached caller has departed. Breaker bookkeeping happens
// only here, on completed invocations.
func (s *Supervisor) run(ctx context.Context, command string, args []string, settings callSettings) (*Result, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		// Abandoned by every caller while queued. Not a completed
		// invocation, so the breaker counter does not move.
		return nil, err
	}
	defer s.sem.Release(1)

	s.active.Add(1)
	defer s.active.Add(-1)

	// The timeout clock starts at spawn, not at enqueue.
	runCtx, cancel := context.WithTimeout(ctx, settings.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command, args...)
	cmd.Dir = settings.dir
	if len(settings.env) > 0 {
		cmd.Env = append(os.Environ(), settings.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Graceful-then-forceful termination: SIGTERM the process group on
	// ctx expiry, SIGKILL after KillGrace if it has not exited.
	setProcAttrs(cmd)
	cmd.Cancel = func() error { return terminate(cmd) }
	cmd.WaitDelay = s.cfg.KillGrace

	start := time.Now()
	if err := cmd.Start(); err != nil {
		s.breaker.recordFailure()
		return nil, &SpawnError{Command: command, Err: err}
	}

	waitErr := cmd.Wait()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		s.breaker.recordFailure()
		return nil, &TimeoutError{
			Command: command,
			Timeout: settings.timeout,
			Stdout:  stdout.String(),
			Stderr:  stderr.String(),
		}
	}
	if ctx.Err() != nil {
		// Every caller departed mid-run; the process was killed with
		// nobody left to observe the outcome.
		return nil, ctx.Err()
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			s.breaker.recordFailure()
			return nil, &ExitError{
				Command:  command,
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
				Duration: duration,
			}
		}
		s.breaker.recordFailure()
		return nil, &SpawnError{Command: command, Err: waitErr}
	}

	s.breaker.recordSuccess()
	return &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
		Duration: duration,
	}, nil
}

// Close marks the supervisor as torn down. In-flight invocations complete;
// subsequent Execute calls fail with ErrClosed.
func (s *Supervisor) Close() {
	s.closed.Store(true)
}

// identityKey hashes the exact (command, args) tuple. NUL separators keep
// ["ab","c"] and ["a","bc"] distinct.
func identityKey(command string, args []string) string {
	h := sha256.New()
	h.Write([]byte(command))
	for _, a := range args {
		h.Write([]byte{0})
		h.Write([]byte(a))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Stats is a snapshot of supervisor state for /api/status and bd-ui status.
type Stats struct {
	Active              int    `json:"active"`
	InFlight            int    `json:"inflight"`
	Waiters             int    `json:"waiters"`
	MaxConcurrent       int    `json:"max_concurrent"`
	BreakerState        string `json:"breaker_state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

// Stats returns a point-in-time snapshot of the supervisor's state.
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	inflight := len(s.inflight)
	waiters := 0
	for _, c := range s.inflight {
		waiters += c.waiters
	}
	s.mu.Unlock()

	state, failures := s.breaker.snapshot()
	return Stats{
		Active:              int(s.active.Load()),
		InFlight:            inflight,
		Waiters:             waiters,
		MaxConcurrent:       s.cfg.MaxConcurrent,
		BreakerState:        state.String(),
		ConsecutiveFailures: failures,
	}
}

// String implements fmt.Stringer for debug logging.
func (st Stats) String() string {
	return fmt.Sprintf("active=%d inflight=%d waiters=%d breaker=%s failures=%d",
		st.Active, st.InFlight, st.Waiters, st.BreakerState, st.ConsecutiveFailures)
}
