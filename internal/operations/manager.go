package operations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ironnas/backend/irond/internal/pools"
	"ironnas/backend/irond/pkg/shell"
)

// RunFunc executes an external command and returns its exit code and combined
// output. Workflows never interpret output beyond recording it; a non-zero
// code aborts the workflow at that step.
type RunFunc func(ctx context.Context, name string, args ...string) (int, string)

// MetadataStore is the persisted pool metadata the workflows read and write.
type MetadataStore interface {
	Get(guid string) (pools.Metadata, bool, error)
	ListAll() ([]pools.Metadata, error)
	Update(meta pools.Metadata) error
	Remove(guid string) error
}

// Options tune workflow behaviour; zero values fall back to production defaults.
type Options struct {
	SettleDelay   time.Duration
	MdadmConfPath string
	Runner        RunFunc
}

// Manager is the operation registry and workflow engine. It is the single
// owner of all Operation state; workflows, HTTP callers, and the cleanup task
// all go through its methods concurrently.
type Manager struct {
	logger zerolog.Logger
	meta   MetadataStore

	mu      sync.RWMutex
	ops     map[string]*Operation
	cancels map[string]context.CancelFunc
	tokens  map[string]context.Context

	run           RunFunc
	settleDelay   time.Duration
	mdadmConfPath string
}

func NewManager(logger zerolog.Logger, meta MetadataStore, opts Options) *Manager {
	m := &Manager{
		logger:        logger.With().Str("component", "operations").Logger(),
		meta:          meta,
		ops:           make(map[string]*Operation),
		cancels:       make(map[string]context.CancelFunc),
		tokens:        make(map[string]context.Context),
		run:           opts.Runner,
		settleDelay:   opts.SettleDelay,
		mdadmConfPath: opts.MdadmConfPath,
	}
	if m.run == nil {
		m.run = defaultRunner
	}
	if m.settleDelay <= 0 {
		m.settleDelay = 5 * time.Second
	}
	if m.mdadmConfPath == "" {
		m.mdadmConfPath = "/etc/mdadm/mdadm.conf"
	}
	return m
}

func defaultRunner(ctx context.Context, name string, args ...string) (int, string) {
	res, err := shell.Run(ctx, 10*time.Minute, name, args...)
	if err != nil && res.Code == 0 {
		res.Code = -1
	}
	return res.Code, res.Combined()
}

// Register allocates a new operation in status pending. Cancellable
// operations get a live cancellation token for their active lifetime.
func (m *Manager) Register(poolID string, kind Kind, description string, cancellable bool) Operation {
	return m.register(uuid.NewString(), poolID, kind, description, cancellable)
}

func (m *Manager) register(id, poolID string, kind Kind, description string, cancellable bool) Operation {
	now := time.Now().UTC()
	op := &Operation{
		ID:          id,
		PoolID:      poolID,
		Kind:        kind,
		Description: description,
		Cancellable: cancellable,
		Status:      StatusPending,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	m.mu.Lock()
	m.ops[id] = op
	if cancellable {
		ctx, cancel := context.WithCancel(context.Background())
		m.tokens[id] = ctx
		m.cancels[id] = cancel
	}
	m.mu.Unlock()
	operationsActive.Inc()
	m.logger.Info().Str("op", id).Str("pool", poolID).Str("kind", string(kind)).Msg("operation registered")
	return *op
}

// attach returns the operation with the given ID, registering it first if the
// caller supplied an unknown or empty ID. Workflows call it so they can run
// either against a pre-registered operation or standalone.
func (m *Manager) attach(opID, poolID string, kind Kind, description string, cancellable bool) Operation {
	if opID != "" {
		m.mu.RLock()
		op, ok := m.ops[opID]
		m.mu.RUnlock()
		if ok {
			return *op
		}
	} else {
		opID = uuid.NewString()
	}
	return m.register(opID, poolID, kind, description, cancellable)
}

// token returns the cancellation context for an operation. Non-cancellable
// or unknown operations get a background context that never fires.
func (m *Manager) token(id string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ctx, ok := m.tokens[id]; ok {
		return ctx
	}
	return context.Background()
}

// UpdateStatus transitions status and refreshes message/progress. An empty
// message or negative progress leaves the current value. Unknown IDs and
// terminal operations are tolerated with a warning; the race with cleanup is
// expected, not fatal.
func (m *Manager) UpdateStatus(id string, status Status, message string, progress int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		m.logger.Warn().Str("op", id).Msg("status update for unknown operation")
		return false
	}
	if op.Status.Terminal() {
		m.logger.Warn().Str("op", id).Str("status", string(op.Status)).Msg("status update after terminal state rejected")
		return false
	}
	op.Status = status
	if message != "" {
		op.Message = message
	}
	if progress >= 0 {
		op.Progress = progress
	}
	op.UpdatedAt = time.Now().UTC()
	return true
}

// Complete moves an operation to its terminal state and releases its
// cancellation token. A second call is a logged no-op.
func (m *Manager) Complete(id string, success bool, result string, payload any) bool {
	m.mu.Lock()
	op, ok := m.ops[id]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn().Str("op", id).Msg("completion for unknown operation")
		return false
	}
	if op.Status.Terminal() {
		m.mu.Unlock()
		m.logger.Warn().Str("op", id).Str("status", string(op.Status)).Msg("duplicate completion ignored")
		return false
	}
	now := time.Now().UTC()
	if success {
		op.Status = StatusCompleted
		op.Progress = 100
	} else {
		op.Status = StatusFailed
	}
	op.Success = success
	op.Result = result
	op.Payload = payload
	op.UpdatedAt = now
	op.FinishedAt = &now
	m.releaseTokenLocked(id)
	kind := op.Kind
	m.mu.Unlock()

	operationsActive.Dec()
	operationsTotal.WithLabelValues(string(kind), string(statusFor(success))).Inc()
	m.logger.Info().Str("op", id).Bool("success", success).Str("result", result).Msg("operation finished")
	return true
}

func statusFor(success bool) Status {
	if success {
		return StatusCompleted
	}
	return StatusFailed
}

// Cancel signals a cancellable, non-terminal operation. Commands already
// dispatched to the OS are not interrupted; the workflow observes the token
// at its next suspension point.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	op, ok := m.ops[id]
	if !ok || !op.Cancellable || op.Status.Terminal() {
		m.mu.Unlock()
		return false
	}
	now := time.Now().UTC()
	op.Status = StatusCancelled
	op.Success = false
	op.Result = CancelledResult
	op.UpdatedAt = now
	op.FinishedAt = &now
	m.releaseTokenLocked(id)
	kind := op.Kind
	m.mu.Unlock()

	operationsActive.Dec()
	operationsTotal.WithLabelValues(string(kind), string(StatusCancelled)).Inc()
	m.logger.Info().Str("op", id).Msg("operation cancelled")
	return true
}

func (m *Manager) releaseTokenLocked(id string) {
	if cancel, ok := m.cancels[id]; ok {
		cancel()
		delete(m.cancels, id)
		delete(m.tokens, id)
	}
}

// Get returns a snapshot of one operation.
func (m *Manager) Get(id string) (Operation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	op, ok := m.ops[id]
	if !ok {
		return Operation{}, false
	}
	return *op, true
}

// ListForPool returns the pool's operations, newest first. With
// includeCompleted=false, completed and failed history is hidden; cancelled
// operations stay visible so a surprised caller can see why work stopped.
func (m *Manager) ListForPool(poolID string, includeCompleted bool) []Operation {
	return m.list(func(op *Operation) bool { return op.PoolID == poolID }, includeCompleted)
}

// ListAll returns every operation, newest first.
func (m *Manager) ListAll(includeCompleted bool) []Operation {
	return m.list(func(op *Operation) bool { return true }, includeCompleted)
}

func (m *Manager) list(match func(*Operation) bool, includeCompleted bool) []Operation {
	m.mu.RLock()
	out := make([]Operation, 0, len(m.ops))
	for _, op := range m.ops {
		if !match(op) {
			continue
		}
		if !includeCompleted && (op.Status == StatusCompleted || op.Status == StatusFailed) {
			continue
		}
		out = append(out, *op)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// HasActive reports whether a non-terminal operation of the given kind exists
// for the pool. The facade uses this to keep one live operation per
// (pool, kind); the registry itself does not enforce it.
func (m *Manager) HasActive(poolID string, kind Kind) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, op := range m.ops {
		if op.PoolID == poolID && op.Kind == kind && !op.Status.Terminal() {
			return true
		}
	}
	return false
}

// PruneOlderThan removes terminal operations whose end time is older than
// retention. With no statuses given, all terminal statuses are eligible.
func (m *Manager) PruneOlderThan(retention time.Duration, statuses ...Status) int {
	cutoff := time.Now().UTC().Add(-retention)
	eligible := func(s Status) bool {
		if !s.Terminal() {
			return false
		}
		if len(statuses) == 0 {
			return true
		}
		for _, want := range statuses {
			if s == want {
				return true
			}
		}
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, op := range m.ops {
		if !eligible(op.Status) || op.FinishedAt == nil || !op.FinishedAt.Before(cutoff) {
			continue
		}
		m.releaseTokenLocked(id)
		delete(m.ops, id)
		removed++
	}
	if removed > 0 {
		m.logger.Info().Int("count", removed).Msg("pruned operation history")
	}
	return removed
}

// stale returns snapshots of non-terminal operations idle longer than d.
func (m *Manager) stale(d time.Duration) []Operation {
	cutoff := time.Now().UTC().Add(-d)
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Operation{}
	for _, op := range m.ops {
		if !op.Status.Terminal() && op.UpdatedAt.Before(cutoff) {
			out = append(out, *op)
		}
	}
	return out
}
