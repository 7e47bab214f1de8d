package ponos

import (
    "context"
    "sync"
    "sync/atomic"

    "github.com/fxamacker/cbor/v2"
    "go.uber.org/zap"

    "petasos/pkg/memkv"
    "petasos/pkg/task"
)

// InProcess is an authoritative registry living in this process, backed by
// memkv. It arbitrates execution grants under a single arbiter lock: an
// active grant is exclusive to its holder, and renewals must supersede the
// stored card version, so nodes never decide EXECUTING unilaterally. Fault
// hooks allow tests to simulate registry unreachability and grant rejection.
type InProcess struct {
    kv *memkv.Store
    mu sync.RWMutex
    ids map[string]struct{}

    // grantMu serializes grant arbitration. Shard locks alone cannot make the
    // read-decide-write sequence atomic when no grant document exists yet.
    grantMu sync.Mutex

    unavailable  atomic.Bool
    rejectGrants atomic.Bool
}

func NewInProcess(kv *memkv.Store) *InProcess {
    return &InProcess{kv: kv, ids: make(map[string]struct{})}
}

func keyCentral(id string) string { return "ponos:task:" + id }
func keyGrant(id string) string   { return "ponos:grant:" + id }

// SetUnavailable toggles simulated registry unreachability.
func (p *InProcess) SetUnavailable(v bool) { p.unavailable.Store(v) }

// SetRejectGrants toggles unconditional grant rejection.
func (p *InProcess) SetRejectGrants(v bool) { p.rejectGrants.Store(v) }

// RegisterActionableTask admits a task. Idempotent: re-registration of a
// known task returns the stored authoritative copy untouched.
func (p *InProcess) RegisterActionableTask(ctx context.Context, t *task.ActionableTask) (*task.ActionableTask, error) {
    if err := p.check(ctx); err != nil { return nil, err }
    if t == nil || t.ID.IsZero() { return nil, ErrUnavailable }

    if b, ok := p.kv.Get(keyCentral(t.ID.Local)); ok {
        if stored, ok := task.UnmarshalTask(b); ok {
            zap.L().Debug("ponos re-registration ignored", zap.String("task", t.ID.Local))
            return stored, nil
        }
    }
    central := t.Clone()
    central.ExecutionStatus = task.ExecutionWaiting
    p.kv.Set(keyCentral(t.ID.Local), task.MarshalTask(central), 0)
    p.mu.Lock(); p.ids[t.ID.Local] = struct{}{}; p.mu.Unlock()
    zap.L().Info("ponos task registered", zap.String("task", t.ID.Local), zap.Uint64("sequence", uint64(t.ID.Sequence)))
    return central, nil
}

// UpdateActionableTask merges a pushed state change. Terminal states already
// recorded centrally are sticky: a stale non-terminal push returns the stored
// terminal copy instead of reviving the task.
func (p *InProcess) UpdateActionableTask(ctx context.Context, t *task.ActionableTask) (*task.ActionableTask, error) {
    if err := p.check(ctx); err != nil { return nil, err }
    if t == nil || t.ID.IsZero() { return nil, ErrUnavailable }

    var out *task.ActionableTask
    updated := p.kv.Update(keyCentral(t.ID.Local), func(old []byte) []byte {
        stored, ok := task.UnmarshalTask(old)
        if ok && stored.ExecutionStatus.Terminal() && !t.ExecutionStatus.Terminal() {
            out = stored
            return old
        }
        out = t.Clone()
        return task.MarshalTask(out)
    })
    if !updated {
        // unknown task: treat the push as register-then-update
        return p.RegisterActionableTask(ctx, t)
    }
    if out.ExecutionStatus != t.ExecutionStatus {
        zap.L().Warn("ponos kept terminal status over stale push",
            zap.String("task", t.ID.Local),
            zap.String("pushed", t.ExecutionStatus.String()),
            zap.String("kept", out.ExecutionStatus.String()))
    }
    return out, nil
}

// grantDoc is the stored arbitration record per task.
type grantDoc struct {
    FulfillmentTaskID string `cbor:"fulfillment_task_id"`
    PlantID           string `cbor:"plant_id"`
    Version           uint64 `cbor:"version"`
    Active            bool   `cbor:"active"`
}

// ConfirmGrant arbitrates an execution grant. A grant is accepted when no
// active grant exists, or when the current holder renews with a card version
// above the stored one (stale renewals are rejected). An active grant held by
// anyone else is kept until released. The whole read-decide-write runs under
// grantMu so two plants racing for a fresh task cannot both be accepted.
func (p *InProcess) ConfirmGrant(ctx context.Context, card task.JobCardRecord) (bool, error) {
    if err := p.check(ctx); err != nil { return false, err }
    if p.rejectGrants.Load() { return false, nil }
    id := card.ActionableTaskID.Local
    if id == "" { return false, nil }

    p.grantMu.Lock()
    defer p.grantMu.Unlock()

    var g grantDoc
    if b, ok := p.kv.Get(keyGrant(id)); ok {
        _ = cbor.Unmarshal(b, &g)
    }
    accepted := false
    switch {
    case !g.Active:
        accepted = true
    case g.FulfillmentTaskID == card.ExecutingFulfillmentTaskID && card.Version > g.Version:
        // renewal by the current holder must supersede the stored version
        accepted = true
    }
    if accepted {
        b, _ := cbor.Marshal(grantDoc{
            FulfillmentTaskID: card.ExecutingFulfillmentTaskID,
            PlantID:           card.PlantID,
            Version:           card.Version,
            Active:            true,
        })
        p.kv.Set(keyGrant(id), b, 0)
        zap.L().Debug("ponos grant confirmed", zap.String("task", id), zap.String("fulfillment", card.ExecutingFulfillmentTaskID))
    } else {
        zap.L().Debug("ponos grant rejected", zap.String("task", id), zap.String("fulfillment", card.ExecutingFulfillmentTaskID))
    }
    return accepted, nil
}

// ReleaseGrant marks the task's grant inactive (terminal card states). The
// stored version survives the release so a later stale renewal still fails
// the version check.
func (p *InProcess) ReleaseGrant(ctx context.Context, id string) error {
    if err := p.check(ctx); err != nil { return err }
    p.grantMu.Lock()
    defer p.grantMu.Unlock()
    var g grantDoc
    if b, ok := p.kv.Get(keyGrant(id)); ok {
        _ = cbor.Unmarshal(b, &g)
    }
    g.Active = false
    b, _ := cbor.Marshal(g)
    p.kv.Set(keyGrant(id), b, 0)
    return nil
}

// GetCentralTask returns the registry's authoritative copy, if known.
func (p *InProcess) GetCentralTask(id string) (*task.ActionableTask, bool) {
    b, ok := p.kv.Get(keyCentral(id))
    if !ok { return nil, false }
    return task.UnmarshalTask(b)
}

// ListTaskIDs returns a snapshot of centrally-known task ids.
func (p *InProcess) ListTaskIDs() []string {
    p.mu.RLock(); defer p.mu.RUnlock()
    out := make([]string, 0, len(p.ids))
    for id := range p.ids { out = append(out, id) }
    return out
}

func (p *InProcess) check(ctx context.Context) error {
    if err := ctx.Err(); err != nil { return err }
    if p.unavailable.Load() { return ErrUnavailable }
    return nil
}
