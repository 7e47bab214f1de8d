// Package activity orchestrates actionable-task lifecycle transitions on the
// local node and keeps them synchronized with the central Ponos registry.
// After every synchronization the registry's status, not the local one, is
// authoritative.
package activity

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/sethvargo/go-retry"
    "go.uber.org/zap"

    "petasos/pkg/ponos"
    "petasos/pkg/task"
    "petasos/pkg/taskcache"
    "petasos/pkg/topology"
)

var (
    // ErrNilTask reports a nil task or fulfillment-task argument.
    ErrNilTask = errors.New("activity: nil task")
    // ErrNotRegistered reports a lifecycle call against a task the local
    // cache does not hold.
    ErrNotRegistered = errors.New("activity: task not registered locally")
    // ErrRegistrationFailed reports that central registration exhausted its
    // retry budget; the task was not admitted locally.
    ErrRegistrationFailed = errors.New("activity: central registration failed")
)

// Policy tunes the registration retry loop.
type Policy struct {
    // RegistrationRetry is the base backoff between registration attempts.
    RegistrationRetry time.Duration
    // MaxAttempts caps registration attempts before ErrRegistrationFailed.
    MaxAttempts uint64
}

// DefaultPolicy mirrors the documented 15s cadence with five attempts.
func DefaultPolicy() Policy {
    return Policy{RegistrationRetry: 15 * time.Second, MaxAttempts: 5}
}

// Manager drives the WAITING → EXECUTING → {FINISHED|FAILED|CANCELLED} task
// state machine for the local node.
type Manager struct {
    cache  *taskcache.Store
    repo   ponos.Repository
    plant  topology.Plant
    policy Policy

    // onReady receives each task admitted for execution consideration.
    onReady func(task.ID)

    nowFn func() time.Time
}

func NewManager(cache *taskcache.Store, repo ponos.Repository, plant topology.Plant, policy Policy) *Manager {
    if policy.RegistrationRetry <= 0 { policy.RegistrationRetry = 15 * time.Second }
    if policy.MaxAttempts == 0 { policy.MaxAttempts = 5 }
    return &Manager{cache: cache, repo: repo, plant: plant, policy: policy, nowFn: time.Now}
}

// OnTaskReady installs the execution-consideration hook.
func (m *Manager) OnTaskReady(fn func(task.ID)) { m.onReady = fn }

// RegisterActionableTask admits a new task: central registration first (with
// capped backoff), then local caching. A task that cannot be centrally
// registered is never admitted locally, so a failed remote call leaves no
// half-updated state behind.
func (m *Manager) RegisterActionableTask(ctx context.Context, t *task.ActionableTask) (task.ExecutionStatus, error) {
    if t == nil || t.ID.IsZero() { return task.ExecutionCancelled, ErrNilTask }
    t.ExecutionStatus = task.ExecutionWaiting

    var central *task.ActionableTask
    backoff := retry.WithMaxRetries(m.policy.MaxAttempts-1, retry.NewFibonacci(m.policy.RegistrationRetry))
    err := retry.Do(ctx, backoff, func(ctx context.Context) error {
        c, err := m.repo.RegisterActionableTask(ctx, t)
        if err != nil {
            zap.L().Warn("ponos registration attempt failed", zap.String("task", t.ID.Local), zap.Error(err))
            return retry.RetryableError(err)
        }
        central = c
        return nil
    })
    if err != nil {
        zap.L().Error("ponos registration exhausted", zap.String("task", t.ID.Local), zap.Error(err))
        return task.ExecutionCancelled, fmt.Errorf("%w: %s", ErrRegistrationFailed, t.ID.Local)
    }

    // merge the authoritative copy back into the local task
    t.ExecutionStatus = central.ExecutionStatus
    t.Outcome = central.Outcome
    t.Fulfillment.Status = task.FulfillmentRegistered
    t.Fulfillment.RegisteredAt = m.nowFn()

    m.cache.RegisterTask(t)
    if m.onReady != nil { m.onReady(t.ID) }
    zap.L().Info("task registered", zap.String("task", t.ID.Local), zap.String("status", t.ExecutionStatus.String()))
    return t.ExecutionStatus, nil
}

// NotifyTaskStart records that a fulfillment attempt began executing.
func (m *Manager) NotifyTaskStart(ctx context.Context, id string, ft *task.FulfillmentTask) (task.ExecutionStatus, error) {
    if ft == nil { return task.ExecutionCancelled, ErrNilTask }
    now := m.nowFn()
    ok := m.cache.UpdateTask(id, func(t *task.ActionableTask) {
        t.ExecutionStatus = task.ExecutionExecuting
        t.Fulfillment.Status = task.FulfillmentActive
        t.Fulfillment.FulfillmentTaskID = ft.ID
        t.Fulfillment.PlantID = ft.PlantID
        t.Fulfillment.ProcessorID = ft.ProcessorID
        t.Fulfillment.StartedAt = now
    })
    if !ok { return task.ExecutionCancelled, ErrNotRegistered }
    return m.push(ctx, id, "start")
}

// NotifyTaskFinish records successful completion. The fulfillment task's
// egress payloads are deep-copied onto the actionable task so the two never
// alias.
func (m *Manager) NotifyTaskFinish(ctx context.Context, id string, ft *task.FulfillmentTask) (task.ExecutionStatus, error) {
    if ft == nil { return task.ExecutionCancelled, ErrNilTask }
    now := m.nowFn()
    ok := m.cache.UpdateTask(id, func(t *task.ActionableTask) {
        if t.WorkItem == nil { t.WorkItem = &task.WorkItem{} }
        t.WorkItem.Egress = task.ClonePayloads(ft.Egress)
        t.Outcome = task.OutcomeFinished
        t.ExecutionStatus = task.ExecutionFinished
        t.Fulfillment.Status = task.FulfillmentFinished
        t.Fulfillment.FinishedAt = now
        m.appendJourney(t, ft, now)
    })
    if !ok { return task.ExecutionCancelled, ErrNotRegistered }
    return m.push(ctx, id, "finish")
}

// NotifyTaskFailure records a failed attempt and finalises the task: no
// further fulfillment attempts will be made against it.
func (m *Manager) NotifyTaskFailure(ctx context.Context, id string, ft *task.FulfillmentTask) (task.ExecutionStatus, error) {
    return m.finalise(ctx, id, ft, task.OutcomeFailed, task.ExecutionFailed, task.FulfillmentFailed)
}

// NotifyTaskCancellation records cancellation and finalises the task.
func (m *Manager) NotifyTaskCancellation(ctx context.Context, id string, ft *task.FulfillmentTask) (task.ExecutionStatus, error) {
    return m.finalise(ctx, id, ft, task.OutcomeCancelled, task.ExecutionCancelled, task.FulfillmentCancelled)
}

// NotifyTaskWaiting returns the task to the queue without touching
// fulfillment detail, e.g. after an execution-privilege denial.
func (m *Manager) NotifyTaskWaiting(ctx context.Context, id string) (task.ExecutionStatus, error) {
    ok := m.cache.UpdateTask(id, func(t *task.ActionableTask) {
        t.ExecutionStatus = task.ExecutionWaiting
    })
    if !ok { return task.ExecutionCancelled, ErrNotRegistered }
    return m.push(ctx, id, "waiting")
}

func (m *Manager) finalise(ctx context.Context, id string, ft *task.FulfillmentTask, out task.OutcomeStatus, exec task.ExecutionStatus, ful task.FulfillmentStatus) (task.ExecutionStatus, error) {
    if ft == nil { return task.ExecutionCancelled, ErrNilTask }
    now := m.nowFn()
    ok := m.cache.UpdateTask(id, func(t *task.ActionableTask) {
        if t.WorkItem == nil { t.WorkItem = &task.WorkItem{} }
        t.WorkItem.Egress = task.ClonePayloads(ft.Egress)
        t.Outcome = out
        t.ExecutionStatus = exec
        t.Fulfillment.Status = ful
        t.Fulfillment.FinishedAt = now
        t.Completion = task.CompletionSummary{Finalised: true, LastInChain: true}
        m.appendJourney(t, ft, now)
    })
    if !ok { return task.ExecutionCancelled, ErrNotRegistered }
    return m.push(ctx, id, out.String())
}

func (m *Manager) appendJourney(t *task.ActionableTask, ft *task.FulfillmentTask, finish time.Time) {
    t.Journey = append(t.Journey, task.TraceabilityElement{
        ActionableTaskID:  t.ID,
        FulfillmentTaskID: ft.ID,
        PlantID:           ft.PlantID,
        ProcessorID:       ft.ProcessorID,
        StartInstant:      t.Fulfillment.StartedAt,
        FinishInstant:     finish,
    })
}

// push fans the updated task out to the registry and adopts the authoritative
// status that comes back. Sync failures here are best-effort: logged, local
// status returned unchanged.
func (m *Manager) push(ctx context.Context, id, transition string) (task.ExecutionStatus, error) {
    local, ok := m.cache.GetTask(id)
    if !ok { return task.ExecutionCancelled, ErrNotRegistered }

    central, err := m.repo.UpdateActionableTask(ctx, local)
    if err != nil {
        zap.L().Warn("ponos sync failed, returning local status",
            zap.String("task", id), zap.String("transition", transition), zap.Error(err))
        if local.ExecutionStatus.Terminal() { m.cache.MarkFinalised(id) }
        return local.ExecutionStatus, nil
    }
    if central.ExecutionStatus != local.ExecutionStatus {
        zap.L().Info("adopting central status", zap.String("task", id),
            zap.String("local", local.ExecutionStatus.String()),
            zap.String("central", central.ExecutionStatus.String()))
        m.cache.UpdateTask(id, func(t *task.ActionableTask) {
            t.ExecutionStatus = central.ExecutionStatus
            t.Outcome = central.Outcome
        })
    }
    if central.ExecutionStatus.Terminal() { m.cache.MarkFinalised(id) }
    zap.L().Debug("task transition synced", zap.String("task", id),
        zap.String("transition", transition), zap.String("status", central.ExecutionStatus.String()))
    return central.ExecutionStatus, nil
}
