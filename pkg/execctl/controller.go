// Package execctl decides which fulfillment task may execute an actionable
// task at any moment. It is the job-card based mutual-exclusion state
// machine: grants are decided under the card's monitor and confirmed with the
// central registry before they take effect, so no plant decides EXECUTING
// unilaterally.
package execctl

import (
    "context"
    "time"

    "go.uber.org/zap"

    "petasos/pkg/jobcard"
    "petasos/pkg/ponos"
    "petasos/pkg/task"
    "petasos/pkg/taskcache"
    "petasos/pkg/topology"
)

// DefaultReallocationWait is the affinity window applied when none is
// configured.
const DefaultReallocationWait = 30 * time.Second

// Controller arbitrates execution privilege for the local plant.
type Controller struct {
    cards *jobcard.Set
    cache *taskcache.Store
    repo  ponos.Repository
    plant topology.Plant

    // reallocationWait is how long node affinity outranks arrival order.
    reallocationWait time.Duration

    nowFn func() time.Time
}

func NewController(cards *jobcard.Set, cache *taskcache.Store, repo ponos.Repository, plant topology.Plant, reallocationWait time.Duration) *Controller {
    if reallocationWait <= 0 { reallocationWait = DefaultReallocationWait }
    return &Controller{cards: cards, cache: cache, repo: repo, plant: plant, reallocationWait: reallocationWait, nowFn: time.Now}
}

// RequestExecutionPrivilege asks for the right to execute the fulfillment
// task's actionable task. Only Granted permits execution; Waiting means retry
// later; every other decision means do not proceed.
func (c *Controller) RequestExecutionPrivilege(ctx context.Context, ft *task.FulfillmentTask) Decision {
    if ft == nil { return NotFound }
    card, ok := c.cards.Get(ft.ActionableTaskID.Local)
    if !ok {
        zap.L().Debug("privilege request without job card", zap.String("task", ft.ActionableTaskID.Local))
        return NotFound
    }

    affine := false
    elapsed := time.Duration(0)
    if at, ok := c.cache.GetTask(ft.ActionableTaskID.Local); ok {
        affine = ft.PlantID == at.NodeAffinity
        elapsed = c.nowFn().Sub(at.CreationInstant)
    }

    card.Lock()
    defer card.Unlock()

    card.LastRequestedStatus = task.ExecutionExecuting
    d := Evaluate(card.CurrentStatus, affine, elapsed, c.reallocationWait)
    switch d {
    case Granted:
        // optimistic local grant, then central confirmation
        prev := card.Snapshot()
        card.ExecutingFulfillmentTaskID = ft.ID
        card.AssignmentInstant = c.nowFn()
        card.CurrentStatus = task.ExecutionExecuting
        card.GrantedStatus = task.ExecutionExecuting
        card.PlantID = ft.PlantID
        card.ProcessorID = ft.ProcessorID
        card.Version++

        confirmed, err := c.repo.ConfirmGrant(ctx, card.Snapshot())
        if err != nil || !confirmed {
            // roll back: the card returns to waiting and the requester backs off
            card.ExecutingFulfillmentTaskID = prev.ExecutingFulfillmentTaskID
            card.AssignmentInstant = prev.AssignmentInstant
            card.CurrentStatus = task.ExecutionWaiting
            card.GrantedStatus = task.ExecutionWaiting
            card.PlantID = prev.PlantID
            card.ProcessorID = prev.ProcessorID
            if err != nil {
                zap.L().Warn("grant confirmation unreachable", zap.String("task", ft.ActionableTaskID.Local), zap.Error(err))
            } else {
                zap.L().Debug("grant rejected by registry", zap.String("task", ft.ActionableTaskID.Local), zap.String("fulfillment", ft.ID))
            }
            return Waiting
        }
        zap.L().Info("execution privilege granted",
            zap.String("task", ft.ActionableTaskID.Local),
            zap.String("fulfillment", ft.ID),
            zap.String("plant", ft.PlantID),
            zap.Bool("affine", affine))
        return Granted
    case DeniedBusy:
        zap.L().Debug("execution privilege denied, task busy",
            zap.String("task", ft.ActionableTaskID.Local),
            zap.String("holder", card.ExecutingFulfillmentTaskID),
            zap.String("requester", ft.ID))
    case DeniedTerminal:
        zap.L().Info("execution privilege denied, task terminal",
            zap.String("task", ft.ActionableTaskID.Local),
            zap.String("status", card.CurrentStatus.String()))
    case Waiting:
        zap.L().Debug("execution privilege deferred to affine plant",
            zap.String("task", ft.ActionableTaskID.Local),
            zap.String("requester_plant", ft.PlantID),
            zap.Duration("elapsed", elapsed))
    }
    return d
}

// ReportExecutionStart confirms the granted fulfillment task began executing.
func (c *Controller) ReportExecutionStart(ctx context.Context, ft *task.FulfillmentTask) Decision {
    return c.report(ctx, ft, task.ExecutionExecuting, false)
}

// ReportExecutionFinish records successful completion by the owner.
func (c *Controller) ReportExecutionFinish(ctx context.Context, ft *task.FulfillmentTask) Decision {
    return c.report(ctx, ft, task.ExecutionFinished, true)
}

// ReportExecutionFailure records failure by the owner.
func (c *Controller) ReportExecutionFailure(ctx context.Context, ft *task.FulfillmentTask) Decision {
    return c.report(ctx, ft, task.ExecutionFailed, true)
}

// ReportCancellation records owner-side cancellation; the card lands in
// failed state, matching the task's terminal disposition.
func (c *Controller) ReportCancellation(ctx context.Context, ft *task.FulfillmentTask) Decision {
    return c.report(ctx, ft, task.ExecutionFailed, true)
}

// report transitions the card on behalf of the owning fulfillment task. The
// ownership check is the safety net keeping a stale or racing executor from
// corrupting state: only the recorded executing fulfillment task may report.
func (c *Controller) report(ctx context.Context, ft *task.FulfillmentTask, to task.ExecutionStatus, terminal bool) Decision {
    if ft == nil { return NotFound }
    card, ok := c.cards.Get(ft.ActionableTaskID.Local)
    if !ok { return NotFound }

    card.Lock()
    defer card.Unlock()

    if card.CurrentStatus != task.ExecutionExecuting || card.ExecutingFulfillmentTaskID != ft.ID {
        zap.L().Debug("execution report from non-owner",
            zap.String("task", ft.ActionableTaskID.Local),
            zap.String("reporter", ft.ID),
            zap.String("holder", card.ExecutingFulfillmentTaskID),
            zap.String("card_status", card.CurrentStatus.String()))
        return DeniedNotOwner
    }

    card.CurrentStatus = to
    card.LastActivityCheck = c.nowFn()
    card.Version++
    if terminal {
        if err := c.repo.ReleaseGrant(ctx, ft.ActionableTaskID.Local); err != nil {
            zap.L().Warn("grant release failed", zap.String("task", ft.ActionableTaskID.Local), zap.Error(err))
        }
    }
    zap.L().Debug("execution report accepted",
        zap.String("task", ft.ActionableTaskID.Local),
        zap.String("fulfillment", ft.ID),
        zap.String("status", to.String()))
    return Granted
}

// FinaliseTask removes the job card once the actionable task is finalised.
func (c *Controller) FinaliseTask(id string) {
    c.cards.Remove(id)
}
