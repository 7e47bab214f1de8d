// Package taskfactory constructs well-formed task, fulfillment and job-card
// records. Factories guarantee that returned records are never partially
// initialised.
package taskfactory

import (
    "sync/atomic"
    "time"

    "github.com/google/uuid"
    "go.uber.org/zap"

    "petasos/pkg/task"
    "petasos/pkg/topology"
)

// SequenceSource hands out monotonic, process-wide task sequence numbers.
type SequenceSource struct {
    n atomic.Uint64
}

// Next returns the next sequence number.
func (s *SequenceSource) Next() task.SequenceNumber {
    return task.SequenceNumber(s.n.Add(1))
}

// Factory builds tasks on behalf of the local plant.
type Factory struct {
    seq   *SequenceSource
    plant topology.Plant
    nowFn func() time.Time
}

func New(seq *SequenceSource, plant topology.Plant) *Factory {
    return &Factory{seq: seq, plant: plant, nowFn: time.Now}
}

func (f *Factory) newID() task.ID {
    return task.ID{Local: uuid.NewString(), Sequence: f.seq.Next()}
}

// NewMessageBasedTask builds an actionable task for a fresh inbound work item.
// The task carries: a new id with a globally-unique sequence number, an empty
// journey, reason message-processing, node affinity of the creating plant,
// the payload's execution window, and fulfillment status unregistered.
func (f *Factory) NewMessageBasedTask(item *task.WorkItem) *task.ActionableTask {
    if item == nil { return nil }
    now := f.nowFn()
    t := &task.ActionableTask{
        ID:              f.newID(),
        WorkItem:        task.CloneWorkItem(item),
        Journey:         nil,
        ExecutionStatus: task.ExecutionWaiting,
        Outcome:         task.OutcomeUndecided,
        Fulfillment:     task.FulfillmentRecord{Status: task.FulfillmentUnregistered},
        Reason:          task.ReasonMessageProcessing,
        NodeAffinity:    f.plant.PlantID,
        Window:          item.Window,
        CreationInstant: now,
    }
    zap.L().Debug("actionable task created", zap.String("task", t.ID.Local), zap.Uint64("sequence", uint64(t.ID.Sequence)))
    return t
}

// NewMessageBasedTaskFor builds an actionable task whose affinity points at a
// specific target plant rather than the creating one.
func (f *Factory) NewMessageBasedTaskFor(item *task.WorkItem, targetPlantID string) *task.ActionableTask {
    t := f.NewMessageBasedTask(item)
    if t == nil { return nil }
    if targetPlantID != "" { t.NodeAffinity = targetPlantID }
    return t
}

// NewMessageBasedTaskFrom builds a downstream actionable task from upstream
// output: same initial shape as NewMessageBasedTask, plus the upstream journey
// cloned and extended with a traceability element recording the hand-off.
func (f *Factory) NewMessageBasedTaskFrom(upstream *task.ActionableTask, item *task.WorkItem) *task.ActionableTask {
    t := f.NewMessageBasedTask(item)
    if t == nil || upstream == nil { return t }
    t.Journey = append(task.CloneJourney(upstream.Journey), task.TraceabilityElement{
        ActionableTaskID:  upstream.ID,
        FulfillmentTaskID: upstream.Fulfillment.FulfillmentTaskID,
        PlantID:           upstream.Fulfillment.PlantID,
        ProcessorID:       upstream.Fulfillment.ProcessorID,
        StartInstant:      upstream.Fulfillment.StartedAt,
        FinishInstant:     upstream.Fulfillment.FinishedAt,
    })
    return t
}

// NewFulfillmentTask builds this plant's execution attempt against an
// actionable task.
func (f *Factory) NewFulfillmentTask(at *task.ActionableTask) *task.FulfillmentTask {
    if at == nil { return nil }
    return &task.FulfillmentTask{
        ID:               uuid.NewString(),
        ActionableTaskID: at.ID,
        Status:           task.FulfillmentUnregistered,
        PlantID:          f.plant.PlantID,
        ProcessorID:      f.plant.ProcessorID,
    }
}

// NewAggregateTask projects an actionable task into a derived oversight
// record. The aggregate gets a fresh id of its own: it is a view, not the
// same entity.
func (f *Factory) NewAggregateTask(at *task.ActionableTask, processorID string) *task.AggregateTask {
    if at == nil { return nil }
    return &task.AggregateTask{
        ID:                f.newID(),
        OriginatingTaskID: at.ID,
        WorkItem:          task.CloneWorkItem(at.WorkItem),
        Journey:           task.CloneJourney(at.Journey),
        Reason:            at.Reason,
        ProcessorID:       processorID,
    }
}

// NewJobCard builds the execution token for a fulfillment task. Idempotent:
// an already-carried card is returned unchanged. New cards start assigned,
// with last-activity-check at the epoch sentinel, capturing the plant's
// concurrency/resilience mode and identity as the initial executor.
func (f *Factory) NewJobCard(ft *task.FulfillmentTask) *task.JobCard {
    if ft == nil { return nil }
    if ft.JobCard != nil { return ft.JobCard }
    card := &task.JobCard{
        ActionableTaskID:    ft.ActionableTaskID,
        CurrentStatus:       task.ExecutionWaiting,
        LastRequestedStatus: task.ExecutionWaiting,
        GrantedStatus:       task.ExecutionWaiting,
        PlantID:             f.plant.PlantID,
        ProcessorID:         f.plant.ProcessorID,
        Concurrency:         f.plant.Concurrency,
        Resilience:          f.plant.Resilience,
        LastActivityCheck:   task.EpochInstant,
    }
    ft.JobCard = card
    ft.Status = task.FulfillmentAssigned
    zap.L().Debug("job card issued", zap.String("task", ft.ActionableTaskID.Local), zap.String("fulfillment", ft.ID))
    return card
}
