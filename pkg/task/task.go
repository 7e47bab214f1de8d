// Package task defines the value types flowing through the orchestration
// core: task identities, work items, actionable/fulfillment records and the
// job cards used as distributed execution tokens.
package task

import (
    "sync"
    "time"

    "petasos/pkg/manifest"
)

// SequenceNumber orders task creation process-wide for debugging and replay.
type SequenceNumber uint64

// ID identifies a task. Immutable once assigned by a factory.
type ID struct {
    Local    string         `cbor:"local"`
    Sequence SequenceNumber `cbor:"sequence"`
}

func (id ID) String() string { return id.Local }

// IsZero reports whether the id was never assigned.
func (id ID) IsZero() bool { return id.Local == "" }

// Payload is one unit of parcel data plus the manifest describing it.
type Payload struct {
    Manifest *manifest.DataParcelManifest `cbor:"manifest,omitempty"`
    Content  []byte                       `cbor:"content,omitempty"`
}

// ExecutionWindow bounds when a task may run. Zero instants mean unbounded.
type ExecutionWindow struct {
    NotBefore time.Time `cbor:"not_before,omitempty"`
    Deadline  time.Time `cbor:"deadline,omitempty"`
}

// WorkItem carries the ingress payload, any egress payloads produced by the
// fulfilling processor, and the processing outcome. Instances are never shared
// mutable across component boundaries; use CloneWorkItem on every handoff.
type WorkItem struct {
    Ingress            *Payload        `cbor:"ingress,omitempty"`
    Egress             []*Payload      `cbor:"egress,omitempty"`
    Window             ExecutionWindow `cbor:"window,omitempty"`
    FailureDescription string          `cbor:"failure_description,omitempty"`
}

// TraceabilityElement records one fulfillment hand-off in a task's journey.
type TraceabilityElement struct {
    ActionableTaskID  ID        `cbor:"actionable_task_id"`
    FulfillmentTaskID string    `cbor:"fulfillment_task_id,omitempty"`
    PlantID           string    `cbor:"plant_id,omitempty"`
    ProcessorID       string    `cbor:"processor_id,omitempty"`
    StartInstant      time.Time `cbor:"start_instant,omitempty"`
    FinishInstant     time.Time `cbor:"finish_instant,omitempty"`
}

// FulfillmentRecord summarises who is executing an actionable task and when.
type FulfillmentRecord struct {
    Status            FulfillmentStatus `cbor:"status"`
    FulfillmentTaskID string            `cbor:"fulfillment_task_id,omitempty"`
    PlantID           string            `cbor:"plant_id,omitempty"`
    ProcessorID       string            `cbor:"processor_id,omitempty"`
    RegisteredAt      time.Time         `cbor:"registered_at,omitempty"`
    StartedAt         time.Time         `cbor:"started_at,omitempty"`
    FinishedAt        time.Time         `cbor:"finished_at,omitempty"`
}

// CompletionSummary marks a task's terminal disposition. Finalised means no
// further fulfillment attempts will be made against the task.
type CompletionSummary struct {
    Finalised   bool `cbor:"finalised"`
    LastInChain bool `cbor:"last_in_chain"`
}

// ActionableTask is the canonical, centrally-tracked record of one unit of
// work. It is owned exclusively by the node holding execution rights and is
// shared elsewhere only as clones.
type ActionableTask struct {
    ID              ID                    `cbor:"id"`
    WorkItem        *WorkItem             `cbor:"work_item,omitempty"`
    Journey         []TraceabilityElement `cbor:"journey,omitempty"`
    ExecutionStatus ExecutionStatus       `cbor:"execution_status"`
    Outcome         OutcomeStatus         `cbor:"outcome"`
    Fulfillment     FulfillmentRecord     `cbor:"fulfillment"`
    Reason          Reason                `cbor:"reason"`
    NodeAffinity    string                `cbor:"node_affinity,omitempty"`
    Window          ExecutionWindow       `cbor:"window,omitempty"`
    Completion      CompletionSummary     `cbor:"completion"`
    CreationInstant time.Time             `cbor:"creation_instant"`
}

// Clone returns a deep copy; the clone shares no mutable state with t.
func (t *ActionableTask) Clone() *ActionableTask {
    if t == nil { return nil }
    return deepCopy(t)
}

// FulfillmentTask is one node's concrete attempt to execute an ActionableTask.
// Several may exist over the task's life (retries); at most one holds
// executing status at a time, enforced by the job card.
type FulfillmentTask struct {
    ID               string            `cbor:"id"`
    ActionableTaskID ID                `cbor:"actionable_task_id"`
    Status           FulfillmentStatus `cbor:"status"`
    PlantID          string            `cbor:"plant_id,omitempty"`
    ProcessorID      string            `cbor:"processor_id,omitempty"`
    StartedAt        time.Time         `cbor:"started_at,omitempty"`
    FinishedAt       time.Time         `cbor:"finished_at,omitempty"`
    Egress           []*Payload        `cbor:"egress,omitempty"`

    // JobCard is attached once assigned; it is node-local state and is not
    // carried across serialization boundaries.
    JobCard *JobCard `cbor:"-"`
}

// Clone returns a deep copy of the fulfillment task without its job card.
func (f *FulfillmentTask) Clone() *FulfillmentTask {
    if f == nil { return nil }
    out := deepCopy(f)
    out.JobCard = nil
    return out
}

// JobCard is the distributed execution token for one actionable task. All
// read-modify-write sequences over its fields must hold the card's monitor
// for the whole sequence.
type JobCard struct {
    mu sync.Mutex

    ActionableTaskID           ID              `cbor:"actionable_task_id"`
    ExecutingFulfillmentTaskID string          `cbor:"executing_fulfillment_task_id,omitempty"`
    AssignmentInstant          time.Time       `cbor:"assignment_instant,omitempty"`
    CurrentStatus              ExecutionStatus `cbor:"current_status"`
    LastRequestedStatus        ExecutionStatus `cbor:"last_requested_status"`
    GrantedStatus              ExecutionStatus `cbor:"granted_status"`
    PlantID                    string          `cbor:"plant_id,omitempty"`
    ProcessorID                string          `cbor:"processor_id,omitempty"`
    Concurrency                ConcurrencyMode `cbor:"concurrency"`
    Resilience                 ResilienceMode  `cbor:"resilience"`
    LastActivityCheck          time.Time       `cbor:"last_activity_check"`
    Version                    uint64          `cbor:"version"`
}

// Lock acquires the card's monitor.
func (c *JobCard) Lock() { c.mu.Lock() }

// Unlock releases the card's monitor.
func (c *JobCard) Unlock() { c.mu.Unlock() }

// JobCardRecord is the monitor-free projection of a JobCard used when the
// card's state crosses a boundary (registry arbitration, diagnostics).
type JobCardRecord struct {
    ActionableTaskID           ID              `cbor:"actionable_task_id"`
    ExecutingFulfillmentTaskID string          `cbor:"executing_fulfillment_task_id,omitempty"`
    AssignmentInstant          time.Time       `cbor:"assignment_instant,omitempty"`
    CurrentStatus              ExecutionStatus `cbor:"current_status"`
    LastRequestedStatus        ExecutionStatus `cbor:"last_requested_status"`
    GrantedStatus              ExecutionStatus `cbor:"granted_status"`
    PlantID                    string          `cbor:"plant_id,omitempty"`
    ProcessorID                string          `cbor:"processor_id,omitempty"`
    Concurrency                ConcurrencyMode `cbor:"concurrency"`
    Resilience                 ResilienceMode  `cbor:"resilience"`
    LastActivityCheck          time.Time       `cbor:"last_activity_check"`
    Version                    uint64          `cbor:"version"`
}

// Snapshot returns a copy of the card's fields without its monitor. The
// caller must hold the monitor.
func (c *JobCard) Snapshot() JobCardRecord {
    return JobCardRecord{
        ActionableTaskID:           c.ActionableTaskID,
        ExecutingFulfillmentTaskID: c.ExecutingFulfillmentTaskID,
        AssignmentInstant:          c.AssignmentInstant,
        CurrentStatus:              c.CurrentStatus,
        LastRequestedStatus:        c.LastRequestedStatus,
        GrantedStatus:              c.GrantedStatus,
        PlantID:                    c.PlantID,
        ProcessorID:                c.ProcessorID,
        Concurrency:                c.Concurrency,
        Resilience:                 c.Resilience,
        LastActivityCheck:          c.LastActivityCheck,
        Version:                    c.Version,
    }
}

// EpochInstant is the "never checked" sentinel for LastActivityCheck.
var EpochInstant = time.Unix(0, 0).UTC()

// AggregateTask is a derived oversight projection of an ActionableTask used
// for cross-cutting reporting. It is its own entity with a fresh id.
type AggregateTask struct {
    ID                ID                    `cbor:"id"`
    OriginatingTaskID ID                    `cbor:"originating_task_id"`
    WorkItem          *WorkItem             `cbor:"work_item,omitempty"`
    Journey           []TraceabilityElement `cbor:"journey,omitempty"`
    Reason            Reason                `cbor:"reason"`
    ProcessorID       string                `cbor:"processor_id,omitempty"`
}
