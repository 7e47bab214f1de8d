package task

// ExecutionStatus is the coarse lifecycle state of an actionable task and of
// its job card. Terminal states are absorbing.
type ExecutionStatus int

const (
    ExecutionWaiting ExecutionStatus = iota
    ExecutionExecuting
    ExecutionFinished
    ExecutionFailed
    ExecutionCancelled
)

func (s ExecutionStatus) String() string {
    switch s {
    case ExecutionWaiting:
        return "waiting"
    case ExecutionExecuting:
        return "executing"
    case ExecutionFinished:
        return "finished"
    case ExecutionFailed:
        return "failed"
    case ExecutionCancelled:
        return "cancelled"
    default:
        return "unknown"
    }
}

// Terminal reports whether the status admits no further transitions.
func (s ExecutionStatus) Terminal() bool {
    switch s {
    case ExecutionFinished, ExecutionFailed, ExecutionCancelled:
        return true
    default:
        return false
    }
}

// FulfillmentStatus tracks one fulfillment attempt from assignment to outcome.
type FulfillmentStatus int

const (
    FulfillmentUnregistered FulfillmentStatus = iota
    FulfillmentRegistered
    FulfillmentAssigned
    FulfillmentActive
    FulfillmentFinished
    FulfillmentFailed
    FulfillmentCancelled
)

func (s FulfillmentStatus) String() string {
    switch s {
    case FulfillmentUnregistered:
        return "unregistered"
    case FulfillmentRegistered:
        return "registered"
    case FulfillmentAssigned:
        return "assigned"
    case FulfillmentActive:
        return "active"
    case FulfillmentFinished:
        return "finished"
    case FulfillmentFailed:
        return "failed"
    case FulfillmentCancelled:
        return "cancelled"
    default:
        return "unknown"
    }
}

// OutcomeStatus records how task processing concluded.
type OutcomeStatus int

const (
    OutcomeUndecided OutcomeStatus = iota
    OutcomeFinished
    OutcomeFailed
    OutcomeCancelled
)

func (s OutcomeStatus) String() string {
    switch s {
    case OutcomeUndecided:
        return "undecided"
    case OutcomeFinished:
        return "finished"
    case OutcomeFailed:
        return "failed"
    case OutcomeCancelled:
        return "cancelled"
    default:
        return "unknown"
    }
}

// Reason records why a task was created.
type Reason int

const (
    ReasonUnknown Reason = iota
    ReasonMessageProcessing
    ReasonRetry
    ReasonOversight
)

// ConcurrencyMode describes how the hosting plant runs work unit processors.
type ConcurrencyMode int

const (
    ConcurrencyStandalone ConcurrencyMode = iota
    ConcurrencyClustered
)

// ResilienceMode describes the failover posture of the hosting plant.
type ResilienceMode int

const (
    ResilienceStandard ResilienceMode = iota
    ResilienceMultiSite
)
