package execctl

import (
    "time"

    "petasos/pkg/task"
)

// Decision is the typed outcome of a privilege request or execution report.
// Callers must only proceed on Granted; every denial names its reason so a
// lost race is distinguishable from terminal state or local inconsistency.
type Decision int

const (
    // Granted: the requester now holds execution privilege.
    Granted Decision = iota
    // Waiting: affinity is held by another plant and the reallocation window
    // has not elapsed; retry later.
    Waiting
    // DeniedBusy: another fulfillment task currently holds the privilege.
    DeniedBusy
    // DeniedTerminal: the task already reached a terminal state.
    DeniedTerminal
    // DeniedNotOwner: the reporting fulfillment task does not own the card.
    DeniedNotOwner
    // NotFound: no job card exists for the task.
    NotFound
)

func (d Decision) String() string {
    switch d {
    case Granted:
        return "granted"
    case Waiting:
        return "waiting"
    case DeniedBusy:
        return "denied-busy"
    case DeniedTerminal:
        return "denied-terminal"
    case DeniedNotOwner:
        return "denied-not-owner"
    case NotFound:
        return "not-found"
    default:
        return "unknown"
    }
}

// Evaluate is the pure privilege-grant transition table. It takes the card's
// current status, whether the requester is the task's affine plant, and how
// long the task has waited versus the configured reallocation window:
//
//	WAITING   + affine                  -> Granted
//	WAITING   + elapsed > window        -> Granted (starvation fallback)
//	WAITING   otherwise                 -> Waiting
//	EXECUTING                           -> DeniedBusy
//	terminal                            -> DeniedTerminal
//
// Affinity is a preference, not a requirement: the fallback keeps tasks from
// waiting forever when the affine plant is down.
func Evaluate(current task.ExecutionStatus, affine bool, elapsed, window time.Duration) Decision {
    switch current {
    case task.ExecutionWaiting:
        if affine { return Granted }
        if elapsed > window { return Granted }
        return Waiting
    case task.ExecutionExecuting:
        return DeniedBusy
    default:
        return DeniedTerminal
    }
}
