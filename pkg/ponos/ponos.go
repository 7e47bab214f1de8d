// Package ponos is the collaborator boundary to the central task registry.
// The registry is authoritative: after every synchronization the status it
// returns supersedes the caller's local view.
package ponos

import (
    "context"
    "errors"

    "petasos/pkg/task"
)

// ErrUnavailable reports that the registry cannot be reached. Registration
// callers retry on it; lifecycle callers treat it as best-effort.
var ErrUnavailable = errors.New("ponos: registry unavailable")

// Repository is the narrow interface the core consumes. Implementations must
// be idempotent on retry and return the authoritative (possibly merged) task.
type Repository interface {
    // RegisterActionableTask admits a task into the central registry and
    // returns the authoritative copy.
    RegisterActionableTask(ctx context.Context, t *task.ActionableTask) (*task.ActionableTask, error)

    // UpdateActionableTask pushes a local state change and returns the
    // authoritative merge.
    UpdateActionableTask(ctx context.Context, t *task.ActionableTask) (*task.ActionableTask, error)

    // ConfirmGrant asks the registry to arbitrate an execution grant. The
    // caller must pass a snapshot taken under the card's monitor. False means
    // another fulfillment already holds the grant and the caller must back off.
    ConfirmGrant(ctx context.Context, card task.JobCardRecord) (bool, error)

    // ReleaseGrant marks the task's execution grant inactive once the holder
    // reports a terminal state.
    ReleaseGrant(ctx context.Context, taskID string) error
}
