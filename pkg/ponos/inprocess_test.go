package ponos

import (
    "context"
    "fmt"
    "sync"
    "testing"
    "time"

    "petasos/pkg/memkv"
    "petasos/pkg/task"
)

func newRegistry(t *testing.T) *InProcess {
    t.Helper()
    kv := memkv.New(memkv.Options{Shards: 8})
    t.Cleanup(kv.Close)
    return NewInProcess(kv)
}

func centralTask(id string) *task.ActionableTask {
    return &task.ActionableTask{
        ID:              task.ID{Local: id, Sequence: 1},
        ExecutionStatus: task.ExecutionWaiting,
        NodeAffinity:    "plant-1",
        CreationInstant: time.Unix(1700000000, 0),
    }
}

func cardFor(id, fulfillment, plant string, version uint64) task.JobCardRecord {
    return task.JobCardRecord{
        ActionableTaskID:           task.ID{Local: id, Sequence: 1},
        ExecutingFulfillmentTaskID: fulfillment,
        PlantID:                    plant,
        CurrentStatus:              task.ExecutionExecuting,
        Version:                    version,
    }
}

func TestRegisterIsIdempotent(t *testing.T) {
    p := newRegistry(t)
    ctx := context.Background()

    first, err := p.RegisterActionableTask(ctx, centralTask("t-1"))
    if err != nil {
        t.Fatalf("register: %v", err)
    }
    // a re-registration with diverged local state returns the stored copy
    diverged := centralTask("t-1")
    diverged.ExecutionStatus = task.ExecutionExecuting
    second, err := p.RegisterActionableTask(ctx, diverged)
    if err != nil {
        t.Fatalf("re-register: %v", err)
    }
    if second.ExecutionStatus != first.ExecutionStatus {
        t.Fatalf("re-registration rewrote central state: %v", second.ExecutionStatus)
    }
    if n := len(p.ListTaskIDs()); n != 1 {
        t.Fatalf("registry holds %d ids, want 1", n)
    }
}

func TestUnavailableRegistryRejectsEverything(t *testing.T) {
    p := newRegistry(t)
    ctx := context.Background()
    p.SetUnavailable(true)

    if _, err := p.RegisterActionableTask(ctx, centralTask("t-1")); err == nil {
        t.Fatalf("register should fail while unavailable")
    }
    if _, err := p.UpdateActionableTask(ctx, centralTask("t-1")); err == nil {
        t.Fatalf("update should fail while unavailable")
    }
    if _, err := p.ConfirmGrant(ctx, cardFor("t-1", "f-1", "plant-1", 1)); err == nil {
        t.Fatalf("grant should fail while unavailable")
    }
    p.SetUnavailable(false)
    if _, err := p.RegisterActionableTask(ctx, centralTask("t-1")); err != nil {
        t.Fatalf("register after recovery: %v", err)
    }
}

func TestTerminalStatusIsSticky(t *testing.T) {
    p := newRegistry(t)
    ctx := context.Background()
    p.RegisterActionableTask(ctx, centralTask("t-1"))

    done := centralTask("t-1")
    done.ExecutionStatus = task.ExecutionFinished
    done.Outcome = task.OutcomeFinished
    if out, err := p.UpdateActionableTask(ctx, done); err != nil || out.ExecutionStatus != task.ExecutionFinished {
        t.Fatalf("terminal push not stored: %v %v", out, err)
    }

    stale := centralTask("t-1")
    stale.ExecutionStatus = task.ExecutionExecuting
    out, err := p.UpdateActionableTask(ctx, stale)
    if err != nil {
        t.Fatalf("stale push: %v", err)
    }
    if out.ExecutionStatus != task.ExecutionFinished {
        t.Fatalf("stale push revived a terminal task: %v", out.ExecutionStatus)
    }
}

func TestUpdateOfUnknownTaskRegisters(t *testing.T) {
    p := newRegistry(t)
    ctx := context.Background()
    out, err := p.UpdateActionableTask(ctx, centralTask("t-new"))
    if err != nil {
        t.Fatalf("update-as-register: %v", err)
    }
    if out == nil || out.ID.Local != "t-new" {
        t.Fatalf("unknown task not admitted: %+v", out)
    }
    if _, ok := p.GetCentralTask("t-new"); !ok {
        t.Fatalf("task not stored centrally")
    }
}

func TestGrantArbitration(t *testing.T) {
    p := newRegistry(t)
    ctx := context.Background()

    ok, err := p.ConfirmGrant(ctx, cardFor("t-1", "f-1", "plant-1", 1))
    if err != nil || !ok {
        t.Fatalf("first grant should be accepted: %v %v", ok, err)
    }
    // a competing fulfillment is rejected while the grant is active
    ok, err = p.ConfirmGrant(ctx, cardFor("t-1", "f-2", "plant-2", 2))
    if err != nil || ok {
        t.Fatalf("competing grant should be rejected: %v %v", ok, err)
    }
    // the holder may renew
    ok, err = p.ConfirmGrant(ctx, cardFor("t-1", "f-1", "plant-1", 2))
    if err != nil || !ok {
        t.Fatalf("holder renewal should be accepted: %v %v", ok, err)
    }
    // after release the next requester wins
    if err := p.ReleaseGrant(ctx, "t-1"); err != nil {
        t.Fatalf("release: %v", err)
    }
    ok, err = p.ConfirmGrant(ctx, cardFor("t-1", "f-2", "plant-2", 3))
    if err != nil || !ok {
        t.Fatalf("grant after release should be accepted: %v %v", ok, err)
    }
}

func TestStaleRenewalIsRejected(t *testing.T) {
    p := newRegistry(t)
    ctx := context.Background()

    if ok, err := p.ConfirmGrant(ctx, cardFor("t-1", "f-1", "plant-1", 3)); err != nil || !ok {
        t.Fatalf("initial grant: %v %v", ok, err)
    }
    // a renewal must supersede the stored card version
    if ok, _ := p.ConfirmGrant(ctx, cardFor("t-1", "f-1", "plant-1", 3)); ok {
        t.Fatalf("replayed renewal with equal version accepted")
    }
    if ok, _ := p.ConfirmGrant(ctx, cardFor("t-1", "f-1", "plant-1", 2)); ok {
        t.Fatalf("renewal with older version accepted")
    }
    if ok, _ := p.ConfirmGrant(ctx, cardFor("t-1", "f-1", "plant-1", 4)); !ok {
        t.Fatalf("superseding renewal rejected")
    }
}

func TestConcurrentFirstGrantAcceptsExactlyOne(t *testing.T) {
    p := newRegistry(t)
    ctx := context.Background()

    for i := 0; i < 500; i++ {
        id := fmt.Sprintf("t-%d", i)
        start := make(chan struct{})
        results := make([]bool, 2)
        var wg sync.WaitGroup
        for r := 0; r < 2; r++ {
            wg.Add(1)
            go func(r int) {
                defer wg.Done()
                <-start
                ok, err := p.ConfirmGrant(ctx, cardFor(id, fmt.Sprintf("f-%d", r), fmt.Sprintf("plant-%d", r), 1))
                if err != nil {
                    t.Errorf("task %s requester %d: %v", id, r, err)
                }
                results[r] = ok
            }(r)
        }
        close(start)
        wg.Wait()

        accepted := 0
        for _, ok := range results {
            if ok { accepted++ }
        }
        if accepted != 1 {
            t.Fatalf("task %s: %d requesters accepted, want exactly 1", id, accepted)
        }
    }
}

func TestRejectGrantsHook(t *testing.T) {
    p := newRegistry(t)
    ctx := context.Background()
    p.SetRejectGrants(true)
    ok, err := p.ConfirmGrant(ctx, cardFor("t-1", "f-1", "plant-1", 1))
    if err != nil || ok {
        t.Fatalf("forced rejection not applied: %v %v", ok, err)
    }
}
