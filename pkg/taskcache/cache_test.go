package taskcache

import (
    "testing"
    "time"

    "petasos/pkg/memkv"
    "petasos/pkg/task"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
    t.Helper()
    kv := memkv.New(memkv.Options{Shards: 8})
    t.Cleanup(kv.Close)
    return NewStore(kv, ttl)
}

func newTask(id string) *task.ActionableTask {
    return &task.ActionableTask{
        ID:              task.ID{Local: id, Sequence: 1},
        WorkItem:        &task.WorkItem{Ingress: &task.Payload{Content: []byte("in")}},
        NodeAffinity:    "plant-1",
        CreationInstant: time.Unix(1700000000, 0),
    }
}

func TestRegisterAndGetReturnsClone(t *testing.T) {
    s := newTestStore(t, 0)
    orig := newTask("t-1")
    if !s.RegisterTask(orig) {
        t.Fatalf("register failed")
    }
    // mutating the registered instance must not leak into the cache
    orig.NodeAffinity = "plant-9"

    got, ok := s.GetTask("t-1")
    if !ok {
        t.Fatalf("task not cached")
    }
    if got.NodeAffinity != "plant-1" {
        t.Fatalf("cache shares state with caller: %q", got.NodeAffinity)
    }
    got.WorkItem.Ingress.Content[0] = 'X'
    again, _ := s.GetTask("t-1")
    if string(again.WorkItem.Ingress.Content) != "in" {
        t.Fatalf("reads alias each other")
    }
}

func TestRegisterRejectsNilAndUnidentified(t *testing.T) {
    s := newTestStore(t, 0)
    if s.RegisterTask(nil) {
        t.Fatalf("nil task accepted")
    }
    if s.RegisterTask(&task.ActionableTask{}) {
        t.Fatalf("zero-id task accepted")
    }
}

func TestRegisterLastWriterWins(t *testing.T) {
    s := newTestStore(t, 0)
    first := newTask("t-1")
    s.RegisterTask(first)
    second := newTask("t-1")
    second.NodeAffinity = "plant-2"
    s.RegisterTask(second)

    got, _ := s.GetTask("t-1")
    if got.NodeAffinity != "plant-2" {
        t.Fatalf("replacement did not take: %q", got.NodeAffinity)
    }
    if n := len(s.ListTaskIDs()); n != 1 {
        t.Fatalf("index duplicated: %d entries", n)
    }
}

func TestUpdateTask(t *testing.T) {
    s := newTestStore(t, 0)
    s.RegisterTask(newTask("t-1"))

    ok := s.UpdateTask("t-1", func(at *task.ActionableTask) {
        at.ExecutionStatus = task.ExecutionExecuting
    })
    if !ok {
        t.Fatalf("update on cached task failed")
    }
    got, _ := s.GetTask("t-1")
    if got.ExecutionStatus != task.ExecutionExecuting {
        t.Fatalf("update lost: %v", got.ExecutionStatus)
    }
    if s.UpdateTask("missing", func(*task.ActionableTask) {}) {
        t.Fatalf("update on missing task reported success")
    }
}

func TestRemoveTask(t *testing.T) {
    s := newTestStore(t, 0)
    s.RegisterTask(newTask("t-1"))
    s.RemoveTask("t-1")
    if _, ok := s.GetTask("t-1"); ok {
        t.Fatalf("task survived removal")
    }
    if len(s.ListTaskIDs()) != 0 {
        t.Fatalf("index survived removal")
    }
}

func TestFinalisedEvictionAndSweep(t *testing.T) {
    s := newTestStore(t, 30*time.Millisecond)
    s.RegisterTask(newTask("t-1"))
    s.MarkFinalised("t-1")

    deadline := time.Now().Add(2 * time.Second)
    for {
        if _, ok := s.GetTask("t-1"); !ok {
            break
        }
        if time.Now().After(deadline) {
            t.Fatalf("finalised task never evicted")
        }
        time.Sleep(10 * time.Millisecond)
    }
    if removed := s.Sweep(); removed != 1 {
        t.Fatalf("sweep removed %d entries, want 1", removed)
    }
    if len(s.ListTaskIDs()) != 0 {
        t.Fatalf("stale index entry after sweep")
    }
}
