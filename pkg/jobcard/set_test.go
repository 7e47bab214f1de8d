package jobcard

import (
    "sync"
    "testing"

    "petasos/pkg/task"
)

func card(id string) *task.JobCard {
    return &task.JobCard{ActionableTaskID: task.ID{Local: id, Sequence: 1}}
}

func TestAddIsFirstWriterWins(t *testing.T) {
    s := NewSet()
    first := card("t-1")
    if !s.Add(first) {
        t.Fatalf("first add rejected")
    }
    if s.Add(card("t-1")) {
        t.Fatalf("duplicate add accepted")
    }
    got, ok := s.Get("t-1")
    if !ok || got != first {
        t.Fatalf("existing token not authoritative")
    }
    if s.Count() != 1 {
        t.Fatalf("count %d, want 1", s.Count())
    }
}

func TestAddRejectsNilAndUnidentified(t *testing.T) {
    s := NewSet()
    if s.Add(nil) {
        t.Fatalf("nil card accepted")
    }
    if s.Add(&task.JobCard{}) {
        t.Fatalf("zero-id card accepted")
    }
}

func TestRemove(t *testing.T) {
    s := NewSet()
    s.Add(card("t-1"))
    s.Remove("t-1")
    if _, ok := s.Get("t-1"); ok {
        t.Fatalf("card survived removal")
    }
    s.Remove("t-1") // removing twice is harmless
}

func TestGetReturnsSharedInstance(t *testing.T) {
    s := NewSet()
    s.Add(card("t-1"))
    a, _ := s.Get("t-1")
    b, _ := s.Get("t-1")
    if a != b {
        t.Fatalf("Get must hand out the shared token, not copies")
    }
    // field mutation through one handle is visible through the other
    a.Lock()
    a.Version = 5
    a.Unlock()
    b.Lock()
    v := b.Version
    b.Unlock()
    if v != 5 {
        t.Fatalf("mutation not shared: %d", v)
    }
}

func TestAllSnapshot(t *testing.T) {
    s := NewSet()
    s.Add(card("t-1"))
    s.Add(card("t-2"))
    all := s.All()
    if len(all) != 2 {
        t.Fatalf("snapshot has %d cards, want 2", len(all))
    }
    s.Remove("t-1")
    if len(all) != 2 {
        t.Fatalf("snapshot tracks live set")
    }
}

func TestConcurrentAddRemove(t *testing.T) {
    s := NewSet()
    var wg sync.WaitGroup
    for i := 0; i < 8; i++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            for j := 0; j < 100; j++ {
                s.Add(card("t-1"))
                s.Get("t-1")
                s.Remove("t-1")
            }
        }()
    }
    wg.Wait()
}
