// Package taskcache keeps the node-local set of in-flight actionable tasks.
// Tasks are stored as cbor documents in memkv; a lightweight id index avoids
// scanning KV shard maps for listings. Every task crossing the cache boundary
// is a clone, so callers never share mutable state with the cache.
package taskcache

import (
    "sync"
    "time"

    "go.uber.org/zap"

    "petasos/pkg/memkv"
    "petasos/pkg/task"
)

// Store is the local task cache.
type Store struct {
    kv  *memkv.Store
    mu  sync.RWMutex
    ids map[string]struct{}

    // finalisedTTL bounds how long finalised tasks remain cached before
    // eviction; 0 keeps them until Sweep removes the index entry.
    finalisedTTL time.Duration
}

func NewStore(kv *memkv.Store, finalisedTTL time.Duration) *Store {
    return &Store{kv: kv, ids: make(map[string]struct{}), finalisedTTL: finalisedTTL}
}

func keyTask(id string) string { return "task:actionable:" + id }

// RegisterTask inserts-or-replaces the task by id. Last writer wins at this
// layer; reconciliation with the central registry is the activity manager's
// job. Returns false only for nil/unidentified tasks.
func (s *Store) RegisterTask(t *task.ActionableTask) bool {
    if t == nil || t.ID.IsZero() { return false }
    doc := task.MarshalTask(t)
    s.kv.Set(keyTask(t.ID.Local), doc, 0)
    s.mu.Lock(); s.ids[t.ID.Local] = struct{}{}; s.mu.Unlock()
    zap.L().Debug("task cached", zap.String("task", t.ID.Local), zap.Uint64("sequence", uint64(t.ID.Sequence)))
    return true
}

// GetTask returns a clone of the cached task.
func (s *Store) GetTask(id string) (*task.ActionableTask, bool) {
    b, ok := s.kv.Get(keyTask(id))
    if !ok { return nil, false }
    return task.UnmarshalTask(b)
}

// UpdateTask applies fn to the cached task atomically. The modified task is
// re-encoded before the shard lock is released, so concurrent updates for one
// task serialize. Returns false when the task is not cached.
func (s *Store) UpdateTask(id string, fn func(*task.ActionableTask)) bool {
    return s.kv.Update(keyTask(id), func(old []byte) []byte {
        t, ok := task.UnmarshalTask(old)
        if !ok { return old }
        fn(t)
        return task.MarshalTask(t)
    })
}

// RemoveTask evicts the task from cache and index.
func (s *Store) RemoveTask(id string) {
    s.kv.Delete(keyTask(id))
    s.mu.Lock(); delete(s.ids, id); s.mu.Unlock()
    zap.L().Debug("task evicted", zap.String("task", id))
}

// MarkFinalised sets the eviction TTL for a finalised task.
func (s *Store) MarkFinalised(id string) {
    if s.finalisedTTL > 0 {
        _ = s.kv.Expire(keyTask(id), s.finalisedTTL)
    }
}

// ListTaskIDs returns a snapshot of cached task ids.
func (s *Store) ListTaskIDs() []string {
    s.mu.RLock(); defer s.mu.RUnlock()
    out := make([]string, 0, len(s.ids))
    for id := range s.ids { out = append(out, id) }
    return out
}

// Sweep drops index entries whose documents already expired. Returns the
// number of entries removed.
func (s *Store) Sweep() int {
    removed := 0
    for _, id := range s.ListTaskIDs() {
        if !s.kv.Exists(keyTask(id)) {
            s.mu.Lock(); delete(s.ids, id); s.mu.Unlock()
            removed++
        }
    }
    if removed > 0 {
        zap.L().Info("task cache swept", zap.Int("removed", removed))
    }
    return removed
}
