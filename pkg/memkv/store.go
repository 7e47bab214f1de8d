package memkv

import (
    "container/heap"
    "sync"
    "sync/atomic"
    "time"
)

// ========================= Options =========================

type Options struct {
    Shards    int    // number of shards (default: 256)
    CopyOnSet bool   // copy []byte values on Set (safe default)
    CopyOnGet bool   // copy []byte values on Get (safe default)
    MaxBytes  uint64 // hard cap on total value bytes (0 = unlimited)
}

func (o *Options) withDefaults() Options {
    res := *o
    if res.Shards <= 0 {
        res.Shards = 256
    }
    // Safe defaults
    if !res.CopyOnSet {
        res.CopyOnSet = true
    }
    if !res.CopyOnGet {
        res.CopyOnGet = true
    }
    return res
}

// ========================= Store =========================

type Store struct {
    opts    Options
    shards  []shard
    expq    *expQueue
    closeCh chan struct{}
    wg      sync.WaitGroup

    nowFn    func() time.Time
    itemPool sync.Pool // for expItem

    // Metrics
    mKeys    atomic.Uint64
    mBytes   atomic.Uint64
    mSets    atomic.Uint64
    mGets    atomic.Uint64
    mHits    atomic.Uint64
    mMisses  atomic.Uint64
    mDels    atomic.Uint64
    mExpired atomic.Uint64
    mUpdates atomic.Uint64
}

type shard struct {
    mu sync.RWMutex
    m  map[string]*entry
}

type entry struct {
    val      []byte
    expireAt int64 // unix nano; 0 = no expiry
}

func New(opts Options) *Store {
    opts = opts.withDefaults()
    s := &Store{
        opts:    opts,
        shards:  make([]shard, opts.Shards),
        expq:    &expQueue{},
        closeCh: make(chan struct{}),
        nowFn:   time.Now,
        itemPool: sync.Pool{New: func() any { return &expItem{} }},
    }
    for i := range s.shards {
        s.shards[i].m = make(map[string]*entry, 1024)
    }
    heap.Init(s.expq)
    s.wg.Add(1)
    go s.expirer()
    return s
}

func (s *Store) Close() {
    // Signal the expirer goroutine and wake it if it waits on cond.Wait().
    close(s.closeCh)
    if s.expq != nil {
        s.expq.Lock()
        if s.expq.cond != nil {
            s.expq.cond.Broadcast()
        }
        s.expq.Unlock()
    }
    s.wg.Wait()
}

// ========================= Hashing & sharding =========================

func (s *Store) shardFor(key string) *shard {
    // FNV-1a 64 (simplified)
    var h uint64 = 1469598103934665603
    for i := 0; i < len(key); i++ {
        h ^= uint64(key[i])
        h *= 1099511628211
    }
    return &s.shards[int(h%uint64(len(s.shards)))]
}

// ========================= Copy helpers =========================

func (s *Store) copyIfNeeded(b []byte, doCopy bool) []byte {
    if !doCopy {
        return b
    }
    out := make([]byte, len(b))
    copy(out, b)
    return out
}

// ========================= Byte accounting =========================

// tryAddBytes reserves a positive byte delta.
// Returns true if accounted without breaching the limit.
func (s *Store) tryAddBytes(delta uint64) bool {
    if s.opts.MaxBytes == 0 {
        s.mBytes.Add(delta)
        return true
    }
    for {
        cur := s.mBytes.Load()
        next := cur + delta
        if next > s.opts.MaxBytes {
            return false
        }
        if s.mBytes.CompareAndSwap(cur, next) {
            return true
        }
    }
}

// addBytesDelta adjusts the byte counter by a signed delta
// (positive deltas here bypass the limit check).
func (s *Store) addBytesDelta(delta int64) {
    if delta == 0 {
        return
    }
    for {
        cur := s.mBytes.Load()
        var next uint64
        if delta > 0 {
            next = cur + uint64(delta)
        } else {
            sub := uint64(-delta)
            if sub > cur {
                next = 0
            } else {
                next = cur - sub
            }
        }
        if s.mBytes.CompareAndSwap(cur, next) {
            return
        }
    }
}

// ========================= Public API =========================

// Set stores a value. Returns true if the key was created (not overwritten).
func (s *Store) Set(key string, val []byte, ttl time.Duration) bool {
    now := s.nowFn()
    expAt := int64(0)
    if ttl > 0 {
        expAt = now.Add(ttl).UnixNano()
    }
    v := s.copyIfNeeded(val, s.opts.CopyOnSet)

    sh := s.shardFor(key)
    sh.mu.Lock()
    prev, existed := sh.m[key]
    oldLen := 0
    if existed {
        oldLen = len(prev.val)
    }
    newLen := len(v)
    delta := newLen - oldLen
    if delta > 0 {
        if !s.tryAddBytes(uint64(delta)) {
            // over the limit, do not write
            sh.mu.Unlock()
            return false
        }
    }
    sh.m[key] = &entry{val: v, expireAt: expAt}
    if !existed {
        s.mKeys.Add(1)
    } else if delta < 0 {
        s.addBytesDelta(int64(delta))
    }
    s.mSets.Add(1)

    if expAt != 0 {
        s.enqueueExpire(key, expAt)
    }
    sh.mu.Unlock()
    return !existed
}

// Get returns the value and presence.
// With opts.CopyOnGet it returns a copy, otherwise a direct reference (unsafe).
func (s *Store) Get(key string) ([]byte, bool) {
    sh := s.shardFor(key)
    sh.mu.RLock()
    e, ok := sh.m[key]
    if !ok {
        sh.mu.RUnlock()
        s.mGets.Add(1)
        s.mMisses.Add(1)
        return nil, false
    }
    // TTL check without holding the write lock:
    exp := e.expireAt
    val := e.val
    sh.mu.RUnlock()

    if exp != 0 && exp <= s.nowFn().UnixNano() {
        // lazy removal accounted as expiry
        sh.mu.Lock()
        if e2, ok2 := sh.m[key]; ok2 && e2.expireAt != 0 && e2.expireAt <= s.nowFn().UnixNano() {
            delete(sh.m, key)
            s.mExpired.Add(1)
            s.mKeys.Add(^uint64(0))
            if e2.val != nil {
                s.addBytesDelta(int64(-len(e2.val)))
            }
        }
        sh.mu.Unlock()
        s.mGets.Add(1)
        s.mMisses.Add(1)
        return nil, false
    }
    s.mGets.Add(1)
    s.mHits.Add(1)
    if s.opts.CopyOnGet {
        out := make([]byte, len(val))
        copy(out, val)
        return out, true
    }
    return val, true
}

// Update applies a modifier function when the key exists and is not expired.
// Returns true if the update took place. The whole read-modify-write runs
// under the shard lock, so concurrent Update calls for one key serialize.
func (s *Store) Update(key string, fn func(old []byte) []byte) bool {
    sh := s.shardFor(key)
    now := s.nowFn().UnixNano()
    sh.mu.Lock()
    defer sh.mu.Unlock()
    e, ok := sh.m[key]
    if !ok {
        return false
    }
    if e.expireAt != 0 && e.expireAt <= now {
        delete(sh.m, key)
        return false
    }
    oldLen := len(e.val)
    newVal := fn(e.val)
    newLen := len(newVal)
    delta := newLen - oldLen
    if delta > 0 {
        if !s.tryAddBytes(uint64(delta)) {
            return false
        }
    }
    if s.opts.CopyOnSet { // keep behaviour symmetric with Set
        buf := make([]byte, len(newVal))
        copy(buf, newVal)
        e.val = buf
    } else {
        e.val = newVal
    }
    if delta < 0 {
        s.addBytesDelta(int64(delta))
    }
    s.mUpdates.Add(1)
    return true
}

func (s *Store) Exists(key string) bool {
    _, ok := s.Get(key)
    return ok
}

func (s *Store) Delete(key string) bool {
    sh := s.shardFor(key)
    sh.mu.Lock()
    e, ok := sh.m[key]
    if ok {
        delete(sh.m, key)
    }
    sh.mu.Unlock()
    if ok {
        s.mDels.Add(1)
        s.mKeys.Add(^uint64(0))
        if e != nil {
            s.addBytesDelta(int64(-len(e.val)))
        }
    }
    return ok
}

// Expire sets a TTL. Returns false if the key is missing/expired.
func (s *Store) Expire(key string, ttl time.Duration) bool {
    if ttl <= 0 {
        return s.Delete(key)
    }
    exp := s.nowFn().Add(ttl).UnixNano()

    sh := s.shardFor(key)
    sh.mu.Lock()
    defer sh.mu.Unlock()
    e, ok := sh.m[key]
    if !ok {
        return false
    }
    if e.expireAt != 0 && e.expireAt <= s.nowFn().UnixNano() {
        delete(sh.m, key)
        s.mExpired.Add(1)
        s.mKeys.Add(^uint64(0))
        s.addBytesDelta(int64(-len(e.val)))
        return false
    }
    e.expireAt = exp
    s.enqueueExpire(key, exp)
    return true
}

// TTL returns the remaining lifetime and presence.
// When no TTL is set, duration=0 and ok=true.
func (s *Store) TTL(key string) (time.Duration, bool) {
    sh := s.shardFor(key)
    sh.mu.RLock()
    e, ok := sh.m[key]
    if !ok {
        sh.mu.RUnlock()
        return 0, false
    }
    exp := e.expireAt
    sh.mu.RUnlock()

    if exp == 0 {
        return 0, true
    }
    now := s.nowFn().UnixNano()
    if exp <= now {
        // lazy removal
        s.Delete(key)
        return 0, false
    }
    return time.Duration(exp-now) * time.Nanosecond, true
}

// ========================= Metrics =========================

// Stats is a metrics snapshot. Reading it does not block store operations.
type Stats struct {
    Keys    uint64
    Bytes   uint64
    Sets    uint64
    Gets    uint64
    Hits    uint64
    Misses  uint64
    Dels    uint64
    Expired uint64
    Updates uint64
}

// Metrics returns an instant metrics snapshot.
func (s *Store) Metrics() Stats {
    return Stats{
        Keys:    s.mKeys.Load(),
        Bytes:   s.mBytes.Load(),
        Sets:    s.mSets.Load(),
        Gets:    s.mGets.Load(),
        Hits:    s.mHits.Load(),
        Misses:  s.mMisses.Load(),
        Dels:    s.mDels.Load(),
        Expired: s.mExpired.Load(),
        Updates: s.mUpdates.Load(),
    }
}

// ========================= Expiry queue =========================

type expItem struct {
    when int64
    key  string
    // heap.Interface index (kept for future extension)
    index int
}

type expQueue struct {
    sync.Mutex
    cond *sync.Cond
    expQueueInternal []*expItem
}

// heap.Interface implementation:
func (q *expQueue) Len() int           { return len(q.expQueueInternal) }
func (q *expQueue) Less(i, j int) bool { return q.expQueueInternal[i].when < q.expQueueInternal[j].when }
func (q *expQueue) Swap(i, j int)      { q.expQueueInternal[i], q.expQueueInternal[j] = q.expQueueInternal[j], q.expQueueInternal[i]; q.expQueueInternal[i].index = i; q.expQueueInternal[j].index = j }
func (q *expQueue) Push(x any)        { it := x.(*expItem); it.index = len(q.expQueueInternal); q.expQueueInternal = append(q.expQueueInternal, it) }
func (q *expQueue) Pop() any          { old := q.expQueueInternal; n := len(old); it := old[n-1]; old[n-1] = nil; it.index = -1; q.expQueueInternal = old[:n-1]; return it }

func (s *Store) enqueueExpire(key string, when int64) {
    it := s.itemPool.Get().(*expItem)
    it.key = key
    it.when = when
    it.index = -1
    // the heap carries its own mutex
    s.expq.Lock()
    if s.expq.cond == nil {
        s.expq.cond = sync.NewCond(s.expq)
    }
    heap.Push(s.expq, it)
    s.expq.cond.Broadcast()
    s.expq.Unlock()
}

func (s *Store) expirer() {
    defer s.wg.Done()
    for {
        s.expq.Lock()
        for s.expq.Len() == 0 {
            if s.expq.cond == nil {
                s.expq.cond = sync.NewCond(s.expq)
            }
            // wait for a signal or shutdown
            if s.isClosed() {
                s.expq.Unlock()
                return
            }
            s.expq.cond.Wait()
            if s.isClosed() {
                s.expq.Unlock()
                return
            }
        }
        it := s.expq.expQueueInternal[0]
        now := s.nowFn().UnixNano()
        if it.when > now {
            // sleep until nearest deadline or wakeup
            d := time.Duration(it.when-now) * time.Nanosecond
            timer := time.NewTimer(d)
            s.expq.Unlock()

            select {
            case <-timer.C:
            case <-s.closeCh:
                timer.Stop()
                return
            }
            continue
        }
        // overdue, pop from heap
        heap.Pop(s.expq)
        s.expq.Unlock()

        // verify and delete (tombstone-compatible)
        sh := s.shardFor(it.key)
        nowN := s.nowFn().UnixNano()
        sh.mu.Lock()
        e := sh.m[it.key]
        if e != nil && e.expireAt != 0 && e.expireAt <= nowN {
            delete(sh.m, it.key)
            s.mExpired.Add(1)
            s.mKeys.Add(^uint64(0))
            s.addBytesDelta(int64(-len(e.val)))
        }
        sh.mu.Unlock()

        // return item to the pool
        it.key = ""
        it.when = 0
        it.index = -1
        s.itemPool.Put(it)
    }
}

func (s *Store) isClosed() bool {
    select {
    case <-s.closeCh:
        return true
    default:
        return false
    }
}
