package task

import "github.com/fxamacker/cbor/v2"

// Deep copies go through a cbor round-trip so nested slices/maps never share
// backing storage with the source. Marshal errors cannot occur for the types
// in this package (plain structs, no cycles).

func deepCopy[T any](in *T) *T {
    b, _ := cbor.Marshal(in)
    out := new(T)
    _ = cbor.Unmarshal(b, out)
    return out
}

// CloneWorkItem returns a deep copy of a work item, or nil for nil input.
func CloneWorkItem(w *WorkItem) *WorkItem {
    if w == nil { return nil }
    return deepCopy(w)
}

// ClonePayloads deep-copies an egress payload set.
func ClonePayloads(in []*Payload) []*Payload {
    if in == nil { return nil }
    out := make([]*Payload, 0, len(in))
    for _, p := range in {
        if p == nil { out = append(out, nil); continue }
        out = append(out, deepCopy(p))
    }
    return out
}

// CloneJourney deep-copies a traceability chain.
func CloneJourney(in []TraceabilityElement) []TraceabilityElement {
    if in == nil { return nil }
    out := make([]TraceabilityElement, len(in))
    copy(out, in)
    return out
}

// MarshalTask encodes an actionable task for document storage.
func MarshalTask(t *ActionableTask) []byte {
    b, _ := cbor.Marshal(t)
    return b
}

// UnmarshalTask decodes a stored actionable task document.
func UnmarshalTask(b []byte) (*ActionableTask, bool) {
    var t ActionableTask
    if err := cbor.Unmarshal(b, &t); err != nil { return nil, false }
    return &t, true
}
