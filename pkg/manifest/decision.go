package manifest

import "go.uber.org/zap"

// DecisionEngine combines the field predicates into the delivery decision for
// a published parcel. ContainerOnly selects the "container type only" variant
// for subscribers that do not discriminate on distinct content.
type DecisionEngine struct {
    ContainerOnly bool
}

// ShouldDeliver reports whether the published manifest satisfies the filter.
// It is the conjunction of every applicable predicate.
func (e *DecisionEngine) ShouldDeliver(m *DataParcelManifest, f *SubscriptionFilter) bool {
    if m == nil || f == nil { return false }
    if e.ContainerOnly {
        if !ContainerDescriptorOnlyEqual(m, f) { return false }
    } else {
        if !ContainerDescriptorIsEqual(m, f) { return false }
        if !ContentDescriptorIsEqual(m, f) { return false }
    }
    return NormalisationMatches(m, f) &&
        ValidationMatches(m, f) &&
        ManifestTypeMatches(m, f) &&
        SourceSystemMatches(m, f) &&
        TargetSystemMatches(m, f) &&
        EnforcementPointApprovalStatusMatches(m, f) &&
        IsDistributableMatches(m, f) &&
        ParcelFlowDirectionMatches(m, f) &&
        OriginParticipantFilter(m, f) &&
        PreviousParticipantFilter(m, f)
}

// SelectSubscribers returns the subset of subscriptions whose filters accept
// the manifest, in input order.
func (e *DecisionEngine) SelectSubscribers(m *DataParcelManifest, subs []Subscription) []Subscription {
    var out []Subscription
    for _, s := range subs {
        if e.ShouldDeliver(m, s.Filter) {
            out = append(out, s)
        }
    }
    zap.L().Debug("parcel fan-out decided", zap.Int("candidates", len(subs)), zap.Int("selected", len(out)))
    return out
}
