package manifest

// Matching predicates between a published DataParcelManifest and a subscriber's
// SubscriptionFilter. Contract shared by every predicate:
//   - absence of a field on both sides matches
//   - a subscriber-side wildcard/Any sentinel always matches
//   - a subscriber field present with no publisher counterpart never matches
// Each predicate is pure and single-purpose so the overall delivery decision
// stays a conjunction of independently testable checks.

// FilterString applies the generic string tri-state rule: Wildcard matches
// anything, empty matches only empty/absent, otherwise exact match.
func FilterString(filter, value string) bool {
    if filter == Wildcard { return true }
    if filter == "" { return value == "" }
    return filter == value
}

// FilterParticipantID matches a subscriber participant filter against a
// publisher-recorded participant name.
func FilterParticipantID(filter, participant string) bool {
    return FilterString(filter, participant)
}

func descriptorMatches(pub, sub *ParcelDescriptor) bool {
    if sub == nil { return true }
    if pub == nil { return false }
    return FilterString(sub.Definer, pub.Definer) &&
        FilterString(sub.Category, pub.Category) &&
        FilterString(sub.Subcategory, pub.Subcategory) &&
        FilterString(sub.Resource, pub.Resource) &&
        FilterString(sub.Version, pub.Version)
}

// ContainerDescriptorIsEqual compares container-level descriptors, honouring
// wildcards in each of the subscriber's descriptor fields independently.
func ContainerDescriptorIsEqual(m *DataParcelManifest, f *SubscriptionFilter) bool {
    if m == nil || f == nil { return false }
    if f.ContainerDescriptor == nil && m.ContainerDescriptor == nil { return true }
    return descriptorMatches(m.ContainerDescriptor, f.ContainerDescriptor)
}

// ContentDescriptorIsEqual compares content-level descriptors. Content identity
// is mandatory: a missing content descriptor on either side is a non-match.
func ContentDescriptorIsEqual(m *DataParcelManifest, f *SubscriptionFilter) bool {
    if m == nil || f == nil { return false }
    if m.ContentDescriptor == nil || f.ContentDescriptor == nil { return false }
    return descriptorMatches(m.ContentDescriptor, f.ContentDescriptor)
}

// ContainerDescriptorOnlyEqual handles "container type only" subscriptions:
// the subscriber's container and content descriptors must first be equal to
// each other (the subscriber is not also filtering on distinct content), then
// the containers are compared with wildcard semantics.
func ContainerDescriptorOnlyEqual(m *DataParcelManifest, f *SubscriptionFilter) bool {
    if m == nil || f == nil { return false }
    if f.ContainerDescriptor == nil || !f.ContainerDescriptor.Equals(f.ContentDescriptor) {
        return false
    }
    return descriptorMatches(m.ContainerDescriptor, f.ContainerDescriptor)
}

// NormalisationMatches compares normalisation state; NormalisationAny on the
// subscriber side always matches.
func NormalisationMatches(m *DataParcelManifest, f *SubscriptionFilter) bool {
    if m == nil || f == nil { return false }
    if f.Normalisation == NormalisationAny { return true }
    return f.Normalisation == m.Normalisation
}

// ValidationMatches compares validation state with the Any rule.
func ValidationMatches(m *DataParcelManifest, f *SubscriptionFilter) bool {
    if m == nil || f == nil { return false }
    if f.Validation == ValidationAny { return true }
    return f.Validation == m.Validation
}

// ManifestTypeMatches compares the manifest type with the Any rule.
func ManifestTypeMatches(m *DataParcelManifest, f *SubscriptionFilter) bool {
    if m == nil || f == nil { return false }
    if f.Type == ManifestTypeAny { return true }
    return f.Type == m.Type
}

// SourceSystemMatches compares declared source systems.
func SourceSystemMatches(m *DataParcelManifest, f *SubscriptionFilter) bool {
    if m == nil || f == nil { return false }
    return FilterString(f.SourceSystem, m.SourceSystem)
}

// TargetSystemMatches compares intended target systems.
func TargetSystemMatches(m *DataParcelManifest, f *SubscriptionFilter) bool {
    if m == nil || f == nil { return false }
    return FilterString(f.TargetSystem, m.TargetSystem)
}

// EnforcementPointApprovalStatusMatches compares policy-enforcement approval.
func EnforcementPointApprovalStatusMatches(m *DataParcelManifest, f *SubscriptionFilter) bool {
    if m == nil || f == nil { return false }
    if f.Enforcement == PolicyEnforcementAny { return true }
    return f.Enforcement == m.Enforcement
}

// IsDistributableMatches compares the publisher's distributable flag against
// the subscriber's tri-state distribution filter.
func IsDistributableMatches(m *DataParcelManifest, f *SubscriptionFilter) bool {
    if m == nil || f == nil { return false }
    switch f.Distribution {
    case DistributionAny:
        return true
    case DistributionTrue:
        return m.Distributable
    default:
        return !m.Distributable
    }
}

// ParcelFlowDirectionMatches compares flow direction with the Any rule.
func ParcelFlowDirectionMatches(m *DataParcelManifest, f *SubscriptionFilter) bool {
    if m == nil || f == nil { return false }
    if f.FlowDirection == FlowAny { return true }
    return f.FlowDirection == m.FlowDirection
}

// OriginParticipantFilter matches the participant that originated the parcel.
func OriginParticipantFilter(m *DataParcelManifest, f *SubscriptionFilter) bool {
    if m == nil || f == nil { return false }
    return FilterParticipantID(f.OriginParticipant, m.OriginParticipant)
}

// PreviousParticipantFilter matches the immediately preceding participant.
func PreviousParticipantFilter(m *DataParcelManifest, f *SubscriptionFilter) bool {
    if m == nil || f == nil { return false }
    return FilterParticipantID(f.PreviousParticipant, m.PreviousParticipant)
}
