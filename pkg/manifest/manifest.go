// Package manifest holds the data-parcel description model and the
// subscription matching engine deciding which participants receive a parcel.
package manifest

// Wildcard is the universal-match sentinel usable in any subscriber-side
// string field. It never carries meaning on the publisher side.
const Wildcard = "*"

// NormalisationStatus describes whether parcel content has been normalised.
type NormalisationStatus int

const (
    NormalisationAny NormalisationStatus = iota // subscriber-side universal match
    NormalisationFalse
    NormalisationTrue
)

// ValidationStatus describes whether parcel content has passed validation.
type ValidationStatus int

const (
    ValidationAny ValidationStatus = iota
    ValidationFalse
    ValidationTrue
)

// ManifestType classifies the scope of a parcel exchange.
type ManifestType int

const (
    ManifestTypeAny ManifestType = iota
    ManifestTypeInteractMessage
    ManifestTypeInterSubsystem
    ManifestTypeIntraSubsystem
)

// FlowDirection describes where the parcel sits in the processing flow.
type FlowDirection int

const (
    FlowAny FlowDirection = iota
    FlowInbound
    FlowOutbound
    FlowSubsystemInternal
    FlowWorkflowTransient
)

// PolicyEnforcementStatus captures enforcement-point approval of a parcel.
type PolicyEnforcementStatus int

const (
    PolicyEnforcementAny PolicyEnforcementStatus = iota
    PolicyEnforcementNegative
    PolicyEnforcementPositive
)

// DistributionStatus is the subscriber-side tri-state over the publisher's
// boolean distributable flag.
type DistributionStatus int

const (
    DistributionAny DistributionStatus = iota
    DistributionFalse
    DistributionTrue
)

// ParcelDescriptor identifies a parcel type at container or content level.
// On the subscriber side each field may independently hold Wildcard.
type ParcelDescriptor struct {
    Definer     string `cbor:"definer,omitempty"`
    Category    string `cbor:"category,omitempty"`
    Subcategory string `cbor:"subcategory,omitempty"`
    Resource    string `cbor:"resource,omitempty"`
    Version     string `cbor:"version,omitempty"`
}

// Equals reports exact field equality (no wildcard handling).
func (d *ParcelDescriptor) Equals(o *ParcelDescriptor) bool {
    if d == nil || o == nil { return d == o }
    return d.Definer == o.Definer && d.Category == o.Category &&
        d.Subcategory == o.Subcategory && d.Resource == o.Resource && d.Version == o.Version
}

// DataParcelManifest describes one concrete parcel instance being emitted.
// All fields are publisher-concrete; sentinels here never act as wildcards.
type DataParcelManifest struct {
    ContainerDescriptor *ParcelDescriptor       `cbor:"container,omitempty"`
    ContentDescriptor   *ParcelDescriptor       `cbor:"content,omitempty"`
    SourceSystem        string                  `cbor:"source_system,omitempty"`
    TargetSystem        string                  `cbor:"target_system,omitempty"`
    Normalisation       NormalisationStatus     `cbor:"normalisation"`
    Validation          ValidationStatus        `cbor:"validation"`
    Type                ManifestType            `cbor:"type"`
    Enforcement         PolicyEnforcementStatus `cbor:"enforcement"`
    Distributable       bool                    `cbor:"distributable"`
    FlowDirection       FlowDirection           `cbor:"flow_direction"`
    OriginParticipant   string                  `cbor:"origin_participant,omitempty"`
    PreviousParticipant string                  `cbor:"previous_participant,omitempty"`
}

// SubscriptionFilter is the pattern a participant declares to receive parcels.
// String fields may hold Wildcard; enum fields use their *Any sentinel for a
// universal match; an empty string matches only an absent publisher field.
type SubscriptionFilter struct {
    ContainerDescriptor *ParcelDescriptor       `cbor:"container,omitempty"`
    ContentDescriptor   *ParcelDescriptor       `cbor:"content,omitempty"`
    SourceSystem        string                  `cbor:"source_system,omitempty"`
    TargetSystem        string                  `cbor:"target_system,omitempty"`
    Normalisation       NormalisationStatus     `cbor:"normalisation"`
    Validation          ValidationStatus        `cbor:"validation"`
    Type                ManifestType            `cbor:"type"`
    Enforcement         PolicyEnforcementStatus `cbor:"enforcement"`
    Distribution        DistributionStatus      `cbor:"distribution"`
    FlowDirection       FlowDirection           `cbor:"flow_direction"`
    OriginParticipant   string                  `cbor:"origin_participant,omitempty"`
    PreviousParticipant string                  `cbor:"previous_participant,omitempty"`
}

// Subscription binds a participant to its declared filter.
type Subscription struct {
    Participant string
    Filter      *SubscriptionFilter
}
