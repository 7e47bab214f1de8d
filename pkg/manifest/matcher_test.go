package manifest

import "testing"

func sampleManifest() *DataParcelManifest {
    return &DataParcelManifest{
        ContainerDescriptor: &ParcelDescriptor{Definer: "HL7", Category: "Message", Subcategory: "ADT", Resource: "A01", Version: "2.4"},
        ContentDescriptor:   &ParcelDescriptor{Definer: "FHIR", Category: "Resource", Subcategory: "Patient", Resource: "Patient", Version: "R4"},
        SourceSystem:        "pas",
        TargetSystem:        "emr",
        Normalisation:       NormalisationTrue,
        Validation:          ValidationTrue,
        Type:                ManifestTypeInterSubsystem,
        Enforcement:         PolicyEnforcementPositive,
        Distributable:       true,
        FlowDirection:       FlowInbound,
        OriginParticipant:   "ingest-gw",
        PreviousParticipant: "ingest-gw",
    }
}

func matchAllFilter() *SubscriptionFilter {
    return &SubscriptionFilter{
        ContainerDescriptor: &ParcelDescriptor{Definer: Wildcard, Category: Wildcard, Subcategory: Wildcard, Resource: Wildcard, Version: Wildcard},
        ContentDescriptor:   &ParcelDescriptor{Definer: Wildcard, Category: Wildcard, Subcategory: Wildcard, Resource: Wildcard, Version: Wildcard},
        SourceSystem:        Wildcard,
        TargetSystem:        Wildcard,
        OriginParticipant:   Wildcard,
        PreviousParticipant: Wildcard,
    }
}

func TestFilterStringLaws(t *testing.T) {
    cases := []struct {
        filter, value string
        want          bool
    }{
        {Wildcard, "anything", true},
        {Wildcard, "", true},
        {"", "", true},
        {"", "present", false},
        {"exact", "exact", true},
        {"exact", "other", false},
    }
    for _, c := range cases {
        if got := FilterString(c.filter, c.value); got != c.want {
            t.Fatalf("FilterString(%q,%q)=%v want %v", c.filter, c.value, got, c.want)
        }
    }
}

func TestWildcardAlwaysMatches(t *testing.T) {
    m := sampleManifest()
    f := matchAllFilter()
    if !ContainerDescriptorIsEqual(m, f) {
        t.Fatalf("wildcard container should match")
    }
    if !ContentDescriptorIsEqual(m, f) {
        t.Fatalf("wildcard content should match")
    }
    if !SourceSystemMatches(m, f) || !TargetSystemMatches(m, f) {
        t.Fatalf("wildcard systems should match")
    }
    // enum Any sentinels are universal
    if !NormalisationMatches(m, f) || !ValidationMatches(m, f) || !ManifestTypeMatches(m, f) ||
        !EnforcementPointApprovalStatusMatches(m, f) || !IsDistributableMatches(m, f) ||
        !ParcelFlowDirectionMatches(m, f) {
        t.Fatalf("Any sentinels should match")
    }
}

func TestAbsentOnBothSidesMatches(t *testing.T) {
    m := &DataParcelManifest{ContentDescriptor: &ParcelDescriptor{Resource: "Patient"}}
    f := &SubscriptionFilter{ContentDescriptor: &ParcelDescriptor{Resource: "Patient"}}
    if !ContainerDescriptorIsEqual(m, f) {
        t.Fatalf("container absent on both sides should match")
    }
    if !SourceSystemMatches(m, f) {
        t.Fatalf("source system empty on both sides should match")
    }
}

func TestSubscriberFieldWithoutPublisherNeverMatches(t *testing.T) {
    m := &DataParcelManifest{ContentDescriptor: &ParcelDescriptor{Resource: "Patient"}}
    f := &SubscriptionFilter{
        ContainerDescriptor: &ParcelDescriptor{Definer: "HL7"},
        ContentDescriptor:   &ParcelDescriptor{Resource: "Patient"},
    }
    if ContainerDescriptorIsEqual(m, f) {
        t.Fatalf("subscriber container with no publisher counterpart must not match")
    }
    f2 := &SubscriptionFilter{ContentDescriptor: &ParcelDescriptor{Resource: "Patient"}, SourceSystem: "pas"}
    if SourceSystemMatches(m, f2) {
        t.Fatalf("subscriber source system with absent publisher value must not match")
    }
}

func TestContentDescriptorIsMandatory(t *testing.T) {
    noContent := &DataParcelManifest{ContainerDescriptor: &ParcelDescriptor{Definer: "HL7"}}
    f := matchAllFilter()
    if ContentDescriptorIsEqual(noContent, f) {
        t.Fatalf("missing publisher content descriptor must not match")
    }
    m := sampleManifest()
    f.ContentDescriptor = nil
    if ContentDescriptorIsEqual(m, f) {
        t.Fatalf("missing subscriber content descriptor must not match")
    }
}

func TestContainerDescriptorOnlyEqual(t *testing.T) {
    m := sampleManifest()
    d := &ParcelDescriptor{Definer: "HL7", Category: Wildcard, Subcategory: Wildcard, Resource: Wildcard, Version: Wildcard}
    f := &SubscriptionFilter{ContainerDescriptor: d, ContentDescriptor: d}
    if !ContainerDescriptorOnlyEqual(m, f) {
        t.Fatalf("container-only subscription should match on container")
    }
    // subscriber also filtering on distinct content disables the variant
    f.ContentDescriptor = &ParcelDescriptor{Definer: "FHIR"}
    if ContainerDescriptorOnlyEqual(m, f) {
        t.Fatalf("distinct content filter must disable container-only matching")
    }
}

func TestIsDistributableTriState(t *testing.T) {
    m := sampleManifest()
    f := matchAllFilter()
    f.Distribution = DistributionTrue
    if !IsDistributableMatches(m, f) {
        t.Fatalf("distributable manifest should satisfy DistributionTrue")
    }
    f.Distribution = DistributionFalse
    if IsDistributableMatches(m, f) {
        t.Fatalf("distributable manifest must not satisfy DistributionFalse")
    }
}

func TestDecisionEngineFanOut(t *testing.T) {
    m := sampleManifest()
    eng := &DecisionEngine{}

    matching := matchAllFilter()
    offTarget := matchAllFilter()
    offTarget.TargetSystem = "lab"
    wrongDirection := matchAllFilter()
    wrongDirection.FlowDirection = FlowOutbound

    subs := []Subscription{
        {Participant: "p-match", Filter: matching},
        {Participant: "p-target", Filter: offTarget},
        {Participant: "p-dir", Filter: wrongDirection},
        {Participant: "p-nil"},
    }
    out := eng.SelectSubscribers(m, subs)
    if len(out) != 1 || out[0].Participant != "p-match" {
        t.Fatalf("expected only p-match selected, got %v", out)
    }
}

func TestOriginAndPreviousParticipantFilters(t *testing.T) {
    m := sampleManifest()
    f := matchAllFilter()
    f.OriginParticipant = "ingest-gw"
    f.PreviousParticipant = Wildcard
    if !OriginParticipantFilter(m, f) || !PreviousParticipantFilter(m, f) {
        t.Fatalf("participant filters should match")
    }
    f.OriginParticipant = "someone-else"
    if OriginParticipantFilter(m, f) {
        t.Fatalf("mismatched origin participant must not match")
    }
}
