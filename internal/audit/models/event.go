package models

import "time"

// EventType is the closed set of action categories the trail records.
// Collaborator services map their internal operations onto these; the trail
// itself never inspects what the action meant.
type EventType string

const (
	EventDataAccess      EventType = "data_access"
	EventDataExport      EventType = "data_export"
	EventDataDeletion    EventType = "data_deletion"
	EventPolicyDecision  EventType = "policy_decision"
	EventConsentChange   EventType = "consent_change"
	EventConfigChange    EventType = "config_change"
	EventIncidentAction  EventType = "incident_action"
	EventAssessmentRun   EventType = "assessment_run"
	EventTrainingOutcome EventType = "training_outcome"
	EventSystemAction    EventType = "system_action"
)

// knownEventTypes is the validation allowlist for submissions.
var knownEventTypes = map[EventType]struct{}{
	EventDataAccess:      {},
	EventDataExport:      {},
	EventDataDeletion:    {},
	EventPolicyDecision:  {},
	EventConsentChange:   {},
	EventConfigChange:    {},
	EventIncidentAction:  {},
	EventAssessmentRun:   {},
	EventTrainingOutcome: {},
	EventSystemAction:    {},
}

// Known reports whether the event type belongs to the closed set.
func (t EventType) Known() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// Classification is the sensitivity level attached to an event.
type Classification string

const (
	ClassificationPublic       Classification = "public"
	ClassificationInternal     Classification = "internal"
	ClassificationConfidential Classification = "confidential"
	ClassificationRestricted   Classification = "restricted"
)

// ComplianceFlag tags an event with the regulatory regime it is evidence for.
type ComplianceFlag string

const (
	FlagGDPR     ComplianceFlag = "gdpr"
	FlagHIPAA    ComplianceFlag = "hipaa"
	FlagSOX      ComplianceFlag = "sox"
	FlagPCIDSS   ComplianceFlag = "pci_dss"
	FlagSOC2     ComplianceFlag = "soc2"
	FlagInternal ComplianceFlag = "internal_policy"
)

// Actor identifies who performed the recorded action.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role,omitempty"`
	Unit string `json:"unit,omitempty"`
}

// Event is one immutable record in a tenant's hash chain. Once CurrentHash
// is assigned no field may change; stores expose no update or delete for
// committed events.
//
// Sequence is the event's zero-based position in the tenant chain. It is
// assigned by the primary store at commit time and is not part of the hashed
// content (the position is already pinned by the hash linkage).
type Event struct {
	EventID         string             `json:"event_id"`
	Sequence        int64              `json:"sequence"`
	Timestamp       time.Time          `json:"timestamp"`
	EventType       EventType          `json:"event_type"`
	Context         CorrelationContext `json:"context"`
	Actor           Actor              `json:"actor"`
	Payload         Payload            `json:"payload,omitempty"`
	Classification  Classification     `json:"classification"`
	ComplianceFlags []ComplianceFlag   `json:"compliance_flags,omitempty"`
	PreviousHash    string             `json:"previous_hash"`
	CurrentHash     string             `json:"current_hash"`
}
