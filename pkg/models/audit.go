package models

import "time"

// IssueType names a consistency problem found by the auditor.
type IssueType string

const (
	IssueUnidirectionalReference IssueType = "UNIDIRECTIONAL_REFERENCE"
	IssueOrphanReference         IssueType = "ORPHAN_REFERENCE"
	IssueLibreFlagDrift          IssueType = "LIBRE_FLAG_DRIFT"
	IssueDuplicateLiaison        IssueType = "DUPLICATE_LIAISON"
	IssueUnreadableDocument      IssueType = "UNREADABLE_DOCUMENT"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

type Issue struct {
	Type        IssueType      `json:"type"`
	Severity    Severity       `json:"severity"`
	Description string         `json:"description"`
	SourceType  string         `json:"sourceType,omitempty"`
	SourceID    string         `json:"sourceId,omitempty"`
	TargetType  string         `json:"targetType,omitempty"`
	TargetID    string         `json:"targetId,omitempty"`
	LiaisonID   string         `json:"liaisonId,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

type AuditCounts struct {
	TotalStructures            int `json:"totalStructures"`
	TotalPersonnes             int `json:"totalPersonnes"`
	TotalLiaisons              int `json:"totalLiaisons"`
	ActiveLiaisons             int `json:"activeLiaisons"`
	StructuresWithPersonnes    int `json:"structuresWithPersonnes"`
	StructuresWithoutPersonnes int `json:"structuresWithoutPersonnes"`
	PersonnesWithStructures    int `json:"personnesWithStructures"`
	PersonnesWithoutStructures int `json:"personnesWithoutStructures"`
	LegacyReferences           int `json:"legacyReferences"`
	CoherentAssociations       int `json:"coherentAssociations"`
	UnidirectionalReferences   int `json:"unidirectionalReferences"`
	OrphanReferences           int `json:"orphanReferences"`
	LibreFlagDrifts            int `json:"libreFlagDrifts"`
	DuplicateLiaisons          int `json:"duplicateLiaisons"`
	UnreadableDocuments        int `json:"unreadableDocuments"`
}

type AuditReport struct {
	OrganizationID  string            `json:"organizationId"`
	GeneratedAt     time.Time         `json:"generatedAt"`
	Counts          AuditCounts       `json:"counts"`
	Issues          []Issue           `json:"issues"`
	IssuesByType    map[IssueType]int `json:"issuesByType"`
	Recommendations []string          `json:"recommendations,omitempty"`
}

// IssuesOfType filters the report.
func (r *AuditReport) IssuesOfType(t IssueType) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Type == t {
			out = append(out, issue)
		}
	}
	return out
}

// Consistent is true when no issue was found.
func (r *AuditReport) Consistent() bool {
	return len(r.Issues) == 0
}
