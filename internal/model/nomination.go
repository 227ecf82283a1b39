package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

// NominationStatus is the lifecycle state of a nomination.
type NominationStatus string

const (
	NominationUnmatched NominationStatus = "unmatched"
	NominationMatched   NominationStatus = "matched"
	NominationNewHcp    NominationStatus = "new_hcp"
	NominationExcluded  NominationStatus = "excluded"
)

// Length caps for free-text inputs.
const (
	MaxRawNameLen = 255
	MaxReasonLen  = 500
)

// Nomination is one free-text peer name entered by a survey respondent.
// It starts unmatched and moves to exactly one terminal state; terminal
// states are absorbing.
type Nomination struct {
	ID         string           `json:"id"`
	CampaignID string           `json:"campaign_id"`
	QuestionID string           `json:"question_id"`
	RawName    string           `json:"raw_name"`
	Status     NominationStatus `json:"status"`

	// Resolution audit trail. HcpID is set for matched and new_hcp.
	HcpID         *string    `json:"hcp_id,omitempty"`
	ResolvedBy    string     `json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	ExcludeReason string     `json:"exclude_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsTerminal reports whether the nomination has been resolved.
func (n *Nomination) IsTerminal() bool {
	return n.Status != NominationUnmatched
}

// Resolution describes a state transition applied to an unmatched nomination.
type Resolution struct {
	Status        NominationStatus
	HcpID         *string
	ResolvedBy    string
	ResolvedAt    time.Time
	ExcludeReason string
}

// ValidateRawName checks a nominated name for emptiness and length.
func ValidateRawName(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return &ValidationError{Field: "raw_name", Reason: "required"}
	}
	if utf8.RuneCountInString(raw) > MaxRawNameLen {
		return &ValidationError{Field: "raw_name", Reason: "exceeds 255 characters"}
	}
	return nil
}

// ValidateReason checks an exclusion reason for length. Empty is allowed.
func ValidateReason(reason string) error {
	if utf8.RuneCountInString(reason) > MaxReasonLen {
		return &ValidationError{Field: "reason", Reason: "exceeds 500 characters"}
	}
	return nil
}
