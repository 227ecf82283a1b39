// Package model holds the domain types shared across the resolution and
// scoring subsystems: HCP identities, nominations, campaigns, score rows,
// and the error taxonomy surfaced at the core boundary.
package model

import (
	"regexp"
	"strings"
	"time"
)

// npiRe matches a National Provider Identifier: exactly 10 digits.
var npiRe = regexp.MustCompile(`^\d{10}$`)

// HCP is a canonical healthcare professional identity. HCPs are never
// deleted, only deactivated.
type HCP struct {
	ID        string    `json:"id"`
	NPI       string    `json:"npi"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Specialty string    `json:"specialty,omitempty"`
	City      string    `json:"city,omitempty"`
	State     string    `json:"state,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Aliases is populated by reads that join the alias table.
	Aliases []Alias `json:"aliases,omitempty"`
}

// FullName returns "FirstName LastName".
func (h *HCP) FullName() string {
	return strings.TrimSpace(h.FirstName + " " + h.LastName)
}

// Alias is an alternate name string known to refer to a specific HCP.
// Alias text is unique per HCP; duplicate adds are idempotently ignored.
type Alias struct {
	ID        string    `json:"id"`
	HcpID     string    `json:"hcp_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateNPI checks that npi is exactly 10 digits.
func ValidateNPI(npi string) error {
	if !npiRe.MatchString(npi) {
		return &ValidationError{Field: "npi", Reason: "must be exactly 10 digits"}
	}
	return nil
}

// Validate checks the fields required to create an HCP.
func (h *HCP) Validate() error {
	if err := ValidateNPI(h.NPI); err != nil {
		return err
	}
	if strings.TrimSpace(h.FirstName) == "" {
		return &ValidationError{Field: "first_name", Reason: "required"}
	}
	if strings.TrimSpace(h.LastName) == "" {
		return &ValidationError{Field: "last_name", Reason: "required"}
	}
	return nil
}
