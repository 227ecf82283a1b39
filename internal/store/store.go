// Package store defines the persistence interfaces for the resolution and
// scoring core, with SQLite and Postgres implementations.
package store

import (
	"context"
	"time"

	"github.com/sells-group/kolscout/internal/model"
)

// HcpFilter specifies criteria for listing HCPs.
type HcpFilter struct {
	ActiveOnly bool `json:"active_only,omitempty"`
	Limit      int  `json:"limit,omitempty"`
	Offset     int  `json:"offset,omitempty"`
}

// NominationFilter specifies criteria for listing nominations.
type NominationFilter struct {
	CampaignID string                 `json:"campaign_id,omitempty"`
	Status     model.NominationStatus `json:"status,omitempty"`
	Limit      int                    `json:"limit,omitempty"`
	Offset     int                    `json:"offset,omitempty"`
}

// HcpRepository owns the canonical HCP registry and its alias history.
type HcpRepository interface {
	// CreateHcp inserts a new HCP. Returns ConflictError on duplicate NPI.
	CreateHcp(ctx context.Context, h *model.HCP) error
	GetHcp(ctx context.Context, id string) (*model.HCP, error)
	GetHcpByNPI(ctx context.Context, npi string) (*model.HCP, error)
	// ListHcps returns HCPs with aliases populated, in stable NPI order.
	ListHcps(ctx context.Context, filter HcpFilter) ([]model.HCP, error)
	DeactivateHcp(ctx context.Context, id string) error
	// AddAlias records an alias for an HCP. Duplicate text for the same HCP
	// is a no-op; created reports whether a new row was inserted.
	AddAlias(ctx context.Context, hcpID, text string) (created bool, err error)
	ListAliases(ctx context.Context, hcpID string) ([]model.Alias, error)
}

// NominationRepository owns nomination records and their resolution audit trail.
type NominationRepository interface {
	CreateNomination(ctx context.Context, n *model.Nomination) error
	GetNomination(ctx context.Context, id string) (*model.Nomination, error)
	// ListNominations returns nominations in stable creation order.
	ListNominations(ctx context.Context, filter NominationFilter) ([]model.Nomination, error)
	// ResolveNomination applies a terminal transition to an unmatched
	// nomination. Returns NotFoundError if the nomination does not exist and
	// InvalidStateError if it is already resolved.
	ResolveNomination(ctx context.Context, id string, res model.Resolution) error
}

// ScoreRepository owns weight configs, campaign scores, objective segment
// scores, and the versioned disease-area snapshots.
type ScoreRepository interface {
	SaveScoreConfig(ctx context.Context, cfg *model.CompositeScoreConfig) error
	// GetScoreConfig returns (nil, nil) when the campaign has no explicit config.
	GetScoreConfig(ctx context.Context, campaignID string) (*model.CompositeScoreConfig, error)
	DeleteScoreConfig(ctx context.Context, campaignID string) error

	UpsertCampaignScore(ctx context.Context, s *model.HcpCampaignScore) error
	ListCampaignScores(ctx context.Context, campaignID string) ([]model.HcpCampaignScore, error)
	// PublishCampaignScores stamps published_at on every score row of the
	// campaign and returns the number of rows affected.
	PublishCampaignScores(ctx context.Context, campaignID string, at time.Time) (int, error)

	UpsertSegmentScores(ctx context.Context, hcpID, diseaseAreaID string, seg model.SegmentScores) error
	// GetSegmentScores returns (nil, nil) when no segment data exists for the pair.
	GetSegmentScores(ctx context.Context, hcpID, diseaseAreaID string) (*model.SegmentScores, error)

	// PublishSnapshot atomically closes the current disease-area score row for
	// the snapshot's (HCP, disease area) pair, if any, and inserts snap as the
	// new current row. Returns ConflictError when a concurrent publish wins.
	PublishSnapshot(ctx context.Context, snap *model.HcpDiseaseAreaScore) error
	GetCurrentSnapshot(ctx context.Context, hcpID, diseaseAreaID string) (*model.HcpDiseaseAreaScore, error)
	// ListSnapshots returns the full history for a pair, newest first.
	ListSnapshots(ctx context.Context, hcpID, diseaseAreaID string) ([]model.HcpDiseaseAreaScore, error)
}

// CampaignRepository owns campaign records.
type CampaignRepository interface {
	CreateCampaign(ctx context.Context, c *model.Campaign) error
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context) ([]model.Campaign, error)
}

// Store is the full persistence interface backing the core.
type Store interface {
	HcpRepository
	NominationRepository
	ScoreRepository
	CampaignRepository

	Migrate(ctx context.Context) error
	Close() error
}
