package model

import (
	"math"
	"time"
)

// NominationType classifies the kind of influence a survey question asks about.
type NominationType string

const (
	TypeNationalKOL       NominationType = "national_kol"
	TypeRisingStar        NominationType = "rising_star"
	TypeRegionalExpert    NominationType = "regional_expert"
	TypeDigitalInfluencer NominationType = "digital_influencer"
	TypeClinicalExpert    NominationType = "clinical_expert"
)

// AllNominationTypes lists the valid nomination types in display order.
var AllNominationTypes = []NominationType{
	TypeNationalKOL,
	TypeRisingStar,
	TypeRegionalExpert,
	TypeDigitalInfluencer,
	TypeClinicalExpert,
}

// ValidNominationType reports whether t is a known nomination type.
func ValidNominationType(t NominationType) bool {
	for _, v := range AllNominationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// SegmentScores holds the eight externally-sourced objective segment scores
// for an HCP within a disease area, each on a 0-100 scale.
type SegmentScores struct {
	Publications    float64 `json:"publications"`
	ClinicalTrials  float64 `json:"clinical_trials"`
	Congress        float64 `json:"congress"`
	Guidelines      float64 `json:"guidelines"`
	Claims          float64 `json:"claims"`
	DigitalPresence float64 `json:"digital_presence"`
	Grants          float64 `json:"grants"`
	Societies       float64 `json:"societies"`
}

// Weights is the per-campaign composite score configuration: eight objective
// segment weights plus the survey weight, each a percentage. The nine weights
// must sum to 100 (tolerance 0.01) for the config to be usable.
type Weights struct {
	Publications    float64 `json:"publications" yaml:"publications"`
	ClinicalTrials  float64 `json:"clinical_trials" yaml:"clinical_trials"`
	Congress        float64 `json:"congress" yaml:"congress"`
	Guidelines      float64 `json:"guidelines" yaml:"guidelines"`
	Claims          float64 `json:"claims" yaml:"claims"`
	DigitalPresence float64 `json:"digital_presence" yaml:"digital_presence"`
	Grants          float64 `json:"grants" yaml:"grants"`
	Societies       float64 `json:"societies" yaml:"societies"`
	Survey          float64 `json:"survey" yaml:"survey"`
}

// WeightSumTolerance is the allowed deviation of the weight sum from 100.
const WeightSumTolerance = 0.01

// DefaultWeights returns the documented default weight set (sums to 100).
func DefaultWeights() Weights {
	return Weights{
		Publications:    10,
		ClinicalTrials:  15,
		Congress:        10,
		Guidelines:      10,
		Claims:          10,
		DigitalPresence: 10,
		Grants:          5,
		Societies:       5,
		Survey:          25,
	}
}

// Sum returns the total of the nine weights.
func (w Weights) Sum() float64 {
	return w.Publications + w.ClinicalTrials + w.Congress + w.Guidelines +
		w.Claims + w.DigitalPresence + w.Grants + w.Societies + w.Survey
}

// namedWeight pairs a weight field with its wire name for validation messages.
type namedWeight struct {
	name  string
	value float64
}

func (w Weights) named() []namedWeight {
	return []namedWeight{
		{"publications", w.Publications},
		{"clinical_trials", w.ClinicalTrials},
		{"congress", w.Congress},
		{"guidelines", w.Guidelines},
		{"claims", w.Claims},
		{"digital_presence", w.DigitalPresence},
		{"grants", w.Grants},
		{"societies", w.Societies},
		{"survey", w.Survey},
	}
}

// Validate is the single weight-config validator shared by config-save and
// compute-time assertions. Each weight must lie in [0,100] and the nine
// weights must sum to 100 within WeightSumTolerance.
func (w Weights) Validate() error {
	for _, f := range w.named() {
		if f.value < 0 || f.value > 100 {
			return &ValidationError{Field: f.name, Reason: "must be between 0 and 100"}
		}
	}
	if sum := w.Sum(); math.Abs(sum-100) > WeightSumTolerance {
		return &ValidationError{Field: "weights", Reason: "must sum to 100"}
	}
	return nil
}

// CompositeScoreConfig is the persisted weight configuration for a campaign.
type CompositeScoreConfig struct {
	CampaignID string    `json:"campaign_id"`
	Weights    Weights   `json:"weights"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HcpCampaignScore is one score row per (HCP, campaign): per-type nomination
// counts and derived scores, the consolidated survey score, and the weighted
// composite. PublishedAt stays nil until an operator publishes the campaign;
// unpublished rows must not reach client-facing dashboards.
type HcpCampaignScore struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id"`
	HcpID      string `json:"hcp_id"`

	TypeCounts map[NominationType]int     `json:"type_counts"`
	TypeScores map[NominationType]float64 `json:"type_scores"`

	ScoreSurvey     float64 `json:"score_survey"`
	NominationCount int     `json:"nomination_count"`
	ScoreComposite  float64 `json:"score_composite"`

	CalculatedAt time.Time  `json:"calculated_at"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
}

// HcpDiseaseAreaScore is the cross-campaign, time-versioned aggregate per
// (HCP, disease area). At most one row per pair has IsCurrent set; publishing
// a new snapshot closes the previous row and inserts a new current one.
// History is never mutated in place.
type HcpDiseaseAreaScore struct {
	ID            string `json:"id"`
	HcpID         string `json:"hcp_id"`
	DiseaseAreaID string `json:"disease_area_id"`

	Segments        SegmentScores `json:"segments"`
	ScoreSurvey     float64       `json:"score_survey"`
	ScoreComposite  float64       `json:"score_composite"`
	CampaignCount   int           `json:"campaign_count"`
	NominationCount int           `json:"nomination_count"`

	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	IsCurrent     bool       `json:"is_current"`
}

// Campaign groups one survey wave under a disease area.
type Campaign struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	DiseaseAreaID string    `json:"disease_area_id"`
	CreatedAt     time.Time `json:"created_at"`
}
