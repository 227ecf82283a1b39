// Package resolver drives nomination resolution: candidate suggestions,
// manual match / create / exclude decisions, and batch auto-matching.
package resolver

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/kolscout/internal/matcher"
	"github.com/sells-group/kolscout/internal/model"
	"github.com/sells-group/kolscout/internal/store"
)

// Config tunes resolution behavior.
type Config struct {
	// AutoAcceptThreshold is the minimum candidate score the auto-matcher
	// accepts without human review.
	AutoAcceptThreshold int `yaml:"auto_accept_threshold" mapstructure:"auto_accept_threshold"`

	// AutoAcceptMargin is the minimum lead the top candidate must hold over
	// the runner-up before the auto-matcher accepts it. Ties always skip.
	AutoAcceptMargin int `yaml:"auto_accept_margin" mapstructure:"auto_accept_margin"`

	// SuggestionLimit caps the candidate list returned by Suggest.
	SuggestionLimit int `yaml:"suggestion_limit" mapstructure:"suggestion_limit"`
}

// DefaultConfig returns the standard resolution settings.
func DefaultConfig() Config {
	return Config{
		AutoAcceptThreshold: 90,
		AutoAcceptMargin:    0,
		SuggestionLimit:     10,
	}
}

// Resolver applies resolution decisions against the store.
type Resolver struct {
	store store.Store
	cfg   Config
}

// New creates a Resolver.
func New(st store.Store, cfg Config) *Resolver {
	if cfg.SuggestionLimit <= 0 {
		cfg.SuggestionLimit = 10
	}
	return &Resolver{store: st, cfg: cfg}
}

// Suggest ranks active HCPs against a nomination's raw name and returns the
// top candidates. Zero-score candidates are omitted.
func (r *Resolver) Suggest(ctx context.Context, nominationID string) ([]matcher.Candidate, error) {
	nom, err := r.store.GetNomination(ctx, nominationID)
	if err != nil {
		return nil, err
	}

	hcps, err := r.activeHcps(ctx)
	if err != nil {
		return nil, err
	}

	ranked := matcher.Rank(hcps, nom.RawName)
	var out []matcher.Candidate
	for _, c := range ranked {
		if c.Score == 0 {
			break
		}
		out = append(out, c)
		if len(out) >= r.cfg.SuggestionLimit {
			break
		}
	}
	return out, nil
}

// Match resolves a nomination to an existing HCP. When addAlias is set the
// nomination's raw name is recorded as an alias of the HCP, so future
// nominations with the same spelling match at alias strength.
func (r *Resolver) Match(ctx context.Context, nominationID, hcpID, resolvedBy string, addAlias bool) error {
	nom, err := r.store.GetNomination(ctx, nominationID)
	if err != nil {
		return err
	}

	hcp, err := r.store.GetHcp(ctx, hcpID)
	if err != nil {
		return err
	}
	if !hcp.Active {
		return &model.InvalidStateError{Entity: "hcp", ID: hcpID, State: "inactive", Op: "match"}
	}

	err = r.store.ResolveNomination(ctx, nominationID, model.Resolution{
		Status:     model.NominationMatched,
		HcpID:      &hcp.ID,
		ResolvedBy: resolvedBy,
		ResolvedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if addAlias {
		if _, err := r.store.AddAlias(ctx, hcp.ID, nom.RawName); err != nil {
			return eris.Wrapf(err, "resolver: record alias for hcp %s", hcp.ID)
		}
	}

	zap.L().Info("nomination matched",
		zap.String("nomination_id", nominationID),
		zap.String("hcp_id", hcp.ID),
		zap.String("resolved_by", resolvedBy),
	)
	return nil
}

// CreateHcp registers a new HCP from a nomination and resolves the nomination
// to it. The raw nominated name is recorded as an alias of the new HCP.
func (r *Resolver) CreateHcp(ctx context.Context, nominationID string, h *model.HCP, resolvedBy string) (*model.HCP, error) {
	nom, err := r.store.GetNomination(ctx, nominationID)
	if err != nil {
		return nil, err
	}
	if nom.IsTerminal() {
		return nil, &model.InvalidStateError{
			Entity: "nomination", ID: nominationID, State: string(nom.Status), Op: "create-hcp",
		}
	}

	if err := r.store.CreateHcp(ctx, h); err != nil {
		return nil, err
	}

	err = r.store.ResolveNomination(ctx, nominationID, model.Resolution{
		Status:     model.NominationNewHcp,
		HcpID:      &h.ID,
		ResolvedBy: resolvedBy,
		ResolvedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	if _, err := r.store.AddAlias(ctx, h.ID, nom.RawName); err != nil {
		return nil, eris.Wrapf(err, "resolver: record alias for hcp %s", h.ID)
	}

	zap.L().Info("nomination resolved to new hcp",
		zap.String("nomination_id", nominationID),
		zap.String("hcp_id", h.ID),
		zap.String("npi", h.NPI),
	)
	return h, nil
}

// Exclude resolves a nomination as unusable (illegible, non-HCP, out of scope).
func (r *Resolver) Exclude(ctx context.Context, nominationID, reason, resolvedBy string) error {
	if err := model.ValidateReason(reason); err != nil {
		return err
	}

	err := r.store.ResolveNomination(ctx, nominationID, model.Resolution{
		Status:        model.NominationExcluded,
		ResolvedBy:    resolvedBy,
		ResolvedAt:    time.Now().UTC(),
		ExcludeReason: reason,
	})
	if err != nil {
		return err
	}

	zap.L().Info("nomination excluded",
		zap.String("nomination_id", nominationID),
		zap.String("resolved_by", resolvedBy),
	)
	return nil
}

func (r *Resolver) activeHcps(ctx context.Context) ([]*model.HCP, error) {
	hcps, err := r.store.ListHcps(ctx, store.HcpFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	out := make([]*model.HCP, len(hcps))
	for i := range hcps {
		out[i] = &hcps[i]
	}
	return out, nil
}
