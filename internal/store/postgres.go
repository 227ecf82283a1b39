package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/kolscout/internal/db"
	"github.com/sells-group/kolscout/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS hcps (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	npi        TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL,
	last_name  TEXT NOT NULL,
	specialty  TEXT NOT NULL DEFAULT '',
	city       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	active     BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS hcp_aliases (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	hcp_id     TEXT NOT NULL REFERENCES hcps(id),
	alias_text TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(hcp_id, alias_text)
);

CREATE TABLE IF NOT EXISTS campaigns (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name            TEXT NOT NULL,
	disease_area_id TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS nominations (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	campaign_id    TEXT NOT NULL REFERENCES campaigns(id),
	question_id    TEXT NOT NULL,
	raw_name       TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'unmatched',
	hcp_id         TEXT REFERENCES hcps(id),
	resolved_by    TEXT NOT NULL DEFAULT '',
	resolved_at    TIMESTAMPTZ,
	exclude_reason TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS score_configs (
	campaign_id TEXT PRIMARY KEY REFERENCES campaigns(id),
	weights     JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS campaign_scores (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	campaign_id      TEXT NOT NULL REFERENCES campaigns(id),
	hcp_id           TEXT NOT NULL REFERENCES hcps(id),
	type_counts      JSONB NOT NULL,
	type_scores      JSONB NOT NULL,
	score_survey     DOUBLE PRECISION NOT NULL,
	nomination_count INTEGER NOT NULL,
	score_composite  DOUBLE PRECISION NOT NULL,
	calculated_at    TIMESTAMPTZ NOT NULL,
	published_at     TIMESTAMPTZ,
	UNIQUE(campaign_id, hcp_id)
);

CREATE TABLE IF NOT EXISTS segment_scores (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	hcp_id          TEXT NOT NULL REFERENCES hcps(id),
	disease_area_id TEXT NOT NULL,
	segments        JSONB NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(hcp_id, disease_area_id)
);

CREATE TABLE IF NOT EXISTS disease_area_scores (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	hcp_id           TEXT NOT NULL REFERENCES hcps(id),
	disease_area_id  TEXT NOT NULL,
	segments         JSONB NOT NULL,
	score_survey     DOUBLE PRECISION NOT NULL,
	score_composite  DOUBLE PRECISION NOT NULL,
	campaign_count   INTEGER NOT NULL,
	nomination_count INTEGER NOT NULL,
	effective_from   TIMESTAMPTZ NOT NULL,
	effective_to     TIMESTAMPTZ,
	is_current       BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS idx_hcp_aliases_hcp_id ON hcp_aliases(hcp_id);
CREATE INDEX IF NOT EXISTS idx_nominations_campaign_id ON nominations(campaign_id);
CREATE INDEX IF NOT EXISTS idx_nominations_status ON nominations(status);
CREATE INDEX IF NOT EXISTS idx_campaign_scores_campaign_id ON campaign_scores(campaign_id);
CREATE INDEX IF NOT EXISTS idx_disease_area_scores_pair ON disease_area_scores(hcp_id, disease_area_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_disease_area_scores_current
	ON disease_area_scores(hcp_id, disease_area_id) WHERE is_current;
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// isPgUnique reports whether err is a unique constraint violation (23505).
func isPgUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- HCPs ---

func (s *PostgresStore) CreateHcp(ctx context.Context, h *model.HCP) error {
	if err := h.Validate(); err != nil {
		return err
	}
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	h.CreatedAt, h.UpdatedAt = now, now
	h.Active = true

	_, err := s.pool.Exec(ctx,
		`INSERT INTO hcps (id, npi, first_name, last_name, specialty, city, state, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8, $9)`,
		h.ID, h.NPI, h.FirstName, h.LastName, h.Specialty, h.City, h.State, now, now,
	)
	if isPgUnique(err) {
		return &model.ConflictError{Entity: "hcp", Detail: "npi " + h.NPI + " already registered"}
	}
	return eris.Wrap(err, "postgres: insert hcp")
}

func (s *PostgresStore) GetHcp(ctx context.Context, id string) (*model.HCP, error) {
	var h model.HCP
	err := s.pool.QueryRow(ctx,
		`SELECT id, npi, first_name, last_name, specialty, city, state, active, created_at, updated_at
		 FROM hcps WHERE id = $1`, id,
	).Scan(&h.ID, &h.NPI, &h.FirstName, &h.LastName, &h.Specialty, &h.City, &h.State,
		&h.Active, &h.CreatedAt, &h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &model.NotFoundError{Entity: "hcp", ID: id}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get hcp %s", id)
	}
	h.Aliases, err = s.ListAliases(ctx, h.ID)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *PostgresStore) GetHcpByNPI(ctx context.Context, npi string) (*model.HCP, error) {
	var h model.HCP
	err := s.pool.QueryRow(ctx,
		`SELECT id, npi, first_name, last_name, specialty, city, state, active, created_at, updated_at
		 FROM hcps WHERE npi = $1`, npi,
	).Scan(&h.ID, &h.NPI, &h.FirstName, &h.LastName, &h.Specialty, &h.City, &h.State,
		&h.Active, &h.CreatedAt, &h.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &model.NotFoundError{Entity: "hcp", ID: npi}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get hcp by npi %s", npi)
	}
	h.Aliases, err = s.ListAliases(ctx, h.ID)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *PostgresStore) ListHcps(ctx context.Context, filter HcpFilter) ([]model.HCP, error) {
	query := `SELECT id, npi, first_name, last_name, specialty, city, state, active, created_at, updated_at
		 FROM hcps WHERE true`
	args := []any{}
	argIdx := 1

	if filter.ActiveOnly {
		query += ` AND active`
	}
	query += ` ORDER BY npi`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list hcps")
	}
	defer rows.Close()

	var hcps []model.HCP
	for rows.Next() {
		var h model.HCP
		if err := rows.Scan(&h.ID, &h.NPI, &h.FirstName, &h.LastName, &h.Specialty, &h.City, &h.State,
			&h.Active, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan hcp")
		}
		hcps = append(hcps, h)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list hcps iterate")
	}

	for i := range hcps {
		aliases, err := s.ListAliases(ctx, hcps[i].ID)
		if err != nil {
			return nil, err
		}
		hcps[i].Aliases = aliases
	}
	return hcps, nil
}

func (s *PostgresStore) DeactivateHcp(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE hcps SET active = false, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: deactivate hcp %s", id)
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Entity: "hcp", ID: id}
	}
	return nil
}

func (s *PostgresStore) AddAlias(ctx context.Context, hcpID, text string) (bool, error) {
	if _, err := s.GetHcp(ctx, hcpID); err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO hcp_aliases (id, hcp_id, alias_text, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (hcp_id, alias_text) DO NOTHING`,
		uuid.New().String(), hcpID, text, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: add alias for hcp %s", hcpID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListAliases(ctx context.Context, hcpID string) ([]model.Alias, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, hcp_id, alias_text, created_at FROM hcp_aliases WHERE hcp_id = $1 ORDER BY created_at, alias_text`,
		hcpID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list aliases for hcp %s", hcpID)
	}
	defer rows.Close()

	var aliases []model.Alias
	for rows.Next() {
		var a model.Alias
		if err := rows.Scan(&a.ID, &a.HcpID, &a.Text, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan alias")
		}
		aliases = append(aliases, a)
	}
	return aliases, eris.Wrap(rows.Err(), "postgres: list aliases iterate")
}

// --- Nominations ---

func (s *PostgresStore) CreateNomination(ctx context.Context, n *model.Nomination) error {
	if err := model.ValidateRawName(n.RawName); err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.Status = model.NominationUnmatched
	n.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO nominations (id, campaign_id, question_id, raw_name, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.CampaignID, n.QuestionID, n.RawName, string(n.Status), n.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert nomination")
}

func (s *PostgresStore) GetNomination(ctx context.Context, id string) (*model.Nomination, error) {
	var n model.Nomination
	var hcpID *string
	var resolvedAt *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT id, campaign_id, question_id, raw_name, status, hcp_id, resolved_by, resolved_at, exclude_reason, created_at
		 FROM nominations WHERE id = $1`, id,
	).Scan(&n.ID, &n.CampaignID, &n.QuestionID, &n.RawName, &n.Status,
		&hcpID, &n.ResolvedBy, &resolvedAt, &n.ExcludeReason, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &model.NotFoundError{Entity: "nomination", ID: id}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get nomination %s", id)
	}
	n.HcpID = hcpID
	n.ResolvedAt = resolvedAt
	return &n, nil
}

func (s *PostgresStore) ListNominations(ctx context.Context, filter NominationFilter) ([]model.Nomination, error) {
	query := `SELECT id, campaign_id, question_id, raw_name, status, hcp_id, resolved_by, resolved_at, exclude_reason, created_at
		 FROM nominations WHERE true`
	args := []any{}
	argIdx := 1

	if filter.CampaignID != "" {
		query += fmt.Sprintf(` AND campaign_id = $%d`, argIdx)
		args = append(args, filter.CampaignID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list nominations")
	}
	defer rows.Close()

	var noms []model.Nomination
	for rows.Next() {
		var n model.Nomination
		var hcpID *string
		var resolvedAt *time.Time
		if err := rows.Scan(&n.ID, &n.CampaignID, &n.QuestionID, &n.RawName, &n.Status,
			&hcpID, &n.ResolvedBy, &resolvedAt, &n.ExcludeReason, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan nomination")
		}
		n.HcpID = hcpID
		n.ResolvedAt = resolvedAt
		noms = append(noms, n)
	}
	return noms, eris.Wrap(rows.Err(), "postgres: list nominations iterate")
}

func (s *PostgresStore) ResolveNomination(ctx context.Context, id string, res model.Resolution) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE nominations
		 SET status = $1, hcp_id = $2, resolved_by = $3, resolved_at = $4, exclude_reason = $5
		 WHERE id = $6 AND status = 'unmatched'`,
		string(res.Status), res.HcpID, res.ResolvedBy, res.ResolvedAt, res.ExcludeReason, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: resolve nomination %s", id)
	}
	if tag.RowsAffected() == 0 {
		existing, err := s.GetNomination(ctx, id)
		if err != nil {
			return err
		}
		return &model.InvalidStateError{
			Entity: "nomination", ID: id, State: string(existing.Status), Op: "resolve",
		}
	}
	return nil
}

// --- Campaigns ---

func (s *PostgresStore) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO campaigns (id, name, disease_area_id, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.DiseaseAreaID, c.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert campaign")
}

func (s *PostgresStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, disease_area_id, created_at FROM campaigns WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.DiseaseAreaID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &model.NotFoundError{Entity: "campaign", ID: id}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get campaign %s", id)
	}
	return &c, nil
}

func (s *PostgresStore) ListCampaigns(ctx context.Context) ([]model.Campaign, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, disease_area_id, created_at FROM campaigns ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list campaigns")
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		var c model.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.DiseaseAreaID, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan campaign")
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, eris.Wrap(rows.Err(), "postgres: list campaigns iterate")
}

// --- Score configs ---

func (s *PostgresStore) SaveScoreConfig(ctx context.Context, cfg *model.CompositeScoreConfig) error {
	if err := cfg.Weights.Validate(); err != nil {
		return err
	}
	weightsJSON, err := json.Marshal(cfg.Weights)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal weights")
	}
	cfg.UpdatedAt = time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO score_configs (campaign_id, weights, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (campaign_id) DO UPDATE SET weights = $2, updated_at = $3`,
		cfg.CampaignID, weightsJSON, cfg.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: save score config for campaign %s", cfg.CampaignID)
}

func (s *PostgresStore) GetScoreConfig(ctx context.Context, campaignID string) (*model.CompositeScoreConfig, error) {
	var cfg model.CompositeScoreConfig
	var weightsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT campaign_id, weights, updated_at FROM score_configs WHERE campaign_id = $1`,
		campaignID,
	).Scan(&cfg.CampaignID, &weightsJSON, &cfg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get score config for campaign %s", campaignID)
	}
	if err := json.Unmarshal(weightsJSON, &cfg.Weights); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal weights")
	}
	return &cfg, nil
}

func (s *PostgresStore) DeleteScoreConfig(ctx context.Context, campaignID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM score_configs WHERE campaign_id = $1`, campaignID,
	)
	return eris.Wrapf(err, "postgres: delete score config for campaign %s", campaignID)
}

// --- Campaign scores ---

func (s *PostgresStore) UpsertCampaignScore(ctx context.Context, sc *model.HcpCampaignScore) error {
	if sc.ID == "" {
		sc.ID = uuid.New().String()
	}
	countsJSON, err := json.Marshal(sc.TypeCounts)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal type counts")
	}
	scoresJSON, err := json.Marshal(sc.TypeScores)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal type scores")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO campaign_scores
			(id, campaign_id, hcp_id, type_counts, type_scores, score_survey, nomination_count, score_composite, calculated_at, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL)
		 ON CONFLICT (campaign_id, hcp_id) DO UPDATE SET
			type_counts = $4, type_scores = $5, score_survey = $6,
			nomination_count = $7, score_composite = $8, calculated_at = $9, published_at = NULL`,
		sc.ID, sc.CampaignID, sc.HcpID, countsJSON, scoresJSON,
		sc.ScoreSurvey, sc.NominationCount, sc.ScoreComposite, sc.CalculatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert campaign score for hcp %s", sc.HcpID)
}

func (s *PostgresStore) ListCampaignScores(ctx context.Context, campaignID string) ([]model.HcpCampaignScore, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, campaign_id, hcp_id, type_counts, type_scores, score_survey, nomination_count, score_composite, calculated_at, published_at
		 FROM campaign_scores WHERE campaign_id = $1
		 ORDER BY score_composite DESC, hcp_id`,
		campaignID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list campaign scores %s", campaignID)
	}
	defer rows.Close()

	var scores []model.HcpCampaignScore
	for rows.Next() {
		var sc model.HcpCampaignScore
		var countsJSON, scoresJSON []byte
		var publishedAt *time.Time
		err := rows.Scan(&sc.ID, &sc.CampaignID, &sc.HcpID, &countsJSON, &scoresJSON,
			&sc.ScoreSurvey, &sc.NominationCount, &sc.ScoreComposite, &sc.CalculatedAt, &publishedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan campaign score")
		}
		if err := json.Unmarshal(countsJSON, &sc.TypeCounts); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal type counts")
		}
		if err := json.Unmarshal(scoresJSON, &sc.TypeScores); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal type scores")
		}
		sc.PublishedAt = publishedAt
		scores = append(scores, sc)
	}
	return scores, eris.Wrap(rows.Err(), "postgres: list campaign scores iterate")
}

func (s *PostgresStore) PublishCampaignScores(ctx context.Context, campaignID string, at time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaign_scores SET published_at = $1 WHERE campaign_id = $2`,
		at, campaignID,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: publish campaign scores %s", campaignID)
	}
	return int(tag.RowsAffected()), nil
}

// --- Segment scores ---

func (s *PostgresStore) UpsertSegmentScores(ctx context.Context, hcpID, diseaseAreaID string, seg model.SegmentScores) error {
	segJSON, err := json.Marshal(seg)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal segments")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO segment_scores (id, hcp_id, disease_area_id, segments, updated_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (hcp_id, disease_area_id) DO UPDATE SET segments = $4, updated_at = $5`,
		uuid.New().String(), hcpID, diseaseAreaID, segJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert segment scores for hcp %s", hcpID)
}

func (s *PostgresStore) GetSegmentScores(ctx context.Context, hcpID, diseaseAreaID string) (*model.SegmentScores, error) {
	var segJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT segments FROM segment_scores WHERE hcp_id = $1 AND disease_area_id = $2`,
		hcpID, diseaseAreaID,
	).Scan(&segJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get segment scores for hcp %s", hcpID)
	}
	var seg model.SegmentScores
	if err := json.Unmarshal(segJSON, &seg); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal segments")
	}
	return &seg, nil
}

// --- Disease-area snapshots ---

func (s *PostgresStore) PublishSnapshot(ctx context.Context, snap *model.HcpDiseaseAreaScore) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	segJSON, err := json.Marshal(snap.Segments)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal segments")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin publish")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE disease_area_scores SET is_current = false, effective_to = $1
		 WHERE hcp_id = $2 AND disease_area_id = $3 AND is_current`,
		snap.EffectiveFrom, snap.HcpID, snap.DiseaseAreaID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: close current snapshot")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO disease_area_scores
			(id, hcp_id, disease_area_id, segments, score_survey, score_composite, campaign_count, nomination_count, effective_from, effective_to, is_current)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, true)`,
		snap.ID, snap.HcpID, snap.DiseaseAreaID, segJSON,
		snap.ScoreSurvey, snap.ScoreComposite, snap.CampaignCount, snap.NominationCount,
		snap.EffectiveFrom,
	)
	if isPgUnique(err) {
		return &model.ConflictError{Entity: "disease_area_score", Detail: "concurrent publish for hcp " + snap.HcpID}
	}
	if err != nil {
		return eris.Wrap(err, "postgres: insert snapshot")
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit publish")
	}
	snap.IsCurrent = true
	snap.EffectiveTo = nil
	return nil
}

func (s *PostgresStore) GetCurrentSnapshot(ctx context.Context, hcpID, diseaseAreaID string) (*model.HcpDiseaseAreaScore, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, hcp_id, disease_area_id, segments, score_survey, score_composite, campaign_count, nomination_count, effective_from, effective_to, is_current
		 FROM disease_area_scores
		 WHERE hcp_id = $1 AND disease_area_id = $2 AND is_current`,
		hcpID, diseaseAreaID,
	)
	snap, err := scanPgSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &model.NotFoundError{Entity: "disease_area_score", ID: hcpID + "/" + diseaseAreaID}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get current snapshot for hcp %s", hcpID)
	}
	return snap, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, hcpID, diseaseAreaID string) ([]model.HcpDiseaseAreaScore, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, hcp_id, disease_area_id, segments, score_survey, score_composite, campaign_count, nomination_count, effective_from, effective_to, is_current
		 FROM disease_area_scores
		 WHERE hcp_id = $1 AND disease_area_id = $2
		 ORDER BY effective_from DESC, id`,
		hcpID, diseaseAreaID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list snapshots for hcp %s", hcpID)
	}
	defer rows.Close()

	var snaps []model.HcpDiseaseAreaScore
	for rows.Next() {
		snap, err := scanPgSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

func scanPgSnapshot(row pgx.Row) (*model.HcpDiseaseAreaScore, error) {
	var snap model.HcpDiseaseAreaScore
	var segJSON []byte
	var effectiveTo *time.Time
	err := row.Scan(&snap.ID, &snap.HcpID, &snap.DiseaseAreaID, &segJSON,
		&snap.ScoreSurvey, &snap.ScoreComposite, &snap.CampaignCount, &snap.NominationCount,
		&snap.EffectiveFrom, &effectiveTo, &snap.IsCurrent)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(segJSON, &snap.Segments); err != nil {
		return nil, err
	}
	snap.EffectiveTo = effectiveTo
	return &snap, nil
}
