package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/kolscout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS hcps (
	id         TEXT PRIMARY KEY,
	npi        TEXT NOT NULL UNIQUE,
	first_name TEXT NOT NULL,
	last_name  TEXT NOT NULL,
	specialty  TEXT NOT NULL DEFAULT '',
	city       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	active     INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS hcp_aliases (
	id         TEXT PRIMARY KEY,
	hcp_id     TEXT NOT NULL REFERENCES hcps(id),
	alias_text TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(hcp_id, alias_text)
);

CREATE TABLE IF NOT EXISTS campaigns (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	disease_area_id TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS nominations (
	id             TEXT PRIMARY KEY,
	campaign_id    TEXT NOT NULL REFERENCES campaigns(id),
	question_id    TEXT NOT NULL,
	raw_name       TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'unmatched',
	hcp_id         TEXT REFERENCES hcps(id),
	resolved_by    TEXT NOT NULL DEFAULT '',
	resolved_at    DATETIME,
	exclude_reason TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS score_configs (
	campaign_id TEXT PRIMARY KEY REFERENCES campaigns(id),
	weights     TEXT NOT NULL,
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS campaign_scores (
	id               TEXT PRIMARY KEY,
	campaign_id      TEXT NOT NULL REFERENCES campaigns(id),
	hcp_id           TEXT NOT NULL REFERENCES hcps(id),
	type_counts      TEXT NOT NULL,
	type_scores      TEXT NOT NULL,
	score_survey     REAL NOT NULL,
	nomination_count INTEGER NOT NULL,
	score_composite  REAL NOT NULL,
	calculated_at    DATETIME NOT NULL,
	published_at     DATETIME,
	UNIQUE(campaign_id, hcp_id)
);

CREATE TABLE IF NOT EXISTS segment_scores (
	id              TEXT PRIMARY KEY,
	hcp_id          TEXT NOT NULL REFERENCES hcps(id),
	disease_area_id TEXT NOT NULL,
	segments        TEXT NOT NULL,
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(hcp_id, disease_area_id)
);

CREATE TABLE IF NOT EXISTS disease_area_scores (
	id               TEXT PRIMARY KEY,
	hcp_id           TEXT NOT NULL REFERENCES hcps(id),
	disease_area_id  TEXT NOT NULL,
	segments         TEXT NOT NULL,
	score_survey     REAL NOT NULL,
	score_composite  REAL NOT NULL,
	campaign_count   INTEGER NOT NULL,
	nomination_count INTEGER NOT NULL,
	effective_from   DATETIME NOT NULL,
	effective_to     DATETIME,
	is_current       INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_hcp_aliases_hcp_id ON hcp_aliases(hcp_id);
CREATE INDEX IF NOT EXISTS idx_nominations_campaign_id ON nominations(campaign_id);
CREATE INDEX IF NOT EXISTS idx_nominations_status ON nominations(status);
CREATE INDEX IF NOT EXISTS idx_campaign_scores_campaign_id ON campaign_scores(campaign_id);
CREATE INDEX IF NOT EXISTS idx_disease_area_scores_pair ON disease_area_scores(hcp_id, disease_area_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_disease_area_scores_current
	ON disease_area_scores(hcp_id, disease_area_id) WHERE is_current = 1;
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isSQLiteUnique reports whether err is a unique constraint violation.
// modernc.org/sqlite does not export a typed error for this.
func isSQLiteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- HCPs ---

func (s *SQLiteStore) CreateHcp(ctx context.Context, h *model.HCP) error {
	if err := h.Validate(); err != nil {
		return err
	}
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	h.CreatedAt, h.UpdatedAt = now, now
	h.Active = true

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hcps (id, npi, first_name, last_name, specialty, city, state, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		h.ID, h.NPI, h.FirstName, h.LastName, h.Specialty, h.City, h.State, now, now,
	)
	if isSQLiteUnique(err) {
		return &model.ConflictError{Entity: "hcp", Detail: "npi " + h.NPI + " already registered"}
	}
	return eris.Wrap(err, "sqlite: insert hcp")
}

func (s *SQLiteStore) GetHcp(ctx context.Context, id string) (*model.HCP, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, npi, first_name, last_name, specialty, city, state, active, created_at, updated_at
		 FROM hcps WHERE id = ?`, id,
	)
	h, err := scanHcp(row)
	if err == sql.ErrNoRows {
		return nil, &model.NotFoundError{Entity: "hcp", ID: id}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get hcp %s", id)
	}
	h.Aliases, err = s.ListAliases(ctx, h.ID)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (s *SQLiteStore) GetHcpByNPI(ctx context.Context, npi string) (*model.HCP, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, npi, first_name, last_name, specialty, city, state, active, created_at, updated_at
		 FROM hcps WHERE npi = ?`, npi,
	)
	h, err := scanHcp(row)
	if err == sql.ErrNoRows {
		return nil, &model.NotFoundError{Entity: "hcp", ID: npi}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get hcp by npi %s", npi)
	}
	h.Aliases, err = s.ListAliases(ctx, h.ID)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (s *SQLiteStore) ListHcps(ctx context.Context, filter HcpFilter) ([]model.HCP, error) {
	query := `SELECT id, npi, first_name, last_name, specialty, city, state, active, created_at, updated_at
		 FROM hcps WHERE 1=1`
	var args []any

	if filter.ActiveOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY npi`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list hcps")
	}
	defer rows.Close()

	var hcps []model.HCP
	for rows.Next() {
		h, err := scanHcp(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan hcp")
		}
		hcps = append(hcps, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list hcps iterate")
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

func (s *SQLiteStore) DeactivateHcp(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE hcps SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: deactivate hcp %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return &model.NotFoundError{Entity: "hcp", ID: id}
	}
	return nil
}

func (s *SQLiteStore) AddAlias(ctx context.Context, hcpID, text string) (bool, error) {
	if _, err := s.GetHcp(ctx, hcpID); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO hcp_aliases (id, hcp_id, alias_text, created_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), hcpID, text, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: add alias for hcp %s", hcpID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListAliases(ctx context.Context, hcpID string) ([]model.Alias, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hcp_id, alias_text, created_at FROM hcp_aliases WHERE hcp_id = ? ORDER BY created_at, alias_text`,
		hcpID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list aliases for hcp %s", hcpID)
	}
	defer rows.Close()

	var aliases []model.Alias
	for rows.Next() {
		var a model.Alias
		if err := rows.Scan(&a.ID, &a.HcpID, &a.Text, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan alias")
		}
		aliases = append(aliases, a)
	}
	return aliases, eris.Wrap(rows.Err(), "sqlite: list aliases iterate")
}

// --- Nominations ---

func (s *SQLiteStore) CreateNomination(ctx context.Context, n *model.Nomination) error {
	if err := model.ValidateRawName(n.RawName); err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.Status = model.NominationUnmatched
	n.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nominations (id, campaign_id, question_id, raw_name, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.CampaignID, n.QuestionID, n.RawName, string(n.Status), n.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert nomination")
}

func (s *SQLiteStore) GetNomination(ctx context.Context, id string) (*model.Nomination, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, campaign_id, question_id, raw_name, status, hcp_id, resolved_by, resolved_at, exclude_reason, created_at
		 FROM nominations WHERE id = ?`, id,
	)
	n, err := scanNomination(row)
	if err == sql.ErrNoRows {
		return nil, &model.NotFoundError{Entity: "nomination", ID: id}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get nomination %s", id)
	}
	return n, nil
}

func (s *SQLiteStore) ListNominations(ctx context.Context, filter NominationFilter) ([]model.Nomination, error) {
	query := `SELECT id, campaign_id, question_id, raw_name, status, hcp_id, resolved_by, resolved_at, exclude_reason, created_at
		 FROM nominations WHERE 1=1`
	var args []any

	if filter.CampaignID != "" {
		query += ` AND campaign_id = ?`
		args = append(args, filter.CampaignID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list nominations")
	}
	defer rows.Close()

	var noms []model.Nomination
	for rows.Next() {
		n, err := scanNomination(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan nomination")
		}
		noms = append(noms, *n)
	}
	return noms, eris.Wrap(rows.Err(), "sqlite: list nominations iterate")
}

func (s *SQLiteStore) ResolveNomination(ctx context.Context, id string, res model.Resolution) error {
	var hcpID any
	if res.HcpID != nil {
		hcpID = *res.HcpID
	}
	r, err := s.db.ExecContext(ctx,
		`UPDATE nominations
		 SET status = ?, hcp_id = ?, resolved_by = ?, resolved_at = ?, exclude_reason = ?
		 WHERE id = ? AND status = 'unmatched'`,
		string(res.Status), hcpID, res.ResolvedBy, res.ResolvedAt, res.ExcludeReason, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: resolve nomination %s", id)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		// Distinguish a missing nomination from an already-resolved one.
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

func (s *SQLiteStore) CreateCampaign(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, name, disease_area_id, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.DiseaseAreaID, c.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert campaign")
}

func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, disease_area_id, created_at FROM campaigns WHERE id = ?`, id,
	)
	var c model.Campaign
	err := row.Scan(&c.ID, &c.Name, &c.DiseaseAreaID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &model.NotFoundError{Entity: "campaign", ID: id}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get campaign %s", id)
	}
	return &c, nil
}

func (s *SQLiteStore) ListCampaigns(ctx context.Context) ([]model.Campaign, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, disease_area_id, created_at FROM campaigns ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list campaigns")
	}
	defer rows.Close()

	var campaigns []model.Campaign
	for rows.Next() {
		var c model.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.DiseaseAreaID, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan campaign")
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, eris.Wrap(rows.Err(), "sqlite: list campaigns iterate")
}

// --- Score configs ---

func (s *SQLiteStore) SaveScoreConfig(ctx context.Context, cfg *model.CompositeScoreConfig) error {
	if err := cfg.Weights.Validate(); err != nil {
		return err
	}
	weightsJSON, err := json.Marshal(cfg.Weights)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal weights")
	}
	cfg.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO score_configs (campaign_id, weights, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(campaign_id) DO UPDATE SET weights = excluded.weights, updated_at = excluded.updated_at`,
		cfg.CampaignID, string(weightsJSON), cfg.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: save score config for campaign %s", cfg.CampaignID)
}

func (s *SQLiteStore) GetScoreConfig(ctx context.Context, campaignID string) (*model.CompositeScoreConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT campaign_id, weights, updated_at FROM score_configs WHERE campaign_id = ?`,
		campaignID,
	)
	var cfg model.CompositeScoreConfig
	var weightsJSON string
	err := row.Scan(&cfg.CampaignID, &weightsJSON, &cfg.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get score config for campaign %s", campaignID)
	}
	if err := json.Unmarshal([]byte(weightsJSON), &cfg.Weights); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal weights")
	}
	return &cfg, nil
}

func (s *SQLiteStore) DeleteScoreConfig(ctx context.Context, campaignID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM score_configs WHERE campaign_id = ?`, campaignID,
	)
	return eris.Wrapf(err, "sqlite: delete score config for campaign %s", campaignID)
}

// --- Campaign scores ---

func (s *SQLiteStore) UpsertCampaignScore(ctx context.Context, sc *model.HcpCampaignScore) error {
	if sc.ID == "" {
		sc.ID = uuid.New().String()
	}
	countsJSON, err := json.Marshal(sc.TypeCounts)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal type counts")
	}
	scoresJSON, err := json.Marshal(sc.TypeScores)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal type scores")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO campaign_scores
			(id, campaign_id, hcp_id, type_counts, type_scores, score_survey, nomination_count, score_composite, calculated_at, published_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
		 ON CONFLICT(campaign_id, hcp_id) DO UPDATE SET
			type_counts = excluded.type_counts,
			type_scores = excluded.type_scores,
			score_survey = excluded.score_survey,
			nomination_count = excluded.nomination_count,
			score_composite = excluded.score_composite,
			calculated_at = excluded.calculated_at,
			published_at = NULL`,
		sc.ID, sc.CampaignID, sc.HcpID, string(countsJSON), string(scoresJSON),
		sc.ScoreSurvey, sc.NominationCount, sc.ScoreComposite, sc.CalculatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert campaign score for hcp %s", sc.HcpID)
}

func (s *SQLiteStore) ListCampaignScores(ctx context.Context, campaignID string) ([]model.HcpCampaignScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, campaign_id, hcp_id, type_counts, type_scores, score_survey, nomination_count, score_composite, calculated_at, published_at
		 FROM campaign_scores WHERE campaign_id = ?
		 ORDER BY score_composite DESC, hcp_id`,
		campaignID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list campaign scores %s", campaignID)
	}
	defer rows.Close()

	var scores []model.HcpCampaignScore
	for rows.Next() {
		var sc model.HcpCampaignScore
		var countsJSON, scoresJSON string
		var publishedAt sql.NullTime
		err := rows.Scan(&sc.ID, &sc.CampaignID, &sc.HcpID, &countsJSON, &scoresJSON,
			&sc.ScoreSurvey, &sc.NominationCount, &sc.ScoreComposite, &sc.CalculatedAt, &publishedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan campaign score")
		}
		if err := json.Unmarshal([]byte(countsJSON), &sc.TypeCounts); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal type counts")
		}
		if err := json.Unmarshal([]byte(scoresJSON), &sc.TypeScores); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal type scores")
		}
		if publishedAt.Valid {
			t := publishedAt.Time
			sc.PublishedAt = &t
		}
		scores = append(scores, sc)
	}
	return scores, eris.Wrap(rows.Err(), "sqlite: list campaign scores iterate")
}

func (s *SQLiteStore) PublishCampaignScores(ctx context.Context, campaignID string, at time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaign_scores SET published_at = ? WHERE campaign_id = ?`,
		at, campaignID,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: publish campaign scores %s", campaignID)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// --- Segment scores ---

func (s *SQLiteStore) UpsertSegmentScores(ctx context.Context, hcpID, diseaseAreaID string, seg model.SegmentScores) error {
	segJSON, err := json.Marshal(seg)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal segments")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO segment_scores (id, hcp_id, disease_area_id, segments, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(hcp_id, disease_area_id) DO UPDATE SET segments = excluded.segments, updated_at = excluded.updated_at`,
		uuid.New().String(), hcpID, diseaseAreaID, string(segJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert segment scores for hcp %s", hcpID)
}

func (s *SQLiteStore) GetSegmentScores(ctx context.Context, hcpID, diseaseAreaID string) (*model.SegmentScores, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT segments FROM segment_scores WHERE hcp_id = ? AND disease_area_id = ?`,
		hcpID, diseaseAreaID,
	)
	var segJSON string
	err := row.Scan(&segJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get segment scores for hcp %s", hcpID)
	}
	var seg model.SegmentScores
	if err := json.Unmarshal([]byte(segJSON), &seg); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal segments")
	}
	return &seg, nil
}

// --- Disease-area snapshots ---

func (s *SQLiteStore) PublishSnapshot(ctx context.Context, snap *model.HcpDiseaseAreaScore) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	segJSON, err := json.Marshal(snap.Segments)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal segments")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin publish")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE disease_area_scores SET is_current = 0, effective_to = ?
		 WHERE hcp_id = ? AND disease_area_id = ? AND is_current = 1`,
		snap.EffectiveFrom, snap.HcpID, snap.DiseaseAreaID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: close current snapshot")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO disease_area_scores
			(id, hcp_id, disease_area_id, segments, score_survey, score_composite, campaign_count, nomination_count, effective_from, effective_to, is_current)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, 1)`,
		snap.ID, snap.HcpID, snap.DiseaseAreaID, string(segJSON),
		snap.ScoreSurvey, snap.ScoreComposite, snap.CampaignCount, snap.NominationCount,
		snap.EffectiveFrom,
	)
	if isSQLiteUnique(err) {
		return &model.ConflictError{Entity: "disease_area_score", Detail: "concurrent publish for hcp " + snap.HcpID}
	}
	if err != nil {
		return eris.Wrap(err, "sqlite: insert snapshot")
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit publish")
	}
	snap.IsCurrent = true
	snap.EffectiveTo = nil
	return nil
}

func (s *SQLiteStore) GetCurrentSnapshot(ctx context.Context, hcpID, diseaseAreaID string) (*model.HcpDiseaseAreaScore, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, hcp_id, disease_area_id, segments, score_survey, score_composite, campaign_count, nomination_count, effective_from, effective_to, is_current
		 FROM disease_area_scores
		 WHERE hcp_id = ? AND disease_area_id = ? AND is_current = 1`,
		hcpID, diseaseAreaID,
	)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, &model.NotFoundError{Entity: "disease_area_score", ID: hcpID + "/" + diseaseAreaID}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get current snapshot for hcp %s", hcpID)
	}
	return snap, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, hcpID, diseaseAreaID string) ([]model.HcpDiseaseAreaScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hcp_id, disease_area_id, segments, score_survey, score_composite, campaign_count, nomination_count, effective_from, effective_to, is_current
		 FROM disease_area_scores
		 WHERE hcp_id = ? AND disease_area_id = ?
		 ORDER BY effective_from DESC, id`,
		hcpID, diseaseAreaID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list snapshots for hcp %s", hcpID)
	}
	defer rows.Close()

	var snaps []model.HcpDiseaseAreaScore
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		snaps = append(snaps, *snap)
	}
	return snaps, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanHcp(row scannable) (*model.HCP, error) {
	var h model.HCP
	err := row.Scan(&h.ID, &h.NPI, &h.FirstName, &h.LastName, &h.Specialty, &h.City, &h.State,
		&h.Active, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func scanNomination(row scannable) (*model.Nomination, error) {
	var n model.Nomination
	var hcpID sql.NullString
	var resolvedAt sql.NullTime
	err := row.Scan(&n.ID, &n.CampaignID, &n.QuestionID, &n.RawName, &n.Status,
		&hcpID, &n.ResolvedBy, &resolvedAt, &n.ExcludeReason, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	if hcpID.Valid {
		v := hcpID.String
		n.HcpID = &v
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		n.ResolvedAt = &t
	}
	return &n, nil
}

func scanSnapshot(row scannable) (*model.HcpDiseaseAreaScore, error) {
	var snap model.HcpDiseaseAreaScore
	var segJSON string
	var effectiveTo sql.NullTime
	err := row.Scan(&snap.ID, &snap.HcpID, &snap.DiseaseAreaID, &segJSON,
		&snap.ScoreSurvey, &snap.ScoreComposite, &snap.CampaignCount, &snap.NominationCount,
		&snap.EffectiveFrom, &effectiveTo, &snap.IsCurrent)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(segJSON), &snap.Segments); err != nil {
		return nil, err
	}
	if effectiveTo.Valid {
		t := effectiveTo.Time
		snap.EffectiveTo = &t
	}
	return &snap, nil
}
