package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spigell/jobscan/internal/domain"
	"github.com/spigell/jobscan/internal/pipeline"
)

// StoredMatch is one persisted result joined with its batch.
type StoredMatch struct {
	BatchID          string            `json:"batch_id"`
	ProcessingMethod string            `json:"processing_method"`
	CreatedAt        time.Time         `json:"created_at"`
	Rank             int               `json:"rank"`
	URL              string            `json:"url"`
	Title            string            `json:"title"`
	Company          string            `json:"company"`
	Score            int               `json:"score"`
	Tier             domain.Tier       `json:"tier"`
	Confidence       domain.Confidence `json:"confidence"`
	MatchingSkills   []string          `json:"matching_skills"`
	MissingSkills    []string          `json:"missing_skills"`
	Narrative        string            `json:"narrative"`
}

// SaveBatch stores the batch and its results in one transaction.
func (d *DB) SaveBatch(ctx context.Context, identity string, b pipeline.Batch) error {
	stats, err := json.Marshal(b.ExtractionStats)
	if err != nil {
		return fmt.Errorf("encode extraction stats: %w", err)
	}

	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	created := b.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO batches (id, identity, processing_method, tier, degraded, degrade_reason, elapsed_ms, extraction_stats, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		b.ID, identity, b.ProcessingMethod, string(b.Tier), boolInt(b.Degraded), b.DegradeReason,
		b.Elapsed.Milliseconds(), string(stats), created.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	for _, r := range b.Results {
		matching, err := json.Marshal(nonNil(r.MatchingSkills))
		if err != nil {
			return fmt.Errorf("encode matching skills: %w", err)
		}
		missing, err := json.Marshal(nonNil(r.MissingSkills))
		if err != nil {
			return fmt.Errorf("encode missing skills: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO matches (id, batch_id, rank, url, title, company, score, tier, confidence, matching_skills, missing_skills, narrative)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
			r.ID, b.ID, r.Rank, r.Job.URL, r.Job.DisplayTitle(), r.Job.DisplayCompany(), r.MatchScore,
			string(r.ScoringTier), string(r.Confidence), string(matching), string(missing), r.Narrative,
		); err != nil {
			return fmt.Errorf("insert match %s: %w", r.Job.URL, err)
		}
	}

	return tx.Commit()
}

// RecentMatches lists matches of the latest batches of identity, newest batch first.
// An empty identity lists every identity.
func (d *DB) RecentMatches(ctx context.Context, identity string, limit int) ([]StoredMatch, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := d.Pool.QueryContext(ctx, `
SELECT b.id, b.processing_method, b.created_at,
       m.rank, m.url, m.title, m.company, m.score, m.tier, m.confidence,
       m.matching_skills, m.missing_skills, m.narrative
FROM matches m
JOIN batches b ON b.id = m.batch_id
WHERE (? = '' OR b.identity = ?)
ORDER BY b.created_at DESC, m.rank ASC
LIMIT ?;`, identity, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	out := make([]StoredMatch, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}

	return out, nil
}

func scanMatch(rows *sql.Rows) (StoredMatch, error) {
	var (
		m                 StoredMatch
		created           string
		tier, confidence  string
		matching, missing string
	)
	if err := rows.Scan(&m.BatchID, &m.ProcessingMethod, &created,
		&m.Rank, &m.URL, &m.Title, &m.Company, &m.Score, &tier, &confidence,
		&matching, &missing, &m.Narrative); err != nil {
		return StoredMatch{}, fmt.Errorf("scan match: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return StoredMatch{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	m.CreatedAt = t
	m.Tier = domain.Tier(tier)
	m.Confidence = domain.Confidence(confidence)

	if err := json.Unmarshal([]byte(matching), &m.MatchingSkills); err != nil {
		return StoredMatch{}, fmt.Errorf("decode matching skills: %w", err)
	}
	if err := json.Unmarshal([]byte(missing), &m.MissingSkills); err != nil {
		return StoredMatch{}, fmt.Errorf("decode missing skills: %w", err)
	}

	return m, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
