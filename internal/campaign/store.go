package campaign

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store provides database operations for campaigns.
type Store struct {
	db *sql.DB
}

// NewStore creates a campaign store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new draft campaign.
func (s *Store) Create(ctx context.Context, c *Campaign) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = StatusDraft
	}

	query := `INSERT INTO phish_campaigns (id, name, template_id, target_groups, schedule, batch,
		status, launched_at, next_dispatch_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	var batch interface{}
	if c.Batch != nil {
		batch = *c.Batch
	}
	_, err := s.db.ExecContext(ctx, query, c.ID, c.Name, c.TemplateID, pq.Array(c.TargetGroups),
		c.Schedule, batch, c.Status, c.LaunchedAt, c.NextDispatchAt, c.CreatedAt, c.UpdatedAt)
	return err
}

// Get retrieves a campaign by ID. Returns (nil, nil) when not found.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	query := `SELECT id, name, template_id, target_groups, schedule, batch, status,
		launched_at, next_dispatch_at, created_at, updated_at
		FROM phish_campaigns WHERE id = $1`

	c := &Campaign{}
	var batch BatchConfig
	var batchRaw []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.TemplateID, pq.Array(&c.TargetGroups), &c.Schedule, &batchRaw,
		&c.Status, &c.LaunchedAt, &c.NextDispatchAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(batchRaw) > 0 {
		if err := batch.Scan(batchRaw); err != nil {
			return nil, err
		}
		c.Batch = &batch
	}
	return c, nil
}

// Exists reports whether a campaign with the given ID is stored.
func (s *Store) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM phish_campaigns WHERE id = $1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List retrieves campaigns ordered by creation time, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Campaign, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, name, template_id, target_groups, schedule, batch, status,
		launched_at, next_dispatch_at, created_at, updated_at
		FROM phish_campaigns ORDER BY created_at DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCampaigns(rows)
}

// Due retrieves launched campaigns whose next dispatch has arrived.
// Scheduled campaigns are picked up for activation, active recurring
// campaigns for their next occurrence.
func (s *Store) Due(ctx context.Context, now time.Time, limit int) ([]*Campaign, error) {
	query := `SELECT id, name, template_id, target_groups, schedule, batch, status,
		launched_at, next_dispatch_at, created_at, updated_at
		FROM phish_campaigns
		WHERE status IN ($1, $2) AND next_dispatch_at IS NOT NULL AND next_dispatch_at <= $3
		ORDER BY next_dispatch_at ASC LIMIT $4`

	rows, err := s.db.QueryContext(ctx, query, StatusScheduled, StatusActive, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCampaigns(rows)
}

// UpdateStatus persists a status change.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE phish_campaigns SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

// SaveDispatchState persists the scheduler-maintained fields after a
// dispatch pass: status, launch time and the next dispatch instant.
func (s *Store) SaveDispatchState(ctx context.Context, c *Campaign) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE phish_campaigns SET status = $1, launched_at = $2, next_dispatch_at = $3, updated_at = NOW()
		WHERE id = $4`, c.Status, c.LaunchedAt, c.NextDispatchAt, c.ID)
	return err
}

// IDs returns the IDs of all campaigns, used to seed the funnel
// tracker's known-campaign registry.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM phish_campaigns`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanCampaigns(rows *sql.Rows) ([]*Campaign, error) {
	var out []*Campaign
	for rows.Next() {
		c := &Campaign{}
		var batch BatchConfig
		var batchRaw []byte
		err := rows.Scan(&c.ID, &c.Name, &c.TemplateID, pq.Array(&c.TargetGroups), &c.Schedule,
			&batchRaw, &c.Status, &c.LaunchedAt, &c.NextDispatchAt, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if len(batchRaw) > 0 {
			if err := batch.Scan(batchRaw); err != nil {
				return nil, err
			}
			b := batch
			c.Batch = &b
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
