package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hubnet/models"
)

// InfractionDB handles blacklist persistence.
type InfractionDB struct {
	db *sql.DB
}

func NewInfractionDB(db *sql.DB) *InfractionDB {
	return &InfractionDB{db: db}
}

const infractionColumns = `id, target_id, target_type, hub_id, status, reason, moderator_id, created_at, expires_at, appealed_at`

// Insert stores a new infraction.
func (d *InfractionDB) Insert(ctx context.Context, inf *models.Infraction) error {
	_, err := d.db.ExecContext(ctx, `INSERT INTO infractions (`+infractionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inf.ID, inf.TargetID, string(inf.TargetType), inf.HubID, string(inf.Status), inf.Reason, inf.ModeratorID,
		millis(inf.CreatedAt), nullMillis(inf.ExpiresAt), nullMillis(inf.AppealedAt))
	if err != nil {
		return fmt.Errorf("failed to insert infraction %s: %w", inf.ID, err)
	}
	return nil
}

// Get fetches an infraction by id.
func (d *InfractionDB) Get(ctx context.Context, id string) (*models.Infraction, error) {
	infs, err := d.query(ctx, `SELECT `+infractionColumns+` FROM infractions WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(infs) == 0 {
		return nil, ErrNotFound
	}
	return infs[0], nil
}

// FindActive returns the newest ACTIVE, unexpired infraction for the target in
// a hub, or ErrNotFound.
func (d *InfractionDB) FindActive(ctx context.Context, hubID string, targetType models.TargetType, targetID string, now time.Time) (*models.Infraction, error) {
	infs, err := d.query(ctx, `SELECT `+infractionColumns+` FROM infractions
        WHERE hub_id = ? AND target_type = ? AND target_id = ? AND status = ?
          AND (expires_at IS NULL OR expires_at > ?)
        ORDER BY created_at DESC LIMIT 1`,
		hubID, string(targetType), targetID, string(models.InfractionActive), millis(now))
	if err != nil {
		return nil, err
	}
	if len(infs) == 0 {
		return nil, ErrNotFound
	}
	return infs[0], nil
}

// LastAppealedAt returns the most recent appeal time for the target in a hub.
func (d *InfractionDB) LastAppealedAt(ctx context.Context, hubID string, targetType models.TargetType, targetID string) (*time.Time, error) {
	var last sql.NullInt64
	err := d.db.QueryRowContext(ctx, `SELECT MAX(appealed_at) FROM infractions WHERE hub_id = ? AND target_type = ? AND target_id = ?`,
		hubID, string(targetType), targetID).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to query last appeal: %w", err)
	}
	return fromNullMillis(last), nil
}

// SetStatus moves an infraction to status. appealedAt is written only when
// non-nil.
func (d *InfractionDB) SetStatus(ctx context.Context, id string, status models.InfractionStatus, appealedAt *time.Time) error {
	var (
		res sql.Result
		err error
	)
	if appealedAt != nil {
		res, err = d.db.ExecContext(ctx, `UPDATE infractions SET status = ?, appealed_at = ? WHERE id = ?`, string(status), nullMillis(appealedAt), id)
	} else {
		res, err = d.db.ExecContext(ctx, `UPDATE infractions SET status = ? WHERE id = ?`, string(status), id)
	}
	if err != nil {
		return fmt.Errorf("failed to update infraction %s: %w", id, err)
	}
	return expectRow(res)
}

// ListExpired returns ACTIVE infractions whose expiry is at or before now.
func (d *InfractionDB) ListExpired(ctx context.Context, now time.Time) ([]*models.Infraction, error) {
	return d.query(ctx, `SELECT `+infractionColumns+` FROM infractions
        WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?
        ORDER BY expires_at ASC`, string(models.InfractionActive), millis(now))
}

// ListByHub returns every infraction of a hub, newest first.
func (d *InfractionDB) ListByHub(ctx context.Context, hubID string) ([]*models.Infraction, error) {
	return d.query(ctx, `SELECT `+infractionColumns+` FROM infractions WHERE hub_id = ? ORDER BY created_at DESC`, hubID)
}

func (d *InfractionDB) query(ctx context.Context, q string, args ...any) ([]*models.Infraction, error) {
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query infractions: %w", err)
	}
	defer rows.Close()

	var out []*models.Infraction
	for rows.Next() {
		var (
			inf                models.Infraction
			targetType, status string
			created            int64
			expires, appealed  sql.NullInt64
		)
		if err := rows.Scan(&inf.ID, &inf.TargetID, &targetType, &inf.HubID, &status, &inf.Reason, &inf.ModeratorID,
			&created, &expires, &appealed); err != nil {
			return nil, fmt.Errorf("failed to scan infraction: %w", err)
		}
		inf.TargetType = models.TargetType(targetType)
		inf.Status = models.InfractionStatus(status)
		inf.CreatedAt = fromMillis(created)
		inf.ExpiresAt = fromNullMillis(expires)
		inf.AppealedAt = fromNullMillis(appealed)
		out = append(out, &inf)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return out, nil
}
