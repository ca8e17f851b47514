package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hubnet/models"
)

// HubDB handles hub persistence.
type HubDB struct {
	db *sql.DB
}

func NewHubDB(db *sql.DB) *HubDB {
	return &HubDB{db: db}
}

const hubColumns = `id, name, owner_id, icon_url, visibility, settings, appeal_cooldown, created_at`

// Create inserts a new hub.
func (h *HubDB) Create(ctx context.Context, hub *models.Hub) error {
	_, err := h.db.ExecContext(ctx, `INSERT INTO hubs (`+hubColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		hub.ID, hub.Name, hub.OwnerID, hub.IconURL, string(hub.Visibility), int64(hub.Settings),
		int64(hub.AppealCooldown/time.Second), millis(hub.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert hub %s: %w", hub.ID, err)
	}
	return nil
}

// Update overwrites the mutable hub fields.
func (h *HubDB) Update(ctx context.Context, hub *models.Hub) error {
	res, err := h.db.ExecContext(ctx, `UPDATE hubs SET name = ?, owner_id = ?, icon_url = ?, visibility = ?, settings = ?, appeal_cooldown = ? WHERE id = ?`,
		hub.Name, hub.OwnerID, hub.IconURL, string(hub.Visibility), int64(hub.Settings),
		int64(hub.AppealCooldown/time.Second), hub.ID)
	if err != nil {
		return fmt.Errorf("failed to update hub %s: %w", hub.ID, err)
	}
	return expectRow(res)
}

// Delete removes a hub; its connections go with it.
func (h *HubDB) Delete(ctx context.Context, id string) error {
	res, err := h.db.ExecContext(ctx, `DELETE FROM hubs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete hub %s: %w", id, err)
	}
	return expectRow(res)
}

// Get fetches a hub by id.
func (h *HubDB) Get(ctx context.Context, id string) (*models.Hub, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+hubColumns+` FROM hubs WHERE id = ?`, id)
	return scanHub(row)
}

// GetByName fetches a hub by its unique name.
func (h *HubDB) GetByName(ctx context.Context, name string) (*models.Hub, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+hubColumns+` FROM hubs WHERE name = ?`, name)
	return scanHub(row)
}

func scanHub(row *sql.Row) (*models.Hub, error) {
	var (
		hub        models.Hub
		visibility string
		settings   int64
		cooldown   int64
		created    int64
	)
	err := row.Scan(&hub.ID, &hub.Name, &hub.OwnerID, &hub.IconURL, &visibility, &settings, &cooldown, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan hub: %w", err)
	}
	hub.Visibility = models.Visibility(visibility)
	hub.Settings = models.HubSettings(settings)
	hub.AppealCooldown = time.Duration(cooldown) * time.Second
	hub.CreatedAt = fromMillis(created)
	return &hub, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
