package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hubnet/models"
)

// ConnectionDB handles channel↔hub membership persistence.
type ConnectionDB struct {
	db *sql.DB
}

func NewConnectionDB(db *sql.DB) *ConnectionDB {
	return &ConnectionDB{db: db}
}

const connectionColumns = `id, hub_id, server_id, channel_id, parent_id, webhook_url, connected, compact, profanity_filter, embed_color, last_active_at, created_at`

// Create inserts a connection. A channel already connected to any hub fails
// the unique constraint on channel_id.
func (c *ConnectionDB) Create(ctx context.Context, conn *models.Connection) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO connections (`+connectionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conn.ID, conn.HubID, conn.ServerID, conn.ChannelID, conn.ParentID, conn.WebhookURL,
		boolInt(conn.Connected), boolInt(conn.Compact), boolInt(conn.ProfanityFilter), conn.EmbedColor,
		millis(conn.LastActiveAt), millis(conn.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert connection for channel %s: %w", conn.ChannelID, err)
	}
	return nil
}

// Update overwrites the mutable fields of the connection for conn.ChannelID.
func (c *ConnectionDB) Update(ctx context.Context, conn *models.Connection) error {
	res, err := c.db.ExecContext(ctx, `UPDATE connections SET parent_id = ?, webhook_url = ?, connected = ?, compact = ?, profanity_filter = ?, embed_color = ? WHERE channel_id = ?`,
		conn.ParentID, conn.WebhookURL, boolInt(conn.Connected), boolInt(conn.Compact),
		boolInt(conn.ProfanityFilter), conn.EmbedColor, conn.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to update connection for channel %s: %w", conn.ChannelID, err)
	}
	return expectRow(res)
}

// SetConnected flips the connected flag.
func (c *ConnectionDB) SetConnected(ctx context.Context, channelID string, connected bool) error {
	res, err := c.db.ExecContext(ctx, `UPDATE connections SET connected = ? WHERE channel_id = ?`, boolInt(connected), channelID)
	if err != nil {
		return fmt.Errorf("failed to set connected for channel %s: %w", channelID, err)
	}
	return expectRow(res)
}

// Touch records activity on a channel.
func (c *ConnectionDB) Touch(ctx context.Context, channelID string, at time.Time) error {
	_, err := c.db.ExecContext(ctx, `UPDATE connections SET last_active_at = ? WHERE channel_id = ?`, millis(at), channelID)
	if err != nil {
		return fmt.Errorf("failed to touch connection for channel %s: %w", channelID, err)
	}
	return nil
}

// Delete removes the connection for a channel.
func (c *ConnectionDB) Delete(ctx context.Context, channelID string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM connections WHERE channel_id = ?`, channelID)
	if err != nil {
		return fmt.Errorf("failed to delete connection for channel %s: %w", channelID, err)
	}
	return expectRow(res)
}

// GetByChannel fetches the connection for a channel.
func (c *ConnectionDB) GetByChannel(ctx context.Context, channelID string) (*models.Connection, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE channel_id = ?`, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connection for channel %s: %w", channelID, err)
	}
	conns, err := scanConnections(rows)
	if err != nil {
		return nil, err
	}
	if len(conns) == 0 {
		return nil, ErrNotFound
	}
	return conns[0], nil
}

// ListByHub returns every connection of a hub, most recently active first.
func (c *ConnectionDB) ListByHub(ctx context.Context, hubID string) ([]*models.Connection, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE hub_id = ? ORDER BY last_active_at DESC, created_at ASC`, hubID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections for hub %s: %w", hubID, err)
	}
	return scanConnections(rows)
}

func scanConnections(rows *sql.Rows) ([]*models.Connection, error) {
	defer rows.Close()

	var out []*models.Connection
	for rows.Next() {
		var (
			conn                         models.Connection
			connected, compact, profFilt int
			lastActive, created          int64
		)
		if err := rows.Scan(&conn.ID, &conn.HubID, &conn.ServerID, &conn.ChannelID, &conn.ParentID, &conn.WebhookURL,
			&connected, &compact, &profFilt, &conn.EmbedColor, &lastActive, &created); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conn.Connected = connected != 0
		conn.Compact = compact != 0
		conn.ProfanityFilter = profFilt != 0
		conn.LastActiveAt = fromMillis(lastActive)
		conn.CreatedAt = fromMillis(created)
		out = append(out, &conn)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return out, nil
}
