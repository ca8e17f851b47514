package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hubnet/models"
)

// MessageDB handles original and broadcast message persistence.
type MessageDB struct {
	db *sql.DB
}

// NewMessageDB creates a new message repository
func NewMessageDB(db *sql.DB) *MessageDB {
	return &MessageDB{db: db}
}

const originalColumns = `id, hub_id, author_id, author_name, avatar_url, guild_id, guild_name, channel_id, content, attachments, reply_to_id, reactions, created_at`

// SaveBroadcast stores an original message together with the copies that were
// delivered for it. Either everything is written or nothing is.
func (m *MessageDB) SaveBroadcast(ctx context.Context, orig *models.OriginalMessage, copies []models.BroadcastMessage) error {
	attachments, err := json.Marshal(nonNilAttachments(orig.Attachments))
	if err != nil {
		return fmt.Errorf("failed to encode attachments: %w", err)
	}
	reactions, err := json.Marshal(nonNilReactions(orig.Reactions))
	if err != nil {
		return fmt.Errorf("failed to encode reactions: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO original_messages (`+originalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		orig.ID, orig.HubID, orig.AuthorID, orig.AuthorName, orig.AvatarURL, orig.GuildID, orig.GuildName, orig.ChannelID,
		orig.Content, string(attachments), orig.ReplyToID, string(reactions), millis(orig.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert original message %s: %w", orig.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO broadcast_messages (id, original_id, channel_id, guild_id, mode, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare broadcast insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range copies {
		if _, err := stmt.ExecContext(ctx, c.ID, orig.ID, c.ChannelID, c.GuildID, string(c.Mode), millis(c.CreatedAt)); err != nil {
			return fmt.Errorf("failed to insert broadcast %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit broadcast %s: %w", orig.ID, err)
	}
	return nil
}

// GetOriginal fetches an original message by id.
func (m *MessageDB) GetOriginal(ctx context.Context, id string) (*models.OriginalMessage, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+originalColumns+` FROM original_messages WHERE id = ?`, id)
	return scanOriginal(row)
}

// OriginIDOf maps any message id, original or copy, to its original id.
func (m *MessageDB) OriginIDOf(ctx context.Context, messageID string) (string, error) {
	var id string
	err := m.db.QueryRowContext(ctx, `
        SELECT id FROM original_messages WHERE id = ?
        UNION ALL
        SELECT original_id FROM broadcast_messages WHERE id = ?
        LIMIT 1`, messageID, messageID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve origin of %s: %w", messageID, err)
	}
	return id, nil
}

// Copies lists the delivered copies of an original message.
func (m *MessageDB) Copies(ctx context.Context, originalID string) ([]models.BroadcastMessage, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, original_id, channel_id, guild_id, mode, created_at FROM broadcast_messages WHERE original_id = ? ORDER BY created_at ASC, id ASC`, originalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query copies of %s: %w", originalID, err)
	}
	defer rows.Close()

	var out []models.BroadcastMessage
	for rows.Next() {
		var (
			b       models.BroadcastMessage
			mode    string
			created int64
		)
		if err := rows.Scan(&b.ID, &b.OriginalID, &b.ChannelID, &b.GuildID, &mode, &created); err != nil {
			return nil, fmt.Errorf("failed to scan broadcast: %w", err)
		}
		b.Mode = models.RenderMode(mode)
		b.CreatedAt = fromMillis(created)
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateContent replaces the stored content of an original message.
func (m *MessageDB) UpdateContent(ctx context.Context, id, content string) error {
	res, err := m.db.ExecContext(ctx, `UPDATE original_messages SET content = ? WHERE id = ?`, content, id)
	if err != nil {
		return fmt.Errorf("failed to update content of %s: %w", id, err)
	}
	return expectRow(res)
}

// UpdateReactions applies fn to the stored reactions of an original message
// inside a write transaction and persists its result.
func (m *MessageDB) UpdateReactions(ctx context.Context, id string, fn func(models.Reactions) (models.Reactions, error)) (models.Reactions, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT reactions FROM original_messages WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read reactions of %s: %w", id, err)
	}

	current := models.Reactions{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &current); err != nil {
			return nil, fmt.Errorf("failed to decode reactions of %s: %w", id, err)
		}
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(nonNilReactions(next))
	if err != nil {
		return nil, fmt.Errorf("failed to encode reactions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE original_messages SET reactions = ? WHERE id = ?`, string(encoded), id); err != nil {
		return nil, fmt.Errorf("failed to write reactions of %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reactions of %s: %w", id, err)
	}
	return next, nil
}

// DeleteOriginal removes an original message and all of its copies.
func (m *MessageDB) DeleteOriginal(ctx context.Context, id string) error {
	res, err := m.db.ExecContext(ctx, `DELETE FROM original_messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete original message %s: %w", id, err)
	}
	return expectRow(res)
}

// PurgeBefore deletes original messages (and their copies) created before
// cutoff and returns the ids removed.
func (m *MessageDB) PurgeBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM original_messages WHERE created_at < ?`, millis(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to query expired messages: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expired message: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM original_messages WHERE created_at < ?`, millis(cutoff)); err != nil {
		return nil, fmt.Errorf("failed to purge messages: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit purge: %w", err)
	}
	return ids, nil
}

func scanOriginal(row *sql.Row) (*models.OriginalMessage, error) {
	var (
		msg                    models.OriginalMessage
		attachments, reactions string
		created                int64
	)
	err := row.Scan(&msg.ID, &msg.HubID, &msg.AuthorID, &msg.AuthorName, &msg.AvatarURL, &msg.GuildID, &msg.GuildName, &msg.ChannelID,
		&msg.Content, &attachments, &msg.ReplyToID, &reactions, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan original message: %w", err)
	}
	if attachments != "" {
		if err := json.Unmarshal([]byte(attachments), &msg.Attachments); err != nil {
			return nil, fmt.Errorf("failed to decode attachments of %s: %w", msg.ID, err)
		}
	}
	msg.Reactions = models.Reactions{}
	if reactions != "" {
		if err := json.Unmarshal([]byte(reactions), &msg.Reactions); err != nil {
			return nil, fmt.Errorf("failed to decode reactions of %s: %w", msg.ID, err)
		}
	}
	msg.CreatedAt = fromMillis(created)
	return &msg, nil
}

func nonNilAttachments(a []models.Attachment) []models.Attachment {
	if a == nil {
		return []models.Attachment{}
	}
	return a
}

func nonNilReactions(r models.Reactions) models.Reactions {
	if r == nil {
		return models.Reactions{}
	}
	return r
}
