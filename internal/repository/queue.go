package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sonroyaalmerol/kumaqueue/internal/model"
)

// Queue orders are kept contiguous from 0 per guild. Every renumbering goes
// through negative values first so the (guild_id, ord) unique index never
// sees a transient duplicate.

func (r *Repo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

const entrySelect = `SELECT q.id, q.guild_id, q.ord,` + requestColumns + `
	FROM queue q
	JOIN requests r ON r.id = q.request_id
	JOIN videos v ON v.id = r.video_id`

func (r *Repo) queryEntries(ctx context.Context, query string, args ...any) ([]model.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx, entrySelect+query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.QueueEntry{}
	for rows.Next() {
		var e model.QueueEntry
		p, err := scanRequest(rows, &e.ID, &e.GuildID, &e.Order)
		if err != nil {
			return nil, err
		}
		e.Request = *p
		out = append(out, e)
	}
	return out, rows.Err()
}

// PeekFront returns up to limit entries in ascending order.
func (r *Repo) PeekFront(ctx context.Context, guild string, limit int) ([]model.QueueEntry, error) {
	if limit <= 0 || limit > model.MaxPeek {
		limit = model.MaxPeek
	}
	return r.queryEntries(ctx, ` WHERE q.guild_id = ? ORDER BY q.ord ASC LIMIT ?`, guild, limit)
}

func (r *Repo) QueueLength(ctx context.Context, guild string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue WHERE guild_id = ?`, guild).Scan(&n)
	return n, err
}

// PushBack appends the request to the guild's queue. With interrupt set and a
// non-empty queue the entry lands at order 1, directly behind the current
// front, and everything after it moves back by one.
func (r *Repo) PushBack(ctx context.Context, guild, requestID string, interrupt bool) (*model.QueueEntry, error) {
	id := uuid.NewString()
	var ord int
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var owner string
		err := tx.QueryRowContext(ctx, `SELECT guild_id FROM requests WHERE id = ?`, requestID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if owner != guild {
			return fmt.Errorf("request %s belongs to guild %s: %w", requestID, owner, ErrNotFound)
		}

		var max int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(ord), -1) FROM queue WHERE guild_id = ?`, guild,
		).Scan(&max); err != nil {
			return err
		}

		ord = max + 1
		if interrupt && max >= 0 {
			ord = 1
			if _, err := tx.ExecContext(ctx,
				`UPDATE queue SET ord = -(ord + 1) WHERE guild_id = ? AND ord >= 1`, guild,
			); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE queue SET ord = -ord WHERE guild_id = ? AND ord < 0`, guild,
			); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO queue(id, guild_id, request_id, ord) VALUES (?,?,?,?)`,
			id, guild, requestID, ord,
		)
		return notFoundOnFK(err)
	})
	if err != nil {
		return nil, err
	}

	p, err := r.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return &model.QueueEntry{ID: id, GuildID: guild, Order: ord, Request: *p}, nil
}

// Advance removes the entry at order 0 and shifts the rest forward by one.
// It returns the number of entries that moved. Advancing an empty queue is a
// no-op.
func (r *Repo) Advance(ctx context.Context, guild string) (int, error) {
	var shifted int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		// Anything at or below zero is gone after this step, including
		// strays a crashed writer might have left negative.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM queue WHERE guild_id = ? AND ord <= 0`, guild,
		); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE queue SET ord = -ord WHERE guild_id = ? AND ord > 0`, guild,
		)
		if err != nil {
			return err
		}
		if shifted, err = res.RowsAffected(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE queue SET ord = -ord - 1 WHERE guild_id = ? AND ord < 0`, guild,
		)
		return err
	})
	return int(shifted), err
}

// RemoveAt deletes the entry at the given order and closes the gap.
func (r *Repo) RemoveAt(ctx context.Context, guild string, ord int) (*model.QueueEntry, error) {
	entries, err := r.queryEntries(ctx, ` WHERE q.guild_id = ? AND q.ord = ?`, guild, ord)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	removed := &entries[0]

	err = r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM queue WHERE guild_id = ? AND id = ?`, guild, removed.ID,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE queue SET ord = -(ord - 1) WHERE guild_id = ? AND ord > ?`, guild, ord,
		); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE queue SET ord = -ord WHERE guild_id = ? AND ord < 0`, guild,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Clear empties the guild's queue. With keepFront the entry at order 0 stays,
// so an item that is currently playing can still be advanced past.
func (r *Repo) Clear(ctx context.Context, guild string, keepFront bool) (int, error) {
	q := `DELETE FROM queue WHERE guild_id = ?`
	if keepFront {
		q += ` AND ord > 0`
	}
	res, err := r.db.ExecContext(ctx, q, guild)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
