package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sonroyaalmerol/kumaqueue/internal/model"
)

func (r *Repo) UpsertVideo(ctx context.Context, v model.Video) (*model.Video, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO videos(id, url, title, duration_sec, thumbnail) VALUES (?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
		  url=excluded.url,
		  title=excluded.title,
		  duration_sec=excluded.duration_sec,
		  thumbnail=excluded.thumbnail`,
		v.ID, v.URL, v.Title, v.DurationSec, v.Thumbnail,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Repo) GetVideo(ctx context.Context, id string) (*model.Video, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, url, title, duration_sec, thumbnail FROM videos WHERE id = ?`, id)
	var v model.Video
	if err := row.Scan(&v.ID, &v.URL, &v.Title, &v.DurationSec, &v.Thumbnail); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *Repo) CreateRequest(ctx context.Context, b model.CreateRequestBody) (*model.PlayRequest, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO requests(id, guild_id, user_id, video_id, channel_id, created_at)
		VALUES (?,?,?,?,?,?)`,
		id, b.GuildID, b.UserID, b.VideoID, b.ChannelID, toMillis(r.now()),
	)
	if err != nil {
		return nil, notFoundOnFK(err)
	}
	return r.GetRequest(ctx, id)
}

const requestColumns = `
	r.id, r.guild_id, r.user_id, r.channel_id, r.created_at, r.played_at,
	v.id, v.url, v.title, v.duration_sec, v.thumbnail`

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(s scanner, extra ...any) (*model.PlayRequest, error) {
	var (
		p       model.PlayRequest
		created int64
		played  sql.NullInt64
	)
	dest := append(extra,
		&p.ID, &p.GuildID, &p.UserID, &p.ChannelID, &created, &played,
		&p.Video.ID, &p.Video.URL, &p.Video.Title, &p.Video.DurationSec, &p.Video.Thumbnail,
	)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	p.CreatedAt = fromMillis(created)
	if played.Valid {
		t := fromMillis(played.Int64)
		p.PlayedAt = &t
	}
	return &p, nil
}

func (r *Repo) GetRequest(ctx context.Context, id string) (*model.PlayRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+`
		FROM requests r JOIN videos v ON v.id = r.video_id
		WHERE r.id = ?`, id)
	p, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// MarkPlayed stamps the request with the time its playback first began.
// Later calls for an already played request leave the stamp alone.
func (r *Repo) MarkPlayed(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE requests SET played_at=? WHERE id=? AND played_at IS NULL`, toMillis(at), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM requests WHERE id=?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// ListHistory returns the guild's played requests, most recent first.
func (r *Repo) ListHistory(ctx context.Context, guild string, limit int) ([]model.PlayRequest, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+requestColumns+`
		FROM requests r JOIN videos v ON v.id = r.video_id
		WHERE r.guild_id = ? AND r.played_at IS NOT NULL
		ORDER BY r.played_at DESC
		LIMIT ?`, guild, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.PlayRequest{}
	for rows.Next() {
		p, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
