package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sonroyaalmerol/kumaqueue/internal/model"
)

func (r *Repo) UpsertGuild(ctx context.Context, id, name string) (*model.Guild, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO guilds(id, name, created_at) VALUES (?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name`,
		id, name, toMillis(r.now()),
	)
	if err != nil {
		return nil, err
	}
	return r.GetGuild(ctx, id)
}

func (r *Repo) GetGuild(ctx context.Context, id string) (*model.Guild, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM guilds WHERE id = ?`, id)
	var g model.Guild
	var created int64
	if err := row.Scan(&g.ID, &g.Name, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	g.CreatedAt = fromMillis(created)
	return &g, nil
}

// UpsertSettings creates the default settings row for an existing guild and
// returns the stored settings.
func (r *Repo) UpsertSettings(ctx context.Context, guild string) (*model.Setting, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings(guild_id, language) VALUES (?,?)`, guild, DefaultLanguage,
	)
	if err != nil {
		return nil, notFoundOnFK(err)
	}
	return r.GetSettings(ctx, guild)
}

func (r *Repo) GetSettings(ctx context.Context, guild string) (*model.Setting, error) {
	row := r.db.QueryRowContext(ctx, `SELECT guild_id, language FROM settings WHERE guild_id = ?`, guild)
	var s model.Setting
	if err := row.Scan(&s.GuildID, &s.Language); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repo) UpdateLanguage(ctx context.Context, guild, language string) (*model.Setting, error) {
	if _, err := r.UpsertSettings(ctx, guild); err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE settings SET language=? WHERE guild_id=?`, language, guild,
	); err != nil {
		return nil, err
	}
	return r.GetSettings(ctx, guild)
}

func (r *Repo) UpsertChannel(ctx context.Context, c model.Channel) (*model.Channel, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO channels(id, guild_id, name) VALUES (?,?,?)
		ON CONFLICT(id) DO UPDATE SET guild_id=excluded.guild_id, name=excluded.name`,
		c.ID, c.GuildID, c.Name,
	)
	if err != nil {
		return nil, notFoundOnFK(err)
	}
	return &c, nil
}

func (r *Repo) UpsertUser(ctx context.Context, u model.User) (*model.User, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users(id, name) VALUES (?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name`,
		u.ID, u.Name,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
