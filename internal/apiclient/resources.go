package apiclient

import (
	"context"
	"time"

	"github.com/sonroyaalmerol/kumaqueue/internal/model"
)

func (c *Client) UpsertGuild(ctx context.Context, id, name string) (*model.Guild, error) {
	var g model.Guild
	if err := c.do(ctx, "PUT", "/v1/guilds/"+seg(id), model.UpsertGuildBody{Name: name}, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) GetSettings(ctx context.Context, guildID string) (*model.Setting, error) {
	var s model.Setting
	if err := c.do(ctx, "GET", "/v1/guilds/"+seg(guildID)+"/settings", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetLanguage returns the guild's configured language code.
func (c *Client) GetLanguage(ctx context.Context, guildID string) (string, error) {
	s, err := c.GetSettings(ctx, guildID)
	if err != nil {
		return "", err
	}
	return s.Language, nil
}

func (c *Client) UpdateLanguage(ctx context.Context, guildID, language string) (*model.Setting, error) {
	var s model.Setting
	if err := c.do(ctx, "PATCH", "/v1/guilds/"+seg(guildID)+"/settings",
		model.UpdateSettingBody{Language: language}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) UpsertChannel(ctx context.Context, id, guildID, name string) (*model.Channel, error) {
	var ch model.Channel
	if err := c.do(ctx, "PUT", "/v1/channels/"+seg(id),
		model.UpsertChannelBody{GuildID: guildID, Name: name}, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *Client) UpsertUser(ctx context.Context, id, name string) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, "PUT", "/v1/users/"+seg(id), model.UpsertUserBody{Name: name}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpsertVideo(ctx context.Context, v model.Video) (*model.Video, error) {
	var out model.Video
	if err := c.do(ctx, "PUT", "/v1/videos/"+seg(v.ID), model.UpsertVideoBody{
		URL:         v.URL,
		Title:       v.Title,
		DurationSec: v.DurationSec,
		Thumbnail:   v.Thumbnail,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetVideo(ctx context.Context, id string) (*model.Video, error) {
	var v model.Video
	if err := c.do(ctx, "GET", "/v1/videos/"+seg(id), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) CreateRequest(ctx context.Context, body model.CreateRequestBody) (*model.PlayRequest, error) {
	var r model.PlayRequest
	if err := c.do(ctx, "POST", "/v1/requests", body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) GetRequest(ctx context.Context, id string) (*model.PlayRequest, error) {
	var r model.PlayRequest
	if err := c.do(ctx, "GET", "/v1/requests/"+seg(id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) MarkPlayed(ctx context.Context, requestID string, at time.Time) error {
	return c.do(ctx, "PUT", "/v1/requests/"+seg(requestID)+"/played", model.MarkPlayedBody{PlayedAt: at}, nil)
}

func (c *Client) History(ctx context.Context, guildID string, limit int) ([]model.PlayRequest, error) {
	var out []model.PlayRequest
	if err := c.do(ctx, "GET", "/v1/guilds/"+seg(guildID)+"/history?limit="+itoa(limit), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
