package apiclient

import (
	"context"
	"strconv"

	"github.com/sonroyaalmerol/kumaqueue/internal/model"
)

func itoa(n int) string { return strconv.Itoa(n) }

func queuePath(guildID string) string { return "/v1/guilds/" + seg(guildID) + "/queue" }

func (c *Client) PeekFront(ctx context.Context, guildID string, limit int) ([]model.QueueEntry, error) {
	var out []model.QueueEntry
	if err := c.do(ctx, "GET", queuePath(guildID)+"?limit="+itoa(limit), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PushBack appends the request, or with interrupt places it right after the
// entry at order 0.
func (c *Client) PushBack(ctx context.Context, guildID, requestID string, interrupt bool) (*model.QueueEntry, error) {
	var e model.QueueEntry
	if err := c.do(ctx, "POST", queuePath(guildID),
		model.PushBody{RequestID: requestID, Interrupt: interrupt}, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) Advance(ctx context.Context, guildID string) (int, error) {
	var res model.AdvanceResult
	if err := c.do(ctx, "POST", queuePath(guildID)+"/advance", nil, &res); err != nil {
		return 0, err
	}
	return res.Shifted, nil
}

func (c *Client) Clear(ctx context.Context, guildID string, keepFront bool) (int, error) {
	var res model.ClearResult
	if err := c.do(ctx, "DELETE", queuePath(guildID)+"?keepFront="+strconv.FormatBool(keepFront), nil, &res); err != nil {
		return 0, err
	}
	return res.Removed, nil
}

func (c *Client) RemoveAt(ctx context.Context, guildID string, order int) (*model.QueueEntry, error) {
	var e model.QueueEntry
	if err := c.do(ctx, "DELETE", queuePath(guildID)+"/"+itoa(order), nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
