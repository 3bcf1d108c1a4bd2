package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sonroyaalmerol/kumaqueue/internal/locale"
	"github.com/sonroyaalmerol/kumaqueue/internal/model"
	"github.com/sonroyaalmerol/kumaqueue/internal/resolve"
	"github.com/sonroyaalmerol/kumaqueue/internal/utils"
)

func (h *CommandHandler) cmdPlay(ctx context.Context, inv invocation) response {
	lang := h.lang(ctx, inv.guildID)
	if inv.voiceChannelID == "" {
		return private(lang, locale.NotInVoice)
	}
	interrupt := inv.flag("interrupt")

	res, err := h.resolver.Resolve(ctx, inv.str("query"))
	if err != nil {
		slog.Info("query not resolved", "guildID", inv.guildID, "query", inv.str("query"), "err", err)
		if isUserError(err) {
			return private(lang, locale.NotFound)
		}
		return private(lang, locale.InternalError)
	}

	reqs, err := h.enqueue(ctx, inv, res.Videos, interrupt)
	if err != nil {
		slog.Error("enqueue failed", "guildID", inv.guildID, "err", err)
		return text(lang, locale.InternalError)
	}
	// the guild row may be new, so pick up its settings again
	lang = h.lang(ctx, inv.guildID)

	if err := h.ensureCycle(ctx, inv); err != nil {
		slog.Error("join voice failed", "guildID", inv.guildID, "channelID", inv.voiceChannelID, "err", err)
		return text(lang, locale.InternalError)
	}

	var r response
	switch {
	case len(reqs) > 1:
		r = text(lang, locale.AddedPlaylist, len(reqs))
	case interrupt:
		r = text(lang, locale.AddedFront, utils.EscapeMd(reqs[0].Video.Title))
	default:
		r = text(lang, locale.Added, utils.EscapeMd(reqs[0].Video.Title))
	}
	if res.NotFound > 0 {
		r.content += fmt.Sprintf(" (%d not found)", res.NotFound)
	}
	return r
}

// enqueue records the invoking guild, channel and user, then one request per
// video. Interrupting pushes in reverse so the videos play next in their
// listed order.
func (h *CommandHandler) enqueue(ctx context.Context, inv invocation, videos []model.Video, interrupt bool) ([]model.PlayRequest, error) {
	if _, err := h.api.UpsertGuild(ctx, inv.guildID, inv.guildName); err != nil {
		return nil, fmt.Errorf("upsert guild: %w", err)
	}
	if _, err := h.api.UpsertChannel(ctx, inv.channelID, inv.guildID, inv.channelName); err != nil {
		return nil, fmt.Errorf("upsert channel: %w", err)
	}
	if _, err := h.api.UpsertUser(ctx, inv.userID, inv.userName); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	reqs := make([]model.PlayRequest, 0, len(videos))
	for _, v := range videos {
		if _, err := h.api.UpsertVideo(ctx, v); err != nil {
			return nil, fmt.Errorf("upsert video %s: %w", v.ID, err)
		}
		req, err := h.api.CreateRequest(ctx, model.CreateRequestBody{
			GuildID:   inv.guildID,
			UserID:    inv.userID,
			VideoID:   v.ID,
			ChannelID: inv.channelID,
		})
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		reqs = append(reqs, *req)
	}

	for i := range reqs {
		r := reqs[i]
		if interrupt {
			r = reqs[len(reqs)-1-i]
		}
		if _, err := h.api.PushBack(ctx, inv.guildID, r.ID, interrupt); err != nil {
			return nil, fmt.Errorf("push %s: %w", r.ID, err)
		}
	}
	slog.Debug("enqueued", "guildID", inv.guildID, "count", len(reqs), "interrupt", interrupt)
	return reqs, nil
}

// ensureCycle makes sure a playback cycle will look at the queue: a running
// cycle is woken, otherwise any cycle still draining is waited out and a new
// one starts on the user's voice channel.
func (h *CommandHandler) ensureCycle(ctx context.Context, inv invocation) error {
	if h.ctrl.Wake(inv.guildID) {
		return nil
	}
	if err := h.ctrl.AwaitIdle(ctx, inv.guildID); err != nil {
		return err
	}
	t, err := h.voice.Join(inv.guildID, inv.voiceChannelID)
	if err != nil {
		return err
	}
	h.ctrl.Start(inv.guildID, t, inv.channelID)
	return nil
}

func isUserError(err error) bool {
	return errors.Is(err, resolve.ErrNotFound) ||
		errors.Is(err, resolve.ErrEmptyQuery) ||
		errors.Is(err, resolve.ErrUnsupportedURL) ||
		errors.Is(err, resolve.ErrSpotifyOff)
}
