package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sonroyaalmerol/kumaqueue/internal/apiclient"
	"github.com/sonroyaalmerol/kumaqueue/internal/locale"
	"github.com/sonroyaalmerol/kumaqueue/internal/model"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/ui"
	"github.com/sonroyaalmerol/kumaqueue/internal/utils"
)

const (
	queuePageSize = 10
	historyLimit  = 10
)

// playing returns the guild's player when it has a track loaded.
func (h *CommandHandler) playing(guildID string) *player.Player {
	p := h.reg.Peek(guildID)
	if p == nil || p.Status() == player.StatusIdle {
		return nil
	}
	return p
}

func (h *CommandHandler) cmdSkip(ctx context.Context, inv invocation) response {
	lang := h.lang(ctx, inv.guildID)
	p := h.playing(inv.guildID)
	if p == nil || !p.Stop(player.EndSkipped) {
		return private(lang, locale.NothingPlaying)
	}
	return text(lang, locale.Skipped)
}

func (h *CommandHandler) cmdStop(ctx context.Context, inv invocation) response {
	lang := h.lang(ctx, inv.guildID)
	if !h.ctrl.Stop(inv.guildID) {
		return private(lang, locale.NothingPlaying)
	}
	return text(lang, locale.Stopped)
}

func (h *CommandHandler) cmdPause(ctx context.Context, inv invocation) response {
	lang := h.lang(ctx, inv.guildID)
	p := h.playing(inv.guildID)
	if p == nil || p.Pause() != nil {
		return private(lang, locale.NothingPlaying)
	}
	return text(lang, locale.Paused)
}

// cmdResume unpauses the player, or restarts playback of a queue whose
// cycle ended on an error.
func (h *CommandHandler) cmdResume(ctx context.Context, inv invocation) response {
	lang := h.lang(ctx, inv.guildID)
	if p := h.playing(inv.guildID); p != nil {
		if p.Unpause() != nil {
			return private(lang, locale.NothingPlaying)
		}
		return text(lang, locale.Resumed)
	}
	if inv.voiceChannelID == "" {
		return private(lang, locale.NotInVoice)
	}
	entries, err := h.api.PeekFront(ctx, inv.guildID, 1)
	if err != nil {
		slog.Error("peek queue failed", "guildID", inv.guildID, "err", err)
		return private(lang, locale.InternalError)
	}
	if len(entries) == 0 {
		return private(lang, locale.QueueEmpty)
	}
	if err := h.ensureCycle(ctx, inv); err != nil {
		slog.Error("restart playback failed", "guildID", inv.guildID, "err", err)
		return private(lang, locale.InternalError)
	}
	return text(lang, locale.Resumed)
}

// position reports how far into the front entry the player is, if that
// entry is what it is playing.
func (h *CommandHandler) position(guildID, requestID string) time.Duration {
	p := h.playing(guildID)
	if p == nil {
		return 0
	}
	if sess := p.Current(); sess != nil && sess.Track().RequestID == requestID {
		return sess.Position()
	}
	return 0
}

func (h *CommandHandler) cmdQueue(ctx context.Context, inv invocation) response {
	lang := h.lang(ctx, inv.guildID)
	entries, err := h.api.PeekFront(ctx, inv.guildID, model.MaxPeek)
	if err != nil {
		slog.Error("peek queue failed", "guildID", inv.guildID, "err", err)
		return private(lang, locale.InternalError)
	}
	var pos time.Duration
	if len(entries) > 0 {
		pos = h.position(inv.guildID, entries[0].Request.ID)
	}

	embed, err := ui.Queue(lang, entries, inv.integer("page", 1), queuePageSize, pos)
	switch {
	case errors.Is(err, ui.ErrQueueEmpty):
		return private(lang, locale.QueueEmpty)
	case errors.Is(err, ui.ErrPageOutOfRange):
		return private(lang, locale.BadPosition)
	case err != nil:
		return private(lang, locale.InternalError)
	}
	return response{embed: embed}
}

func (h *CommandHandler) cmdNowPlaying(ctx context.Context, inv invocation) response {
	lang := h.lang(ctx, inv.guildID)
	p := h.playing(inv.guildID)
	if p == nil {
		return response{embed: ui.NothingPlaying(lang), ephemeral: true}
	}
	sess := p.Current()
	if sess == nil {
		return response{embed: ui.NothingPlaying(lang), ephemeral: true}
	}
	return response{embed: ui.NowPlaying(sess.Track(), p.Status(), sess.Position())}
}

// cmdClear drops the upcoming entries. The front entry stays while a cycle
// is playing it, so the cycle can still advance past it.
func (h *CommandHandler) cmdClear(ctx context.Context, inv invocation) response {
	lang := h.lang(ctx, inv.guildID)
	n, err := h.api.Clear(ctx, inv.guildID, h.reg.Active(inv.guildID))
	if err != nil {
		slog.Error("clear queue failed", "guildID", inv.guildID, "err", err)
		return private(lang, locale.InternalError)
	}
	return text(lang, locale.Cleared, n)
}

func (h *CommandHandler) cmdRemove(ctx context.Context, inv invocation) response {
	lang := h.lang(ctx, inv.guildID)
	e, err := h.api.RemoveAt(ctx, inv.guildID, inv.integer("position", 0))
	if err != nil {
		if errors.Is(err, apiclient.ErrNotFound) || isBadRequest(err) {
			return private(lang, locale.BadPosition)
		}
		slog.Error("remove failed", "guildID", inv.guildID, "err", err)
		return private(lang, locale.InternalError)
	}
	return text(lang, locale.Removed, utils.EscapeMd(e.Request.Video.Title))
}

func (h *CommandHandler) cmdHistory(ctx context.Context, inv invocation) response {
	lang := h.lang(ctx, inv.guildID)
	reqs, err := h.api.History(ctx, inv.guildID, historyLimit)
	if err != nil {
		slog.Error("history failed", "guildID", inv.guildID, "err", err)
		return private(lang, locale.InternalError)
	}
	return response{embed: ui.History(lang, reqs)}
}

func (h *CommandHandler) cmdLanguage(ctx context.Context, inv invocation) response {
	code := inv.str("code")
	if _, err := h.api.UpsertGuild(ctx, inv.guildID, inv.guildName); err != nil {
		slog.Error("upsert guild failed", "guildID", inv.guildID, "err", err)
		return private(locale.Default, locale.InternalError)
	}
	st, err := h.api.UpdateLanguage(ctx, inv.guildID, code)
	if err != nil {
		lang := h.lang(ctx, inv.guildID)
		if isBadRequest(err) {
			return private(lang, locale.BadLanguage, strings.Join(locale.Codes(), ", "))
		}
		slog.Error("update language failed", "guildID", inv.guildID, "err", err)
		return private(lang, locale.InternalError)
	}
	return text(st.Language, locale.LanguageSet, st.Language)
}

func isBadRequest(err error) bool {
	var se *apiclient.StatusError
	return errors.As(err, &se) && se.Status == http.StatusBadRequest
}
