// Package ui builds the Discord embeds for the queue, history and the
// current track.
package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	"github.com/sonroyaalmerol/kumaqueue/internal/locale"
	"github.com/sonroyaalmerol/kumaqueue/internal/model"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/utils"
)

const (
	maxDescription = 4096
	barWidth       = 10

	colorPlaying = 0x006400
	colorPaused  = 0x8b0000
	colorIdle    = 0x992222
)

var (
	ErrQueueEmpty     = errors.New("queue is empty")
	ErrPageOutOfRange = errors.New("the queue isn't that big")
)

func link(title, url string) string {
	return fmt.Sprintf("[%s](%s)", utils.EscapeMd(title), url)
}

func elapsed(pos time.Duration, durationSec int) string {
	if durationSec <= 0 {
		return "live"
	}
	return utils.PrettyTime(int(pos.Seconds())) + "/" + utils.PrettyTime(durationSec)
}

func progress(pos time.Duration, durationSec int) float64 {
	if durationSec <= 0 {
		return 0
	}
	return pos.Seconds() / float64(durationSec)
}

// NowPlaying renders the track the guild's player is on.
func NowPlaying(t player.Track, status player.Status, pos time.Duration) *discordgo.MessageEmbed {
	sec := int(t.Duration.Seconds())
	button, color, title := "⏹️", colorPlaying, "Now Playing"
	if status == player.StatusPaused || status == player.StatusAutoPaused {
		button, color, title = "▶️", colorPaused, "Paused"
	}

	embed := &discordgo.MessageEmbed{
		Title: title,
		Description: fmt.Sprintf("**%s**\nRequested by: <@%s>\n\n%s %s `[ %s ]`",
			link(t.Title, t.URL), t.RequestedBy,
			button, ProgressBar(barWidth, progress(pos, sec)), elapsed(pos, sec),
		),
		Color: color,
	}
	if t.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.Thumbnail}
	}
	return embed
}

// NothingPlaying is shown when the guild has no active track.
func NothingPlaying(lang string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Description: locale.Text(lang, locale.NothingPlaying),
		Color:       colorIdle,
	}
}

// Queue renders one page of the upcoming entries. entries[0] is the front of
// the queue; pages count from 1 over entries[1:].
func Queue(lang string, entries []model.QueueEntry, page, pageSize int, pos time.Duration) (*discordgo.MessageEmbed, error) {
	if len(entries) == 0 {
		return nil, ErrQueueEmpty
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	front, upcoming := entries[0].Request, entries[1:]
	pages := max(1, (len(upcoming)+pageSize-1)/pageSize)
	if page < 1 || page > pages {
		return nil, ErrPageOutOfRange
	}
	start := (page - 1) * pageSize
	shown := upcoming[start:min(start+pageSize, len(upcoming))]

	var desc strings.Builder
	fmt.Fprintf(&desc, "**%s**\nRequested by: <@%s>\n%s `[ %s ]`\n\n",
		link(front.Video.Title, front.Video.URL), front.UserID,
		ProgressBar(barWidth, progress(pos, front.Video.DurationSec)), elapsed(pos, front.Video.DurationSec),
	)
	if len(shown) > 0 {
		desc.WriteString("**Up next:**\n")
	}
	for i, e := range shown {
		line := fmt.Sprintf("`%d.` %s `[ %s ]`\n", e.Order, link(e.Request.Video.Title, e.Request.Video.URL),
			lo.Ternary(e.Request.Video.DurationSec > 0, utils.PrettyTime(e.Request.Video.DurationSec), "live"))
		if desc.Len()+len(line) > maxDescription-32 {
			fmt.Fprintf(&desc, "…and %d more", len(shown)-i)
			break
		}
		desc.WriteString(line)
	}

	total := lo.SumBy(upcoming, func(e model.QueueEntry) int { return e.Request.Video.DurationSec })
	embed := &discordgo.MessageEmbed{
		Title:       locale.Text(lang, locale.QueueTitle),
		Description: desc.String(),
		Color:       colorPlaying,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "In queue", Value: songs(len(upcoming)), Inline: true},
			{Name: "Total length", Value: lo.Ternary(total > 0, utils.PrettyTime(total), "-"), Inline: true},
			{Name: "Page", Value: fmt.Sprintf("%d out of %d", page, pages), Inline: true},
		},
	}
	if front.Video.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: front.Video.Thumbnail}
	}
	return embed, nil
}

func songs(n int) string {
	switch n {
	case 0:
		return "-"
	case 1:
		return "1 song"
	}
	return fmt.Sprintf("%d songs", n)
}

// History lists played requests, most recent first.
func History(lang string, reqs []model.PlayRequest) *discordgo.MessageEmbed {
	var desc strings.Builder
	for i, r := range reqs {
		when := ""
		if r.PlayedAt != nil {
			when = fmt.Sprintf(" <t:%d:R>", r.PlayedAt.Unix())
		}
		line := fmt.Sprintf("`%d.` %s <@%s>%s\n", i+1, link(r.Video.Title, r.Video.URL), r.UserID, when)
		if desc.Len()+len(line) > maxDescription {
			break
		}
		desc.WriteString(line)
	}
	if len(reqs) == 0 {
		desc.WriteString("-")
	}
	return &discordgo.MessageEmbed{
		Title:       locale.Text(lang, locale.HistoryTitle),
		Description: desc.String(),
		Color:       colorPlaying,
	}
}
