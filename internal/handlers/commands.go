package handlers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	"github.com/sonroyaalmerol/kumaqueue/internal/locale"
	"github.com/sonroyaalmerol/kumaqueue/internal/model"
	"github.com/sonroyaalmerol/kumaqueue/internal/playback"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/resolve"
)

const (
	commandTimeout = 2 * time.Minute
	suggestLimit   = 10
)

// store is the slice of the REST API the commands use.
type store interface {
	UpsertGuild(ctx context.Context, id, name string) (*model.Guild, error)
	UpsertChannel(ctx context.Context, id, guildID, name string) (*model.Channel, error)
	UpsertUser(ctx context.Context, id, name string) (*model.User, error)
	UpsertVideo(ctx context.Context, v model.Video) (*model.Video, error)
	CreateRequest(ctx context.Context, body model.CreateRequestBody) (*model.PlayRequest, error)
	PushBack(ctx context.Context, guildID, requestID string, interrupt bool) (*model.QueueEntry, error)
	PeekFront(ctx context.Context, guildID string, limit int) ([]model.QueueEntry, error)
	Clear(ctx context.Context, guildID string, keepFront bool) (int, error)
	RemoveAt(ctx context.Context, guildID string, order int) (*model.QueueEntry, error)
	History(ctx context.Context, guildID string, limit int) ([]model.PlayRequest, error)
	GetLanguage(ctx context.Context, guildID string) (string, error)
	UpdateLanguage(ctx context.Context, guildID, language string) (*model.Setting, error)
}

type cycles interface {
	Start(guildID string, t playback.Transport, channelID string)
	Stop(guildID string) bool
	Wake(guildID string) bool
	AwaitIdle(ctx context.Context, guildID string) error
}

type joiner interface {
	Join(guildID, channelID string) (playback.Transport, error)
}

type queryResolver interface {
	Resolve(ctx context.Context, query string) (*resolve.Result, error)
}

type suggester interface {
	Choices(ctx context.Context, query string, limit int) []*discordgo.ApplicationCommandOptionChoice
}

type CommandHandler struct {
	api      store
	ctrl     cycles
	reg      *player.Registry
	voice    joiner
	resolver queryResolver
	suggest  suggester
}

func NewCommandHandler(api store, ctrl cycles, reg *player.Registry, vj joiner, r queryResolver, sg suggester) *CommandHandler {
	return &CommandHandler{api: api, ctrl: ctrl, reg: reg, voice: vj, resolver: r, suggest: sg}
}

// invocation is a slash command stripped of the Discord plumbing.
type invocation struct {
	guildID     string
	guildName   string
	channelID   string
	channelName string
	userID      string
	userName    string
	// voiceChannelID is where the invoking user is connected, if anywhere.
	voiceChannelID string
	opts           map[string]*discordgo.ApplicationCommandInteractionDataOption
}

func (inv invocation) str(name string) string {
	if o, ok := inv.opts[name]; ok {
		return o.StringValue()
	}
	return ""
}

func (inv invocation) integer(name string, def int) int {
	if o, ok := inv.opts[name]; ok {
		return int(o.IntValue())
	}
	return def
}

func (inv invocation) flag(name string) bool {
	if o, ok := inv.opts[name]; ok {
		return o.BoolValue()
	}
	return false
}

type response struct {
	content   string
	embed     *discordgo.MessageEmbed
	ephemeral bool
}

type command struct {
	def *discordgo.ApplicationCommand
	run func(h *CommandHandler, ctx context.Context, inv invocation) response
	// slow commands are deferred and answered by editing the reply.
	slow bool
}

var commands = []command{
	{
		def: &discordgo.ApplicationCommand{
			Name:        "play",
			Description: "Queue a YouTube video, playlist, Spotify link or search",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "query", Description: "URL or search text", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
				{Name: "interrupt", Description: "play right after the current track", Type: discordgo.ApplicationCommandOptionBoolean},
			},
		},
		run:  (*CommandHandler).cmdPlay,
		slow: true,
	},
	{def: &discordgo.ApplicationCommand{Name: "skip", Description: "Skip the current track"}, run: (*CommandHandler).cmdSkip},
	{def: &discordgo.ApplicationCommand{Name: "stop", Description: "Stop after the current track and leave"}, run: (*CommandHandler).cmdStop},
	{def: &discordgo.ApplicationCommand{Name: "pause", Description: "Pause playback"}, run: (*CommandHandler).cmdPause},
	{def: &discordgo.ApplicationCommand{Name: "resume", Description: "Resume playback"}, run: (*CommandHandler).cmdResume},
	{
		def: &discordgo.ApplicationCommand{
			Name:        "queue",
			Description: "Show the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "page", Description: "page to show [default: 1]", Type: discordgo.ApplicationCommandOptionInteger, MinValue: lo.ToPtr(1.0)},
			},
		},
		run: (*CommandHandler).cmdQueue,
	},
	{def: &discordgo.ApplicationCommand{Name: "nowplaying", Description: "Show the current track"}, run: (*CommandHandler).cmdNowPlaying},
	{def: &discordgo.ApplicationCommand{Name: "clear", Description: "Clear the upcoming tracks"}, run: (*CommandHandler).cmdClear},
	{
		def: &discordgo.ApplicationCommand{
			Name:        "remove",
			Description: "Remove one upcoming track",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "position", Description: "position shown in /queue", Type: discordgo.ApplicationCommandOptionInteger, Required: true, MinValue: lo.ToPtr(1.0)},
			},
		},
		run: (*CommandHandler).cmdRemove,
	},
	{def: &discordgo.ApplicationCommand{Name: "history", Description: "Show recently played tracks"}, run: (*CommandHandler).cmdHistory},
	{
		def: &discordgo.ApplicationCommand{
			Name:        "language",
			Description: "Set the bot's language for this server",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "code",
					Description: "language code",
					Type:        discordgo.ApplicationCommandOptionString,
					Required:    true,
					Choices: lo.Map(locale.Codes(), func(c string, _ int) *discordgo.ApplicationCommandOptionChoice {
						return &discordgo.ApplicationCommandOptionChoice{Name: c, Value: c}
					}),
				},
			},
		},
		run: (*CommandHandler).cmdLanguage,
	},
}

var commandsByName = lo.KeyBy(commands, func(c command) string { return c.def.Name })

// RegisterCommands replaces the application's commands in a guild, or
// globally when guildID is empty.
func (h *CommandHandler) RegisterCommands(s *discordgo.Session, appID, guildID string) error {
	start := time.Now()
	defs := lo.Map(commands, func(c command, _ int) *discordgo.ApplicationCommand { return c.def })
	if _, err := s.ApplicationCommandBulkOverwrite(appID, guildID, defs); err != nil {
		return err
	}
	slog.Info("registered commands", "guildID", guildID, "count", len(defs), "took", time.Since(start))
	return nil
}

func (h *CommandHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		return
	}
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		h.handleCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		h.handleAutocomplete(s, i)
	}
}

func (h *CommandHandler) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	cmd, ok := commandsByName[data.Name]
	if !ok {
		slog.Debug("unknown command", "guildID", i.GuildID, "name", data.Name)
		return
	}
	inv := newInvocation(s, i)
	slog.Info("command", "guildID", inv.guildID, "userID", inv.userID, "name", data.Name)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if cmd.slow {
		deferReply(s, i)
		editReply(s, i, cmd.run(h, ctx, inv))
		return
	}
	reply(s, i, cmd.run(h, ctx, inv))
}

func (h *CommandHandler) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != "play" {
		return
	}
	var query string
	for _, o := range data.Options {
		if o.Focused {
			query = o.StringValue()
		}
	}

	choices := []*discordgo.ApplicationCommandOptionChoice{}
	if q := strings.TrimSpace(query); q != "" && !strings.HasPrefix(q, "http") {
		ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
		choices = h.suggest.Choices(ctx, q, suggestLimit)
		cancel()
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}); err != nil {
		slog.Debug("autocomplete respond failed", "guildID", i.GuildID, "err", err)
	}
}

func newInvocation(s *discordgo.Session, i *discordgo.InteractionCreate) invocation {
	data := i.ApplicationCommandData()
	inv := invocation{
		guildID:   i.GuildID,
		channelID: i.ChannelID,
		opts:      lo.KeyBy(data.Options, func(o *discordgo.ApplicationCommandInteractionDataOption) string { return o.Name }),
	}
	if i.Member != nil && i.Member.User != nil {
		inv.userID = i.Member.User.ID
		inv.userName = i.Member.User.Username
	}
	if g, err := s.State.Guild(i.GuildID); err == nil {
		inv.guildName = g.Name
	}
	if c, err := s.State.Channel(i.ChannelID); err == nil {
		inv.channelName = c.Name
	}
	if vs, err := s.State.VoiceState(i.GuildID, inv.userID); err == nil {
		inv.voiceChannelID = vs.ChannelID
	}
	return inv
}

func reply(s *discordgo.Session, i *discordgo.InteractionCreate, r response) {
	data := &discordgo.InteractionResponseData{Content: r.content}
	if r.embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{r.embed}
	}
	if r.ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "err", err)
	}
}

func deferReply(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		slog.Warn("defer reply failed", "guildID", i.GuildID, "err", err)
	}
}

func editReply(s *discordgo.Session, i *discordgo.InteractionCreate, r response) {
	edit := &discordgo.WebhookEdit{Content: &r.content}
	if r.embed != nil {
		edit.Embeds = &[]*discordgo.MessageEmbed{r.embed}
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		slog.Warn("edit reply failed", "guildID", i.GuildID, "err", err)
	}
}

// lang returns the guild's language, falling back to the default when the
// guild is unknown or the API is unreachable.
func (h *CommandHandler) lang(ctx context.Context, guildID string) string {
	l, err := h.api.GetLanguage(ctx, guildID)
	if err != nil || l == "" {
		return locale.Default
	}
	return l
}

func text(lang string, key locale.Key, args ...any) response {
	return response{content: locale.Text(lang, key, args...)}
}

func private(lang string, key locale.Key, args ...any) response {
	return response{content: locale.Text(lang, key, args...), ephemeral: true}
}
