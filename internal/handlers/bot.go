// Package handlers is the Discord command shell: it registers the slash
// commands, records requests through the API and hands guilds to the
// playback controller.
package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumaqueue/internal/apiclient"
	"github.com/sonroyaalmerol/kumaqueue/internal/autocomplete"
	"github.com/sonroyaalmerol/kumaqueue/internal/config"
	"github.com/sonroyaalmerol/kumaqueue/internal/playback"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/resolve"
	"github.com/sonroyaalmerol/kumaqueue/internal/spotify"
	"github.com/sonroyaalmerol/kumaqueue/internal/stream"
	"github.com/sonroyaalmerol/kumaqueue/internal/voice"
)

const shutdownGrace = 15 * time.Second

type Bot struct {
	cfg   *config.Bot
	dg    *discordgo.Session
	ctrl  *playback.Controller
	voice *voice.Manager
	cmd   *CommandHandler
}

// NewBot wires the bot's collaborators. ctx bounds every playback cycle.
func NewBot(ctx context.Context, cfg *config.Bot) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	api := apiclient.New(cfg)
	yt := stream.NewResolver(cfg)
	sp := spotify.NewClientCredentials(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret)
	reg := player.NewRegistry(player.DefaultOptions())
	vm := voice.NewManager(dg)

	ctrl := playback.New(ctx, playback.Deps{
		Registry: reg,
		Settings: api,
		Queue:    api,
		Requests: api,
		Media:    stream.NewProvider(yt),
		Notifier: channelNotifier{s: dg},
	}, playback.Config{
		StartTimeout: cfg.StartTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ReadyTimeout: cfg.ReadyTimeout,
	})

	return &Bot{
		cfg:   cfg,
		dg:    dg,
		ctrl:  ctrl,
		voice: vm,
		cmd: NewCommandHandler(api, ctrl, reg, &voiceJoiner{vm},
			resolve.New(yt, sp, cfg.PlaylistLimit), autocomplete.New(sp)),
	}, nil
}

// Run connects to the gateway and serves until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("connected", "user", s.State.User.Username, "guilds", len(r.Guilds))
		appID := s.State.User.ID

		if b.cfg.RegisterCommandsOnBot {
			if err := b.cmd.RegisterCommands(s, appID, ""); err != nil {
				slog.Error("register global commands", "err", err)
			}
			return
		}

		var wg sync.WaitGroup
		for _, g := range r.Guilds {
			wg.Add(1)
			go func(guildID string) {
				defer wg.Done()
				if err := b.cmd.RegisterCommands(s, appID, guildID); err != nil {
					slog.Error("register guild commands", "guildID", guildID, "err", err)
				}
			}(g.ID)
		}
		wg.Wait()

		if _, err := s.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{}); err != nil {
			slog.Error("clear global commands", "err", err)
		}
	})

	b.dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if b.cfg.RegisterCommandsOnBot {
			return
		}
		if err := b.cmd.RegisterCommands(s, s.State.User.ID, g.ID); err != nil {
			slog.Error("register guild commands on join", "guildID", g.ID, "err", err)
		}
	})

	b.dg.AddHandler(b.cmd.HandleInteraction)
	b.dg.AddHandler(b.leaveWhenAlone)

	if err := b.dg.Open(); err != nil {
		return err
	}
	defer b.dg.Close()

	<-ctx.Done()
	slog.Info("shutting down bot")

	// cycles see the cancelled context and drain on their own
	done := make(chan struct{})
	go func() {
		b.ctrl.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		slog.Warn("playback cycles still running at shutdown")
	}
	b.voice.DisconnectAll()
	return nil
}

// leaveWhenAlone stops the guild's cycle once its voice channel has no
// non-bot members left.
func (b *Bot) leaveWhenAlone(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	conn := b.voice.Get(vs.GuildID)
	if conn == nil {
		return
	}
	if listeners(s.State, vs.GuildID, conn.ChannelID()) > 0 {
		return
	}
	slog.Info("voice channel empty, leaving", "guildID", vs.GuildID, "channelID", conn.ChannelID())
	if !b.ctrl.Stop(vs.GuildID) {
		if err := conn.Disconnect(); err != nil {
			slog.Warn("disconnect failed", "guildID", vs.GuildID, "err", err)
		}
	}
}

// listeners counts the non-bot members in a voice channel. Members missing
// from the state count as listeners.
func listeners(st *discordgo.State, guildID, channelID string) int {
	g, err := st.Guild(guildID)
	if err != nil {
		return 1
	}
	n := 0
	for _, vs := range g.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		m := vs.Member
		if m == nil {
			m, _ = st.Member(guildID, vs.UserID)
		}
		if m != nil && m.User != nil && m.User.Bot {
			continue
		}
		n++
	}
	return n
}

type channelNotifier struct {
	s *discordgo.Session
}

func (n channelNotifier) Notify(ctx context.Context, channelID, msg string) {
	if _, err := n.s.ChannelMessageSend(channelID, msg, discordgo.WithContext(ctx)); err != nil {
		slog.Warn("notify failed", "channelID", channelID, "err", err)
	}
}

type voiceJoiner struct {
	m *voice.Manager
}

func (j *voiceJoiner) Join(guildID, channelID string) (playback.Transport, error) {
	c, err := j.m.Connect(guildID, channelID)
	if err != nil {
		return nil, err
	}
	return c, nil
}
