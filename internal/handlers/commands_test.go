package handlers

import (
	"context"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumaqueue/internal/locale"
	"github.com/sonroyaalmerol/kumaqueue/internal/model"
	"github.com/sonroyaalmerol/kumaqueue/internal/player"
	"github.com/sonroyaalmerol/kumaqueue/internal/resolve"
)

type harness struct {
	h      *CommandHandler
	store  *fakeStore
	cycles *fakeCycles
	joiner *fakeJoiner
	res    *fakeResolver
	reg    *player.Registry
}

func newHarness() *harness {
	hs := &harness{
		store:  newFakeStore(),
		cycles: &fakeCycles{},
		joiner: &fakeJoiner{},
		res:    &fakeResolver{},
		reg:    player.NewRegistry(player.Options{FrameInterval: time.Millisecond, ReadyPoll: time.Millisecond, BufferPackets: 8}),
	}
	hs.h = NewCommandHandler(hs.store, hs.cycles, hs.reg, hs.joiner, hs.res, nil)
	return hs
}

func inv(opts ...*discordgo.ApplicationCommandInteractionDataOption) invocation {
	i := invocation{
		guildID: "g1", guildName: "Guild",
		channelID: "text1", channelName: "general",
		userID: "u1", userName: "alice",
		voiceChannelID: "voice1",
		opts:           make(map[string]*discordgo.ApplicationCommandInteractionDataOption),
	}
	for _, o := range opts {
		i.opts[o.Name] = o
	}
	return i
}

func strOpt(name, v string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: v}
}

func intOpt(name string, v int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(v)}
}

func boolOpt(name string, v bool) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionBoolean, Value: v}
}

func videos(titles ...string) *resolve.Result {
	res := &resolve.Result{}
	for _, t := range titles {
		res.Videos = append(res.Videos, model.Video{ID: "v-" + t, URL: "https://youtu.be/" + t, Title: t, DurationSec: 60})
	}
	return res
}

func TestCommandTable(t *testing.T) {
	for _, c := range commands {
		if c.run == nil {
			t.Errorf("%s has no handler", c.def.Name)
		}
		if got := commandsByName[c.def.Name]; got.def != c.def {
			t.Errorf("%s not indexed", c.def.Name)
		}
	}
	if !commandsByName["play"].slow {
		t.Error("play should be deferred")
	}
}

func TestPlayNotInVoice(t *testing.T) {
	hs := newHarness()
	i := inv(strOpt("query", "song"))
	i.voiceChannelID = ""

	r := hs.h.cmdPlay(context.Background(), i)
	if !r.ephemeral || r.content != locale.Text("en", locale.NotInVoice) {
		t.Fatalf("response = %+v", r)
	}
	if len(hs.store.requests) != 0 || len(hs.joiner.joined) != 0 {
		t.Fatal("nothing should be recorded or joined")
	}
}

func TestPlayEnqueuesAndStarts(t *testing.T) {
	hs := newHarness()
	hs.res.res = videos("Song")

	r := hs.h.cmdPlay(context.Background(), inv(strOpt("query", "song")))
	if r.content != locale.Text("en", locale.Added, "Song") {
		t.Fatalf("content = %q", r.content)
	}
	if got := hs.store.titles(); !reflect.DeepEqual(got, []string{"Song"}) {
		t.Fatalf("queue = %v", got)
	}
	req := hs.store.requests["r1"]
	if req.ChannelID != "text1" || req.UserID != "u1" {
		t.Fatalf("request = %+v", req)
	}
	if !reflect.DeepEqual(hs.joiner.joined, []string{"voice1"}) {
		t.Fatalf("joined = %v", hs.joiner.joined)
	}
	if len(hs.cycles.starts) != 1 || hs.cycles.idled != 1 {
		t.Fatalf("starts = %d idled = %d", len(hs.cycles.starts), hs.cycles.idled)
	}
	s := hs.cycles.starts[0]
	if s.guildID != "g1" || s.channelID != "text1" || s.transport.(*fakeTransport).channelID != "voice1" {
		t.Fatalf("start = %+v", s)
	}
}

func TestPlayWhileCycleActive(t *testing.T) {
	hs := newHarness()
	hs.res.res = videos("Song")
	hs.cycles.running = true

	hs.h.cmdPlay(context.Background(), inv(strOpt("query", "song")))
	if len(hs.joiner.joined) != 0 || len(hs.cycles.starts) != 0 {
		t.Fatal("a running cycle is woken instead of joined again")
	}
	if hs.cycles.wakes != 1 || hs.cycles.idled != 0 {
		t.Fatalf("wakes = %d idled = %d", hs.cycles.wakes, hs.cycles.idled)
	}
	if got := hs.store.titles(); len(got) != 1 {
		t.Fatalf("queue = %v", got)
	}
}

func TestPlayInterruptKeepsListedOrder(t *testing.T) {
	hs := newHarness()
	hs.store.seed("Current", "Later")
	hs.res.res = videos("A", "B", "C")

	r := hs.h.cmdPlay(context.Background(), inv(strOpt("query", "list"), boolOpt("interrupt", true)))
	if r.content != locale.Text("en", locale.AddedPlaylist, 3) {
		t.Fatalf("content = %q", r.content)
	}
	want := []string{"Current", "A", "B", "C", "Later"}
	if got := hs.store.titles(); !reflect.DeepEqual(got, want) {
		t.Fatalf("queue = %v, want %v", got, want)
	}
}

func TestPlayInterruptSingle(t *testing.T) {
	hs := newHarness()
	hs.store.seed("Current", "Later")
	hs.res.res = videos("Next")

	r := hs.h.cmdPlay(context.Background(), inv(strOpt("query", "next"), boolOpt("interrupt", true)))
	if r.content != locale.Text("en", locale.AddedFront, "Next") {
		t.Fatalf("content = %q", r.content)
	}
	if got := hs.store.titles(); !reflect.DeepEqual(got, []string{"Current", "Next", "Later"}) {
		t.Fatalf("queue = %v", got)
	}
}

func TestPlayFailures(t *testing.T) {
	tests := []struct {
		name      string
		resolve   error
		push      error
		join      error
		want      locale.Key
		ephemeral bool
		queued    int
	}{
		{name: "not found", resolve: resolve.ErrNotFound, want: locale.NotFound, ephemeral: true},
		{name: "unsupported url", resolve: resolve.ErrUnsupportedURL, want: locale.NotFound, ephemeral: true},
		{name: "spotify disabled", resolve: resolve.ErrSpotifyOff, want: locale.NotFound, ephemeral: true},
		{name: "resolver broken", resolve: errBoom, want: locale.InternalError, ephemeral: true},
		{name: "push fails", push: errBoom, want: locale.InternalError},
		{name: "join fails", join: errBoom, want: locale.InternalError, queued: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := newHarness()
			hs.res.res, hs.res.err = videos("Song"), tt.resolve
			hs.store.failPush = tt.push
			hs.joiner.err = tt.join

			r := hs.h.cmdPlay(context.Background(), inv(strOpt("query", "song")))
			if r.content != locale.Text("en", tt.want) || r.ephemeral != tt.ephemeral {
				t.Fatalf("response = %+v", r)
			}
			if got := len(hs.store.titles()); got != tt.queued {
				t.Fatalf("queued = %d, want %d", got, tt.queued)
			}
			if len(hs.cycles.starts) != 0 {
				t.Fatal("cycle started")
			}
		})
	}
}

func TestPlayReportsMissingSpotifyTracks(t *testing.T) {
	hs := newHarness()
	hs.res.res = videos("A", "B")
	hs.res.res.NotFound = 2

	r := hs.h.cmdPlay(context.Background(), inv(strOpt("query", "https://open.spotify.com/album/x")))
	if !strings.HasSuffix(r.content, "(2 not found)") {
		t.Fatalf("content = %q", r.content)
	}
}

func TestControlsWithNothingPlaying(t *testing.T) {
	hs := newHarness()
	for name, run := range map[string]func(*CommandHandler, context.Context, invocation) response{
		"skip":  (*CommandHandler).cmdSkip,
		"pause": (*CommandHandler).cmdPause,
		"stop":  (*CommandHandler).cmdStop,
	} {
		t.Run(name, func(t *testing.T) {
			r := run(hs.h, context.Background(), inv())
			if !r.ephemeral || r.content != locale.Text("en", locale.NothingPlaying) {
				t.Fatalf("response = %+v", r)
			}
		})
	}

	r := hs.h.cmdNowPlaying(context.Background(), inv())
	if r.embed == nil || !r.ephemeral {
		t.Fatalf("nowplaying = %+v", r)
	}
}

func TestResumeRestartsStalledQueue(t *testing.T) {
	hs := newHarness()
	hs.store.seed("left-over")

	r := hs.h.cmdResume(context.Background(), inv())
	if r.content != locale.Text("en", locale.Resumed) {
		t.Fatalf("response = %+v", r)
	}
	if len(hs.cycles.starts) != 1 || !reflect.DeepEqual(hs.joiner.joined, []string{"voice1"}) {
		t.Fatalf("starts = %d joined = %v", len(hs.cycles.starts), hs.joiner.joined)
	}
	if got := hs.store.titles(); !reflect.DeepEqual(got, []string{"left-over"}) {
		t.Fatalf("queue = %v", got)
	}
}

func TestResumeWithoutQueue(t *testing.T) {
	tests := []struct {
		name  string
		voice string
		seed  bool
		want  locale.Key
	}{
		{name: "empty queue", voice: "voice1", want: locale.QueueEmpty},
		{name: "not in voice", seed: true, want: locale.NotInVoice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := newHarness()
			if tt.seed {
				hs.store.seed("left-over")
			}
			i := inv()
			i.voiceChannelID = tt.voice

			r := hs.h.cmdResume(context.Background(), i)
			if !r.ephemeral || r.content != locale.Text("en", tt.want) {
				t.Fatalf("response = %+v", r)
			}
			if len(hs.cycles.starts) != 0 || len(hs.joiner.joined) != 0 {
				t.Fatal("nothing should start")
			}
		})
	}
}

func TestStopEndsCycle(t *testing.T) {
	hs := newHarness()
	hs.cycles.stopped = true
	if r := hs.h.cmdStop(context.Background(), inv()); r.content != locale.Text("en", locale.Stopped) {
		t.Fatalf("content = %q", r.content)
	}
}

// endless yields packets until its context ends.
type endless struct{}

func (endless) ReadPacket(ctx context.Context) ([]byte, error) {
	if ctx.Err() != nil {
		return nil, io.EOF
	}
	return []byte{0xf8, 0xff, 0xfe}, nil
}

func (endless) Close() error { return nil }

type readyOutput struct{}

func (readyOutput) Ready() bool                            { return true }
func (readyOutput) Speaking(bool) error                    { return nil }
func (readyOutput) SendOpus(context.Context, []byte) error { return nil }

func TestControlsWhilePlaying(t *testing.T) {
	hs := newHarness()
	p := hs.reg.GetOrCreate("g1")
	p.Attach(readyOutput{})
	if _, err := p.Play(endless{}, player.Track{RequestID: "r1", Title: "Song", Duration: time.Minute}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.WaitFor(ctx, player.StatusPlaying); err != nil {
		t.Fatal(err)
	}

	if r := hs.h.cmdPause(ctx, inv()); r.content != locale.Text("en", locale.Paused) {
		t.Fatalf("pause = %+v", r)
	}
	if p.Status() != player.StatusPaused {
		t.Fatalf("status = %v", p.Status())
	}
	if r := hs.h.cmdPause(ctx, inv()); !r.ephemeral {
		t.Fatalf("second pause = %+v", r)
	}
	if r := hs.h.cmdResume(ctx, inv()); r.content != locale.Text("en", locale.Resumed) {
		t.Fatalf("resume = %+v", r)
	}

	r := hs.h.cmdNowPlaying(ctx, inv())
	if r.embed == nil || r.ephemeral || !strings.Contains(r.embed.Description, "Song") {
		t.Fatalf("nowplaying = %+v", r.embed)
	}

	if r := hs.h.cmdSkip(ctx, inv()); r.content != locale.Text("en", locale.Skipped) {
		t.Fatalf("skip = %+v", r)
	}
	if p.Status() != player.StatusIdle {
		t.Fatalf("status after skip = %v", p.Status())
	}
	if cause, _ := p.LastEnd(); cause != player.EndSkipped {
		t.Fatalf("cause = %v", cause)
	}
}

func TestQueueCommand(t *testing.T) {
	hs := newHarness()
	if r := hs.h.cmdQueue(context.Background(), inv()); r.content != locale.Text("en", locale.QueueEmpty) {
		t.Fatalf("empty = %+v", r)
	}

	hs.store.seed("Front", "Second", "Third")
	r := hs.h.cmdQueue(context.Background(), inv())
	if r.embed == nil {
		t.Fatalf("queue = %+v", r)
	}
	for _, title := range []string{"Front", "Second", "Third"} {
		if !strings.Contains(r.embed.Description, title) {
			t.Errorf("description lacks %q", title)
		}
	}

	r = hs.h.cmdQueue(context.Background(), inv(intOpt("page", 5)))
	if r.content != locale.Text("en", locale.BadPosition) {
		t.Fatalf("page 5 = %+v", r)
	}
}

func TestRemoveCommand(t *testing.T) {
	tests := []struct {
		pos   int
		want  string
		queue []string
	}{
		{pos: 1, want: locale.Text("en", locale.Removed, "Second"), queue: []string{"Front", "Third"}},
		{pos: 0, want: locale.Text("en", locale.BadPosition), queue: []string{"Front", "Second", "Third"}},
		{pos: 9, want: locale.Text("en", locale.BadPosition), queue: []string{"Front", "Second", "Third"}},
	}
	for _, tt := range tests {
		hs := newHarness()
		hs.store.seed("Front", "Second", "Third")
		r := hs.h.cmdRemove(context.Background(), inv(intOpt("position", tt.pos)))
		if r.content != tt.want {
			t.Errorf("remove %d: content = %q, want %q", tt.pos, r.content, tt.want)
		}
		if got := hs.store.titles(); !reflect.DeepEqual(got, tt.queue) {
			t.Errorf("remove %d: queue = %v", tt.pos, got)
		}
	}
}

func TestClearKeepsFrontWhileActive(t *testing.T) {
	hs := newHarness()
	hs.store.seed("Front", "Second", "Third")
	_, release, _ := hs.reg.TryAcquire("g1")

	r := hs.h.cmdClear(context.Background(), inv())
	if r.content != locale.Text("en", locale.Cleared, 2) {
		t.Fatalf("content = %q", r.content)
	}
	release()

	r = hs.h.cmdClear(context.Background(), inv())
	if r.content != locale.Text("en", locale.Cleared, 1) {
		t.Fatalf("content = %q", r.content)
	}
	if !reflect.DeepEqual(hs.store.cleared, []bool{true, false}) {
		t.Fatalf("keepFront = %v", hs.store.cleared)
	}
}

func TestHistoryCommand(t *testing.T) {
	hs := newHarness()
	played := time.Now()
	hs.store.history = []model.PlayRequest{{ID: "r1", UserID: "u1", Video: model.Video{Title: "Old"}, PlayedAt: &played}}

	r := hs.h.cmdHistory(context.Background(), inv())
	if r.embed == nil || !strings.Contains(r.embed.Description, "Old") {
		t.Fatalf("history = %+v", r.embed)
	}
}

func TestLanguageCommand(t *testing.T) {
	hs := newHarness()

	r := hs.h.cmdLanguage(context.Background(), inv(strOpt("code", "es")))
	if r.content != locale.Text("es", locale.LanguageSet, "es") {
		t.Fatalf("content = %q", r.content)
	}
	if hs.store.lang != "es" {
		t.Fatalf("lang = %q", hs.store.lang)
	}

	r = hs.h.cmdLanguage(context.Background(), inv(strOpt("code", "xx")))
	if !r.ephemeral || r.content != locale.Text("es", locale.BadLanguage, strings.Join(locale.Codes(), ", ")) {
		t.Fatalf("content = %q", r.content)
	}

	// replies follow the guild's language
	if r := hs.h.cmdStop(context.Background(), inv()); r.content != locale.Text("es", locale.NothingPlaying) {
		t.Fatalf("stop = %q", r.content)
	}
}

func TestListeners(t *testing.T) {
	st := discordgo.NewState()
	g := &discordgo.Guild{
		ID: "g1",
		VoiceStates: []*discordgo.VoiceState{
			{UserID: "bot", ChannelID: "voice1"},
			{UserID: "u1", ChannelID: "voice1"},
			{UserID: "u2", ChannelID: "voice2"},
		},
	}
	if err := st.GuildAdd(g); err != nil {
		t.Fatal(err)
	}
	if err := st.MemberAdd(&discordgo.Member{GuildID: "g1", User: &discordgo.User{ID: "bot", Bot: true}}); err != nil {
		t.Fatal(err)
	}

	if n := listeners(st, "g1", "voice1"); n != 1 {
		t.Fatalf("voice1 listeners = %d", n)
	}
	if n := listeners(st, "g1", "voice3"); n != 0 {
		t.Fatalf("voice3 listeners = %d", n)
	}
	if n := listeners(st, "unknown", "voice1"); n != 1 {
		t.Fatalf("unknown guild = %d", n)
	}
}
