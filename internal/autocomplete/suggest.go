// Package autocomplete produces /play option suggestions.
package autocomplete

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	"github.com/sonroyaalmerol/kumaqueue/internal/spotify"
)

const (
	suggestURL = "https://suggestqueries.google.com/complete/search"
	// Discord rejects choices with longer names or values.
	maxChoiceLen = 100
)

type trackSearch interface {
	Search(ctx context.Context, query string, limit int) ([]spotify.Track, error)
}

type Suggester struct {
	endpoint string
	http     *http.Client
	sp       trackSearch
}

// New builds a suggester. A nil sp leaves out Spotify suggestions.
func New(sp *spotify.Client) *Suggester {
	s := &Suggester{endpoint: suggestURL, http: &http.Client{Timeout: 2 * time.Second}}
	if sp != nil {
		s.sp = sp
	}
	return s
}

// YouTube returns search completions from the YouTube suggest endpoint.
func (s *Suggester) YouTube(ctx context.Context, query string) ([]string, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("client", "firefox")
	q.Set("ds", "yt")
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggest: status %d", resp.StatusCode)
	}

	// ["query", ["completion", ...], ...]
	var parsed []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed) < 2 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(parsed[1], &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Choices merges YouTube completions with Spotify tracks, Spotify taking at
// most half of limit.
func (s *Suggester) Choices(ctx context.Context, query string, limit int) []*discordgo.ApplicationCommandOptionChoice {
	if limit <= 0 {
		limit = 10
	}

	var sp []spotify.Track
	if s.sp != nil {
		var err error
		if sp, err = s.sp.Search(ctx, query, limit/2); err != nil {
			slog.Debug("spotify suggestions failed", "err", err)
			sp = nil
		}
	}

	yt, err := s.YouTube(ctx, query)
	if err != nil {
		slog.Debug("youtube suggestions failed", "err", err)
	}
	yt = lo.Uniq(yt)
	if n := limit - len(sp); len(yt) > n {
		yt = yt[:n]
	}

	out := lo.Map(yt, func(q string, _ int) *discordgo.ApplicationCommandOptionChoice {
		return choice("YouTube: "+q, q)
	})
	for _, t := range sp {
		out = append(out, choice("Spotify: "+t.Query(), t.Query()))
	}
	return out
}

func choice(name, value string) *discordgo.ApplicationCommandOptionChoice {
	return &discordgo.ApplicationCommandOptionChoice{
		Name:  clip(name),
		Value: clip(value),
	}
}

func clip(s string) string {
	r := []rune(s)
	if len(r) <= maxChoiceLen {
		return s
	}
	return string(r[:maxChoiceLen-1]) + "…"
}
