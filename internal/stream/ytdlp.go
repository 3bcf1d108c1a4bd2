package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	ytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/sonroyaalmerol/kumaqueue/internal/config"
)

// AudioFormat prefers opus in webm, then any opus, then the best audio.
const AudioFormat = "ba[acodec=opus][ext=webm]/ba[acodec^=opus]/bestaudio/best"

var ErrNoMedia = errors.New("no playable media url")

// Info is the subset of yt-dlp metadata the bot uses.
type Info struct {
	ID          string
	Title       string
	Uploader    string
	DurationSec int
	IsLive      bool
	WebpageURL  string
	Thumbnail   string
	StreamURL   string
}

type Resolver struct {
	cookiesPath string
	poToken     string
}

func NewResolver(cfg *config.Bot) *Resolver {
	return &Resolver{cookiesPath: cfg.YouTubeCookiesPath, poToken: cfg.YouTubePOToken}
}

var installOnce sync.Once

func ensureInstalled(ctx context.Context) {
	installOnce.Do(func() {
		if _, err := ytdlp.Install(ctx, nil); err != nil {
			slog.Warn("yt-dlp install failed, relying on PATH", "err", err)
		}
	})
}

func (r *Resolver) command(url string) *ytdlp.Command {
	cmd := ytdlp.New().NoCheckCertificates()
	if r.cookiesPath != "" {
		cmd = cmd.Cookies(r.cookiesPath)
	}
	if isYouTube(url) {
		args := "youtube:player-client=default,mweb"
		if r.poToken != "" {
			args += ";po_token=" + r.poToken
		}
		cmd = cmd.ExtractorArgs(args)
	}
	return cmd
}

func (r *Resolver) run(ctx context.Context, cmd *ytdlp.Command, url string) (*ytdlp.ExtractedInfo, error) {
	ensureInstalled(ctx)

	res, err := cmd.Run(ctx, url)
	if err != nil {
		if strings.Contains(err.Error(), "Sign in to confirm") {
			return nil, fmt.Errorf("yt-dlp %s (PO token may be required): %w", url, err)
		}
		return nil, fmt.Errorf("yt-dlp %s: %w", url, err)
	}
	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parse yt-dlp json: %w", err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return nil, fmt.Errorf("yt-dlp returned no info for %s", url)
	}
	return infos[0], nil
}

// Info resolves a single video URL or a "ytsearch1:" query. For a search
// the first result is returned.
func (r *Resolver) Info(ctx context.Context, url string) (*Info, error) {
	ext, err := r.run(ctx, r.command(url).Format(AudioFormat).DumpJSON(), url)
	if err != nil {
		return nil, err
	}
	if len(ext.Entries) > 0 {
		for _, e := range ext.Entries {
			if e != nil {
				return toInfo(e), nil
			}
		}
		return nil, fmt.Errorf("no results for %s", url)
	}
	return toInfo(ext), nil
}

// Playlist lists up to limit entries of a playlist, in playlist order,
// without resolving stream URLs.
func (r *Resolver) Playlist(ctx context.Context, url string, limit int) ([]Info, error) {
	ext, err := r.run(ctx, r.command(url).FlatPlaylist().DumpJSON(), url)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(ext.Entries))
	for _, e := range ext.Entries {
		if e == nil {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, *toInfo(e))
	}
	slog.Debug("playlist resolved", "url", url, "entries", len(out))
	return out, nil
}

// StreamURL resolves the direct media URL for a video page.
func (r *Resolver) StreamURL(ctx context.Context, url string) (string, error) {
	info, err := r.Info(ctx, url)
	if err != nil {
		return "", err
	}
	if info.StreamURL == "" {
		return "", ErrNoMedia
	}
	return info.StreamURL, nil
}

func toInfo(e *ytdlp.ExtractedInfo) *Info {
	info := &Info{
		ID:          e.ID,
		Title:       str(e.Title),
		Uploader:    str(e.Uploader),
		DurationSec: int(num(e.Duration)),
		IsLive:      flag(e.IsLive),
		WebpageURL:  str(e.WebpageURL),
	}
	if n := len(e.Thumbnails); n > 0 && e.Thumbnails[n-1] != nil {
		info.Thumbnail = e.Thumbnails[n-1].URL
	}
	if info.WebpageURL == "" && e.ID != "" {
		info.WebpageURL = "https://www.youtube.com/watch?v=" + e.ID
	}
	info.StreamURL = pickStreamURL(e)
	return info
}

// pickStreamURL prefers the requested formats, then the top-level url, then
// any listed format.
func pickStreamURL(e *ytdlp.ExtractedInfo) string {
	for _, rf := range e.RequestedFormats {
		if rf != nil && strings.HasPrefix(rf.URL, "http") {
			return rf.URL
		}
	}
	if u := str(e.URL); strings.HasPrefix(u, "http") {
		return u
	}
	for _, f := range e.Formats {
		if f != nil && strings.HasPrefix(f.URL, "http") {
			return f.URL
		}
	}
	return ""
}

func isYouTube(url string) bool {
	return strings.Contains(url, "youtube.com") || strings.Contains(url, "youtu.be")
}

func str(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func num(ptr *float64) float64 {
	if ptr == nil {
		return 0
	}
	return *ptr
}

func flag(ptr *bool) bool {
	if ptr == nil {
		return false
	}
	return *ptr
}
