// Package resolve turns a /play query into the YouTube videos to enqueue.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"github.com/sonroyaalmerol/kumaqueue/internal/model"
	"github.com/sonroyaalmerol/kumaqueue/internal/spotify"
	"github.com/sonroyaalmerol/kumaqueue/internal/stream"
)

var (
	ErrEmptyQuery     = errors.New("empty query")
	ErrNotFound       = errors.New("no results")
	ErrSpotifyOff     = errors.New("spotify is not configured")
	ErrUnsupportedURL = errors.New("unsupported url")
)

type Kind int

const (
	KindSearch Kind = iota
	KindVideo
	KindPlaylist
	KindSpotify
)

var videoID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Classify decides how a query is resolved. Bare 11-character ids are
// treated as YouTube videos.
func Classify(q string) (Kind, error) {
	q = strings.TrimSpace(q)
	switch {
	case q == "":
		return 0, ErrEmptyQuery
	case spotify.IsLink(q):
		return KindSpotify, nil
	case strings.HasPrefix(q, "http://") || strings.HasPrefix(q, "https://"):
		if !isYouTube(q) {
			return 0, fmt.Errorf("%w: %s", ErrUnsupportedURL, q)
		}
		if strings.Contains(q, "list=") && !strings.Contains(q, "v=") && !strings.Contains(q, "youtu.be/") {
			return KindPlaylist, nil
		}
		return KindVideo, nil
	case videoID.MatchString(q):
		return KindVideo, nil
	}
	return KindSearch, nil
}

func isYouTube(u string) bool {
	return strings.Contains(u, "youtube.com") || strings.Contains(u, "youtu.be")
}

// Result is what a query expanded to. NotFound counts Spotify tracks with no
// YouTube match.
type Result struct {
	Videos     []model.Video
	Collection string
	NotFound   int
}

type videoLookup interface {
	Info(ctx context.Context, url string) (*stream.Info, error)
	Playlist(ctx context.Context, url string, limit int) ([]stream.Info, error)
}

type trackLookup interface {
	Tracks(ctx context.Context, link string, limit int) ([]spotify.Track, spotify.Collection, error)
}

type Resolver struct {
	yt    videoLookup
	sp    trackLookup
	limit int
}

// New builds a resolver. A nil sp disables Spotify links.
func New(yt *stream.Resolver, sp *spotify.Client, playlistLimit int) *Resolver {
	r := &Resolver{yt: yt, limit: playlistLimit}
	if sp != nil {
		r.sp = sp
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, query string) (*Result, error) {
	q := strings.TrimSpace(query)
	kind, err := Classify(q)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindVideo:
		if videoID.MatchString(q) {
			q = "https://www.youtube.com/watch?v=" + q
		}
		return r.single(ctx, q)
	case KindPlaylist:
		return r.playlist(ctx, q)
	case KindSpotify:
		return r.spotify(ctx, q)
	default:
		return r.single(ctx, "ytsearch1:"+q)
	}
}

func (r *Resolver) single(ctx context.Context, target string) (*Result, error) {
	info, err := r.yt.Info(ctx, target)
	if err != nil {
		return nil, err
	}
	if info.ID == "" {
		return nil, ErrNotFound
	}
	return &Result{Videos: []model.Video{toVideo(*info)}}, nil
}

func (r *Resolver) playlist(ctx context.Context, url string) (*Result, error) {
	infos, err := r.yt.Playlist(ctx, url, r.limit)
	if err != nil {
		return nil, err
	}
	// private and deleted entries come back without an id
	videos := lo.FilterMap(infos, func(i stream.Info, _ int) (model.Video, bool) {
		return toVideo(i), i.ID != ""
	})
	if len(videos) == 0 {
		return nil, ErrNotFound
	}
	return &Result{Videos: videos}, nil
}

func (r *Resolver) spotify(ctx context.Context, link string) (*Result, error) {
	if r.sp == nil {
		return nil, ErrSpotifyOff
	}
	tracks, coll, err := r.sp.Tracks(ctx, link, r.limit)
	if err != nil {
		return nil, err
	}

	res := &Result{Collection: coll.Title}
	for _, t := range tracks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := r.yt.Info(ctx, "ytsearch1:"+t.Query())
		if err != nil || info.ID == "" {
			slog.Debug("no youtube match for spotify track", "track", t.Query(), "err", err)
			res.NotFound++
			continue
		}
		res.Videos = append(res.Videos, toVideo(*info))
	}
	if len(res.Videos) == 0 {
		return nil, ErrNotFound
	}
	return res, nil
}

func toVideo(i stream.Info) model.Video {
	url := i.WebpageURL
	if url == "" {
		url = "https://www.youtube.com/watch?v=" + i.ID
	}
	return model.Video{
		ID:          i.ID,
		URL:         url,
		Title:       lo.Ternary(i.Title != "", i.Title, i.ID),
		DurationSec: i.DurationSec,
		Thumbnail:   i.Thumbnail,
	}
}
