// Package spotify turns Spotify links into track names that can be searched
// on YouTube.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

var ErrUnsupported = errors.New("unsupported spotify link")

type Track struct {
	Name   string
	Artist string
}

// Query is the YouTube search text for the track.
func (t Track) Query() string {
	if t.Artist == "" {
		return t.Name
	}
	return t.Artist + " - " + t.Name
}

// Collection describes the album or playlist a set of tracks came from.
type Collection struct {
	Title string
	URL   string
}

type Client struct {
	raw *spotify.Client
}

// NewClientCredentials returns nil when either credential is empty.
func NewClientCredentials(ctx context.Context, clientID, clientSecret string) *Client {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	return &Client{raw: spotify.New(cfg.Client(ctx), spotify.WithRetry(true))}
}

// IsLink reports whether s looks like a Spotify URL or URI.
func IsLink(s string) bool {
	return strings.HasPrefix(s, "spotify:") || strings.Contains(s, "open.spotify.com")
}

// ParseID splits a link into its kind (track, album, playlist, artist) and id.
func ParseID(raw string) (kind string, id spotify.ID, err error) {
	if rest, ok := strings.CutPrefix(raw, "spotify:"); ok {
		parts := strings.Split(rest, ":")
		if len(parts) != 2 || parts[1] == "" {
			return "", "", fmt.Errorf("%w: %s", ErrUnsupported, raw)
		}
		kind, id = parts[0], spotify.ID(parts[1])
	} else {
		u, err := url.Parse(raw)
		if err != nil {
			return "", "", err
		}
		if u.Host != "open.spotify.com" && u.Host != "www.open.spotify.com" {
			return "", "", fmt.Errorf("%w: %s", ErrUnsupported, raw)
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		// localized links carry a leading intl-xx segment
		if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
			parts = parts[1:]
		}
		if len(parts) < 2 || parts[1] == "" {
			return "", "", fmt.Errorf("%w: %s", ErrUnsupported, raw)
		}
		kind, id = parts[0], spotify.ID(parts[1])
	}
	switch kind {
	case "track", "album", "playlist", "artist":
		return kind, id, nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnsupported, raw)
}

// Tracks lists up to limit tracks behind a link, in source order.
func (c *Client) Tracks(ctx context.Context, link string, limit int) ([]Track, Collection, error) {
	kind, id, err := ParseID(link)
	if err != nil {
		return nil, Collection{}, err
	}
	switch kind {
	case "track":
		t, err := c.raw.GetTrack(ctx, id)
		if err != nil {
			return nil, Collection{}, err
		}
		return []Track{{Name: t.Name, Artist: firstArtist(t.Artists)}}, Collection{}, nil
	case "album":
		return c.album(ctx, id, limit)
	case "playlist":
		return c.playlist(ctx, id, limit)
	default:
		return c.artistTop(ctx, id, limit)
	}
}

func (c *Client) album(ctx context.Context, id spotify.ID, limit int) ([]Track, Collection, error) {
	alb, err := c.raw.GetAlbum(ctx, id)
	if err != nil {
		return nil, Collection{}, err
	}
	page, err := c.raw.GetAlbumTracks(ctx, id)
	if err != nil {
		return nil, Collection{}, err
	}
	var out []Track
	for {
		out = append(out, lo.Map(page.Tracks, func(t spotify.SimpleTrack, _ int) Track {
			return Track{Name: t.Name, Artist: firstArtist(t.Artists)}
		})...)
		if full(out, limit) || page.Next == "" {
			break
		}
		if err := c.raw.NextPage(ctx, page); err != nil {
			break
		}
	}
	return truncate(out, limit), Collection{Title: alb.Name, URL: alb.ExternalURLs["spotify"]}, nil
}

func (c *Client) playlist(ctx context.Context, id spotify.ID, limit int) ([]Track, Collection, error) {
	pl, err := c.raw.GetPlaylist(ctx, id)
	if err != nil {
		return nil, Collection{}, err
	}
	page, err := c.raw.GetPlaylistItems(ctx, id)
	if err != nil {
		return nil, Collection{}, err
	}
	var out []Track
	for {
		// episodes and local files have no track
		out = append(out, lo.FilterMap(page.Items, func(it spotify.PlaylistItem, _ int) (Track, bool) {
			if it.Track.Track == nil {
				return Track{}, false
			}
			return Track{Name: it.Track.Track.Name, Artist: firstArtist(it.Track.Track.Artists)}, true
		})...)
		if full(out, limit) || page.Next == "" {
			break
		}
		if err := c.raw.NextPage(ctx, page); err != nil {
			break
		}
	}
	return truncate(out, limit), Collection{Title: pl.Name, URL: pl.ExternalURLs["spotify"]}, nil
}

func (c *Client) artistTop(ctx context.Context, id spotify.ID, limit int) ([]Track, Collection, error) {
	top, err := c.raw.GetArtistsTopTracks(ctx, id, "US")
	if err != nil {
		return nil, Collection{}, err
	}
	out := lo.Map(top, func(t spotify.FullTrack, _ int) Track {
		return Track{Name: t.Name, Artist: firstArtist(t.Artists)}
	})
	return truncate(out, limit), Collection{}, nil
}

// Search returns up to limit track suggestions for autocomplete.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Track, error) {
	res, err := c.raw.Search(ctx, query, spotify.SearchTypeTrack)
	if err != nil {
		return nil, err
	}
	if res.Tracks == nil {
		return nil, nil
	}
	out := lo.Map(res.Tracks.Tracks, func(t spotify.FullTrack, _ int) Track {
		return Track{Name: t.Name, Artist: firstArtist(t.Artists)}
	})
	return truncate(out, limit), nil
}

func firstArtist(a []spotify.SimpleArtist) string {
	if len(a) == 0 {
		return ""
	}
	return a[0].Name
}

func full[T any](s []T, limit int) bool { return limit > 0 && len(s) >= limit }

func truncate[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
