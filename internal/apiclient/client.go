// Package apiclient is the bot's typed client for the kumaqueue REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sonroyaalmerol/kumaqueue/internal/config"
	"github.com/sonroyaalmerol/kumaqueue/internal/model"
	"golang.org/x/time/rate"
)

const defaultTimeout = 15 * time.Second

var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx answer other than 404.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

type Client struct {
	base    string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

func New(cfg *config.Bot) *Client {
	return NewClient(cfg.APIURL, cfg.APIToken, cfg.APIRateLimit, nil)
}

// NewClient builds a client allowing rps requests per second. A nil hc gets
// a client with a default timeout.
func NewClient(baseURL, token string, rps float64, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	burst := max(1, int(rps))
	return &Client{
		base:    strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er model.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		if er.Message == "" {
			er.Message = http.StatusText(resp.StatusCode)
		}
		return &StatusError{Status: resp.StatusCode, Message: er.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func seg(s string) string { return url.PathEscape(s) }
