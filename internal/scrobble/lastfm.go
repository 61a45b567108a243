// Package scrobble submits played tracks to the Last.fm API. Submissions
// are best effort: a failed scrobble is logged and forgotten, never
// retried, and never blocks playback.
package scrobble

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"groovekeeper/internal/player"
)

const apiURL = "https://ws.audioscrobbler.com/2.0/"

// Client talks to the Last.fm web service. The zero-value rule for
// enablement is simple: no API key, no client.
type Client struct {
	apiKey string
	secret string
	http   *http.Client
	log    zerolog.Logger
}

// New returns nil when apiKey or secret is empty; callers treat a nil
// client as scrobbling disabled.
func New(apiKey, secret string, log zerolog.Logger) *Client {
	if apiKey == "" || secret == "" {
		return nil
	}
	return &Client{
		apiKey: apiKey,
		secret: secret,
		http:   &http.Client{Timeout: 15 * time.Second},
		log:    log.With().Str("component", "scrobble").Logger(),
	}
}

// GetSession exchanges an auth token for a session key and username.
func (c *Client) GetSession(ctx context.Context, token string) (username, sessionKey string, err error) {
	params := map[string]string{
		"method": "auth.getSession",
		"token":  token,
	}
	var out struct {
		Session struct {
			Name string `json:"name"`
			Key  string `json:"key"`
		} `json:"session"`
	}
	if err := c.call(ctx, params, &out); err != nil {
		return "", "", err
	}
	return out.Session.Name, out.Session.Key, nil
}

// AuthURL returns the page where a user grants this application access.
func (c *Client) AuthURL() string {
	return "https://www.last.fm/api/auth/?api_key=" + url.QueryEscape(c.apiKey)
}

// NowPlaying tells Last.fm what a user is listening to right now.
func (c *Client) NowPlaying(ctx context.Context, sessionKey string, t player.Track) error {
	params := map[string]string{
		"method": "track.updateNowPlaying",
		"artist": t.Author,
		"track":  t.Title,
		"sk":     sessionKey,
	}
	if d := int(t.Duration.Seconds()); d > 0 {
		params["duration"] = strconv.Itoa(d)
	}
	return c.call(ctx, params, nil)
}

// Scrobble records one finished listen. startedAt is when playback of
// the track began.
func (c *Client) Scrobble(ctx context.Context, sessionKey string, t player.Track, startedAt time.Time) error {
	params := map[string]string{
		"method":    "track.scrobble",
		"artist":    t.Author,
		"track":     t.Title,
		"timestamp": strconv.FormatInt(startedAt.Unix(), 10),
		"sk":        sessionKey,
	}
	if d := int(t.Duration.Seconds()); d > 0 {
		params["duration"] = strconv.Itoa(d)
	}
	return c.call(ctx, params, nil)
}

// call signs the request and POSTs it. out may be nil when the response
// body does not matter beyond the error check.
func (c *Client) call(ctx context.Context, params map[string]string, out any) error {
	params["api_key"] = c.apiKey
	params["api_sig"] = c.sign(params)
	params["format"] = "json"

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		Error   int    `json:"error"`
		Message string `json:"message"`
	}
	body := json.NewDecoder(resp.Body)
	if out != nil {
		// Decode into both the caller's shape and the error envelope.
		var raw json.RawMessage
		if err := body.Decode(&raw); err != nil {
			return fmt.Errorf("decoding last.fm response: %w", err)
		}
		if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != 0 {
			return fmt.Errorf("last.fm error %d: %s", envelope.Error, envelope.Message)
		}
		return json.Unmarshal(raw, out)
	}
	if err := body.Decode(&envelope); err != nil {
		return fmt.Errorf("decoding last.fm response: %w", err)
	}
	if envelope.Error != 0 {
		return fmt.Errorf("last.fm error %d: %s", envelope.Error, envelope.Message)
	}
	return nil
}

// sign builds the api_sig: params sorted by key, concatenated as
// key+value, secret appended, md5-hexed. format is excluded from the
// signature.
func (c *Client) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}
	b.WriteString(c.secret)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
