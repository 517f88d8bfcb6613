// Package sessionservice authenticates a connecting client against
// Mojang's session server for ClientOnly mode, per spec.md §4.H. Built
// on github.com/valyala/fasthttp, the HTTP client the enrichment corpus
// uses for exactly this kind of short-lived external REST call.
package sessionservice

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/Shadowner/Infrarust/internal/perrors"
)

// DefaultBaseURL is Mojang's session server hasJoined endpoint.
const DefaultBaseURL = "https://sessionserver.mojang.com/session/minecraft/hasJoined"

// DefaultCacheTTL bounds how long an authenticated profile is reused for
// a repeat (username, server_id) pair, per spec.md §4.H.
const DefaultCacheTTL = 5 * time.Minute

// Property is one signed profile property (e.g. "textures") Mojang
// returns alongside an authenticated profile.
type Property struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

// Profile is an authenticated player's identity, as returned by
// hasJoined.
type Profile struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Properties []Property `json:"properties,omitempty"`
}

type cacheEntry struct {
	profile    Profile
	insertedAt time.Time
}

// Client authenticates players against Mojang's session server, caching
// successful results for DefaultCacheTTL so that retried joins within
// that window avoid a redundant round trip.
type Client struct {
	BaseURL string
	TTL     time.Duration

	http *fasthttp.Client

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewClient constructs a session-service Client with sane defaults.
func NewClient() *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		TTL:     DefaultCacheTTL,
		http: &fasthttp.Client{
			MaxConnsPerHost:     256,
			MaxIdleConnDuration: 30 * time.Second,
			ReadTimeout:         5 * time.Second,
			WriteTimeout:        5 * time.Second,
		},
		cache: map[string]cacheEntry{},
	}
}

// HasJoined validates that username completed a client->Mojang join for
// serverIDHash, optionally pinned to clientIP (Mojang accepts ip= only
// when the server opted into this check; callers pass "" to omit it).
// A non-200 response is treated as authentication failure, per spec.md
// §4.H: "any non-200 response (including 204 No Content) is an
// AuthFailed for that login attempt."
func (c *Client) HasJoined(username, serverIDHash, clientIP string) (Profile, error) {
	cacheKey := username + "\x00" + serverIDHash
	if p, ok := c.cached(cacheKey); ok {
		return p, nil
	}

	q := url.Values{}
	q.Set("username", username)
	q.Set("serverId", serverIDHash)
	if clientIP != "" {
		q.Set("ip", clientIP)
	}
	reqURL := c.BaseURL + "?" + q.Encode()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(reqURL)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := c.http.DoTimeout(req, resp, 5*time.Second); err != nil {
		return Profile{}, perrors.Wrap(perrors.AuthFailed, "session service unreachable", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return Profile{}, perrors.New(perrors.AuthFailed, fmt.Sprintf("session service returned status %d", resp.StatusCode()))
	}

	var profile Profile
	if err := json.Unmarshal(resp.Body(), &profile); err != nil {
		return Profile{}, perrors.Wrap(perrors.AuthFailed, "malformed session service response", err)
	}

	c.insert(cacheKey, profile)
	return profile, nil
}

func (c *Client) cached(key string) (Profile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.cache[key]
	if !ok {
		return Profile{}, false
	}
	if time.Since(e.insertedAt) > c.TTL {
		delete(c.cache, key)
		return Profile{}, false
	}
	return e.profile, true
}

func (c *Client) insert(key string, p Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{profile: p, insertedAt: time.Now()}
}
