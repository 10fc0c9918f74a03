package xbl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"
	"golang.org/x/time/rate"

	"github.com/warden-ac/warden/werror"
)

const (
	peopleHubURL = "https://peoplehub.xboxlive.com"
	presenceURL  = "https://userpresence.xboxlive.com"

	cacheTTL = 5 * time.Minute
)

// Authorizer attaches Xbox Live authentication to an outbound request.
type Authorizer interface {
	Authorize(ctx context.Context, req *http.Request) error
}

// Client implements Source against the Xbox Live peoplehub and presence
// services. Queries are rate limited and reputation snapshots are cached
// for a short TTL, since the same account tends to be looked up repeatedly
// around a flappy connection.
type Client struct {
	http *http.Client
	auth Authorizer
	log  zerolog.Logger

	limiter *rate.Limiter

	// Base URLs are fields so tests can point the client at a local server.
	peopleBase   string
	presenceBase string

	mu    sync.Mutex
	cache map[uint64]cachedSnapshot
}

type cachedSnapshot struct {
	snap Snapshot
	at   time.Time
}

// NewClient creates a Client. The limiter defaults to one query per second
// with a small burst, which keeps the gateway well under Xbox Live's
// throttling budget even during a join wave.
func NewClient(auth Authorizer, log zerolog.Logger) *Client {
	return &Client{
		http:         &http.Client{Timeout: 10 * time.Second},
		auth:         auth,
		log:          log.With().Str("component", "xbl").Logger(),
		limiter:      rate.NewLimiter(rate.Every(time.Second), 3),
		peopleBase:   peopleHubURL,
		presenceBase: presenceURL,
		cache:        make(map[uint64]cachedSnapshot),
	}
}

type peopleResponse struct {
	People []struct {
		GamerScore string `json:"gamerScore"`
		Detail     struct {
			FollowerCount  int `json:"followerCount"`
			FollowingCount int `json:"followingCount"`
		} `json:"detail"`
	} `json:"people"`
}

// Reputation fetches the social snapshot for the given XUID.
func (c *Client) Reputation(ctx context.Context, xuid string) (*Snapshot, error) {
	key := xxh3.HashString(xuid)
	c.mu.Lock()
	if e, ok := c.cache[key]; ok && time.Since(e.at) < cacheTTL {
		c.mu.Unlock()
		snap := e.snap
		return &snap, nil
	}
	c.mu.Unlock()

	url := fmt.Sprintf("%s/users/me/people/xuids(%s)/decoration/detail", c.peopleBase, xuid)
	var resp peopleResponse
	if err := c.get(ctx, url, 3, &resp); err != nil {
		return nil, err
	}
	if len(resp.People) == 0 {
		return nil, ErrUnavailable
	}

	p := resp.People[0]
	snap := Snapshot{
		SocialScore: atoiLoose(p.GamerScore),
		Connections: p.Detail.FollowingCount,
		Followers:   p.Detail.FollowerCount,
	}

	c.mu.Lock()
	c.cache[key] = cachedSnapshot{snap: snap, at: time.Now()}
	c.mu.Unlock()
	return &snap, nil
}

type presenceResponse struct {
	State   string `json:"state"`
	Devices []struct {
		Type   string `json:"type"`
		Titles []struct {
			Name  string `json:"name"`
			State string `json:"state"`
		} `json:"titles"`
	} `json:"devices"`
}

// Presence fetches the active game sessions for the given XUID. Sessions on
// devices with no active title are filtered out.
func (c *Client) Presence(ctx context.Context, xuid string) ([]DeviceSession, error) {
	url := fmt.Sprintf("%s/users/xuid(%s)", c.presenceBase, xuid)
	var resp presenceResponse
	if err := c.get(ctx, url, 3, &resp); err != nil {
		return nil, err
	}

	var sessions []DeviceSession
	for _, d := range resp.Devices {
		for _, t := range d.Titles {
			if t.State != "Active" {
				continue
			}
			sessions = append(sessions, DeviceSession{DeviceType: d.Type, TitleName: t.Name})
		}
	}
	return sessions, nil
}

// get performs one authorized, rate-limited GET and decodes the JSON body.
func (c *Client) get(ctx context.Context, url string, contractVersion int, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return werror.Wrap("xbl: rate limit wait", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return werror.Wrap("xbl: build request", err)
	}
	req.Header.Set("x-xbl-contract-version", fmt.Sprint(contractVersion))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US")

	if err := c.auth.Authorize(ctx, req); err != nil {
		return werror.Wrap("xbl: authorize", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return werror.Wrap("xbl: request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusTooManyRequests:
		c.log.Debug().Int("status", resp.StatusCode).Str("url", url).Msg("Profile unavailable")
		return ErrUnavailable
	default:
		return werror.Newf("xbl: unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return werror.Wrap("xbl: decode response", err)
	}
	return nil
}

// atoiLoose parses the numeric strings Xbox Live embeds in JSON ("12345"),
// returning 0 for anything unparseable.
func atoiLoose(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}
