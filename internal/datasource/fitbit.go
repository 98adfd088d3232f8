package datasource

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/Bottswana/BullyBot/internal/domain"
)

const fitbitBaseURL = "https://api.fitbit.com"

// Fitbit reads the daily activity summary from the Fitbit Web API.
// It trades the user's refresh token for an access token on first use and
// caches that access token on the instance.
type Fitbit struct {
	user   string
	base   string
	oauth  *oauth2.Config
	http   *http.Client
	tokens TokenStore
	loc    *time.Location
	now    func() time.Time
	log    *zap.Logger

	mu           sync.Mutex
	refreshToken string
	accessToken  string
}

var _ Adapter = (*Fitbit)(nil)

// NewFitbit builds a Fitbit adapter. Required settings: client_id,
// client_secret (or client_token, the base64 "id:secret" Basic credential),
// refresh_token. Optional: timezone (IANA name for "today"),
// base_url. A refresh token saved by an earlier rotation wins over the
// configured one.
func NewFitbit(cfg Config, deps Deps) (Adapter, error) {
	deps = deps.withDefaults()
	s := cfg.Settings

	clientID, secret := s.Get("client_id"), s.Get("client_secret")
	if clientID == "" && secret == "" {
		if tok := s.Get("client_token"); tok != "" {
			var err error
			if clientID, secret, err = decodeClientToken(tok); err != nil {
				return nil, err
			}
		}
	}
	if clientID == "" {
		return nil, missingSetting("fitbit", "client_id")
	}
	if secret == "" {
		return nil, missingSetting("fitbit", "client_secret")
	}
	refresh := s.Get("refresh_token")
	if saved, ok := deps.Tokens.RefreshToken(cfg.User); ok {
		refresh = saved
	}
	if refresh == "" {
		return nil, missingSetting("fitbit", "refresh_token")
	}
	loc, err := domain.LoadLocation(s.Get("timezone"))
	if err != nil {
		return nil, fmt.Errorf("%w: fitbit: timezone: %v", domain.ErrConfiguration, err)
	}
	base := strings.TrimRight(s.Get("base_url"), "/")
	if base == "" {
		base = fitbitBaseURL
	}

	return &Fitbit{
		user: cfg.User,
		base: base,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: secret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  base + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		http:         deps.HTTP,
		tokens:       deps.Tokens,
		loc:          loc,
		now:          deps.Now,
		log:          deps.Log.With(zap.String("user", cfg.User), zap.String("datasource", "fitbit")),
		refreshToken: refresh,
	}, nil
}

// Download returns today's snapshot. A transient failure (network, 5xx,
// rejected access token) clears the cached access token and retries once.
func (f *Fitbit) Download(ctx context.Context) (domain.Snapshot, error) {
	snap, err := f.fetch(ctx)
	if err == nil || !errors.Is(err, domain.ErrTransientFetch) || ctx.Err() != nil {
		return snap, err
	}
	f.log.Debug("fitbit fetch failed, retrying with a fresh access token", zap.Error(err))
	f.clearAccessToken()
	return f.fetch(ctx)
}

func (f *Fitbit) fetch(ctx context.Context) (domain.Snapshot, error) {
	token, err := f.token(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}

	now := f.now().In(f.loc)
	url := fmt.Sprintf("%s/1/user/-/activities/date/%s.json", f.base, now.Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: fitbit: %v", domain.ErrConfiguration, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: fitbit activity request: %v", domain.ErrTransientFetch, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.Snapshot{}, fmt.Errorf("%w: fitbit rejected access token", domain.ErrTransientFetch)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return domain.Snapshot{}, fmt.Errorf("%w: fitbit activity status %d", domain.ErrTransientFetch, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return domain.Snapshot{}, fmt.Errorf("%w: fitbit activity status %d", domain.ErrConfiguration, resp.StatusCode)
	}

	var body fitbitActivityResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPayload)).Decode(&body); err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: fitbit activity body: %v", domain.ErrDecode, err)
	}
	return body.snapshot(now), nil
}

// token returns the cached access token, refreshing it when empty.
func (f *Fitbit) token(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accessToken != "" {
		return f.accessToken, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.http)
	tok, err := f.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: f.refreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode >= 400 && re.Response.StatusCode < 500 {
			return "", fmt.Errorf("%w: fitbit refresh rejected: %v", domain.ErrConfiguration, err)
		}
		return "", fmt.Errorf("%w: fitbit refresh: %v", domain.ErrTransientFetch, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: fitbit refresh returned no access token", domain.ErrDecode)
	}

	f.accessToken = tok.AccessToken
	if tok.RefreshToken != "" && tok.RefreshToken != f.refreshToken {
		f.refreshToken = tok.RefreshToken
		if err := f.tokens.SaveRefreshToken(f.user, tok.RefreshToken); err != nil {
			f.log.Error("saving rotated refresh token failed; it will be lost on restart", zap.Error(err))
		}
	}
	f.log.Debug("fitbit access token refreshed")
	return f.accessToken, nil
}

// decodeClientToken splits a base64 "id:secret" Basic credential.
func decodeClientToken(tok string) (id, secret string, err error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(tok, "Basic "))
	if err != nil {
		return "", "", fmt.Errorf("%w: fitbit: client_token is not base64: %v", domain.ErrConfiguration, err)
	}
	id, secret, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" || secret == "" {
		return "", "", fmt.Errorf("%w: fitbit: client_token is not id:secret", domain.ErrConfiguration)
	}
	return id, secret, nil
}

func (f *Fitbit) clearAccessToken() {
	f.mu.Lock()
	f.accessToken = ""
	f.mu.Unlock()
}

// fitbitActivityResponse is the subset of GET /1/user/-/activities/date/{date}.json we read.
type fitbitActivityResponse struct {
	Activities []fitbitActivity `json:"activities"`
	Summary    *struct {
		VeryActiveMinutes *float64 `json:"veryActiveMinutes"`
		Steps             *float64 `json:"steps"`
		RestingHeartRate  *float64 `json:"restingHeartRate"`
	} `json:"summary"`
}

type fitbitActivity struct {
	Duration int64 `json:"duration"` // milliseconds
}

func (r fitbitActivityResponse) snapshot(now time.Time) domain.Snapshot {
	snap := domain.Snapshot{CapturedAt: now.Unix()}
	if r.Summary != nil {
		snap.StepCount = r.Summary.Steps
		snap.RestingHeartRate = r.Summary.RestingHeartRate
		snap.ActiveMinutes = r.Summary.VeryActiveMinutes
	}
	// A per-activity breakdown wins over the daily total. Each activity is
	// rounded up to a whole minute before summing.
	if r.Activities != nil {
		var total int64
		for _, a := range r.Activities {
			if a.Duration <= 0 {
				continue
			}
			total += (a.Duration + 59_999) / 60_000
		}
		snap.ActiveMinutes = domain.Float(float64(total))
	}
	return snap
}
