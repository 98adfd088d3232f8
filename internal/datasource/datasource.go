// Package datasource fetches a user's activity snapshot from a configured backend.
//
// Each backend is an Adapter built by a Constructor from the user's module
// settings. Adapters are built per operation and keep any credential cache on
// the instance, never in package state.
package datasource

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Bottswana/BullyBot/internal/domain"
)

// Adapter fetches today's activity snapshot for one configured user.
type Adapter interface {
	Download(ctx context.Context) (domain.Snapshot, error)
}

// Config is a user's data-source selection for one module.
type Config struct {
	User      string
	AdapterID string
	Settings  Settings
}

// Settings is the opaque key/value block from the user's module config.
// Keys match loosely: "RefreshToken", "refresh_token" and "refresh-token" are the same key.
type Settings map[string]string

// Get returns the first non-empty value among keys.
func (s Settings) Get(keys ...string) string {
	for _, want := range keys {
		want = normalizeKey(want)
		for k, v := range s {
			if normalizeKey(k) == want && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

// Clone returns a copy that can be handed out without sharing the map.
func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
}

// TokenStore persists rotated OAuth refresh tokens per user.
type TokenStore interface {
	RefreshToken(user string) (string, bool)
	SaveRefreshToken(user, token string) error
}

// Deps are the shared collaborators handed to every constructor.
type Deps struct {
	HTTP   *http.Client
	Tokens TokenStore
	Log    *zap.Logger
	Now    func() time.Time
}

// DefaultTimeout bounds every outbound adapter request.
const DefaultTimeout = 15 * time.Second

func (d Deps) withDefaults() Deps {
	if d.HTTP == nil {
		d.HTTP = &http.Client{Timeout: DefaultTimeout}
	}
	if d.Tokens == nil {
		d.Tokens = nopTokens{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

type nopTokens struct{}

func (nopTokens) RefreshToken(string) (string, bool)  { return "", false }
func (nopTokens) SaveRefreshToken(string, string) error { return nil }

func missingSetting(adapter, key string) error {
	return fmt.Errorf("%w: %s: missing setting %q", domain.ErrConfiguration, adapter, key)
}
