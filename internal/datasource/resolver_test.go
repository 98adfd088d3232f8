package datasource

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Bottswana/BullyBot/internal/domain"
)

func TestResolver_KnownIdentifiers(t *testing.T) {
	r := NewResolver(Deps{})
	fitbit := Settings{"client_id": "a", "client_secret": "b", "refresh_token": "c"}
	s3 := Settings{"bucket": "b", "file": "k", "region": "eu-west-1", "key_id": "id", "secret": "s"}

	tests := []struct {
		id       string
		settings Settings
	}{
		{"fitbit", fitbit},
		{"FitBitDownload", fitbit},
		{"BullyBot.ExerciseDataSources.FitBitDownload", fitbit},
		{"s3", s3},
		{"AWSFileDownload", s3},
	}
	for _, tt := range tests {
		a, err := r.Build(Config{User: "u", AdapterID: tt.id, Settings: tt.settings})
		if err != nil {
			t.Fatalf("Build(%q): %v", tt.id, err)
		}
		if a == nil {
			t.Fatalf("Build(%q) returned nil adapter", tt.id)
		}
	}
}

func TestResolver_UnknownIsConfigurationError(t *testing.T) {
	r := NewResolver(Deps{})
	_, err := r.Build(Config{User: "u", AdapterID: "garmin"})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

func TestResolver_ResolveLogsAndReturnsNil(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewResolver(Deps{Log: zap.New(core)})

	if a := r.Resolve(Config{User: "alice", AdapterID: "fitbit", Settings: Settings{}}); a != nil {
		t.Fatal("misconfigured adapter should resolve to nil")
	}
	if a := r.Resolve(Config{User: "bob", AdapterID: "nope"}); a != nil {
		t.Fatal("unknown adapter should resolve to nil")
	}

	entries := logs.FilterMessage("data source unavailable").All()
	if len(entries) != 2 {
		t.Fatalf("want 2 warnings, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["user"]; got != "alice" {
		t.Fatalf("first warning user = %v", got)
	}
}

func TestSettings_GetNormalizesKeys(t *testing.T) {
	s := Settings{"RefreshToken": " abc ", "client-id": "x", "empty": " "}
	if got := s.Get("refresh_token"); got != "abc" {
		t.Fatalf("refresh_token = %q", got)
	}
	if got := s.Get("ClientID"); got != "x" {
		t.Fatalf("ClientID = %q", got)
	}
	if got := s.Get("empty", "client_id"); got != "x" {
		t.Fatalf("fallback = %q", got)
	}
}
