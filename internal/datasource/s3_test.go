package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Bottswana/BullyBot/internal/domain"
)

func newS3Fixture(t *testing.T, h http.HandlerFunc) Adapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	a, err := NewS3(Config{User: "bob", AdapterID: "s3", Settings: Settings{
		"Bucket":   "health",
		"File":     "bob/today.json",
		"Region":   "eu-west-2",
		"KeyID":    "AKIDEXAMPLE",
		"Secret":   "secret",
		"endpoint": srv.URL,
	}}, Deps{HTTP: srv.Client()})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	return a
}

func TestS3_DownloadDecodesSnapshot(t *testing.T) {
	a := newS3Fixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/health/bob/today.json" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "AWS4-HMAC-SHA256") {
			t.Errorf("request is not signed: %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"activeMinutes": 22.5, "restingHeartRate": 58, "numberSteps": 9000, "uploadDate": 1746432000}`))
	})

	snap, err := a.Download(context.Background())
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if snap.ActiveMinutes == nil || *snap.ActiveMinutes != 22.5 {
		t.Fatalf("ActiveMinutes = %v", snap.ActiveMinutes)
	}
	if snap.StepCount == nil || *snap.StepCount != 9000 {
		t.Fatalf("StepCount = %v", snap.StepCount)
	}
	if snap.CapturedAt != 1746432000 {
		t.Fatalf("CapturedAt = %d", snap.CapturedAt)
	}
}

func TestS3_MalformedBodyIsDecodeError(t *testing.T) {
	a := newS3Fixture(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	if _, err := a.Download(context.Background()); !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestS3_MissingKeyIsConfiguration(t *testing.T) {
	var calls atomic.Int32
	a := newS3Fixture(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
	})
	if _, err := a.Download(context.Background()); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("calls = %d, want 1 (client errors are not retried)", n)
	}
}

func TestS3_ServerErrorRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	a := newS3Fixture(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	if _, err := a.Download(context.Background()); !errors.Is(err, domain.ErrTransientFetch) {
		t.Fatalf("err = %v, want ErrTransientFetch", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
}

func TestS3_RequiresSettings(t *testing.T) {
	full := Settings{"bucket": "b", "file": "k", "region": "r", "key_id": "id", "secret": "s"}
	for _, drop := range []string{"bucket", "file", "region", "key_id", "secret"} {
		s := full.Clone()
		delete(s, drop)
		if _, err := NewS3(Config{Settings: s}, Deps{}); !errors.Is(err, domain.ErrConfiguration) {
			t.Fatalf("without %s: err = %v, want ErrConfiguration", drop, err)
		}
	}
}
