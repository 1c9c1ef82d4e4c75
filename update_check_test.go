package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsNewerVersion(t *testing.T) {
	tests := []struct {
		latest, current string
		want            bool
	}{
		{"1.2.0", "1.1.9", true},
		{"v1.2.0", "1.2.0", false},
		{"1.2.0", "v1.10.0", false},
		{"1.0.0", "1.0.0-rc1", true},
		{"1.0.0", "dev", false},
		{"", "1.0.0", false},
	}
	for _, tt := range tests {
		if got := isNewerVersion(tt.latest, tt.current); got != tt.want {
			t.Errorf("isNewerVersion(%q, %q) = %v, want %v", tt.latest, tt.current, got, tt.want)
		}
	}
}

func newTestChecker(t *testing.T, h http.HandlerFunc) *UpdateChecker {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	u := NewUpdateChecker("example/repo", 0)
	u.url = srv.URL
	return u
}

func TestUpdateCheckerCheck(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantRetry  bool
		wantErr    bool
		wantLatest string
	}{
		{"release", http.StatusOK, `{"tag_name":"v1.3.0"}`, false, false, "1.3.0"},
		{"prerelease ignored", http.StatusOK, `{"tag_name":"v2.0.0-beta","prerelease":true}`, false, false, ""},
		{"no releases", http.StatusNotFound, ``, false, false, ""},
		{"rate limited", http.StatusTooManyRequests, ``, true, true, ""},
		{"server error", http.StatusBadGateway, ``, true, true, ""},
		{"tag not semver", http.StatusOK, `{"tag_name":"nightly"}`, false, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
				if ua := r.Header.Get("User-Agent"); ua != AppName+"/"+Version {
					t.Errorf("User-Agent = %q", ua)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := u.check(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("check() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, errRetryLater); got != tt.wantRetry {
				t.Errorf("errors.Is(err, errRetryLater) = %v, want %v", got, tt.wantRetry)
			}

			info := u.Info()
			if info.Latest != tt.wantLatest {
				t.Errorf("Latest = %q, want %q", info.Latest, tt.wantLatest)
			}
			if info.UpdateAvail {
				t.Error("UpdateAvail = true for a dev build")
			}
		})
	}
}

func TestUpdateCheckerSendsETag(t *testing.T) {
	var gotETag string
	u := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		gotETag = r.Header.Get("If-None-Match")
		if gotETag != "" {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(`{"tag_name":"1.0.1"}`))
	})

	for range 2 {
		if err := u.check(context.Background()); err != nil {
			t.Fatalf("check() error = %v", err)
		}
	}
	if gotETag != `"v1"` {
		t.Errorf("If-None-Match = %q, want %q", gotETag, `"v1"`)
	}
	if got := u.Info().Latest; got != "1.0.1" {
		t.Errorf("Latest = %q after 304, want 1.0.1", got)
	}
}

func TestUpdateCheckerNilInfo(t *testing.T) {
	var u *UpdateChecker
	info := u.Info()
	if info.Current != normalizeVersion(Version) || info.Latest != "" || info.UpdateAvail {
		t.Errorf("nil Info() = %+v", info)
	}
}

func TestUpdateCheckerRunStopsOnCancel(t *testing.T) {
	u := NewUpdateChecker("example/repo", 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		u.Run(ctx)
		close(done)
	}()
	<-done
}
