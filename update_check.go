package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/oszuidwest/zwfm-levelmeter/internal/types"
	"github.com/oszuidwest/zwfm-levelmeter/internal/util"
)

const (
	updateCheckDelay   = 30 * time.Second
	updateCheckTimeout = 30 * time.Second
	updateRetryInitial = 1 * time.Minute
	updateRetryMax     = 1 * time.Hour
)

// errRetryLater marks responses that should be retried with backoff.
var errRetryLater = errors.New("release server asked to retry later")

// UpdateChecker polls a GitHub repository for published releases and logs
// once when one is newer than the running build. Info is safe for
// concurrent use; a nil *UpdateChecker reports only the running version.
type UpdateChecker struct {
	url      string
	interval time.Duration
	client   *http.Client

	mu       sync.RWMutex
	latest   string
	etag     string
	notified string
}

// NewUpdateChecker returns a checker for repo ("owner/name").
func NewUpdateChecker(repo string, interval time.Duration) *UpdateChecker {
	return &UpdateChecker{
		url:      "https://api.github.com/repos/" + repo + "/releases/latest",
		interval: interval,
		client:   http.DefaultClient,
	}
}

// Run checks shortly after start and then every interval until ctx is done.
// Failed checks are retried with exponential backoff.
func (u *UpdateChecker) Run(ctx context.Context) {
	retry := util.NewBackoff(updateRetryInitial, updateRetryMax)
	timer := time.NewTimer(updateCheckDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		next := u.interval
		if err := u.check(ctx); err != nil {
			next = retry.Next()
			slog.Debug("release check failed", "error", err, "retry_in", next)
		} else {
			retry.Reset()
		}
		timer.Reset(next)
	}
}

type githubRelease struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// check fetches the latest release. A nil error means no retry is needed,
// including when there is nothing new.
func (u *UpdateChecker) check(ctx context.Context) error {
	ctx, cancel := context.WithTimeoutCause(ctx, updateCheckTimeout, errors.New("release request timeout"))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.url, http.NoBody)
	if err != nil {
		return util.WrapError("create release request", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", AppName+"/"+Version)

	u.mu.RLock()
	if u.etag != "" {
		req.Header.Set("If-None-Match", u.etag)
	}
	u.mu.RUnlock()

	resp, err := u.client.Do(req)
	if err != nil {
		return util.WrapError("fetch latest release", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", errRetryLater, resp.Status)
	default:
		// 304, 404 (no releases yet) and other client errors.
		return nil
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return util.WrapError("decode release", err)
	}
	if release.Draft || release.Prerelease {
		return nil
	}
	if !semver.IsValid(canonicalVersion(release.TagName)) {
		return fmt.Errorf("release tag %q is not a semantic version", release.TagName)
	}

	u.record(normalizeVersion(release.TagName), resp.Header.Get("ETag"))
	return nil
}

// record stores the latest release and logs the first time it is newer
// than the running build.
func (u *UpdateChecker) record(latest, etag string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.latest = latest
	if etag != "" {
		u.etag = etag
	}
	if isNewerVersion(latest, Version) && u.notified != latest {
		u.notified = latest
		slog.Info("new release available", "current", normalizeVersion(Version), "latest", latest)
	}
}

// Info returns the running version and, once known, the latest release.
func (u *UpdateChecker) Info() types.VersionInfo {
	info := types.VersionInfo{
		Current:   normalizeVersion(Version),
		Commit:    Commit,
		BuildTime: util.FormatHumanTime(BuildTime),
	}
	if u == nil {
		return info
	}

	u.mu.RLock()
	defer u.mu.RUnlock()
	info.Latest = u.latest
	info.UpdateAvail = isNewerVersion(u.latest, Version)
	return info
}

func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

func canonicalVersion(v string) string {
	return "v" + normalizeVersion(v)
}

// isNewerVersion reports whether latest is newer than current. Builds
// without a semantic version ("dev") never report an update.
func isNewerVersion(latest, current string) bool {
	l, c := canonicalVersion(latest), canonicalVersion(current)
	if !semver.IsValid(l) || !semver.IsValid(c) {
		return false
	}
	return semver.Compare(l, c) > 0
}
