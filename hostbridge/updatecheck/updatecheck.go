// Package updatecheck fetches the GitHub releases API and compares the
// latest tag against the running version, per spec §6. Grounded on the
// teacher's resty client construction idiom (plugins/http/plugin.go's
// resty.New().SetTimeout(...)).
package updatecheck

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const apiBase = "https://api.github.com/repos/%s/%s/releases/latest"

type releaseResponse struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Result is what the host shows the user when a newer release exists.
type Result struct {
	UpdateAvailable bool
	LatestVersion   string
	ReleaseURL      string
}

// Checker fetches the latest GitHub release for owner/repo.
type Checker struct {
	client *resty.Client
	owner  string
	repo   string
}

// NewChecker builds a Checker with a 10s timeout, generous enough for a
// background update ping without blocking UI startup noticeably.
func NewChecker(owner, repo string) *Checker {
	return &Checker{
		client: resty.New().SetTimeout(10 * time.Second),
		owner:  owner,
		repo:   repo,
	}
}

// Check fetches the latest release and compares it against currentVersion
// (both accepted with or without a leading "v").
func (c *Checker) Check(ctx context.Context, currentVersion string) (Result, error) {
	var rel releaseResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&rel).
		Get(fmt.Sprintf(apiBase, c.owner, c.repo))
	if err != nil {
		return Result{}, fmt.Errorf("update check request failed: %w", err)
	}
	if resp.IsError() {
		return Result{}, fmt.Errorf("update check returned %s", resp.Status())
	}

	latest := strings.TrimPrefix(rel.TagName, "v")
	current := strings.TrimPrefix(currentVersion, "v")

	newer, err := isNewer(latest, current)
	if err != nil {
		return Result{}, err
	}

	return Result{
		UpdateAvailable: newer,
		LatestVersion:   latest,
		ReleaseURL:      rel.HTMLURL,
	}, nil
}

// isNewer reports whether latest > current under left-to-right dotted
// numeric comparison, padding shorter version strings with zeros.
func isNewer(latest, current string) (bool, error) {
	l := strings.Split(latest, ".")
	c := strings.Split(current, ".")
	n := len(l)
	if len(c) > n {
		n = len(c)
	}
	for i := 0; i < n; i++ {
		lv, err := segmentAt(l, i)
		if err != nil {
			return false, fmt.Errorf("invalid version segment in %q: %w", latest, err)
		}
		cv, err := segmentAt(c, i)
		if err != nil {
			return false, fmt.Errorf("invalid version segment in %q: %w", current, err)
		}
		if lv != cv {
			return lv > cv, nil
		}
	}
	return false, nil
}

func segmentAt(parts []string, i int) (int, error) {
	if i >= len(parts) {
		return 0, nil
	}
	return strconv.Atoi(parts[i])
}
