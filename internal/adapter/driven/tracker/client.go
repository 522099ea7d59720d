// Package tracker implements the SnapshotFetcher port against the Pivotal
// Tracker REST API (v5).
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/focal/internal/domain/model"
	"github.com/ericfisherdev/focal/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SnapshotFetcher = (*Client)(nil)

// DefaultBaseURL is the public Pivotal Tracker v5 endpoint.
const DefaultBaseURL = "https://www.pivotaltracker.com/services/v5"

// tokenHeader carries the API token on every request.
const tokenHeader = "X-TrackerToken"

// maxErrorBody caps how much of a failed response is read for diagnostics.
const maxErrorBody = 4 << 10

// Client reads the current iteration of a tracker project. It keeps no state
// between calls besides the HTTP cache and never retries.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a tracker client with the following transport stack:
//  1. http.DefaultTransport
//  2. tokenVary (responses vary on the API token)
//  3. httpcache (ETag-based conditional request caching)
//  4. http.Client with an overall request timeout
func NewClient(baseURL string, timeout time.Duration) *Client {
	cache := httpcache.NewMemoryCacheTransport()
	cache.Transport = tokenVary{next: http.DefaultTransport}

	return NewClientWithHTTPClient(&http.Client{
		Transport: cache,
		Timeout:   timeout,
	}, baseURL)
}

// tokenVary adds the token header to every response's Vary list. httpcache
// only reuses a cached entry when the varied request headers match, so a
// response fetched with one token is never served for another.
type tokenVary struct {
	next http.RoundTripper
}

func (t tokenVary) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	resp.Header.Add("Vary", tokenHeader)
	return resp, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. Tests use it to point the client at an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type projectJSON struct {
	TimeZone struct {
		OlsonName string `json:"olson_name"`
		Offset    string `json:"offset"`
	} `json:"time_zone"`
}

type iterationJSON struct {
	ID      int64       `json:"id"`
	Number  int         `json:"number"`
	Start   time.Time   `json:"start"`
	Finish  time.Time   `json:"finish"`
	Stories []storyJSON `json:"stories"`
}

type storyJSON struct {
	CurrentState string `json:"current_state"`
}

type errorJSON struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Fetch returns the project's current iteration, its story-state tallies and
// the project's UTC offset.
func (c *Client) Fetch(ctx context.Context, creds model.TrackerCredentials) (model.Snapshot, error) {
	projectPath := "/projects/" + strconv.FormatInt(creds.ProjectID, 10)

	var project projectJSON
	if err := c.get(ctx, creds.Token, projectPath, url.Values{"fields": {"time_zone"}}, &project); err != nil {
		return model.Snapshot{}, fmt.Errorf("fetching project %d: %w", creds.ProjectID, err)
	}

	offset, err := parseOffset(project.TimeZone.Offset)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("project %d time zone: %w", creds.ProjectID, err)
	}

	var iterations []iterationJSON
	query := url.Values{
		"scope":  {"current"},
		"fields": {"number,id,start,finish,stories(current_state)"},
	}
	if err := c.get(ctx, creds.Token, projectPath+"/iterations", query, &iterations); err != nil {
		return model.Snapshot{}, fmt.Errorf("fetching current iteration of project %d: %w", creds.ProjectID, err)
	}
	if len(iterations) == 0 {
		return model.Snapshot{}, fmt.Errorf("project %d has no current iteration", creds.ProjectID)
	}

	current := iterations[0]
	remoteID := current.ID
	if remoteID == 0 {
		// Accounts that do not expose iteration ids get the number, which is
		// equally stable within a project.
		remoteID = int64(current.Number)
	}

	slog.Debug("tracker iteration fetched",
		"project", creds.ProjectID,
		"number", current.Number,
		"stories", len(current.Stories),
		"time_zone", project.TimeZone.OlsonName,
	)

	return model.Snapshot{
		Number:            current.Number,
		RemoteIterationID: remoteID,
		StartAt:           current.Start.UTC(),
		FinishAt:          current.Finish.UTC(),
		UTCOffsetSeconds:  offset,
		Counters:          tally(current.Stories),
	}, nil
}

func (c *Client) get(ctx context.Context, token, path string, query url.Values, dst any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(tokenHeader, token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(path, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}

func statusError(path string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var apiErr errorJSON
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("GET %s: status %d: %s (%s)", path, resp.StatusCode, apiErr.Error, apiErr.Code)
	}

	return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
}

// tally counts stories per state. Scheduling states that have not started yet
// all count as unstarted; unknown states are ignored.
func tally(stories []storyJSON) model.Counters {
	var c model.Counters
	for _, s := range stories {
		switch s.CurrentState {
		case "unscheduled", "unstarted", "planned":
			c.Unstarted++
		case "started":
			c.Started++
		case "finished":
			c.Finished++
		case "delivered":
			c.Delivered++
		case "accepted":
			c.Accepted++
		case "rejected":
			c.Rejected++
		default:
			slog.Debug("ignoring story state", "state", s.CurrentState)
		}
	}
	return c
}

var errBadOffset = errors.New("malformed utc offset")

// parseOffset converts "+01:00", "-08:00", "+0530" or "Z" to seconds east of UTC.
func parseOffset(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "Z" {
		return 0, nil
	}
	if len(s) < 3 || (s[0] != '+' && s[0] != '-') {
		return 0, fmt.Errorf("%w: %q", errBadOffset, s)
	}

	sign := 1
	if s[0] == '-' {
		sign = -1
	}

	digits := strings.ReplaceAll(s[1:], ":", "")
	if len(digits) != 2 && len(digits) != 4 {
		return 0, fmt.Errorf("%w: %q", errBadOffset, s)
	}

	hours, err := strconv.Atoi(digits[:2])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errBadOffset, s)
	}

	minutes := 0
	if len(digits) == 4 {
		if minutes, err = strconv.Atoi(digits[2:]); err != nil || minutes >= 60 {
			return 0, fmt.Errorf("%w: %q", errBadOffset, s)
		}
	}

	return sign * (hours*3600 + minutes*60), nil
}
