package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	appLog "plancal/internal/log"
)

// maxBodyBytes bounds a downloaded calendar.
const maxBodyBytes = 10 << 20

// Fetcher downloads remote ICS feeds for import.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher with a 15s timeout. A nil client picks the default.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch GETs rawURL and returns the body.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, errors.New("ics: URL is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar, */*;q=0.5")

	appLog.Info("ics fetch start", "url", redactURL(rawURL))
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ics: fetch %s: %w", redactURL(rawURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics: fetch %s: %s", redactURL(rawURL), resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("ics: body larger than %d bytes", maxBodyBytes)
	}
	appLog.Info("ics fetch success", "url", redactURL(rawURL), "bytes", len(body))
	return body, nil
}

// redactURL keeps scheme and host only; feed URLs often carry tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
