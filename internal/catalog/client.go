package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	appErr "github.com/galleryplan/engine/pkg/errors"
)

// Record is one artwork as resolved from the catalog.
type Record struct {
	ExternalID  uint
	Title       string
	LicenseText string
	// RawPayload is the catalog document as returned, kept for auditing.
	RawPayload []byte
}

// Fetcher resolves artwork metadata by external catalog ID.
type Fetcher interface {
	Fetch(ctx context.Context, externalID uint) (*Record, error)
}

// StatusError reports a non-200 catalog response.
type StatusError struct {
	ExternalID uint
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog returned status %d for artwork %d", e.StatusCode, e.ExternalID)
}

// Client fetches artworks from the Art Institute of Chicago public API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a catalog client. timeout bounds each fetch; rps throttles
// outbound requests across all callers sharing the client.
func NewClient(baseURL string, timeout time.Duration, rps float64) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

var _ Fetcher = (*Client)(nil)

// payload mirrors the catalog response shape: title under data, license
// boilerplate under info.
type payload struct {
	Data struct {
		Title string `json:"title"`
	} `json:"data"`
	Info struct {
		LicenseText string `json:"license_text"`
	} `json:"info"`
}

func (c *Client) Fetch(ctx context.Context, externalID uint) (*Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%d", c.baseURL, externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "build catalog request failed")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUpstream, "catalog request failed").
			WithMeta("external_id", externalID)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{ExternalID: externalID, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUpstream, "read catalog response failed").
			WithMeta("external_id", externalID)
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUpstream, "decode catalog response failed").
			WithMeta("external_id", externalID)
	}

	title := p.Data.Title
	if title == "" {
		title = fmt.Sprintf("Artwork %d", externalID)
	}

	return &Record{
		ExternalID:  externalID,
		Title:       title,
		LicenseText: p.Info.LicenseText,
		RawPayload:  body,
	}, nil
}
