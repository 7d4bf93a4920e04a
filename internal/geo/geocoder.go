package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mtorresco/franchise-expansion/internal/resilience"
)

const (
	defaultBaseURL = "https://geocode.internal.example.com"
	maxBatchSize   = 50

	responseBodyReadLimit int64 = 1 << 20
)

var errAPIKeyRequired = errors.New("geo: api key is required")

// RowError is a per-address resolution failure. Retryable rows may be
// resubmitted in a later batch; non-retryable rows (bad address, no match)
// should be dropped or corrected.
type RowError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e *RowError) Error() string {
	return fmt.Sprintf("geocode row failed (%s): %s", e.Code, e.Message)
}

// Row is one address submitted for resolution.
type Row struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// Result is the outcome for one row: coordinates on success, Err otherwise.
type Result struct {
	ID  string    `json:"id"`
	Lat float64   `json:"lat"`
	Lng float64   `json:"lng"`
	Err *RowError `json:"error,omitempty"`
}

// Geocoder resolves batches of addresses to coordinates. All HTTP calls go
// through the supplied resilience client.
type Geocoder struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	guard      *resilience.Client
}

// Option configures optional geocoder behavior.
type Option func(*Geocoder)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Geocoder) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithBaseURL overrides the geocoding service base URL.
func WithBaseURL(baseURL string) Option {
	return func(g *Geocoder) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			g.baseURL = trimmed
		}
	}
}

// NewGeocoder builds a geocoder given an API key and a resilience client.
func NewGeocoder(apiKey string, guard *resilience.Client, opts ...Option) (*Geocoder, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	g := &Geocoder{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		guard:      guard,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

type batchRequest struct {
	Rows []Row `json:"rows"`
}

type batchResponse struct {
	Results []Result `json:"results"`
}

// ResolveBatch resolves addresses to coordinates, splitting the input into
// batches of at most 50 rows. Results are returned in input order; per-row
// failures land in Result.Err. A transport or decode failure aborts the
// whole call.
func (g *Geocoder) ResolveBatch(ctx context.Context, rows []Row) ([]Result, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	out := make([]Result, 0, len(rows))
	for start := 0; start < len(rows); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		results, err := g.resolveOne(ctx, rows[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, results...)
	}
	return out, nil
}

func (g *Geocoder) resolveOne(ctx context.Context, rows []Row) ([]Result, error) {
	payload, err := json.Marshal(batchRequest{Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("marshal geocode request: %w", err)
	}

	var decoded batchResponse
	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/geocode:batch", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build geocode request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Api-Key", g.apiKey)

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("geocode call: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		if err != nil {
			return fmt.Errorf("read geocode response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("geocode status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		decoded = batchResponse{}
		if err := json.Unmarshal(body, &decoded); err != nil {
			return fmt.Errorf("decode geocode response: %w", err)
		}
		return nil
	}

	if g.guard != nil {
		err = g.guard.Do(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	if len(decoded.Results) != len(rows) {
		return nil, fmt.Errorf("geocode returned %d results for %d rows", len(decoded.Results), len(rows))
	}
	return decoded.Results, nil
}
