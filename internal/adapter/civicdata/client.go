// Package civicdata pulls time-windowed signal records from the platform's
// civic open-data proxy.
package civicdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/signal-story-pipeline/internal/domain"
	"golang.org/x/time/rate"
)

// Client fetches raw signal records over HTTP. Ingestion failures are
// non-fatal by contract: Fetch returns whatever was retrieved plus a
// SourceErr, and the caller decides how loudly to complain.
type Client struct {
	baseURL    string
	appToken   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates an ingestion client. rps bounds requests per second
// against the source to respect its rate limits.
func NewClient(baseURL, appToken string, timeout time.Duration, rps float64, logger *slog.Logger) *Client {
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		appToken: appToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

// Fetch retrieves up to limit records observed since the given timestamp.
func (c *Client) Fetch(ctx context.Context, dataset string, since time.Time, limit int) domain.FetchResult {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.FetchResult{SourceErr: fmt.Errorf("rate limit wait: %w", err)}
	}

	params := url.Values{
		"since": {since.UTC().Format(time.RFC3339)},
		"limit": {strconv.Itoa(limit)},
	}
	fullURL := fmt.Sprintf("%s/resource/%s.json?%s", c.baseURL, url.PathEscape(dataset), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.FetchResult{SourceErr: fmt.Errorf("create request: %w", err)}
	}
	if c.appToken != "" {
		req.Header.Set("X-App-Token", c.appToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.FetchResult{SourceErr: fmt.Errorf("fetch %s: %w", dataset, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.FetchResult{SourceErr: fmt.Errorf("source API error: status %d: %s", resp.StatusCode, body)}
	}

	var rows []rawRecord
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return domain.FetchResult{SourceErr: fmt.Errorf("decode %s response: %w", dataset, err)}
	}

	records := make([]domain.SignalRecord, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		rec, ok := row.toSignalRecord()
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	if dropped > 0 {
		c.logger.Warn("dropped unparsable source rows", "dataset", dataset, "dropped", dropped)
	}
	return domain.FetchResult{Records: records}
}

// rawRecord tolerates the field-name drift between source datasets: the
// complaint feed uses unique_key/complaint_type/incident_address, the permit
// and license feeds use the generic names.
type rawRecord struct {
	ID            string `json:"id"`
	UniqueKey     string `json:"unique_key"`
	Category      string `json:"category"`
	ComplaintType string `json:"complaint_type"`
	Location      string `json:"location"`
	Address       string `json:"incident_address"`
	Area          string `json:"area"`
	Neighborhood  string `json:"neighborhood"`
	OccurredAt    string `json:"occurred_at"`
	CreatedDate   string `json:"created_date"`
	Entity        string `json:"entity_name"`
}

func (r rawRecord) toSignalRecord() (domain.SignalRecord, bool) {
	id := firstNonEmpty(r.ID, r.UniqueKey)
	occurred, ok := parseSourceTime(firstNonEmpty(r.OccurredAt, r.CreatedDate))
	if id == "" || !ok {
		return domain.SignalRecord{}, false
	}
	return domain.SignalRecord{
		ID:         id,
		Category:   firstNonEmpty(r.Category, r.ComplaintType),
		Location:   firstNonEmpty(r.Location, r.Address),
		Area:       firstNonEmpty(r.Area, r.Neighborhood),
		OccurredAt: occurred,
		Entity:     r.Entity,
	}, true
}

// parseSourceTime accepts RFC 3339 and the source's zoneless floating format.
func parseSourceTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02T15:04:05.000", s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
