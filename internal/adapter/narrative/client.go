// Package narrative is the HTTP client for the platform's narrative
// generator, which turns detection context into story copy. The generator is
// an opaque collaborator: this adapter ships it structured facts and takes
// back prose, or a null when it declines to write.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/signal-story-pipeline/internal/domain"
)

// Client implements the pipeline's NarrativeGenerator interface.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a narrative generator client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// request is the wire form of a story context. Member records are reduced to
// counts; the generator works from aggregates, not raw rows.
type request struct {
	Domain        string           `json:"domain"`
	Kind          string           `json:"kind"`
	TargetID      string           `json:"target_id"`
	CategoryLabel string           `json:"category_label"`
	Priority      string           `json:"priority"`
	Roundup       bool             `json:"roundup,omitempty"`
	Clusters      []clusterSummary `json:"clusters,omitempty"`
	Event         *eventSummary    `json:"event,omitempty"`
}

type clusterSummary struct {
	DisplayLocation string `json:"display_location"`
	Category        string `json:"category"`
	Count           int    `json:"count"`
	Severity        string `json:"severity"`
	Trend           string `json:"trend"`
}

type eventSummary struct {
	Name        string `json:"name"`
	State       string `json:"state"`
	Description string `json:"description,omitempty"`
}

type response struct {
	Story *domain.Narrative `json:"story"`
}

// Generate asks the collaborator for story copy. A (nil, nil) return means
// the generator declined; callers treat that as a skip, not an error.
func (c *Client) Generate(ctx context.Context, sc domain.StoryContext) (*domain.Narrative, error) {
	payload := request{
		Domain:        sc.Domain,
		Kind:          sc.Kind,
		TargetID:      sc.TargetID,
		CategoryLabel: sc.CategoryLabel,
		Priority:      string(sc.Priority),
		Roundup:       sc.Roundup,
	}
	for _, cl := range sc.Clusters {
		payload.Clusters = append(payload.Clusters, clusterSummary{
			DisplayLocation: cl.DisplayLocation,
			Category:        cl.Category,
			Count:           cl.Count(),
			Severity:        string(cl.Severity),
			Trend:           string(cl.Trend),
		})
	}
	if sc.Event != nil {
		payload.Event = &eventSummary{
			Name:        sc.Event.Name,
			State:       string(sc.State),
			Description: sc.Event.Description,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal narrative request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/narratives", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create narrative request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("narrative request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("narrative generator error: status %d: %s", resp.StatusCode, b)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode narrative response: %w", err)
	}
	if out.Story == nil {
		return nil, nil
	}
	if out.Story.Headline == "" {
		c.logger.Warn("narrative generator returned a story without a headline", "target", sc.TargetID)
		return nil, nil
	}
	return out.Story, nil
}
