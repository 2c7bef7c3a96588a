package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/garyellow/goose-bot/internal/errors"
	"github.com/garyellow/goose-bot/internal/scraper"
)

// APIClient resolves courses through the University of Waterloo Open Data API (v2).
type APIClient struct {
	client  *scraper.Client
	baseURL string
	apiKey  string
}

// NewAPIClient creates an Open Data API provider.
func NewAPIClient(client *scraper.Client, baseURL, apiKey string) *APIClient {
	return &APIClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Name identifies the provider in logs and metrics.
func (c *APIClient) Name() string { return "uwapi" }

type apiEnvelope struct {
	Meta struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"meta"`
	Data json.RawMessage `json:"data"`
}

type apiCourse struct {
	Subject       string `json:"subject"`
	CatalogNumber string `json:"catalog_number"`
	Title         string `json:"title"`
	URL           string `json:"url"`
}

// Lookup fetches GET /courses/{subject}/{catalog_number}.json.
func (c *APIClient) Lookup(ctx context.Context, program, number string) (*CourseRecord, error) {
	program = strings.ToUpper(program)
	endpoint := fmt.Sprintf("%s/courses/%s/%s.json?key=%s",
		c.baseURL, url.PathEscape(program), url.PathEscape(number), url.QueryEscape(c.apiKey))

	var env apiEnvelope
	if err := c.client.GetJSON(ctx, endpoint, nil, &env); err != nil {
		return nil, fmt.Errorf("uwapi %s%s: %w", program, number, err)
	}

	// The API signals "no data" with meta.status 204 and an empty array.
	if env.Meta.Status != 0 && env.Meta.Status != 200 {
		if env.Meta.Status == 204 || env.Meta.Status == 404 {
			return nil, fmt.Errorf("uwapi %s%s: %w", program, number, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("uwapi %s%s: status %d: %s", program, number, env.Meta.Status, env.Meta.Message)
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("uwapi %s%s: %w", program, number, apperrors.ErrNotFound)
	}

	var course apiCourse
	if err := json.Unmarshal(data, &course); err != nil {
		return nil, fmt.Errorf("uwapi %s%s: decode course: %w", program, number, err)
	}
	if strings.TrimSpace(course.Title) == "" || course.URL == "" {
		return nil, fmt.Errorf("uwapi %s%s: %w", program, number, apperrors.ErrNotFound)
	}

	return &CourseRecord{
		Program: program,
		Number:  number,
		Title:   strings.TrimSpace(course.Title),
		URL:     course.URL,
		Source:  c.Name(),
	}, nil
}
