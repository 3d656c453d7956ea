package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/trialstack/reportgate/pkg/observability"
	"github.com/trialstack/reportgate/pkg/rights"
)

// EngineClient talks to the platform's report engine over HTTP. An instance
// may be bound to a single project execution context; fetches for other
// projects must go through the relay.
type EngineClient struct {
	baseURL string
	client  *http.Client
	metrics *observability.Metrics

	// contextProject is the project whose execution context this process
	// holds, or 0 when it holds none.
	contextProject int
}

// NewEngineClient creates a client for the engine at baseURL. contextProject
// is 0 when the process holds no project execution context.
func NewEngineClient(baseURL string, contextProject int, metrics *observability.Metrics) *EngineClient {
	return &EngineClient{
		baseURL: baseURL,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   60 * time.Second,
		},
		metrics:        metrics,
		contextProject: contextProject,
	}
}

// InContext reports whether this process holds the project's execution
// context.
func (c *EngineClient) InContext(projectID int) bool {
	return c.contextProject != 0 && c.contextProject == projectID
}

type fetchRowsRequest struct {
	ProjectID int         `json:"project_id"`
	ReportID  int         `json:"report_id"`
	RawData   bool        `json:"raw_data"`
	Tier      rights.Tier `json:"tier"`
}

// FetchRows returns the report's rows as the engine's JSON document.
func (c *EngineClient) FetchRows(ctx context.Context, projectID, reportID int, opts FetchOptions) ([]byte, error) {
	if !c.InContext(projectID) {
		return nil, fmt.Errorf("no execution context for project %d", projectID)
	}

	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ExportFetchDuration.WithLabelValues("rows").Observe(time.Since(start).Seconds())
		}
	}()

	payload, err := json.Marshal(fetchRowsRequest{
		ProjectID: projectID,
		ReportID:  reportID,
		RawData:   opts.RawData,
		Tier:      opts.Tier,
	})
	if err != nil {
		return nil, err
	}

	body, err := c.post(ctx, fmt.Sprintf("%s/engine/reports/%d/rows", c.baseURL, reportID), payload)
	if err != nil {
		return nil, fmt.Errorf("report %d row fetch failed: %w", reportID, err)
	}
	return body, nil
}

// FetchColumns returns the report's column metadata.
func (c *EngineClient) FetchColumns(ctx context.Context, projectID, reportID int) ([]Column, error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.ExportFetchDuration.WithLabelValues("columns").Observe(time.Since(start).Seconds())
		}
	}()

	url := fmt.Sprintf("%s/engine/reports/%d/columns?project_id=%d", c.baseURL, reportID, projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report %d column fetch failed: %w", reportID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("report %d column fetch failed: engine returned %d", reportID, resp.StatusCode)
	}

	var columns []Column
	if err := json.NewDecoder(resp.Body).Decode(&columns); err != nil {
		return nil, fmt.Errorf("malformed column metadata for report %d: %w", reportID, err)
	}
	return columns, nil
}

func (c *EngineClient) post(ctx context.Context, url string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("engine returned %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
