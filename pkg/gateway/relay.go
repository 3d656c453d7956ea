package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/trialstack/reportgate/pkg/admission"
	"github.com/trialstack/reportgate/pkg/export"
	"github.com/trialstack/reportgate/pkg/observability"
	"github.com/trialstack/reportgate/pkg/settings"
)

// Relay executes authorized report fetches. When this process already holds
// the target project's execution context it calls the export engine
// directly; otherwise it re-issues the fetch to the gateway's own relay
// endpoint, carrying a capability minted from the already-made authorization
// decision, and relays the response unchanged.
type Relay struct {
	exporter export.Exporter
	issuer   *admission.CapabilityIssuer
	settings settings.Store
	endpoint string
	timeout  time.Duration
	client   *http.Client
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewRelay creates a relay. endpoint is the gateway's own relay URL; it may
// be empty on instances that always hold the needed context.
func NewRelay(exporter export.Exporter, issuer *admission.CapabilityIssuer, store settings.Store, endpoint string, timeout time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Relay {
	return &Relay{
		exporter: exporter,
		issuer:   issuer,
		settings: store,
		endpoint: endpoint,
		timeout:  timeout,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// relayRequest is the body of the secondary hop. The shared secret rides
// along because the receiving side re-validates it as a first-class check;
// only the source-IP gate is vouched for by the capability.
type relayRequest struct {
	Token      string `json:"token"`
	Capability string `json:"capability"`
	ProjectID  int    `json:"project_id"`
	ReportID   int    `json:"report_id"`
}

// FetchRows returns the report's rows, fetching directly when possible and
// through the secondary hop otherwise. Any failure of the secondary hop
// surfaces as ReportUnavailable, never as a silent empty result.
func (r *Relay) FetchRows(ctx context.Context, projectID, reportID int, user string, opts export.FetchOptions) ([]byte, *Error) {
	if r.exporter.InContext(projectID) {
		rows, err := r.exporter.FetchRows(ctx, projectID, reportID, opts)
		if err != nil {
			r.logger.WithError(err).WithFields(map[string]interface{}{
				"project_id": projectID,
				"report_id":  reportID,
			}).Error("direct report fetch failed")
			return nil, errReportUnavailable()
		}
		return rows, nil
	}

	rows, err := r.secondaryHop(ctx, projectID, reportID, user, opts)
	if err != nil {
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"project_id": projectID,
			"report_id":  reportID,
		}).Error("relay fetch failed")
		return nil, errReportUnavailable()
	}
	return rows, nil
}

func (r *Relay) secondaryHop(ctx context.Context, projectID, reportID int, user string, opts export.FetchOptions) ([]byte, error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		if r.metrics != nil {
			r.metrics.ObserveRelay(outcome, time.Since(start))
		}
	}()

	if r.endpoint == "" {
		return nil, fmt.Errorf("no relay endpoint configured")
	}

	capability, err := r.issuer.Mint(ctx, projectID, reportID, user, opts.RawData, opts.Tier)
	if err != nil {
		return nil, fmt.Errorf("failed to mint relay capability: %w", err)
	}

	secret, err := r.settings.SystemSetting(ctx, settings.KeyAPIToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read API token setting: %w", err)
	}

	payload, err := json.Marshal(relayRequest{
		Token:      secret,
		Capability: capability,
		ProjectID:  projectID,
		ReportID:   reportID,
	})
	if err != nil {
		return nil, err
	}

	hopCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(hopCtx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		outcome = "timeout"
		return nil, fmt.Errorf("secondary hop failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("secondary hop returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read secondary response: %w", err)
	}

	outcome = "ok"
	return body, nil
}
