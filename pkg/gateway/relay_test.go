package gateway

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialstack/reportgate/pkg/admission"
	"github.com/trialstack/reportgate/pkg/export"
	"github.com/trialstack/reportgate/pkg/observability"
	"github.com/trialstack/reportgate/pkg/rights"
	"github.com/trialstack/reportgate/pkg/settings"
)

func newTestRelay(exporter export.Exporter, endpoint string) *Relay {
	store := &fakeSettings{
		system: map[string]string{settings.KeyAPIToken: testToken},
	}
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	issuer := admission.NewCapabilityIssuer(store, 30*time.Second)
	return NewRelay(exporter, issuer, store, endpoint, time.Second, logger, nil)
}

func TestRelayFetchesDirectlyWhenInContext(t *testing.T) {
	exporter := &fakeExporter{
		contextFor: map[int]bool{100: true},
		rows:       []byte(`[]`),
	}
	relay := newTestRelay(exporter, "")

	rows, herr := relay.FetchRows(context.Background(), 100, 55, "alice", export.FetchOptions{
		Tier: rights.Tier{SuppressIdentifiers: true},
	})
	require.Nil(t, herr)
	assert.Equal(t, []byte(`[]`), rows)
	assert.Equal(t, 1, exporter.fetchCalls)
	assert.True(t, exporter.lastOpts.Tier.SuppressIdentifiers)
}

func TestRelayDirectFetchErrorIsReportUnavailable(t *testing.T) {
	exporter := &fakeExporter{contextFor: map[int]bool{100: true}}
	relay := newTestRelay(exporter, "")

	_, herr := relay.FetchRows(context.Background(), 100, 55, "alice", export.FetchOptions{})
	require.NotNil(t, herr)
	assert.Equal(t, KindReportUnavailable, herr.Kind)
	assert.Equal(t, http.StatusBadGateway, herr.Status)
}

func TestRelayWithoutEndpointIsReportUnavailable(t *testing.T) {
	exporter := &fakeExporter{contextFor: map[int]bool{}}
	relay := newTestRelay(exporter, "")

	_, herr := relay.FetchRows(context.Background(), 100, 55, "alice", export.FetchOptions{})
	require.NotNil(t, herr)
	assert.Equal(t, KindReportUnavailable, herr.Kind)
}
