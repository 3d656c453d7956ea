package httputil

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBodyForm(t *testing.T) {
	form := url.Values{}
	form.Set("token", "secret")
	form.Set("request", "reports")
	form.Set("project_id", "100")

	r := httptest.NewRequest("POST", "/api/query", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	values, err := ParseBody(r)
	require.NoError(t, err)
	assert.Equal(t, "secret", values.Get("token"))
	assert.Equal(t, "reports", values.Get("request"))

	id, err := values.GetInt("project_id")
	require.NoError(t, err)
	assert.Equal(t, 100, id)
}

func TestParseBodyJSON(t *testing.T) {
	body := `{"token":"secret","request":"columns","project_id":100,"report_id":"55","raw_data":true}`
	r := httptest.NewRequest("POST", "/api/query", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json; charset=utf-8")

	values, err := ParseBody(r)
	require.NoError(t, err)
	assert.Equal(t, "secret", values.Get("token"))

	projectID, err := values.GetInt("project_id")
	require.NoError(t, err)
	assert.Equal(t, 100, projectID)

	reportID, err := values.GetInt("report_id")
	require.NoError(t, err)
	assert.Equal(t, 55, reportID)

	assert.True(t, values.GetBool("raw_data"))
}

func TestParseBodyErrors(t *testing.T) {
	t.Run("bad JSON", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader("{not json"))
		r.Header.Set("Content-Type", "application/json")
		_, err := ParseBody(r)
		assert.Error(t, err)
	})

	t.Run("unsupported content type", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader("<xml/>"))
		r.Header.Set("Content-Type", "text/xml")
		_, err := ParseBody(r)
		assert.Error(t, err)
	})
}

func TestGetIntMissingIsZero(t *testing.T) {
	values := Values{}
	n, err := values.GetInt("project_id")
	require.NoError(t, err)
	assert.Zero(t, n)

	values["project_id"] = "abc"
	_, err = values.GetInt("project_id")
	assert.Error(t, err)
}

func TestRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "192.0.2.10:54321"
	assert.Equal(t, "192.0.2.10", RemoteAddr(r))

	r.RemoteAddr = "192.0.2.10"
	assert.Equal(t, "192.0.2.10", RemoteAddr(r))
}
