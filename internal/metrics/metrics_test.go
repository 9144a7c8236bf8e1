package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	r := NewRegistry()
	r.RecordsStored.Add(3)
	r.AlertsCreated.WithLabelValues("high").Inc()

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "deedwatch_records_stored_total 3")
	assert.Contains(t, string(body), `deedwatch_alerts_created_total{priority="high"} 1`)
}
