package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation(t *testing.T) {
	m := New("test")

	m.RecordOperation("create_sale", OutcomeCreated, "", 10*time.Millisecond)
	m.RecordOperation("create_sale", OutcomeCreated, "", 5*time.Millisecond)
	m.RecordOperation("create_sale", OutcomeConflict, "CONCURRENT_MODIFICATION", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LedgerOperations.WithLabelValues("create_sale", OutcomeCreated, "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerOperations.WithLabelValues("create_sale", OutcomeConflict, "CONCURRENT_MODIFICATION")))
}

func TestRecordStockMove(t *testing.T) {
	m := New("test")

	m.RecordStockMove("create_sale", -4)
	m.RecordStockMove("create_sale", -2)
	m.RecordStockMove("adjust_stock", 10)
	m.RecordStockMove("adjust_stock", 0)

	assert.Equal(t, 6.0, testutil.ToFloat64(m.StockUnitsMoved.WithLabelValues("create_sale", "out")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.StockUnitsMoved.WithLabelValues("adjust_stock", "in")))
}

func TestRecordEventPublished(t *testing.T) {
	m := New("test")

	m.RecordEventPublished("sale.created", nil)
	m.RecordEventPublished("sale.created", errors.New("broker down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("sale.created", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("sale.created", "error")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New("flowerpos")
	m.RecordHTTPRequest("POST", "/api/sales", 201, 3*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `flowerpos_http_requests_total{method="POST",route="/api/sales",status="201"} 1`)
}
