package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTurn(t *testing.T) {
	before := testutil.ToFloat64(turnsTotal.WithLabelValues("turn", OutcomeStale))
	RecordTurn("turn", OutcomeStale, time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(turnsTotal.WithLabelValues("turn", OutcomeStale)))
}

func TestRecordSaveOp(t *testing.T) {
	before := testutil.ToFloat64(saveOpsTotal.WithLabelValues("save", "error"))
	RecordSaveOp("save", assert.AnError)
	assert.Equal(t, before+1, testutil.ToFloat64(saveOpsTotal.WithLabelValues("save", "error")))
}

func TestRecordEvictions_IgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(evictionsTotal)
	RecordEvictions(0)
	RecordEvictions(2)
	assert.Equal(t, before+2, testutil.ToFloat64(evictionsTotal))
}

func TestHandler(t *testing.T) {
	RecordQuarantine()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "forge_quarantines_total"))
}
