package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/memeswap/internal/swap"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.QuoteRequested("ok")
	c.QuoteRequested("ok")
	c.QuoteRequested("superseded")
	c.AttemptFinished(swap.StateSuccess, "")
	c.AttemptFinished(swap.StateError, swap.KindSigningRejected)
	c.BalancePolled("native", "skipped_busy")
	c.StageObserved(swap.StateSigning, 1500*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.quotes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.quotes.WithLabelValues("superseded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.attempts.WithLabelValues("success", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.attempts.WithLabelValues("error", "signing_rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.balancePolls.WithLabelValues("native", "skipped_busy")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.stageDuration))

	c.Reset()
	assert.Equal(t, 0, testutil.CollectAndCount(c.quotes))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	a.QuoteRequested("ok")
	assert.Equal(t, 0, testutil.CollectAndCount(b.quotes))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.AttemptFinished(swap.StateError, swap.KindBuildFailed)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `memeswap_attempts_total{kind="build_failed",state="error"} 1`)
}
