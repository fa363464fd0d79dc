package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func Test_Metrics(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		res.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	m := NewMetrics(prometheus.NewRegistry())
	g := NewGuard(GuardConfig{BaseURL: srv.URL, Metrics: m}, NewMemoryStore(validTokens), nil, zaptest.NewLogger(t))

	ctx := context.Background()
	assert.True(t, g.ValidateSession(ctx))
	status.Store(http.StatusUnauthorized)
	assert.False(t, g.ValidateSession(ctx))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logouts.WithLabelValues(ReasonTokenExpired)))
	assert.Equal(t, 0, testutil.CollectAndCount(m.csrfRefreshes))
}

func Test_Metrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.validation(true)
	m.logout(ReasonUserLogout)
	m.csrfRefresh(false)
}
