package integration

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianaguero/chatgate/internal/core"
	"github.com/adrianaguero/chatgate/internal/observability"
)

func TestMetricsEndpoint_Integration(t *testing.T) {
	require.NoError(t, observability.InitCLILogger("test", false))
	require.NoError(t, observability.InitServerLogger("test", "info", "structured"))

	initMetricsOrSkip(t)

	gen := &scriptedGenerator{chunks: []string{"Una respuesta ", "en dos partes."}}
	st := newStack(t, core.QuotaWindow{Limit: 20, Duration: time.Minute}, gen)
	ts, client := st.start(t, func(mux *chi.Mux) {
		mux.Get("/error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("error response"))
		})
	})

	serverURL := ts.URL

	const numRequests = 40
	const numWorkers = 8

	requestChan := make(chan int, numRequests)
	for i := 0; i < numRequests; i++ {
		requestChan <- i
	}
	close(requestChan)

	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for reqNum := range requestChan {
				var resp *http.Response
				var err error
				switch reqNum % 4 {
				case 0, 1:
					resp, err = client.Post(serverURL+"/api/chat", "application/json",
						strings.NewReader(`{"messages":[{"role":"user","content":"hola"}]}`))
				case 2:
					resp, err = client.Get(serverURL + "/error")
				default:
					resp, err = client.Get(serverURL + "/health")
				}
				if err == nil {
					_, _ = io.Copy(io.Discard, resp.Body)
					_ = resp.Body.Close()
				}
			}
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)

	resp, err := client.Get(serverURL + "/metrics")
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metricsContent := string(body)
	assert.Contains(t, metricsContent, "test_http_requests_total", "Should have HTTP request metrics")
	assert.Contains(t, metricsContent, "test_http_request_duration_ms", "Should have duration metrics")
	assert.Contains(t, metricsContent, "test_quota_decisions_total", "Should have quota decision metrics")
	assert.Contains(t, metricsContent, "test_relay_streams_total", "Should have relay metrics")
	assert.True(t, elapsed < 5*time.Second, "Load test should complete in reasonable time")
	t.Logf("Load test completed: %d requests in %v (%.2f req/s)", numRequests, elapsed, float64(numRequests)/elapsed.Seconds())
}

func TestMetricsEndpoint_PrometheusFormat(t *testing.T) {
	require.NoError(t, observability.InitCLILogger("test", false))

	initMetricsOrSkip(t)

	st := newStack(t, core.DefaultQuotaWindow, &scriptedGenerator{chunks: []string{"formato de prueba"}})
	ts, client := st.start(t, nil)

	serverURL := ts.URL

	resp, err := client.Post(serverURL+"/api/chat", "application/json", strings.NewReader(`{"messages":[]}`))
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(serverURL + "/metrics")
	require.NoError(t, err)
	contentType := resp.Header.Get("Content-Type")
	assert.True(t,
		contentType == "text/plain; version=0.0.4" ||
			contentType == "text/plain; version=0.0.4; charset=utf-8",
		"Expected Prometheus content type, got: %s", contentType)

	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	metricLines := 0
	hasLabels := false
	for _, line := range lines {
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		metricLines++
		if strings.Contains(line, "{") && len(strings.Fields(line)) >= 2 {
			hasLabels = true
		}
	}
	assert.True(t, hasLabels, "Should have labelled Prometheus metric lines")
	assert.Greater(t, metricLines, 0, "Should have actual metric values")
}

func TestMetricsEndpoint_WithTelemetryDisabled(t *testing.T) {
	require.NoError(t, observability.InitCLILogger("test", false))
	require.NoError(t, observability.StopMetrics())

	st := newStack(t, core.DefaultQuotaWindow, &scriptedGenerator{chunks: []string{"sin métricas activas"}})
	ts, client := st.start(t, nil)

	resp, err := client.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(`{"messages":[]}`))
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
