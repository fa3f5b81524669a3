package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	backendRequestsTotal atomic.Uint64
	backendFailuresTotal atomic.Uint64
	loginSucceededTotal  atomic.Uint64
	loginFailedTotal     atomic.Uint64
	logoutTotal          atomic.Uint64
	practiceLimitedTotal atomic.Uint64
	activeTabs           atomic.Int64

	backendDuration = newHistogram([]float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000})
)

// IncBackendRequest counts a call issued to the backend API.
func IncBackendRequest() {
	backendRequestsTotal.Add(1)
}

// IncBackendFailure counts a backend call that failed at transport, status or decode level.
func IncBackendFailure() {
	backendFailuresTotal.Add(1)
}

// ObserveBackendDurationMs records a backend call duration in milliseconds.
func ObserveBackendDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	backendDuration.Observe(value)
}

// IncLogin counts a login attempt by outcome.
func IncLogin(ok bool) {
	if ok {
		loginSucceededTotal.Add(1)
		return
	}
	loginFailedTotal.Add(1)
}

// IncLogout counts logouts.
func IncLogout() {
	logoutTotal.Add(1)
}

// IncPracticeLimited counts answer submissions rejected by the per-page ceiling.
func IncPracticeLimited() {
	practiceLimitedTotal.Add(1)
}

// SetActiveTabs records the number of live browser tabs.
func SetActiveTabs(n int) {
	activeTabs.Store(int64(n))
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "backend_requests_total", "Total backend API calls", backendRequestsTotal.Load())
	writeCounter(&buf, "backend_request_failures_total", "Total failed backend API calls", backendFailuresTotal.Load())
	writeCounter(&buf, "auth_login_succeeded_total", "Total successful logins", loginSucceededTotal.Load())
	writeCounter(&buf, "auth_login_failed_total", "Total rejected logins", loginFailedTotal.Load())
	writeCounter(&buf, "auth_logout_total", "Total logouts", logoutTotal.Load())
	writeCounter(&buf, "practice_limited_total", "Answer submissions rejected by the practice ceiling", practiceLimitedTotal.Load())
	writeGauge(&buf, "active_tabs", "Browser tabs with live state", activeTabs.Load())
	writeHistogram(&buf, "backend_request_duration_ms", "Backend API call duration in milliseconds", backendDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe adds value to the first bucket whose bound holds it.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeGauge(buf *bytes.Buffer, name, help string, value int64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s gauge\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// Since returns the elapsed milliseconds from start.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
