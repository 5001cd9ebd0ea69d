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
	runsStartedTotal   atomic.Uint64
	runsCompletedTotal atomic.Uint64
	runsFailedTotal    atomic.Uint64
	runsCancelledTotal atomic.Uint64

	companiesProcessedTotal atomic.Uint64
	companiesFailedTotal    atomic.Uint64

	insightsGeneratedTotal atomic.Uint64
	insightsDuplicateTotal atomic.Uint64
	categoryWarningsTotal  atomic.Uint64

	llmRequestsTotal atomic.Uint64
	llmRetriesTotal  atomic.Uint64
	llmTokensTotal   atomic.Uint64

	tasksExecutedTotal   atomic.Uint64
	tasksFailedTotal     atomic.Uint64
	tasksRetriedTotal    atomic.Uint64
	tasksDeadLetterTotal atomic.Uint64

	notificationsSentTotal    atomic.Uint64
	notificationsDroppedTotal atomic.Uint64

	runDuration     = newHistogram([]float64{1000, 5000, 15000, 30000, 60000, 300000, 900000, 1800000, 3600000})
	companyDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncRunStarted increments the started-run counter.
func IncRunStarted() { runsStartedTotal.Add(1) }

// IncRunCompleted increments the completed-run counter.
func IncRunCompleted() { runsCompletedTotal.Add(1) }

// IncRunFailed increments the failed-run counter.
func IncRunFailed() { runsFailedTotal.Add(1) }

// IncRunCancelled increments the cancelled-run counter.
func IncRunCancelled() { runsCancelledTotal.Add(1) }

// IncCompanyProcessed increments the processed-company counter.
func IncCompanyProcessed() { companiesProcessedTotal.Add(1) }

// IncCompanyFailed increments the failed-company counter.
func IncCompanyFailed() { companiesFailedTotal.Add(1) }

// AddInsightsGenerated adds to the generated-insight counter.
func AddInsightsGenerated(n int) {
	if n > 0 {
		insightsGeneratedTotal.Add(uint64(n))
	}
}

// IncInsightDuplicate increments the duplicate-insight counter.
func IncInsightDuplicate() { insightsDuplicateTotal.Add(1) }

// IncCategoryWarning increments the unrecognized-category counter.
func IncCategoryWarning() { categoryWarningsTotal.Add(1) }

// IncLLMRequest increments the provider-request counter.
func IncLLMRequest() { llmRequestsTotal.Add(1) }

// IncLLMRetry increments the provider-retry counter.
func IncLLMRetry() { llmRetriesTotal.Add(1) }

// AddLLMTokens adds to the token-usage counter.
func AddLLMTokens(n int) {
	if n > 0 {
		llmTokensTotal.Add(uint64(n))
	}
}

// IncTaskExecuted increments the executed-task counter.
func IncTaskExecuted() { tasksExecutedTotal.Add(1) }

// IncTaskFailed increments the failed-task counter.
func IncTaskFailed() { tasksFailedTotal.Add(1) }

// IncTaskRetried increments the retried-task counter.
func IncTaskRetried() { tasksRetriedTotal.Add(1) }

// IncTaskDeadLettered increments the dead-lettered-task counter.
func IncTaskDeadLettered() { tasksDeadLetterTotal.Add(1) }

// IncNotificationSent increments the sent-notification counter.
func IncNotificationSent() { notificationsSentTotal.Add(1) }

// IncNotificationDropped increments the dropped-notification counter.
func IncNotificationDropped() { notificationsDroppedTotal.Add(1) }

// ObserveRunDurationMs records a run duration in milliseconds.
func ObserveRunDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	runDuration.Observe(value)
}

// ObserveCompanyDurationMs records a per-company analysis duration in milliseconds.
func ObserveCompanyDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	companyDuration.Observe(value)
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
	writeCounter(&buf, "analysis_runs_started_total", "Total analysis runs started", runsStartedTotal.Load())
	writeCounter(&buf, "analysis_runs_completed_total", "Total analysis runs completed", runsCompletedTotal.Load())
	writeCounter(&buf, "analysis_runs_failed_total", "Total analysis runs failed", runsFailedTotal.Load())
	writeCounter(&buf, "analysis_runs_cancelled_total", "Total analysis runs cancelled", runsCancelledTotal.Load())
	writeCounter(&buf, "companies_processed_total", "Total companies analyzed successfully", companiesProcessedTotal.Load())
	writeCounter(&buf, "companies_failed_total", "Total companies that failed analysis", companiesFailedTotal.Load())
	writeCounter(&buf, "insights_generated_total", "Total insights stored", insightsGeneratedTotal.Load())
	writeCounter(&buf, "insights_duplicate_total", "Total duplicate insights dropped", insightsDuplicateTotal.Load())
	writeCounter(&buf, "insight_category_warnings_total", "Total unrecognized provider categories", categoryWarningsTotal.Load())
	writeCounter(&buf, "llm_requests_total", "Total provider requests", llmRequestsTotal.Load())
	writeCounter(&buf, "llm_retries_total", "Total provider request retries", llmRetriesTotal.Load())
	writeCounter(&buf, "llm_tokens_total", "Total tokens consumed", llmTokensTotal.Load())
	writeCounter(&buf, "tasks_executed_total", "Total queue tasks executed", tasksExecutedTotal.Load())
	writeCounter(&buf, "tasks_failed_total", "Total queue tasks failed", tasksFailedTotal.Load())
	writeCounter(&buf, "tasks_retried_total", "Total queue task retries", tasksRetriedTotal.Load())
	writeCounter(&buf, "tasks_dead_lettered_total", "Total tasks moved to the dead-letter queue", tasksDeadLetterTotal.Load())
	writeCounter(&buf, "notifications_sent_total", "Total notifications handed to the sink", notificationsSentTotal.Load())
	writeCounter(&buf, "notifications_dropped_total", "Total notifications dropped by rate limiting", notificationsDroppedTotal.Load())
	writeHistogram(&buf, "run_duration_ms", "Analysis run duration in milliseconds", runDuration.Snapshot())
	writeHistogram(&buf, "company_analysis_duration_ms", "Per-company analysis duration in milliseconds", companyDuration.Snapshot())
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

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
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

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
