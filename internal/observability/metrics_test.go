package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/hassctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()
}

func TestSessionRecorders(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(sessionFrames.WithLabelValues("in", "text"))
	RecordFrame("in", "text")
	RecordFrame("in", "text")
	if got := testutil.ToFloat64(sessionFrames.WithLabelValues("in", "text")) - before; got != 2 {
		t.Fatalf("frames delta=%v", got)
	}

	orphans := testutil.ToFloat64(sessionOrphanReplies)
	RecordOrphanReply()
	if got := testutil.ToFloat64(sessionOrphanReplies) - orphans; got != 1 {
		t.Fatalf("orphan delta=%v", got)
	}

	pruned := testutil.ToFloat64(sessionEvents.WithLabelValues(EventPruned))
	RecordEvent(EventPruned)
	if got := testutil.ToFloat64(sessionEvents.WithLabelValues(EventPruned)) - pruned; got != 1 {
		t.Fatalf("pruned delta=%v", got)
	}

	subs := testutil.ToFloat64(sessionSubscriptions)
	AddSubscriptions(3)
	AddSubscriptions(-1)
	if got := testutil.ToFloat64(sessionSubscriptions) - subs; got != 2 {
		t.Fatalf("subscriptions delta=%v", got)
	}
	AddSubscriptions(-2)

	RecordRequest("get_states", true, 3*time.Millisecond)
	RecordDecodeError()
	AddPending(1)
	AddPending(-1)
}

func TestMiddlewareRecordsRequests(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Instrument(zerolog.Nop()))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	counter := httpRequests.WithLabelValues(http.MethodGet, "/healthz", "204")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Fatalf("http request delta=%v", got)
	}

	unmatched := httpRequests.WithLabelValues(http.MethodGet, "unmatched", "404")
	before = testutil.ToFloat64(unmatched)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))
	if got := testutil.ToFloat64(unmatched) - before; got != 1 {
		t.Fatalf("unmatched paths must share one label, delta=%v", got)
	}
}
