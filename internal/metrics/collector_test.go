package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/genomicsearch/genomicsearch/internal/config"
)

func TestDisabledCollectorIsNoOp(t *testing.T) {
	c, err := NewCollector(config.MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}

	// None of these may panic on a disabled collector.
	c.RecordSearch(time.Second, 10, nil)
	c.RecordSearch(time.Second, 0, errors.New("boom"))
	c.RecordBackendList("s3", time.Millisecond)
	c.RecordBackendError("s3", "BACKEND_LIST")
	c.RecordCacheHit("tags")
	c.RecordCacheMiss("tags")
	c.UpdateCacheEntries("tags", 5)
}

func TestCollectorExposesMetrics(t *testing.T) {
	c, err := NewCollector(config.MetricsConfig{Enabled: true, Namespace: "testns"})
	if err != nil {
		t.Fatalf("NewCollector failed: %v", err)
	}

	c.RecordSearch(250*time.Millisecond, 42, nil)
	c.RecordBackendList("s3", 100*time.Millisecond)
	c.RecordBackendError("omics", "THROTTLED")
	c.RecordCacheHit("results")
	c.RecordCacheMiss("results")
	c.UpdateCacheEntries("pagination", 7)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"testns_searches_total",
		"testns_search_duration_seconds",
		"testns_backend_list_duration_seconds",
		`testns_backend_errors_total{backend="omics",code="THROTTLED"} 1`,
		`testns_cache_requests_total{cache="results",outcome="hit"} 1`,
		`testns_cache_entries{cache="pagination"} 7`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition output missing %q", want)
		}
	}
}
