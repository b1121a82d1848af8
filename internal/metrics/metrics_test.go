package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// counterValue sums the samples of name whose labels include want.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	var sum float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matches(m, want) {
				sum += m.GetCounter().GetValue()
			}
		}
	}
	return sum
}

func matches(m *dto.Metric, want map[string]string) bool {
	for k, v := range want {
		found := false
		for _, lp := range m.GetLabel() {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestCollector_ScheduleEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordScheduleCreated("anime")
	c.RecordScheduleReused("anime")
	c.RecordScheduleReused("anime")
	c.RecordPoolExhausted("studio")
	c.RecordPoolRelaxed("banner", 3)

	tests := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"puzzle_schedule_created_total", map[string]string{"game_type": "anime"}, 1},
		{"puzzle_schedule_reused_total", map[string]string{"game_type": "anime"}, 2},
		{"puzzle_pool_exhausted_total", map[string]string{"game_type": "studio"}, 1},
		{"puzzle_pool_relaxed_total", map[string]string{"game_type": "banner", "window_days": "3"}, 1},
	}
	for _, tt := range tests {
		if got := counterValue(t, reg, tt.name, tt.labels); got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.name, tt.labels, got, tt.want)
		}
	}
}

func TestCollector_GuessAndSessionEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGuess("anime", "miss")
	c.RecordGuess("anime", "hit")
	c.RecordGuess("anime", "duplicate")
	c.RecordSessionFinished("anime", "won")
	c.RecordCacheLookup("hit")

	if got := counterValue(t, reg, "puzzle_guesses_total", map[string]string{"game_type": "anime"}); got != 3 {
		t.Errorf("guesses = %v, want 3", got)
	}
	if got := counterValue(t, reg, "puzzle_sessions_finished_total", map[string]string{"status": "won"}); got != 1 {
		t.Errorf("sessions finished = %v, want 1", got)
	}
	if got := counterValue(t, reg, "puzzle_leaderboard_cache_total", map[string]string{"result": "hit"}); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordHTTPStatus(http.StatusOK)
	c.RecordHTTPLatency(15 * time.Millisecond)

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"puzzle_http_status_total", "puzzle_http_latency_seconds"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("response should contain %s", name)
		}
	}
}
