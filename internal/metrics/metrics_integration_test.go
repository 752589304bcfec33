package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/wallpanels/internal/core/observability"
)

func assertHasMetricLine(t *testing.T, body, metric string, wantLabels ...string) {
	t.Helper()
	for ln := range strings.SplitSeq(body, "\n") {
		if !strings.HasPrefix(ln, metric+"{") {
			continue
		}
		ok := true
		for _, s := range wantLabels {
			if !strings.Contains(ln, s) {
				ok = false
				break
			}
		}
		if ok && (len(ln) > 0 && ln[len(ln)-1] >= '0' && ln[len(ln)-1] <= '9') {
			return
		}
	}
	t.Fatalf("expected a %s line with labels %v; got:\n%s", metric, wantLabels, body)
}

func Test_AppMetrics_CustomRegistry_Smoke(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Version: "test"}})
	observability.Init(p.Registerer(), true)
	observability.ExposeBuildInfo("test")

	observability.ObserveGenerationStage("decode", 0.02)
	observability.IncGeneration("ok")
	observability.IncGeneration("invalid_layout")
	observability.ObservePanelRender(0.004)
	observability.IncPanelServed("render")
	observability.IncPanelCacheHit()
	observability.ObserveCacheOp("get", nil, 0.002)
	observability.SetStoreSize(3)
	observability.IncStoreRemoval("expired")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	mustContain := []string{
		`panel_generation_stage_seconds_bucket{stage="decode"`,
		`panel_render_seconds_count`,
		`cache_operation_duration_seconds_count{op="get",result="ok"}`,
		`generation_store_entries 3`,
	}
	for _, s := range mustContain {
		if !strings.Contains(body, s) {
			t.Fatalf("expected metrics to contain %q;\n---\n%s", s, body)
		}
	}

	assertHasMetricLine(t, body, "panel_generations_total", `outcome="ok"`)
	assertHasMetricLine(t, body, "panel_generations_total", `outcome="invalid_layout"`)
	assertHasMetricLine(t, body, "panel_cache_results_total", `outcome="hit"`)
	assertHasMetricLine(t, body, "generation_store_removals_total", `reason="expired"`)
	assertHasMetricLine(t, body, "app_build_info", `version="test"`)
	assertHasMetricLine(t, body, "panelserver_build_info", `version="test"`)
}
