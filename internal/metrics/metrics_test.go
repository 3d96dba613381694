package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCollectors(t *testing.T) {
	RecordRequest("/generate")
	done := GenerationStarted("/generate")
	done(3)
	RecordError(ErrorValidation)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{
		`streamgen_requests_total{endpoint="/generate"}`,
		"streamgen_generations_active 0",
		"streamgen_generation_duration_seconds_count",
		"streamgen_fragments_total",
		`streamgen_errors_total{type="validation"}`,
	} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("missing %s in exposition:\n%s", name, body)
		}
	}
}
