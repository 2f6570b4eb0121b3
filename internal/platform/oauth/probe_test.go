package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestProbe_PerSectionOutcome(t *testing.T) {
	ok := newTokenServer(t, jsonToken(intPtr(300)))
	rejecting := newTokenServer(t, func(w http.ResponseWriter, _ int32) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	src := mapSource{
		"phsa":     {KeyTokenURI: ok.tokenURI(), KeyClientID: "hg-phsa"},
		"keycloak": {KeyTokenURI: ok.tokenURI(), KeyClientID: "hg-admin", KeyUsername: "tester", KeyPassword: "pw"},
		"odr":      {KeyTokenURI: rejecting.tokenURI(), KeyClientID: "hg-odr"},
		"broken":   {KeyClientID: "no-uri"},
	}

	results := newTestDelegate(newClockCache()).Probe(context.Background(), src, []string{"phsa", "odr", "keycloak", "broken"})

	want := []ProbeResult{
		{Section: "broken", Status: ProbeMisconfigured},
		{Section: "keycloak", Grant: "password", Status: ProbeOK},
		{Section: "odr", Grant: "client_credentials", Status: ProbeFailed},
		{Section: "phsa", Grant: "client_credentials", Status: ProbeOK},
	}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %+v", len(want), results)
	}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("result %d: got %+v, want %+v", i, results[i], want[i])
		}
	}
}

func TestProbe_BypassesCache(t *testing.T) {
	ts := newTokenServer(t, jsonToken(intPtr(300)))
	src := mapSource{"phsa": {KeyTokenURI: ts.tokenURI(), KeyClientID: "hg-phsa"}}
	d := newTestDelegate(newClockCache())

	for i := 0; i < 2; i++ {
		d.Probe(context.Background(), src, []string{"phsa"})
	}
	if n := ts.hits.Load(); n != 2 {
		t.Errorf("expected a grant per probe, got %d", n)
	}
}

func serveProbe(t *testing.T, d *Delegate, src SectionSource, sections ...string) (int, ProbeResponse) {
	t.Helper()
	e := echo.New()
	e.GET("/health/idp", ProbeHandler(d, src, func() []string { return sections }))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/idp", nil))

	var body ProbeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rec.Code, body
}

func TestProbeHandler(t *testing.T) {
	ts := newTokenServer(t, jsonToken(intPtr(300)))
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	d := NewDelegate(Options{Logger: zerolog.Nop(), Metrics: m})
	src := mapSource{"phsa": {KeyTokenURI: ts.tokenURI(), KeyClientID: "hg-phsa"}}

	code, body := serveProbe(t, d, src, "phsa")
	if code != http.StatusOK || body.Status != ProbeOK {
		t.Errorf("expected healthy probe, got %d %+v", code, body)
	}
	if got := testutil.ToFloat64(m.grantsTotal.WithLabelValues("client_credentials", "success")); got != 1 {
		t.Errorf("expected the probe grant to be counted, got %v", got)
	}

	code, body = serveProbe(t, d, src, "phsa", "missing")
	if code != http.StatusServiceUnavailable || body.Status != "degraded" {
		t.Errorf("expected degraded probe, got %d %+v", code, body)
	}
}

func TestProbeHandler_NoSections(t *testing.T) {
	code, body := serveProbe(t, newTestDelegate(newClockCache()), mapSource{})
	if code != http.StatusOK || body.Status != ProbeOK || len(body.Sections) != 0 {
		t.Errorf("expected empty ok probe, got %d %+v", code, body)
	}
}
