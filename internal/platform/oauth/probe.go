package oauth

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
)

// DefaultProbeTimeout bounds a whole probe run across all sections.
const DefaultProbeTimeout = 10 * time.Second

// Probe statuses.
const (
	ProbeOK            = "ok"
	ProbeFailed        = "failed"
	ProbeMisconfigured = "misconfigured"
)

// ProbeResult is the outcome of one section's test grant.
type ProbeResult struct {
	Section string `json:"section"`
	Grant   string `json:"grant,omitempty"`
	Status  string `json:"status"`
}

// ProbeResponse is the body of GET /health/idp.
type ProbeResponse struct {
	Status   string        `json:"status"`
	Sections []ProbeResult `json:"sections"`
}

// Probe performs one uncached grant per section through the lenient grant
// layer. Sections that name a Username use the password grant, all others
// client credentials. It never returns an error; failures are reported per
// section.
func (d *Delegate) Probe(ctx context.Context, src SectionSource, sections []string) []ProbeResult {
	names := append([]string(nil), sections...)
	sort.Strings(names)

	results := make([]ProbeResult, 0, len(names))
	for _, section := range names {
		tokenURI, req, err := ClientCredentialsAuth(src, section)
		if err != nil {
			d.logger.Warn().Err(err).Str("section", section).Msg("idp probe skipped misconfigured section")
			results = append(results, ProbeResult{Section: section, Status: ProbeMisconfigured})
			continue
		}

		kind := ClientCredentials
		var ok bool
		if req.Username != "" {
			kind = ResourceOwnerPassword
			_, ok = d.ResourceOwnerPasswordGrant(ctx, tokenURI, req)
		} else {
			_, ok = d.ClientCredentialsGrant(ctx, tokenURI, req)
		}

		status := ProbeOK
		if !ok {
			status = ProbeFailed
		}
		results = append(results, ProbeResult{Section: section, Grant: kind.String(), Status: status})
	}
	return results
}

// ProbeHandler serves the probe over HTTP. sections is evaluated per
// request. The response is 503 when any section is not ok.
func ProbeHandler(d *Delegate, src SectionSource, sections func() []string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), DefaultProbeTimeout)
		defer cancel()

		resp := ProbeResponse{Status: ProbeOK, Sections: d.Probe(ctx, src, sections())}
		for _, r := range resp.Sections {
			if r.Status != ProbeOK {
				resp.Status = "degraded"
				return c.JSON(http.StatusServiceUnavailable, resp)
			}
		}
		return c.JSON(http.StatusOK, resp)
	}
}
