package app

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mkulagin/groundstation/internal/chart"
	"github.com/mkulagin/groundstation/internal/storage"
	"github.com/mkulagin/groundstation/internal/telemetry"
)

const (
	defaultQueryLimit = 10
	maxQueryLimit     = 100
	trendChartDepth   = 48
)

//go:embed dashboard.gohtml
var dashboardHTML string

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"reltime":    func(t time.Time) string { return humanize.Time(t) },
	"coordinate": formatCoordinate,
	"measure":    formatMeasure,
	"count":      formatCount,
}).Parse(dashboardHTML))

// Sampler runs sampling cycles and serves history queries. The concrete
// implementation is station.Aggregator.
type Sampler interface {
	SampleAndStore(ctx context.Context) (*telemetry.Reading, []telemetry.Reading, error)
	Recent(ctx context.Context, n int) ([]telemetry.Reading, error)
}

type server struct {
	sampler  Sampler
	store    *storage.Store
	renderer *chart.Renderer
	logger   *slog.Logger
}

func newMux(sampler Sampler, store *storage.Store, logger *slog.Logger) *http.ServeMux {
	s := &server{
		sampler:  sampler,
		store:    store,
		renderer: chart.NewRenderer(0, 0),
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /api/sample", s.handleSample)
	mux.HandleFunc("GET /api/readings", s.handleReadings)
	mux.HandleFunc("GET /trend.png", s.handleTrend)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

type dashboardView struct {
	Current telemetry.Reading
	History []telemetry.Reading
	MapURL  string
}

// handleDashboard runs one sampling cycle per page load, matching the
// station's request-driven acquisition model.
func (s *server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	reading, history, err := s.sampler.SampleAndStore(r.Context())
	if err != nil {
		s.logger.Error("sampling cycle failed", slog.String("error", err.Error()))
		http.Error(w, "sampling cycle failed", http.StatusInternalServerError)
		return
	}

	view := dashboardView{Current: *reading, History: history}
	if reading.HasFix() {
		view.MapURL = fmt.Sprintf("https://www.openstreetmap.org/?mlat=%.6f&mlon=%.6f#map=15",
			*reading.Latitude, *reading.Longitude)
	}

	// Render into a buffer first so a template failure does not leave a
	// half-written page behind a 200 status.
	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, view); err != nil {
		s.logger.Error("rendering dashboard", slog.String("error", err.Error()))
		http.Error(w, "rendering dashboard failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("writing dashboard", slog.String("error", err.Error()))
	}
}

func (s *server) handleSample(w http.ResponseWriter, r *http.Request) {
	reading, history, err := s.sampler.SampleAndStore(r.Context())
	if err != nil {
		s.logger.Error("sampling cycle failed", slog.String("error", err.Error()))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "sampling cycle failed"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"reading": reading,
		"history": history,
	})
}

func (s *server) handleReadings(w http.ResponseWriter, r *http.Request) {
	n := defaultQueryLimit
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "n must be a positive integer"})
			return
		}
		n = min(parsed, maxQueryLimit)
	}

	readings, err := s.sampler.Recent(r.Context(), n)
	if err != nil {
		s.logger.Error("querying readings", slog.String("error", err.Error()))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "querying readings failed"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"readings": readings})
}

func (s *server) handleTrend(w http.ResponseWriter, r *http.Request) {
	readings, err := s.sampler.Recent(r.Context(), trendChartDepth)
	if err != nil {
		s.logger.Error("querying readings for trend", slog.String("error", err.Error()))
		http.Error(w, "querying readings failed", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, readings); err != nil {
		s.logger.Error("rendering trend chart", slog.String("error", err.Error()))
		http.Error(w, "rendering chart failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("writing trend chart", slog.String("error", err.Error()))
	}
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	db, err := s.store.DB()
	if err == nil {
		var ok int
		err = db.QueryRowContext(r.Context(), `SELECT 1`).Scan(&ok)
	}
	if err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "store unavailable"})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", slog.String("error", err.Error()))
	}
}

// The placeholder contract matters: absent sensor fields render as
// "unavailable" rather than zero or an error page.
const unavailable = "unavailable"

func formatCoordinate(v *float64) string {
	if v == nil {
		return unavailable
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}

func formatMeasure(v *float64) string {
	if v == nil {
		return unavailable
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatCount(v *int64) string {
	if v == nil {
		return unavailable
	}
	return strconv.FormatInt(*v, 10)
}
