package uiapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/awaistahir/okte-windows/internal/app"
	"github.com/awaistahir/okte-windows/internal/calculator"
	"github.com/awaistahir/okte-windows/internal/engine"
	"github.com/awaistahir/okte-windows/internal/master"
	"github.com/awaistahir/okte-windows/internal/report"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	app *app.App
	now func() time.Time
}

func NewServer(a *app.App) *Server {
	return &Server{
		app: a,
		now: time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for dashboards served from another origin
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Route("/masters/{id}", func(r chi.Router) {
			r.Get("/prices", s.withMaster(s.handleGetPrices))
			r.Get("/stats", s.withMaster(s.handleGetStats))
			r.Post("/fetch", s.withMaster(s.handleFetch))
		})

		r.Route("/calculators/{id}", func(r chi.Router) {
			r.Get("/windows", s.withCalculator(s.handleGetWindows))
			r.Get("/settings", s.withCalculator(s.handleGetSettings))
			r.Put("/settings", s.withCalculator(s.handleUpdateSettings))
			r.Post("/recalculate", s.withCalculator(s.handleRecalculate))
		})
	})

	return r
}

type masterHandler func(w http.ResponseWriter, r *http.Request, m *master.Master)

type calculatorHandler func(w http.ResponseWriter, r *http.Request, c *calculator.Calculator)

func (s *Server) withMaster(h masterHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		m, ok := s.app.Master(id)
		if !ok {
			respondError(w, http.StatusNotFound, "master not found")
			return
		}
		h(w, r, m)
	}
}

func (s *Server) withCalculator(h calculatorHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		c, ok := s.app.Calculator(id)
		if !ok {
			respondError(w, http.StatusNotFound, "calculator not found")
			return
		}
		h(w, r, c)
	}
}

type calculatorSummary struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Master       string     `json:"master"`
	Available    bool       `json:"available"`
	CalculatedAt *time.Time `json:"calculated_at"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	masters := []report.MasterStatus{}
	for _, m := range s.app.Masters() {
		masters = append(masters, report.NewMasterStatus(m))
	}

	calculators := []calculatorSummary{}
	for _, c := range s.app.Calculators() {
		out := c.Outputs()
		sum := calculatorSummary{
			ID:        c.ID(),
			Name:      c.Name(),
			Master:    c.MasterID(),
			Available: out.Available,
		}
		if !out.CalculatedAt.IsZero() {
			at := out.CalculatedAt
			sum.CalculatedAt = &at
		}
		calculators = append(calculators, sum)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"version":     app.Version,
		"timezone":    s.app.Location().String(),
		"masters":     masters,
		"calculators": calculators,
	})
}

func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request, m *master.Master) {
	day := r.URL.Query().Get("day")
	if day == "" {
		day = "all"
	}
	if day != engine.DayToday && day != engine.DayTomorrow && day != "all" {
		respondError(w, http.StatusBadRequest, "day must be today, tomorrow or all")
		return
	}

	snap := m.Snapshot()
	if snap == nil {
		respondError(w, http.StatusServiceUnavailable, "no price data yet")
		return
	}

	dateRange := fmt.Sprintf("%s/%s", snap.TodayDate, snap.TomorrowDate)
	switch day {
	case engine.DayToday:
		dateRange = snap.TodayDate
	case engine.DayTomorrow:
		dateRange = snap.TomorrowDate
	}

	respondJSON(w, http.StatusOK, report.NewPriceList(dateRange, snap.Day(day), m.Location()))
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request, m *master.Master) {
	snap := m.Snapshot()
	if snap == nil {
		respondError(w, http.StatusServiceUnavailable, "no price data yet")
		return
	}
	respondJSON(w, http.StatusOK, report.NewStats(snap, s.now(), m.Location()))
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request, m *master.Master) {
	// the fetch outlives the request
	started := m.Start(context.WithoutCancel(r.Context()))
	respondJSON(w, http.StatusAccepted, map[string]bool{"started": started})
}

func (s *Server) handleGetWindows(w http.ResponseWriter, r *http.Request, c *calculator.Calculator) {
	if !c.Outputs().Available {
		respondError(w, http.StatusServiceUnavailable, "no price data yet")
		return
	}
	respondJSON(w, http.StatusOK, report.NewCalculator(c, s.app.Location()))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request, c *calculator.Calculator) {
	respondJSON(w, http.StatusOK, c.Settings())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request, c *calculator.Calculator) {
	// fields missing from the body keep their current values
	settings := c.Settings()
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := c.UpdateSettings(r.Context(), settings); err != nil {
		if errors.Is(err, engine.ErrInvalidSettings) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, c.Settings())
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request, c *calculator.Calculator) {
	ran := c.Run(r.Context())
	respondJSON(w, http.StatusOK, map[string]bool{"recalculated": ran})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
