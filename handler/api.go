package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soclab/quell/domain/entity"
	"github.com/soclab/quell/ingest"
)

const maxAlertBody = 1 << 20 // 1MB

// Server exposes the ingest webhook and the incident API.
type Server struct {
	engine *Engine
	token  string
}

func NewServer(engine *Engine, token string) *Server {
	return &Server{engine: engine, token: token}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(s.authMiddleware)
	v1.HandleFunc("/alerts/{source}", s.handleAlert).Methods("POST")
	v1.HandleFunc("/incidents", s.handleListIncidents).Methods("GET")
	v1.HandleFunc("/incidents/{id}/timeline", s.handleTimeline).Methods("GET")
	v1.HandleFunc("/incidents/{id}/resolve", s.handleResolve).Methods("POST")
	v1.HandleFunc("/incidents/{id}/close", s.handleClose).Methods("POST")
	return router
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleAlert(w http.ResponseWriter, r *http.Request) {
	source := mux.Vars(r)["source"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxAlertBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	indicators, err := ingest.Normalize(source, body, timeNow())
	if err != nil {
		if err == ingest.ErrUnknownSource {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown source: %s", source))
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	accepted := 0
	for i := range indicators {
		ok, err := s.engine.HandleIndicator(r.Context(), &indicators[i])
		if err != nil {
			slog.Error("Failed to handle indicator",
				slog.String("source", source), slog.Any("err", err))
			writeError(w, http.StatusInternalServerError, "failed to process alert")
			return
		}
		if ok {
			accepted++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]int{
		"indicators": len(indicators),
		"accepted":   accepted,
	})
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	var minSeverity entity.Severity
	if q := r.URL.Query().Get("severity"); q != "" {
		minSeverity = entity.Severity(q)
		if !minSeverity.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown severity: %s", q))
			return
		}
	}

	incidents, err := s.engine.ActiveIncidents(r.Context())
	if err != nil {
		slog.Error("Failed to list incidents", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to list incidents")
		return
	}

	if minSeverity != "" {
		filtered := make([]entity.Incident, 0, len(incidents))
		for _, incident := range incidents {
			if incident.Severity.AtLeast(minSeverity) {
				filtered = append(filtered, incident)
			}
		}
		incidents = filtered
	}
	writeJSON(w, incidents)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	entries, err := s.engine.Timeline(r.Context(), id)
	if err != nil {
		slog.Error("Failed to load timeline", slog.String("incident_id", id), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to load timeline")
		return
	}
	writeJSON(w, entries)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	incident, err := s.engine.Resolve(r.Context(), id, actorFor(r))
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		slog.Error("Failed to resolve incident", slog.String("incident_id", id), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to resolve incident")
		return
	}
	if incident == nil {
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}
	writeJSON(w, incident)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	incident, err := s.engine.Close(r.Context(), id, actorFor(r))
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		slog.Error("Failed to close incident", slog.String("incident_id", id), slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to close incident")
		return
	}
	if incident == nil {
		writeError(w, http.StatusNotFound, "incident not found")
		return
	}
	writeJSON(w, incident)
}

func actorFor(r *http.Request) string {
	if actor := r.Header.Get("X-Actor"); actor != "" {
		return actor
	}
	return "api"
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", slog.Any("err", err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
