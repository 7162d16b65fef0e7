package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sweeney/desk-scheduler/internal/desk"
	"github.com/sweeney/desk-scheduler/internal/schedule"
	"github.com/sweeney/desk-scheduler/internal/status"
)

// SourceHTTP tags commands issued through the API.
const SourceHTTP = "http"

// Controller applies operator requests. Implementations run them on the
// goroutine that owns the desk and return once they are done or ctx expires.
type Controller interface {
	SendCommand(ctx context.Context, cmd desk.Command, source string) error
	SetDayConfig(ctx context.Context, day time.Weekday, cfg schedule.DayConfig) error
	SetParams(ctx context.Context, p desk.Params) error
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) requireControl(w http.ResponseWriter) bool {
	if s.control == nil {
		writeError(w, http.StatusServiceUnavailable, "control is disabled")
		return false
	}
	return true
}

// controlError maps a Controller error to a status code.
func (s *Server) controlError(w http.ResponseWriter, op string, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, desk.ErrUnknownCommand),
		errors.Is(err, schedule.ErrInvalidWeekday),
		errors.Is(err, schedule.ErrInvalidDayConfig):
		code = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		code = http.StatusGatewayTimeout
	}
	s.logger.Warnw("control request failed", "op", op, "error", err)
	writeError(w, code, err.Error())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if !s.requireControl(w) {
		return
	}
	cmd, err := desk.ParseCommand(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.control.SendCommand(r.Context(), cmd, SourceHTTP); err != nil {
		s.controlError(w, "command", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"command": cmd.String(), "status": "sent"})
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	writeJSON(w, http.StatusOK, status.ScheduleJSON{
		Target: snap.Target.String(),
		Days:   status.Days(snap.Days),
	})
}

func (s *Server) handlePutDay(w http.ResponseWriter, r *http.Request) {
	if !s.requireControl(w) {
		return
	}
	day, err := schedule.ParseWeekday(chi.URLParam(r, "day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var cfg schedule.DayConfig
	if err := decodeBody(w, r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.control.SetDayConfig(r.Context(), day, cfg); err != nil {
		s.controlError(w, "schedule", err)
		return
	}
	var week [7]schedule.DayConfig
	week[day] = cfg
	writeJSON(w, http.StatusOK, status.Days(week)[day])
}

func (s *Server) handlePutParams(w http.ResponseWriter, r *http.Request) {
	if !s.requireControl(w) {
		return
	}
	var p desk.Params
	if err := decodeBody(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.StandingMM == 0 || p.SittingMM == 0 {
		writeError(w, http.StatusBadRequest, "standing_mm and sitting_mm are required")
		return
	}
	if err := s.control.SetParams(r.Context(), p); err != nil {
		s.controlError(w, "params", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
