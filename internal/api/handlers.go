package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/tenma-bridge/internal/datalog"
	"github.com/tamzrod/tenma-bridge/internal/psu"
	"github.com/tamzrod/tenma-bridge/internal/serializer"
)

// Response helpers
func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]interface{}{
		"error": message,
		"code":  status,
	})
}

func successResponse(w http.ResponseWriter, message string) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"message": message,
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.Message())
}

// handleCommand runs one command and waits for the supply to take it.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd psu.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	switch cmd.Name {
	case CmdStartLog:
		s.datalog.Start()
	case CmdStopLog:
		s.datalog.Stop()
	case CmdClearLog:
		s.datalog.Clear()
	default:
		if err := s.dev.Execute(cmd); err != nil {
			status := commandStatus(err)
			s.log.WithFields(logrus.Fields{
				"command": cmd.Name,
				"channel": cmd.Channel,
				"err":     err,
			}).Warn("command failed")
			errorResponse(w, status, err.Error())
			return
		}
	}

	successResponse(w, cmd.Name)
}

func commandStatus(err error) int {
	switch {
	case errors.Is(err, psu.ErrUnknownCommand), errors.Is(err, psu.ErrInvalidArgument):
		return http.StatusBadRequest
	case serializer.IsClosed(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// handleLog downloads the data log as CSV.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	name := datalog.FileName(s.dev.Identity(), s.now())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)

	if err := s.datalog.WriteCSV(w); err != nil {
		s.log.WithField("err", err).Warn("log download failed")
	}
}

// handleStream pushes the periodic message as Server-Sent Events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		errorResponse(w, http.StatusInternalServerError, "SSE not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(s.cfg.BroadcastInterval)
	defer ticker.Stop()

	for {
		data, err := json.Marshal(s.Message())
		if err != nil {
			s.log.WithField("err", err).Warn("periodic message encode failed")
			return
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", MessagePeriodic, data); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
