package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/RegFlow/internal/models"
)

// decodeJSON decodes a bounded request body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.startSessionHandler: processing request", "method", r.Method, "path", r.URL.Path)
	var req models.StartSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.startSessionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	st, err := s.reg.Start(r.Context(), req.Channel, req.Participant)
	if err != nil {
		writeServiceError(w, "startSessionHandler", err)
		return
	}
	slog.Info("Server.startSessionHandler: session started", "session", st.SessionID, "channel", req.Channel)
	writeJSONResponse(w, http.StatusCreated, models.Success(s.reg.View(st)))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.reg.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "getSessionHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.reg.View(st)))
}

func (s *Server) resetSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.reg.Reset(r.Context(), id); err != nil {
		writeServiceError(w, "resetSessionHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.NewAPIResponseBuilder().
		WithStatus(models.APIStatusOK).
		WithMessage("Session reset").
		Build())
}

func (s *Server) answerHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AnswerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.answerHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	res, err := s.reg.Answer(r.Context(), r.PathValue("id"), req.Input)
	if err != nil {
		writeServiceError(w, "answerHandler", err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) skipHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.reg.Skip(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "skipHandler", err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) backHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.reg.Back(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "backHandler", err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) selectHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SelectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.selectHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	res, err := s.reg.Select(r.Context(), r.PathValue("id"), req.Option)
	if err != nil {
		writeServiceError(w, "selectHandler", err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) submitSelectionHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.reg.SubmitSelection(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "submitSelectionHandler", err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) pendingInputHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AnswerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	res, err := s.reg.SetInput(r.Context(), r.PathValue("id"), req.Input)
	if err != nil {
		writeServiceError(w, "pendingInputHandler", err)
		return
	}
	s.writeResult(w, res)
}

func (s *Server) schemaHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.reg.Controller().Schema()))
}

func (s *Server) registrationsHandler(w http.ResponseWriter, r *http.Request) {
	backups, err := s.reg.Backups(r.Context())
	if err != nil {
		writeServiceError(w, "registrationsHandler", err)
		return
	}
	if backups == nil {
		backups = []models.BackupEntry{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(backups))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"state": "healthy"}))
}

