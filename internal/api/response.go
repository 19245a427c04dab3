package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/RegFlow/internal/models"
	"github.com/BTreeMap/RegFlow/internal/registration"
)

// Pre-marshaled fallback responses to avoid runtime JSON encoding failures
var (
	fallbackErrorResponse []byte
)

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response to the http.ResponseWriter with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// marshal first so encoding errors surface before headers are written
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// submissionView is the JSON form of registration.SubmissionResult.
type submissionView struct {
	Queued bool `json:"queued"`
}

// completionView is the result of the request that completed a registration.
type completionView struct {
	registration.View
	Record     models.Record  `json:"record"`
	Submission submissionView `json:"submission"`
}

// writeResult maps a transition result onto the response envelope: validation failures are
// 422 with the unchanged view, completion carries the flattened record.
func (s *Server) writeResult(w http.ResponseWriter, res registration.Result) {
	view := s.reg.View(res.State)
	switch {
	case !res.OK():
		writeJSONResponse(w, http.StatusUnprocessableEntity, models.Invalid(res.Err.Message, view))
	case res.Completed:
		cv := completionView{
			View:       view,
			Record:     res.Record,
			Submission: submissionView{Queued: res.Submission.Queued},
		}
		writeJSONResponse(w, http.StatusOK, models.Complete(s.reg.Controller().Schema().Completion, cv))
	default:
		writeJSONResponse(w, http.StatusOK, models.Success(view))
	}
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, registration.ErrSessionNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	slog.Error("Server."+op+": request failed", "error", err)
	writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
}
