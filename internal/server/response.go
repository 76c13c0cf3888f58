package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/your-org/fileflow/internal/ingest"
)

type errorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	ExistingID string `json:"existing_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeIngestError maps pipeline failures to response payloads. Duplicates
// get an explicit code and a reference to the prior record instead of a
// generic failure.
func writeIngestError(w http.ResponseWriter, err error) {
	var dup *ingest.DuplicateContentError
	if errors.As(err, &dup) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:      "file already stored",
			Code:       "duplicate",
			ExistingID: dup.Existing.ID,
		})
		return
	}

	var mismatch *ingest.FormatMismatchError
	if errors.As(err, &mismatch) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: mismatch.Error(),
			Code:  "format_mismatch",
		})
		return
	}

	writeError(w, http.StatusInternalServerError, err.Error())
}
