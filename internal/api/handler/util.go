package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ayo6706/shop-treasury/internal/api/middleware"
	"github.com/ayo6706/shop-treasury/internal/api/problem"
	"github.com/ayo6706/shop-treasury/internal/service"
)

const maxBodyBytes = 1 << 20

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// respondResult writes a facade response. Failed results are problem
// documents so callers that only check the status code still stop.
func respondResult(w http.ResponseWriter, r *http.Request, result service.Result, body interface{}) {
	w.Header().Set(middleware.ResultHeader, result.String())
	if result == service.Failed {
		RespondError(w, r, http.StatusUnprocessableEntity, "economy/operation-failed", "operation failed and must not be retried by another adapter")
		return
	}
	RespondJSON(w, http.StatusOK, body)
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}

func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set(middleware.ResultHeader, service.NotHandled.String())
	RespondError(w, r, http.StatusBadRequest, "validation/invalid-request", err.Error())
}
