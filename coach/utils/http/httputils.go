// coach/utils/http/httputils.go
package httputils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"essaycoach/coach/utils/apperr"
	"essaycoach/coach/utils/logging"

	"go.uber.org/zap"
)

// maxBody caps request bodies; essays pasted into the chat fit well under it.
const maxBody = 1 << 20

var ErrBadRequest = errors.New("bad request")

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.ErrorLogger.Error("response encode failed", zap.Error(err))
	}
}

// WriteError answers with the status err maps to and {"error": message}.
func WriteError(w http.ResponseWriter, err error) {
	status := apperr.Status(err)
	if errors.Is(err, ErrBadRequest) {
		status = http.StatusBadRequest
	}
	if status >= http.StatusInternalServerError {
		logging.ErrorLogger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	WriteJSON(w, status, map[string]string{"error": err.Error()})
}

func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// HandleJSON adapts a handler that returns a value or an error.
func HandleJSON(fn func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := fn(r)
		if err != nil {
			WriteError(w, err)
			return
		}
		if v == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		WriteJSON(w, http.StatusOK, v)
	}
}
