package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/docserver/docserver/internal/docerrors"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("rest: failed to encode response", slog.String("error", err.Error()))
	}
}

// respondError maps err through docerrors' single choke-point functions to
// an HTTP status and a stable code token, logging StoreError causes with
// full detail but never forwarding them to the client (spec §7).
func respondError(w http.ResponseWriter, err error) {
	status := docerrors.HTTPStatus(err)

	var de *docerrors.DocError
	if errors.As(err, &de) && de.Category == docerrors.CategoryStore {
		slog.Error("rest: internal error", slog.String("message", de.Message),
			slog.Any("cause", de.Cause))
	}

	respondJSON(w, status, ErrorResponse{
		Code:    docerrors.CodeOf(err),
		Message: docerrors.Message(err),
	})
}
