package httpx

import (
	"errors"
	"net/http"

	"github.com/tallyard/tallyard/internal/shared"
)

// RespondError maps engine errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var unbalanced *shared.UnbalancedError
	switch {
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrCrossTenant):
		// Cross-tenant references are indistinguishable from absent rows on
		// the wire so other orgs cannot probe for document existence.
		Problem(w, http.StatusNotFound, "Not Found", "resource not found")
	case errors.Is(err, shared.ErrInvalidTransition),
		errors.Is(err, shared.ErrAlreadyConverted),
		errors.Is(err, shared.ErrAlreadyPaid),
		errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.As(err, &unbalanced):
		Problem(w, http.StatusUnprocessableEntity, "Unbalanced Journal", err.Error())
	case errors.Is(err, shared.ErrStore):
		// The failed transaction left no partial state behind, so the
		// caller may safely retry the whole request.
		Problem(w, http.StatusInternalServerError, "Storage Failure", "temporary storage failure, the request may be retried")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
