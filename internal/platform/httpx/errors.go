package httpx

import (
	"net/http"

	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// RespondError maps taxonomy-tagged domain errors to RFC7807 responses.
// Untagged errors never leak their message to the caller.
func RespondError(w http.ResponseWriter, err error) {
	switch shared.KindOf(err) {
	case shared.KindValidation:
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case shared.KindInvariant:
		Problem(w, http.StatusUnprocessableEntity, "Invariant Violation", err.Error())
	case shared.KindConflict:
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case shared.KindNotFound:
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case shared.KindConfiguration:
		Problem(w, http.StatusServiceUnavailable, "Configuration Error", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
