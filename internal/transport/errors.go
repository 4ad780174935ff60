package transport

import (
	"net/http"

	"estoque-vendas/internal/domain"
	"estoque-vendas/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// statusForKind maps a domain error kind to its HTTP status
func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation, domain.KindEmptyComanda, domain.KindInsufficientStock:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the JSON envelope for an error returned by a service
func respondError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	domainErr, ok := domain.AsError(err)
	if !ok {
		logger.Error("Unexpected error", zap.Error(err))
		middleware.RespondWithErrorDetails(w, http.StatusInternalServerError, fallback, map[string]interface{}{
			"kind": string(domain.KindUnknown),
		})
		return
	}

	status := statusForKind(domainErr.Kind)
	details := map[string]interface{}{"kind": string(domainErr.Kind)}
	if len(domainErr.Products) > 0 {
		details["products"] = domainErr.Products
	}

	message := domainErr.Message
	if status >= http.StatusInternalServerError {
		logger.Error("Operation failed", zap.String("kind", string(domainErr.Kind)), zap.Error(err))
		if message == "" {
			message = fallback
		}
	} else {
		logger.Debug("Operation rejected", zap.String("kind", string(domainErr.Kind)), zap.String("message", message))
	}

	middleware.RespondWithErrorDetails(w, status, message, details)
}

// respondDecodeError answers a body that failed to decode or validate
func respondDecodeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	logger.Debug("Request validation failed", zap.Error(err))
	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return
	}
	middleware.RespondWithErrorDetails(w, http.StatusBadRequest, "Corpo da requisição inválido", map[string]interface{}{
		"kind": string(domain.KindValidation),
	})
}

// pathID parses a uuid URL parameter, answering 400 when it is malformed
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, "Identificador inválido", map[string]interface{}{
			"kind": string(domain.KindValidation),
		})
		return uuid.Nil, false
	}
	return id, true
}
