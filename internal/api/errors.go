package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"odatagate/internal/dispatch"
	"odatagate/internal/memstore"
	"odatagate/internal/metadata"
	"odatagate/internal/pg"
	"odatagate/internal/serializer"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// statusFor сопоставляет ошибку слоя диспетчеризации HTTP-статусу и коду.
func statusFor(err error) (int, string) {
	var (
		notFound    *metadata.NotFoundError
		notImpl     *dispatch.NotImplementedError
		payload     *PayloadError
		deserialize *serializer.DeserializationError
		serialize   *serializer.SerializationError
	)
	switch {
	case errors.As(err, &notFound),
		errors.Is(err, memstore.ErrNotFound),
		errors.Is(err, pg.ErrNoRows):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &notImpl),
		errors.Is(err, dispatch.ErrUnsupportedOperation),
		errors.Is(err, dispatch.ErrNoController):
		return http.StatusNotImplemented, "not_implemented"
	case errors.Is(err, ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, "unsupported_media_type"
	case errors.As(err, &payload),
		errors.As(err, &deserialize),
		errors.Is(err, dispatch.ErrInvalidRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, memstore.ErrConflict),
		errors.Is(err, pg.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.As(err, &serialize):
		return http.StatusInternalServerError, "serialization_failed"
	}
	return http.StatusInternalServerError, "internal"
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	body := errorBody{Error: errorDetail{Code: code, Message: err.Error()}}
	var payload *PayloadError
	if errors.As(err, &payload) {
		body.Error.Details = payload.Errors
	}
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		h.logger.Error("request failed",
			zap.String("request_id", requestID(c)),
			zap.Int("status", status),
			zap.Error(err))
		if status == http.StatusInternalServerError {
			body.Error.Message = http.StatusText(status)
		}
	}
	c.AbortWithStatusJSON(status, body)
}
