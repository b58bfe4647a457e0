package handler

import (
    "context"
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/unit-inventory/internal/inventory"
    "github.com/iliyamo/unit-inventory/internal/repository"
    "github.com/iliyamo/unit-inventory/internal/service"
)

// apiError is the body of every error response.
type apiError struct {
    Error   string               `json:"error"`
    Message string               `json:"message"`
    Fields  []service.FieldError `json:"fields,omitempty"`
}

func badRequest(c echo.Context, message string) error {
    return c.JSON(http.StatusBadRequest, apiError{Error: "bad_request", Message: message})
}

// writeError maps service and repository errors onto HTTP responses.
// Unrecognised errors are logged and hidden behind a 500.
func writeError(c echo.Context, log *zap.Logger, err error) error {
    var ve *service.ValidationError
    switch {
    case errors.As(err, &ve):
        return c.JSON(http.StatusBadRequest, apiError{Error: "validation_failed", Message: ve.Error(), Fields: ve.Fields})
    case errors.Is(err, inventory.ErrUnknownAction):
        return c.JSON(http.StatusBadRequest, apiError{Error: "unknown_action", Message: err.Error()})
    case errors.Is(err, repository.ErrUnitNotFound):
        return c.JSON(http.StatusNotFound, apiError{Error: "not_found", Message: "unit not found"})
    case errors.Is(err, repository.ErrConflict):
        return c.JSON(http.StatusConflict, apiError{Error: "conflict", Message: "unit was modified by someone else; reload and retry"})
    case errors.Is(err, repository.ErrDuplicateUnit):
        return c.JSON(http.StatusConflict, apiError{Error: "duplicate_unit", Message: err.Error()})
    case errors.Is(err, inventory.ErrInvalidTransition):
        return c.JSON(http.StatusConflict, apiError{Error: "invalid_transition", Message: err.Error()})
    case errors.Is(err, service.ErrFeedSoldLocked):
        return c.JSON(http.StatusConflict, apiError{Error: "feed_sold", Message: err.Error()})
    case errors.Is(err, context.DeadlineExceeded):
        return c.JSON(http.StatusGatewayTimeout, apiError{Error: "timeout", Message: "request timed out"})
    }
    log.Error("request failed", zap.String("route", c.Path()), zap.Error(err))
    return c.JSON(http.StatusInternalServerError, apiError{Error: "internal", Message: "internal error"})
}
