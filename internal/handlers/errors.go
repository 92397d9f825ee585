package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/SscSPs/funds_transfer_app/internal/apperrors"
	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	"github.com/SscSPs/funds_transfer_app/internal/dto"
	"github.com/SscSPs/funds_transfer_app/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var registerValidatorsOnce sync.Once

// registerValidators adds the custom binding tags used by the request DTOs to gin's validator.
func registerValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
			value, ok := fl.Field().Interface().(decimal.Decimal)
			return ok && domain.IsStorableAmount(value)
		})
	})
}

// statusForKind maps an error category onto the HTTP status returned to clients.
func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict, apperrors.KindConcurrentModification:
		return http.StatusConflict
	case apperrors.KindInsufficientFunds, apperrors.KindNoSuchReservation, apperrors.KindAccountInactive:
		return http.StatusUnprocessableEntity
	case apperrors.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error body for err. Server side failures are logged and masked.
func respondError(c *gin.Context, err error, msg string) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	kind := apperrors.Classify(err)
	status := statusForKind(kind)
	code := kind.String()

	// a reused key is a conflict in the error taxonomy but the request itself is unprocessable
	if errors.Is(err, apperrors.ErrIdempotencyMismatch) {
		status = http.StatusUnprocessableEntity
		code = "IDEMPOTENCY_KEY_MISMATCH"
	}

	// 5xx errors carry step names, URLs and dial errors; clients only get msg and the code
	if status >= http.StatusInternalServerError {
		logger.Error(msg, slog.String("error", err.Error()), slog.String("code", code))
		c.JSON(status, dto.ErrorResponse{Error: msg, Code: code})
		return
	}
	logger.Warn(msg, slog.String("error", err.Error()), slog.String("code", code))
	c.JSON(status, dto.ErrorResponse{Error: err.Error(), Code: code})
}

// respondBindError renders a binding failure, listing the offending fields when the validator produced them.
func respondBindError(c *gin.Context, err error) {
	middleware.GetLoggerFromCtx(c.Request.Context()).Warn("Failed to bind request", slog.String("error", err.Error()))

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "Invalid request format: " + err.Error(),
			Code:  apperrors.KindValidation.String(),
		})
		return
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[lowerFirst(fe.Field())] = describeFieldError(fe)
	}
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:  "request validation failed",
		Code:   apperrors.KindValidation.String(),
		Fields: fields,
	})
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a valid UUID"
	case "iso4217":
		return "must be an ISO 4217 currency code"
	case "positive_decimal":
		return fmt.Sprintf("must be a positive amount with at most %d decimal places", domain.MoneyScale)
	case "nefield":
		return "must differ from " + lowerFirst(fe.Param())
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "failed on " + fe.Tag()
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
