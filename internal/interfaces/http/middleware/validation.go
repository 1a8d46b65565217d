package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var setupOnce sync.Once

// SetupValidator registers the ledger validation tags on gin's validator and
// makes binding errors report json (or form) field names. Safe to call more
// than once.
//
//	location_kind  WAREHOUSE | DISPLAY | ONLINE
//	movement_type  RECEIPT | SALE_DEDUCTION | WAREHOUSE_TO_DISPLAY | TRANSFER | EXPIRY_WRITE_OFF
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(fieldName)
		_ = v.RegisterValidation("location_kind", func(fl validator.FieldLevel) bool {
			return inventory.LocationKind(fl.Field().String()).IsValid()
		})
		_ = v.RegisterValidation("movement_type", func(fl validator.FieldLevel) bool {
			return inventory.MovementType(fl.Field().String()).IsValid()
		})
	})
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}
	return fld.Name
}

// FormatValidationErrors turns a binding error into the API error envelope.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var (
		fieldErrs validator.ValidationErrors
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
	)
	switch {
	case errors.As(err, &fieldErrs):
		details := make([]dto.ValidationDetail, len(fieldErrs))
		for i, fe := range fieldErrs {
			details[i] = dto.ValidationDetail{Field: fe.Field(), Message: validationMessage(fe)}
		}
		return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
	case errors.As(err, &typeErr):
		return dto.NewValidationErrorResponse("Request validation failed", requestID, []dto.ValidationDetail{{
			Field:   typeErr.Field,
			Message: "Must be of type " + typeErr.Type.String(),
		}})
	case errors.As(err, &syntaxErr):
		return dto.NewErrorResponse(dto.ErrCodeInvalidJSON, "Request body is not valid JSON", requestID)
	}
	return dto.NewErrorResponse(dto.ErrCodeInvalidJSON, err.Error(), requestID)
}

// HandleValidationError answers a failed bind: 413 when the body hit the
// BodyLimit cap, 400 otherwise.
func HandleValidationError(c *gin.Context, err error) {
	requestID := c.GetString(logger.GinRequestIDKey)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		SetErrorCode(c, dto.ErrCodeRequestTooLarge)
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
			dto.NewErrorResponse(dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size", requestID))
		return
	}

	resp := FormatValidationErrors(err, requestID)
	SetErrorCode(c, resp.Error.Code)
	c.AbortWithStatusJSON(http.StatusBadRequest, resp)
}

func validationMessage(fe validator.FieldError) string {
	param := fe.Param()
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Must be at least " + param + unit
	case "max":
		return "Must be at most " + param + unit
	case "gt":
		return "Must be greater than " + param
	case "gte":
		return "Must be greater than or equal to " + param
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + param
	case "location_kind":
		return "Must be one of: WAREHOUSE DISPLAY ONLINE"
	case "movement_type":
		return "Must be one of: RECEIPT SALE_DEDUCTION WAREHOUSE_TO_DISPLAY TRANSFER EXPIRY_WRITE_OFF"
	}
	return "Invalid value"
}
