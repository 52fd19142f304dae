package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/http/response"
)

// FieldError describes one failed binding rule
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

type problem struct {
	status  int
	code    string
	message string
	details interface{}
}

// classify maps an error to its HTTP problem
func classify(err error) problem {
	if appErr, ok := domain.AsAppError(err); ok {
		return problem{appErr.Status(), string(appErr.Kind), appErr.Message, appErr.Details}
	}

	var (
		verrs     validator.ValidationErrors
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxBytes  *http.MaxBytesError
		stripeErr *stripe.Error
	)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return problem{http.StatusNotFound, string(domain.KindNotFound), "Resource not found", nil}
	case errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err):
		return problem{http.StatusConflict, string(domain.KindConflict), "Resource already exists", nil}
	case errors.As(err, &verrs):
		return problem{http.StatusBadRequest, string(domain.KindValidation), "Validation failed", fieldErrors(verrs)}
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return problem{http.StatusBadRequest, string(domain.KindValidation), "Invalid request body", nil}
	case errors.Is(err, jwt.ErrTokenExpired):
		return problem{http.StatusUnauthorized, string(domain.KindUnauthorized), "Token expired", nil}
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUnverifiable):
		return problem{http.StatusUnauthorized, string(domain.KindUnauthorized), "Invalid token", nil}
	case errors.Is(err, http.ErrMissingFile):
		return problem{http.StatusBadRequest, string(domain.KindValidation), "File is required", nil}
	case errors.As(err, &maxBytes), errors.Is(err, multipart.ErrMessageTooLarge):
		return problem{http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "File too large", nil}
	case errors.As(err, &stripeErr):
		if stripeErr.Type == stripe.ErrorTypeCard {
			return problem{http.StatusPaymentRequired, string(domain.KindPaymentRequired), stripeErr.Msg, nil}
		}
		return problem{http.StatusBadGateway, "PAYMENT_PROVIDER_ERROR", "Payment provider error", nil}
	}
	return problem{http.StatusInternalServerError, string(domain.KindInternal), "Internal server error", nil}
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

func fieldErrors(verrs validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "mcnumber":
		return fe.Field() + " must be an MC number of 1 to 8 digits"
	case "dotnumber":
		return fe.Field() + " must be a DOT number of 1 to 8 digits"
	}
	return fe.Field() + " is invalid"
}

// ErrorHandler renders the last error a handler pushed with c.Error. In
// production, 5xx responses carry no details and 500s a generic message.
func ErrorHandler(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		p := classify(err)

		ctx := c.Request.Context()
		attrs := []any{"status", p.status, "path", c.FullPath(), "request_id", RequestID(c), "error", err}
		if p.status >= http.StatusInternalServerError {
			slog.ErrorContext(ctx, "request failed", attrs...)
			if production {
				p.details = nil
				if p.status == http.StatusInternalServerError {
					p.message = "Internal server error"
				}
			}
		} else {
			slog.DebugContext(ctx, "request rejected", attrs...)
		}

		if c.Writer.Written() {
			return
		}
		response.Error(c, p.status, p.code, p.message, p.details)
	}
}

// Recovery turns panics into a 500 envelope
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.ErrorContext(c.Request.Context(), "panic recovered", "panic", recovered, "path", c.Request.URL.Path, "request_id", RequestID(c))
		response.Error(c, http.StatusInternalServerError, string(domain.KindInternal), "Internal server error", nil)
	})
}
