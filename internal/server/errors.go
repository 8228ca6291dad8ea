package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/dataverse/internal/contentstore"
	datasetdomain "github.com/smallbiznis/dataverse/internal/dataset/domain"
	gatewaydomain "github.com/smallbiznis/dataverse/internal/gateway/domain"
	"github.com/smallbiznis/dataverse/internal/orchestrator"
	purchasedomain "github.com/smallbiznis/dataverse/internal/purchase/domain"
	"github.com/smallbiznis/dataverse/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field    string `json:"field"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Received any    `json:"received,omitempty"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func newReceivedError(field, code, message string, received any) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:    field,
				Code:     code,
				Message:  message,
				Received: received,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if payload, ok := paymentVerificationError(err); ok {
		return http.StatusBadRequest, payload
	}

	if isValidationError(err) {
		code := err.Error()
		if idx := strings.Index(code, ": "); idx > 0 {
			code = code[:idx]
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "dataset not purchased",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, orchestrator.ErrAlreadyPurchased):
		return http.StatusConflict, errorPayload{
			Type:    "already_purchased",
			Message: "dataset already purchased",
		}
	case errors.Is(err, orchestrator.ErrPurchaseInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "purchase_in_progress",
			Message: "a purchase for this dataset is already in progress",
		}
	case errors.Is(err, orchestrator.ErrReferenceInUse):
		return http.StatusConflict, errorPayload{
			Type:    "reference_in_use",
			Message: "payment reference already used for another purchase",
		}
	case errors.Is(err, gatewaydomain.ErrMissingCredentials),
		errors.Is(err, gatewaydomain.ErrInvalidConfig),
		errors.Is(err, gatewaydomain.ErrProviderNotFound):
		return http.StatusInternalServerError, errorPayload{
			Type:    "configuration_error",
			Message: "payment gateway is not configured",
		}
	case errors.Is(err, gatewaydomain.ErrOrderCreationFailed),
		errors.Is(err, gatewaydomain.ErrUpstream),
		errors.Is(err, contentstore.ErrUploadFailed):
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: upstreamMessage(err),
		}
	case errors.Is(err, orchestrator.ErrPaymentCancelled):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "payment_cancelled",
			Message: "payment cancelled",
		}
	case errors.Is(err, orchestrator.ErrPaymentFailed):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "payment_failed",
			Message: upstreamMessage(err),
		}
	case errors.Is(err, orchestrator.ErrPurchaseRecordFailed):
		return http.StatusInternalServerError, errorPayload{
			Type:    "purchase_record_failed",
			Message: "payment succeeded but the purchase could not be recorded",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// paymentVerificationError covers checkout results that fail verification.
func paymentVerificationError(err error) (errorPayload, bool) {
	var field, code, message string
	switch {
	case errors.Is(err, gatewaydomain.ErrInvalidSignature):
		field, code, message = "razorpay_signature", "invalid_signature", "Invalid payment signature"
	case errors.Is(err, gatewaydomain.ErrPaymentNotCaptured):
		field, code, message = "razorpay_payment_id", "payment_not_captured", "Payment not captured"
	case errors.Is(err, gatewaydomain.ErrOrderMismatch):
		field, code, message = "razorpay_order_id", "order_mismatch", "Payment does not match the order"
	default:
		return errorPayload{}, false
	}
	return errorPayload{
		Type:    "validation_error",
		Message: message,
		Errors:  []ValidationError{{Field: field, Code: code, Message: message}},
	}, true
}

// upstreamMessage keeps the provider description that follows the sentinel.
func upstreamMessage(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 && idx+2 < len(msg) {
		return msg[idx+2:]
	}
	return strings.ReplaceAll(msg, "_", " ")
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken):
		return true
	case isDatasetValidationError(err),
		isPurchaseValidationError(err),
		isOrchestratorValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, datasetdomain.ErrNotFound),
		errors.Is(err, purchasedomain.ErrNotFound),
		errors.Is(err, contentstore.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isOrchestratorValidationError(err error) bool {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidDataset),
		errors.Is(err, orchestrator.ErrInvalidMethod),
		errors.Is(err, orchestrator.ErrWalletNotConnected),
		errors.Is(err, orchestrator.ErrCheckoutUnavailable):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "wallet_not_connected":
		return "buyer_address"
	case "checkout_unavailable":
		return "checkout"
	case "invalid_dataset", "invalid_dataset_id":
		return "dataset_id"
	case "file_too_large", "invalid_file_content":
		return "file"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "wallet_not_connected":
		return "connect a wallet first"
	case "file_too_large":
		return "file exceeds the upload limit"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog reports the response type and code logged for a failed request.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := ""
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
