package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/goccy/go-json"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrStatusBadRequest):
		return http.StatusBadRequest, e.ErrStatusBadRequest.Error()
	case errors.Is(err, e.ErrInvalidJSON):
		return http.StatusBadRequest, e.ErrInvalidJSON.Error()
	case errors.Is(err, e.ErrInvalidPrice):
		return http.StatusBadRequest, e.ErrInvalidPrice.Error()
	case errors.Is(err, e.ErrPricePrecision):
		return http.StatusBadRequest, e.ErrPricePrecision.Error()
	case errors.Is(err, e.ErrInvalidPriceRange):
		return http.StatusBadRequest, e.ErrInvalidPriceRange.Error()
	case errors.Is(err, e.ErrInvalidProductID):
		return http.StatusBadRequest, e.ErrInvalidProductID.Error()
	case errors.Is(err, e.ErrEmptyQuery):
		return http.StatusBadRequest, e.ErrEmptyQuery.Error()
	case errors.Is(err, e.ErrInvalidLimit):
		return http.StatusBadRequest, e.ErrInvalidLimit.Error()
	case errors.Is(err, e.ErrSessionNotFound):
		return http.StatusNotFound, e.ErrSessionNotFound.Error()
	case errors.Is(err, e.ErrProductNotInListing):
		return http.StatusNotFound, e.ErrProductNotInListing.Error()
	case errors.Is(err, e.ErrAlreadyMounted):
		return http.StatusConflict, e.ErrAlreadyMounted.Error()
	case errors.Is(err, e.ErrSessionClosed):
		return http.StatusConflict, e.ErrSessionClosed.Error()
	case errors.Is(err, e.ErrSearchUnavailable):
		return http.StatusServiceUnavailable, e.ErrSearchUnavailable.Error()
	case errors.Is(err, e.ErrStreamingUnsupported):
		return http.StatusInternalServerError, e.ErrStreamingUnsupported.Error()
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	WriteSuccess(w, code, NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса не больше maxBytes, неизвестные поля отклоняются.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return e.Wrap(err.Error(), e.ErrInvalidJSON)
	}

	return nil
}

// parsePriceToCents converts a string like "599.99" or "600" to int64 cents.
func parsePriceToCents(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, e.ErrInvalidPrice
	}

	return domain.ParsePrice(s)
}

var (
	e400 = e.ErrStatusBadRequest.Error()

	errPriceRangeRequired = e.Wrap("price_range is required", e.ErrInvalidPriceRange)
)
