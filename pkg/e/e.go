package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Конфигурация
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")

	// 400 Bad Request
	ErrStatusBadRequest     = fmt.Errorf("bad request")
	ErrInvalidJSON          = fmt.Errorf("invalid json body")
	ErrInvalidPrice         = fmt.Errorf("invalid price")
	ErrPricePrecision       = fmt.Errorf("price must have at most 2 decimal places")
	ErrInvalidPriceRange    = fmt.Errorf("invalid price range")
	ErrInvalidProductID     = fmt.Errorf("invalid product id")
	ErrProductNameRequired  = fmt.Errorf("product name is required")
	ErrCategoryRequired     = fmt.Errorf("category name is required")
	ErrPriceMustBePositive  = fmt.Errorf("price must be positive")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")
	ErrFileTooLarge         = fmt.Errorf("file too large")
	ErrNoProducts           = fmt.Errorf("no products provided")
	ErrEmptyQuery           = fmt.Errorf("search query is required")
	ErrInvalidLimit         = fmt.Errorf("invalid limit")

	// 404 Not Found
	ErrSessionNotFound     = fmt.Errorf("session not found")
	ErrProductNotInListing = fmt.Errorf("product is not in the current listing")

	// 409 Conflict
	ErrAlreadyMounted = fmt.Errorf("storefront already mounted")
	ErrSessionClosed  = fmt.Errorf("session closed")

	// 500 Internal Server Error
	ErrInternalServerError  = fmt.Errorf("internal server error")
	ErrStreamingUnsupported = fmt.Errorf("streaming unsupported")
	ErrEmbeddingMismatch    = fmt.Errorf("embedding count does not match input")

	// 503 Service Unavailable
	ErrSearchUnavailable = fmt.Errorf("semantic search is not configured")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
