package http

import (
	_ "github.com/DRSN-tech/marketplace/docs" // Импорт сгенерированных файлов
	"github.com/DRSN-tech/marketplace/internal/delivery/v1/http/middleware"
	"github.com/DRSN-tech/marketplace/internal/usecase"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"github.com/NYTimes/gziphandler"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

// Init регистрирует маршруты. rateLimiter может быть nil.
func (r *Router) Init(catalogUC usecase.CatalogUC, sessionUC usecase.SessionUC, searchUC usecase.SearchUC, rateLimiter *middleware.RateLimiter) {
	r.router.Use(chimw.RequestID, chimw.RealIP, middleware.RequestLogger(r.logger), chimw.Recoverer)
	if rateLimiter != nil {
		r.router.Use(rateLimiter.Middleware)
	}

	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"), // ссылка на JSON
	))

	r.router.Route("/api/v1", func(v1 chi.Router) {
		prHandler := NewProductHandler(catalogUC, searchUC, r.logger)
		sessHandler := NewSessionHandler(sessionUC, r.logger)

		// SSE отдаётся без сжатия: gzip буферизует вывод
		v1.Get("/sessions/{id}/events", sessHandler.streamEvents)

		v1.Group(func(gz chi.Router) {
			gz.Use(gziphandler.GzipHandler)
			registerProductRoutes(gz, prHandler)
			registerSessionRoutes(gz, sessHandler)
		})
	})
}

func registerProductRoutes(router chi.Router, prHandler *ProductHandler) {
	router.Get("/products", prHandler.listProducts)
	router.Get("/products/search", prHandler.searchProducts)
}

func registerSessionRoutes(router chi.Router, sessHandler *SessionHandler) {
	router.Post("/sessions", sessHandler.openSession)
	router.Get("/sessions/{id}", sessHandler.getSession)
	router.Delete("/sessions/{id}", sessHandler.closeSession)
	router.Post("/sessions/{id}/filter", sessHandler.applyFilter)
	router.Post("/sessions/{id}/cart", sessHandler.addToCart)
}
