// internal/wire/wire.go
package wire

import (
	"net/http"

	"telegram-auth/internal/adaptor"
	"telegram-auth/internal/data/repository"
	"telegram-auth/internal/notifier"
	"telegram-auth/internal/usecase"
	"telegram-auth/pkg/middleware"
	"telegram-auth/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App holds the wired router and the services behind it.
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring builds services, handlers and routes on top of repo.
func Wiring(
	repo *repository.Repository,
	config *utils.Config,
	notify notifier.Notifier,
	fallback notifier.FallbackSender,
	logger *zap.Logger,
) *App {
	service := usecase.NewService(repo, config, notify, fallback, logger)
	handler := adaptor.NewHandler(service, config.Telegram.WebhookSecret, logger)

	router := setupRouter(handler, service, logger)

	return &App{
		Router:  router,
		Service: service,
	}
}

func setupRouter(handler *adaptor.Handler, service *usecase.Service, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))

	wireAuth(r, handler, service, logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
