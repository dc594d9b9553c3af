// internal/api/server.go standalone HTTP server hosting the API.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hush-home/hushd/internal/conf"
	"github.com/hush-home/hushd/internal/datastore"
	"github.com/hush-home/hushd/internal/errors"
	"github.com/hush-home/hushd/internal/logging"
	"github.com/hush-home/hushd/internal/observability"
)

const shutdownTimeout = 5 * time.Second

// Server hosts the API controller on its own listener.
type Server struct {
	echo       *echo.Echo
	controller *Controller
	settings   *conf.Settings
	log        *slog.Logger
}

// NewServer builds an Echo instance, mounts the API controller on it and
// returns the server ready to start.
func NewServer(settings *conf.Settings, ds datastore.Interface, m *observability.Metrics) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	controller, err := New(e, ds, settings, m, nil)
	if err != nil {
		return nil, err
	}

	log := logging.ForService("api")
	if log == nil {
		log = slog.Default().With("service", "api")
	}

	return &Server{
		echo:       e,
		controller: controller,
		settings:   settings,
		log:        log,
	}, nil
}

// Controller returns the API controller mounted on this server.
func (s *Server) Controller() *Controller {
	return s.controller
}

// Start runs the HTTP server in a separate goroutine and listens for the
// quit signal to shut down gracefully.
func (s *Server) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) {
	address := ":" + s.settings.WebServer.Port

	wg.Go(func() {
		s.log.Info("API server starting", "address", address)
		if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("API server error", "error", err)
		}
	})

	go s.gracefulShutdown(quitChan)
}

// gracefulShutdown waits for the quit signal, drains in-flight requests and
// releases the controller's resources.
func (s *Server) gracefulShutdown(quitChan <-chan struct{}) {
	<-quitChan
	s.log.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("API server shutdown error", "error", err)
	}

	s.controller.Shutdown()
}
