package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"careerhub/internal/bootstrap"
	httptransport "careerhub/internal/transport/http"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	ctx := context.Background()

	app, err := bootstrap.New(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("bootstrap failed")
	}
	logger := app.Logger
	defer func() {
		if err := app.Close(); err != nil {
			logger.WithError(err).Error("close resources failed")
		}
	}()

	router := httptransport.NewRouter(app)
	server := &http.Server{
		Addr:              app.Config.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: app.Config.ReadHeaderTimeout(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	waitForShutdown(server, app, serveErr)
}

func waitForShutdown(server *http.Server, app *bootstrap.App, serveErr <-chan error) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		app.Logger.WithField("signal", sig.String()).Info("shutting down")
	case err, ok := <-serveErr:
		if ok {
			app.Logger.WithError(err).Error("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.ShutdownTimeout())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.WithError(err).Error("server shutdown failed")
	}
}
