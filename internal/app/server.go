package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
)

// Serve corre el servidor HTTP y el janitor de OTPs hasta que ctx se cancela.
// En shutdown deja de aceptar conexiones, espera los requests en vuelo y
// drena las notificaciones pendientes.
func (a *App) Serve(ctx context.Context) error {
	log := logger.L().With(logger.Component("server"))

	srv := &http.Server{
		Addr:              a.Config.Server.Addr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		a.Services.Maintenance.RunJanitor(logger.ToContext(gctx, log), a.Config.OTP.JanitorInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		timeout := a.Config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		log.Info("shutting down", logger.DurationMs(timeout))
		err := srv.Shutdown(sctx)
		if derr := a.Services.Maintenance.Drain(sctx); derr != nil {
			log.Warn("notification drain incomplete", logger.Err(derr))
		}
		return err
	})

	return g.Wait()
}
