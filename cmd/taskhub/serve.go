package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	server "taskhub"
	"taskhub/internal/events"
	"taskhub/internal/logger"
	"taskhub/internal/manager"
)

var reconcileOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		bus := events.NewBus()
		defer bus.Close()

		if reconcileOnStart {
			report, err := manager.NewReconciler(store, bus).Reconcile(ctx)
			if err != nil {
				return err
			}
			logger.Info(ctx, "Сверка при запуске завершена", "repairs", report.Total())
		}

		router := server.NewRouter(manager.NewTaskManager(store, bus), manager.NewUserManager(store, bus), bus)
		srv := &http.Server{
			Addr:              cfg.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info(ctx, "Сервер запущен", "addr", srv.Addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info(context.Background(), "Остановка сервера...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&reconcileOnStart, "reconcile", false, "repair assignment links before serving")
}
