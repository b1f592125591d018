package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	api "github.com/parakh/adaptive-exam/internal/api/http"
	auth "github.com/parakh/adaptive-exam/internal/auth/middleware"
	"github.com/parakh/adaptive-exam/internal/exam"
	"github.com/parakh/adaptive-exam/internal/users"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, dbh, err := setup(cmd)
		if err != nil {
			return err
		}
		defer dbh.Close()

		store := exam.NewSQLStore(dbh)
		userStore := users.NewSQLStore(dbh)
		svc := exam.NewService(store, userStore, store,
			exam.WithLogger(log.With("component", "exam")),
			exam.WithMaxQuestions(cfg.MaxQuestions),
		)

		deps := api.Deps{
			Exams:       svc,
			Questions:   store,
			Auth:        auth.NewAuthService(cfg.AuthSecret, cfg.TokenTTL),
			Users:       userStore,
			Accounts:    userStore,
			CORSOrigins: cfg.CORSOrigins,
			AccessLog:   true,
			Log:         log.With("component", "http"),
		}
		if cfg.RoleFromDB {
			deps.RoleDB = dbh
		}

		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           api.NewRouter(deps),
			ReadHeaderTimeout: 5 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() {
			log.Info("listening", "addr", cfg.HTTPAddr, "db", cfg.DBDriver)
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
