// Command mockapi runs a mock Smart Risk backend for local development:
// the auth endpoints the session core depends on plus representative
// resource collections and a seeded satisfaction survey.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"smartrisk/internal/platform/server"
	"smartrisk/internal/testutil"
)

func main() {
	addr := os.Getenv("MOCKAPI_ADDR")
	if addr == "" {
		addr = ":8000"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	inactive := testutil.BackendUser{
		ID:       2,
		Name:     "Ivy Inactive",
		Email:    "inactive@smartrisk.test",
		Password: "secret123",
		Inactive: true,
	}
	backend := testutil.NewBackend(testutil.AdminUser(), inactive)

	surveyToken := testutil.RandomToken()
	backend.AddSurvey(surveyToken, testutil.Survey{
		Establishment: "Harbor Mill",
		Questions: []string{
			"How satisfied are you with the inspection process?",
			"Was the risk classification explained clearly?",
		},
	})

	logger.Info("mock Smart Risk backend starting",
		"addr", addr,
		"admin", "admin@smartrisk.test:secret123",
		"inactive", "inactive@smartrisk.test:secret123",
		"survey_token", surveyToken,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.New(addr, backend, logger).Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
