package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/usaspending/data-broker/internal/app"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/platform/envutil"
	"github.com/usaspending/data-broker/internal/validation"
)

func main() {
	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Refresh the rule catalog before taking work so a deploy with new
	// rule texts validates with them immediately.
	rulesPath := envutil.Str("RULES_PATH", "rules.yaml")
	if _, err := os.Stat(rulesPath); err == nil {
		n, err := validation.LoadCatalog(dbctx.Context{Ctx: ctx}, rulesPath, application.Repos.Rules)
		if err != nil {
			application.Log.Fatal("could not load rule catalog", "path", rulesPath, "error", err)
		}
		application.Log.Info("rule catalog loaded", "path", rulesPath, "rules", n)
	} else {
		application.Log.Warn("rule catalog file not found, keeping stored catalog", "path", rulesPath)
	}

	if err := application.Scheduler.Start(ctx); err != nil {
		application.Log.Fatal("could not start scheduler", "error", err)
	}
	defer application.Scheduler.Stop()

	if err := application.Pool.Run(ctx); err != nil {
		application.Log.Error("worker pool stopped", "error", err)
		os.Exit(1)
	}
}
