package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	echoapi "github.com/trezcool/schoolconnect/apps/api/echo"
	"github.com/trezcool/schoolconnect/apps/shared"
	"github.com/trezcool/schoolconnect/core"
	logsvc "github.com/trezcool/schoolconnect/services/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	logger, err := logsvc.New(conf)
	if err != nil {
		log.Fatalf("setting up logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := shared.NewDeps(ctx, shared.Options{Conf: conf, Logger: logger})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up dependencies: %v", err), err)
	}
	defer func() {
		if err = deps.Close(); err != nil {
			logger.Error("Failed to close storage", err)
		}
	}()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	go deps.Syncer.Run(ctx, conf.Content.AutoRefresh)

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Address: conf.Server.Address,
		Deps:    deps,
		SignalShutdown: func() {
			select {
			case shutdown <- syscall.SIGTERM:
			default:
			}
		},
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Address))
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		if err != nil {
			logger.Error(fmt.Sprintf("server error: %v", err), err)
		}

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()

		if err = server.Stop(sctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}
