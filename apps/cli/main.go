package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/schoolconnect/apps/shared"
	"github.com/trezcool/schoolconnect/core"
	logsvc "github.com/trezcool/schoolconnect/services/logger"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	logger, err := logsvc.New(conf)
	if err != nil {
		log.Fatalf("setting up logger: %v", err)
	}

	ctx := context.Background()
	deps, err := shared.NewDeps(ctx, shared.Options{Conf: conf, Logger: logger})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up dependencies: %v", err), err)
	}

	// start CLI
	cli := commandLine{deps: deps, out: os.Stdout}
	err = cli.run(ctx, os.Args)
	if err != nil && err != errHelp {
		fmt.Fprintf(os.Stderr, "\nerror: %s\n", errorMessage(err))
	}

	_ = deps.Close()
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
