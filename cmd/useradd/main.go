package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/sleepsupervisor/internal/logging"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/config"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/services"
	"github.com/dmitrijs2005/sleepsupervisor/internal/useradd"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	rm, err := repomanager.Open(ctx, cfg.StorageDriver, cfg.DatabaseDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open storage: %v\n", err)
		os.Exit(1)
	}
	defer rm.Close()

	svc := services.NewAuthService(rm, cfg, logger)

	u, err := useradd.Run(ctx, svc, bufio.NewReader(os.Stdin), os.Stdout, useradd.UsernameFlag(os.Args[1:]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "create user: %v\n", err)
		rm.Close()
		os.Exit(1)
	}

	fmt.Printf("User %q created\n", u.Username)
}
