package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/sleepsupervisor/internal/buildinfo"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server"
	"github.com/dmitrijs2005/sleepsupervisor/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg, os.Stdout)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
