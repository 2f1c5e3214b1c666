package main

import (
	"flag"
	"log"
	"os"

	"github.com/webforum-dev/webforum/internal/client"
	"github.com/webforum-dev/webforum/shared/config"
	"github.com/webforum-dev/webforum/shared/logger"
)

func main() {
	var configFolder string
	flag.StringVar(&configFolder, "config_folder", "config", "path to folder with configs")
	flag.Parse()

	cfg := config.MustLoad(configFolder)
	logger.Initialize(cfg.Logging.Level, cfg.Logging.JSON)

	requester, err := client.NewRequester(cfg.Client.ServerAddr, cfg.Client.ReplyTimeout(), cfg.Client.MaxRetries)
	if err != nil {
		log.Fatal(err)
	}
	defer requester.Close()

	transfer := client.NewTransfer(cfg.Client.ServerAddr, cfg.Transfer.BufferSize)

	cli := client.NewCLI(cfg, requester, transfer, os.Stdin, os.Stdout)
	if err := cli.Run(); err != nil {
		log.Fatal(err)
	}
}
