package main

import (
	"flag"
	"log"

	"github.com/webforum-dev/webforum/internal/server"
	"github.com/webforum-dev/webforum/internal/setup"
	"github.com/webforum-dev/webforum/shared/config"
	"github.com/webforum-dev/webforum/shared/logger"
)

func main() {
	var configFolder string
	flag.StringVar(&configFolder, "config_folder", "config", "path to folder with configs")
	flag.Parse()

	cfg := config.MustLoad(configFolder)
	logger.Initialize(cfg.Logging.Level, cfg.Logging.JSON)

	deps, err := setup.SetupServer(cfg)
	if err != nil {
		log.Fatal(err)
	}

	server.ServeMetrics(cfg.Server.MetricsAddr)
	go deps.Acceptor.Run()

	logger.Log.Info("Waiting for clients", "udp", cfg.Server.UDPAddr, "tcp", cfg.Server.TCPAddr)
	deps.Dispatcher.Run()
}
