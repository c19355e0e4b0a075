package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/orzchat/orzchat/pkg/database"
	"github.com/orzchat/orzchat/pkg/server"
)

func main() {
	configPath := flag.String("config", "~/.orzchat/config.toml", "path to config file")
	port := flag.Int("port", 0, "TCP port (overrides config)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		server.EnableDebugLogging()
	}

	tomlConfig, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg := tomlConfig.ToServerConfig()
	if *port != 0 {
		cfg.TCPPort = *port
	}

	dbPath, err := tomlConfig.GetDatabasePath()
	if err != nil {
		log.Fatalf("Failed to resolve database path: %v", err)
	}
	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.SeedChannels(cfg.SeedChannels); err != nil {
		log.Fatalf("Failed to seed channels: %v", err)
	}

	srv, err := server.NewServer(cfg, db)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received %v, shutting down", sig)

	if err := srv.Stop(); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}
