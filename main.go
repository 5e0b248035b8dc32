package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	clientDir := flag.String("client", "", "Path to client directory (overrides config)")
	dsn := flag.String("db", "", "SQLite DSN for the results journal (overrides config)")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *clientDir != "" {
		cfg.ClientDir = *clientDir
	}
	if *dsn != "" {
		cfg.DatabaseDSN = *dsn
	}
	if cfg.ClientDir != "" {
		if _, err := os.Stat(cfg.ClientDir); os.IsNotExist(err) {
			log.Printf("client directory %s not found, static files disabled", cfg.ClientDir)
			cfg.ClientDir = ""
		}
	}

	db, err := OpenDB(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	journal := NewJournal(db)

	hub := NewHub(cfg, journal)
	go hub.Run()

	mux := SetupRoutes(hub, cfg.ClientDir)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		log.Printf("Server starting on %s (%d Hz, %dx%d arena)", cfg.Addr, cfg.Arena.TickRate, cfg.Arena.Width, cfg.Arena.Height)
		if cfg.ClientDir != "" {
			log.Printf("Serving client files from %s", cfg.ClientDir)
		}
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	hub.rooms.Close()
	journal.Stop()
	if err := db.Close(); err != nil {
		log.Printf("close db: %v", err)
	}
}
