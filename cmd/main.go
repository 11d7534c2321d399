package main

import (
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/websocket"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/storage"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, blocks until a signal arrives and returns the first setup error.
// Deferred cleanups run before main exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	config, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Message store (in-memory badger)
	db, err := storage.OpenInMemory()
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Core state
	presence := runtime.NewPresence(log, config.EnforceOneSessionPerAddress)
	registry := runtime.NewRegistry()
	messageRepository := repositories.NewMessageRepository(db, log)
	statsService := services.NewStatsService(presence, registry, messageRepository)

	opts := []runtime.Option{runtime.WithMaxPayloadBytes(config.MaxPayloadBytes)}
	moderator, err := newModerator(log, config)
	if err != nil {
		return err
	}
	if moderator != nil {
		opts = append(opts, runtime.WithModerator(moderator))
	}
	orchestrator := runtime.NewOrchestrator(log, presence, registry, messageRepository, statsService, nil, opts...)

	// 4. Transport
	hub := websocket.NewHub(log, orchestrator, websocket.Options{
		BufferSize:      config.ConnectionBufferSize,
		MaxPayloadBytes: config.MaxPayloadBytes,
		WriteTimeout:    config.WriteTimeout,
		PongTimeout:     config.PongTimeout,
	})
	orchestrator.SetBroadcaster(hub)

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	debug := internal.NewDebugServer(log, db, statsService, hub.Len)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Supervised servers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewHTTPServerWorker(log, "relay", config.Address(), mux),
		workers.NewHTTPServerWorker(log, "debug", config.DebugAddress(), debug.Handler()),
		workers.NewGrpcServerWorker(log, config.GrpcAddress(), server.NewHealthServer(log)),
		workers.NewStatsReporterWorker(log, statsService, config.MetricInterval),
	)

	log.Info("Chat relay starting",
		"address", config.Address(),
		"grpc", config.GrpcAddress(),
		"debug", config.DebugAddress(),
		"one_session_per_address", config.EnforceOneSessionPerAddress,
	)
	sup.Run(ctx)

	log.Info("Program stopped cleanly")
	return nil
}

// newModerator loads the censored word lists when a directory is configured, nil otherwise.
func newModerator(log *slog.Logger, config internal.Config) (*moderation.Moderator, error) {
	if config.CensoredDir == "" {
		return nil, nil
	}
	char, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}
	data, err := runtime.NewCensoredLoader(os.DirFS(config.CensoredDir)).LoadAll(".")
	if err != nil {
		return nil, fmt.Errorf("censored words: %w", err)
	}
	log.Info("Censored words loaded", "words", len(data.Words), "languages", data.Languages)
	return moderation.NewModerator(data.Words, char, log)
}
