package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"nexus-mail/api"
	"nexus-mail/assistant"
	"nexus-mail/directory"
	"nexus-mail/internal"
	"nexus-mail/moderation"
	"nexus-mail/observability"
	"nexus-mail/repositories"
	"nexus-mail/runtime"
	"nexus-mail/runtime/workers"
	"nexus-mail/services"
	"nexus-mail/storage"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and owns their lifecycle, so that deferred
// cleanups run before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	config, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB), in memory unless a path is configured
	db, err := storage.Open(config.BadgerFilepath, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Directory & moderation
	dir := directory.Default()
	if config.DirectoryFilepath != "" {
		if dir, err = directory.Load(config.DirectoryFilepath); err != nil {
			return err
		}
	}
	censoredChar, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}
	moderator, err := moderation.NewModerator(moderation.ParseWords(config.CensoredWords), censoredChar, log)
	if err != nil {
		return fmt.Errorf("moderator failed: %w", err)
	}

	// 4. Event fan-out under supervision
	registry := runtime.NewRegistry()
	fanout := workers.NewEventFanout(log, registry, config.BufferSize, config.SinkTimeout)
	monitor := observability.NewMonitoringManager(log)
	capacity := workers.NewChannelCapacityWorker(log, []workers.NamedChannel{fanout.Buffer()},
		monitor, config.MetricInterval, config.LowCapacityThreshold)
	supervisor := workers.NewSupervisor(log, config.RestartInterval).Add(fanout, capacity)

	// 5. Services
	mailbox := services.NewMailboxService(log, db, dir, repositories.NewMessageRepository(log), fanout)
	templates := services.NewTemplateService(log, db, repositories.NewTemplateRepository())
	chat := services.NewChatService(log, db, dir,
		repositories.NewSessionRepository(), repositories.NewChatMessageRepository(),
		moderator, fanout, config.MaxAttachmentSize)

	var completer assistant.Completer
	if config.OpenAIAPIKey != "" {
		completer = assistant.NewOpenAICompleter(config.OpenAIAPIKey, config.OpenAIBaseURL, config.OpenAIModel)
	} else {
		log.Warn("OPENAI_API_KEY not set, the assistant will only return fallbacks")
	}
	gateway := assistant.NewGateway(log, completer, config.AssistantTimeout)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisorDone := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(supervisorDone)
	}()

	// 7. HTTP Server Setup
	server := api.NewServer(log, dir, mailbox, templates, chat, gateway, registry,
		config.ConnectionBufferSize, int64(config.MaxAttachmentSize)).WithMonitor(monitor)
	httpServer := &http.Server{
		Addr:              config.Address(),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// event streams end with the signal context instead of holding Shutdown
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", config.Address(), "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err = <-errChan:
		supervisor.Stop()
		<-supervisorDone
		return err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err = httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown incomplete", "error", err)
	}
	supervisor.Stop()
	<-supervisorDone
	log.Info("Program stopped cleanly")
	return nil
}
