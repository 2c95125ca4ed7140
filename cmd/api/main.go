package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/agentdesk/banking-copilot/internal/adapters/http"
	"github.com/agentdesk/banking-copilot/internal/bootstrap"
	"github.com/agentdesk/banking-copilot/internal/config"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	router := httpadapter.NewRouter(httpadapter.RouterOptions{
		Answerer:      app.Answerer,
		Conversations: app.Conversations,
		Corpus:        app.Corpus,
		Bus:           app.Bus,
		Metrics:       app.Metrics,
		RerankName:    app.RerankName,
		TailMessages:  cfg.ConversationTailMessages,
		RateLimitRPS:  cfg.RateLimitRPS,
		RateBurst:     cfg.RateLimitBurst,
		MaxInFlight:   cfg.MaxConnections,
		Logger:        app.Logger,
	}).Handler()

	server := &http.Server{
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		log.Fatalf("listen error: %v", err)
	}
	listener = netutil.LimitListener(listener, cfg.MaxConnections)

	// Refresh signals from other instances drop the cached corpus; the next
	// turn rebuilds it lazily.
	go func() {
		err := app.Bus.SubscribeCorpusRefresh(ctx, func(_ context.Context, reason string) error {
			app.Logger.Info("corpus refresh received", "reason", reason)
			app.Corpus.Invalidate()
			return nil
		})
		if err != nil && ctx.Err() == nil {
			app.Logger.Error("corpus refresh subscription failed", "error", err)
		}
	}()

	go func() {
		app.Logger.Info("api listening", "port", cfg.APIPort)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("api shutdown error", "error", err)
	}
}
