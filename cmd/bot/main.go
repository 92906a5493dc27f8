package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nurhq/nur/internal/config"
	"github.com/nurhq/nur/pkg/api"
	"github.com/nurhq/nur/pkg/assistant"
	"github.com/nurhq/nur/pkg/consumer"
	"github.com/nurhq/nur/pkg/embeddings"
	"github.com/nurhq/nur/pkg/ingest"
	"github.com/nurhq/nur/pkg/queue"
	"github.com/nurhq/nur/pkg/retrieval"
	"github.com/nurhq/nur/pkg/slack"
	"github.com/nurhq/nur/pkg/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting nur bot...")

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := store.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	embedder := embeddings.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel)
	retriever, err := retrieval.NewWeaviateRetriever(
		cfg.WeaviateScheme, cfg.WeaviateHost, cfg.WeaviateAPIKey,
		embedder, cfg.RetrievalLimit,
	)
	if err != nil {
		log.Fatalf("Failed to create retriever: %v", err)
	}

	engine := assistant.NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.AssistantID)
	slackClient := slack.NewClient(cfg.SlackBotToken, cfg.SlackAppToken)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	botUserID, err := slackClient.AuthTest(ctx)
	if err != nil {
		log.Fatalf("Failed to verify Slack credentials: %v", err)
	}
	log.Printf("Authenticated as bot user %s", botUserID)

	q := queue.NewInProcQueue(cfg.QueueSize)
	gateway := ingest.NewGateway(q, botUserID, cfg.SeenCacheLimit)

	cons := consumer.New(db, db, retriever, engine, slackClient)
	var workers sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			cons.Run(ctx, q)
		}()
	}

	if cfg.APIAddr != "" {
		apiServer := &http.Server{
			Addr:         cfg.APIAddr,
			Handler:      api.NewServer(db).Router(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			log.Printf("Inspection API listening on %s", cfg.APIAddr)
			if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Inspection API stopped: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	// Stop on signal or on transport failure; a lost Socket Mode connection
	// is fatal and restart is an operational concern.
	listener := slack.NewSocketListener(slackClient, gateway.HandleEnvelope)
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- listener.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("Received %s, shutting down...", sig)
	case err := <-listenErr:
		log.Printf("Socket listener stopped: %v", err)
	}

	cancel()
	q.Close()
	workers.Wait()
	log.Println("Bot exited")
}
