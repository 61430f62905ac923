package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/stocklens/stocklens/internal/agent"
	"github.com/stocklens/stocklens/internal/api"
	"github.com/stocklens/stocklens/internal/cache"
	"github.com/stocklens/stocklens/internal/config"
	"github.com/stocklens/stocklens/internal/events"
	"github.com/stocklens/stocklens/internal/llm"
	"github.com/stocklens/stocklens/internal/orchestrator"
	"github.com/stocklens/stocklens/internal/pillars"
	"github.com/stocklens/stocklens/internal/providers"
	"github.com/stocklens/stocklens/internal/rag"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	log.Info().Str("environment", cfg.App.Environment).Msg("Starting StockLens")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Analysis cache.
	var store cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		store = cache.NewRedisStore(client)
		defer client.Close()
	default:
		store = cache.NewMemoryStore(cache.WithMaxEntries(cfg.Cache.MaxEntries))
	}

	// Model gateway.
	completer := llm.NewClient(llm.ClientConfig{
		Endpoint:    cfg.LLM.Endpoint,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.GetTimeout(),
		MaxRetries:  cfg.LLM.MaxRetries,
	})

	// Market data and news.
	yahoo := providers.NewYahooClient()
	news := pillars.NewNewsScraper()

	// Knowledge base, optional.
	var retriever agent.ContextRetriever = rag.Disabled{}
	if cfg.Database.Enabled {
		pool, err := pgxpool.New(ctx, cfg.Database.GetDSN())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		embedder := llm.NewEmbeddingClient(llm.EmbeddingConfig{
			Endpoint: cfg.LLM.EmbeddingEndpoint,
			APIKey:   cfg.LLM.APIKey,
			Model:    cfg.LLM.EmbeddingModel,
		})
		retriever = rag.NewRetriever(pool, embedder)
	}

	// Event publishing, optional.
	var publisher *events.Publisher
	if cfg.NATS.Enabled {
		publisher, err = events.Connect(cfg.NATS.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer publisher.Close()
	}

	// Pillar scorers.
	technical := pillars.NewTechnicalScorer(yahoo)
	fundamental := pillars.NewFundamentalScorer(yahoo)
	sentiment := pillars.NewSentimentScorer(completer, news, cfg.Pillars.HeadlineLimit)

	// Agent tooling.
	registry := agent.NewRegistry()
	err = agent.RegisterStandardTools(registry, agent.ToolsConfig{
		Prices:        yahoo,
		Technical:     technical.Score,
		Fundamental:   fundamental.Score,
		Sentiment:     sentiment.Score,
		Headlines:     news,
		Retriever:     retriever,
		HeadlineLimit: cfg.Pillars.HeadlineLimit,
		TopK:          cfg.Agent.TopK,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register agent tools")
	}
	loop := agent.NewLoop(completer, registry, cfg.Agent.MaxTurns)

	engine := orchestrator.New(orchestrator.Config{
		Cache:         store,
		TTL:           cfg.Cache.TTL(),
		PillarTimeout: cfg.Pillars.Timeout(),
		Prices:        yahoo,
		Technical:     technical,
		Fundamental:   fundamental,
		Sentiment:     sentiment,
		Agent:         loop,
		Events:        publisher,
	})

	server := api.NewServer(api.Config{
		Host:              cfg.API.Host,
		Port:              cfg.API.Port,
		Analyzer:          engine,
		UncachedPerMinute: cfg.API.UncachedPerMinute,
		RequestTimeout:    cfg.API.RequestTimeout(),
		EnableMetrics:     cfg.API.EnableMetrics,
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error().Err(err).Msg("Server error")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop server gracefully")
		os.Exit(1)
	}
	log.Info().Msg("Server stopped")
}
