package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fableweaver/server/internal/config"
	"fableweaver/server/internal/engine"
	"fableweaver/server/internal/generators"
	"fableweaver/server/internal/prompts"
	"fableweaver/server/internal/rag"
	"fableweaver/server/internal/session"
	"fableweaver/server/internal/storage"
	"fableweaver/server/internal/web"
)

func main() {
	cfgPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.AI.OpenAI.APIKey == "" {
		log.Println("Warning: no OpenAI API key configured; story generation will fail")
	}

	// Storage connections are optional; the game runs without them.
	deps := session.Deps{}

	mysqlStore, err := storage.NewMySQLStore(cfg.Database.MySQL)
	if err != nil {
		log.Printf("Warning: failed to connect to MySQL, turn archive disabled: %v", err)
	} else {
		defer mysqlStore.Close()
		deps.Archive = mysqlStore
		log.Println("MySQL connected successfully")
	}

	redisStore, err := storage.NewRedisStore(cfg.Database.Redis)
	if err != nil {
		log.Printf("Warning: failed to connect to Redis, scene cache disabled: %v", err)
	} else {
		defer redisStore.Close()
		deps.Scenes = redisStore
		log.Println("Redis connected successfully")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	vectorStore, err := rag.NewVectorStore(ctx, cfg.Database.Qdrant)
	cancel()
	if err != nil {
		log.Printf("Warning: failed to connect to Qdrant, beat memory disabled: %v", err)
	} else {
		defer vectorStore.Close()
		embedding := rag.NewEmbeddingService(cfg.AI.OpenAI)
		deps.Beats = rag.NewBeatStore(vectorStore, embedding)
		log.Println("Qdrant connected successfully")
	}

	// Narrative and image stacks.
	templates := prompts.NewTemplateEngine()
	builder := prompts.NewBuilder(templates, cfg.Game.Hero)
	deps.Prompts = builder

	portraits := generators.LoadPortraits(cfg.Game.Portraits)
	characterNotes := make(map[string]string)
	for _, name := range portraits.Names() {
		if desc, ok := portraits.Description(name); ok && desc != "" {
			characterNotes[name] = desc
		}
	}
	deps.Engine = engine.NewClient(cfg.AI.OpenAI, builder.SystemPrompt(characterNotes))

	imageClient := generators.NewImageClient(cfg.AI.OpenAI)
	deps.Images = generators.NewPipeline(
		imageClient,
		portraits,
		builder.StyleGuide(),
		cfg.Game.ImageMaxAttempts,
		cfg.Game.ImageRetryDelay,
	)

	registry := session.NewRegistry(cfg.Game, deps)
	r := web.NewRouter(cfg, registry)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	registry.Shutdown()

	log.Println("Server stopped")
}
