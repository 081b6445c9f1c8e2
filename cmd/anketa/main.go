// anketa-server runs the voice-consultation orchestrator: the HTTP
// surface (L8), the session store (L1), the runtime status cache (L3),
// and every collaborator the orchestrator (L6) depends on.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/anketa/pkg/api"
	"github.com/codeready-toolchain/anketa/pkg/cleanup"
	"github.com/codeready-toolchain/anketa/pkg/documents"
	"github.com/codeready-toolchain/anketa/pkg/export"
	"github.com/codeready-toolchain/anketa/pkg/extraction"
	"github.com/codeready-toolchain/anketa/pkg/kb"
	"github.com/codeready-toolchain/anketa/pkg/llm"
	"github.com/codeready-toolchain/anketa/pkg/metrics"
	"github.com/codeready-toolchain/anketa/pkg/notify"
	"github.com/codeready-toolchain/anketa/pkg/orchestrator"
	"github.com/codeready-toolchain/anketa/pkg/room"
	"github.com/codeready-toolchain/anketa/pkg/runtimestatus"
	"github.com/codeready-toolchain/anketa/pkg/store"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "release"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	dbCfg, err := store.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load session store config: %v", err)
	}
	dbClient, err := store.NewClient(ctx, dbCfg)
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("Error closing session store: %v", err)
		}
	}()
	st := store.New(dbClient)
	log.Println("session store ready at", dbCfg.Path)

	runtime := runtimestatus.New(runtimestatus.DefaultCapacity, runtimestatus.DefaultTTL)
	runtime.StartSweeper(runtimestatus.DefaultSweepInterval)

	var roomMgr *room.Manager
	if host := os.Getenv("LIVEKIT_HOST"); host != "" {
		roomMgr = room.NewManager(room.Config{
			Host:      host,
			APIKey:    os.Getenv("LIVEKIT_API_KEY"),
			APISecret: os.Getenv("LIVEKIT_API_SECRET"),
			AgentName: getEnv("LIVEKIT_AGENT_NAME", "anketa-voice-agent"),
		})
		log.Println("room service ready at", host)
	} else {
		log.Println("LIVEKIT_HOST not set: room service disabled, sessions start without WebRTC access")
	}

	docsBaseDir := getEnv("DOCUMENTS_DIR", "data/uploads")
	docPipeline := documents.New(docsBaseDir, st, roomMgr)

	recorder := metrics.New()
	renderer := export.NewRenderer()
	knowledgeBase := kb.NewKnowledgeBase()
	researchEngine := kb.NewResearchEngine()
	notifier := notify.New(os.Getenv("SLACK_BOT_TOKEN"), os.Getenv("SLACK_NOTIFY_CHANNEL"), st)
	if notifier == nil {
		log.Println("SLACK_BOT_TOKEN/SLACK_NOTIFY_CHANNEL not set: session-confirmed notifications disabled")
	}

	var chatLLM llm.ChatLLM
	if anthropicLLM, err := llm.AnthropicChatLLMFromEnv(); err != nil {
		log.Printf("Warning: anketa extraction LLM unavailable, extraction will use its text-pattern fallback: %v", err)
	} else {
		chatLLM = anthropicLLM
	}
	extractor := extraction.New(chatLLM)

	const defaultBasePrompt = "You are a friendly voice agent conducting a business consultation. " +
		"Ask one question at a time and keep responses brief."
	basePrompt := getEnv("ANKETA_BASE_PROMPT", defaultBasePrompt)

	// Instructs is left nil at this scope: InstructionSink is bound to a
	// single live realtime session (voicebridge.RealtimeSession), not a
	// process-wide singleton, so it is supplied per-session by the
	// voice-agent bridge rather than here.
	orchDeps := orchestrator.Dependencies{
		Store:      st,
		Extractor:  extractor,
		KB:         knowledgeBase,
		Research:   researchEngine,
		Notify:     notifier,
		Render:     renderer,
		Metrics:    recorder,
		BasePrompt: basePrompt,
	}

	srv := api.NewServer(api.Deps{
		Store:     st,
		Runtime:   runtime,
		Rooms:     roomMgr,
		Documents: docPipeline,
		Render:    renderer,
		Metrics:   recorder,
		OrchDeps:  orchDeps,
	})

	httpServer := &http.Server{
		Addr:              ":" + httpPort,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on :%s", httpPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	retention := cleanup.NewService(st, roomMgr, cleanup.DefaultRetention, cleanup.DefaultInterval)
	retention.Start(ctx)

	<-ctx.Done()
	log.Println("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// The retention service must stop before the deferred store close
	// runs, since a retention pass may still be mid-flight against the
	// store (§9 "shutdown awaits its completion before closing the
	// store"). The runtime cache's sweeper is stopped here too; it only
	// touches in-memory state.
	retention.Stop()
	runtime.Stop()
	log.Println("shutdown complete")
}
