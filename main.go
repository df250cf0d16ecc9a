package main

import (
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/HugoGarcez/agentpromp-sub000/config"
	"github.com/HugoGarcez/agentpromp-sub000/internal/adapters/calendar"
	"github.com/HugoGarcez/agentpromp-sub000/internal/adapters/channel"
	"github.com/HugoGarcez/agentpromp-sub000/internal/adapters/dispatch"
	openaiadapter "github.com/HugoGarcez/agentpromp-sub000/internal/adapters/openai"
	"github.com/HugoGarcez/agentpromp-sub000/internal/adapters/rabbitmq"
	"github.com/HugoGarcez/agentpromp-sub000/internal/adapters/tts"
	"github.com/HugoGarcez/agentpromp-sub000/internal/audio"
	"github.com/HugoGarcez/agentpromp-sub000/internal/db"
	"github.com/HugoGarcez/agentpromp-sub000/internal/dedup"
	"github.com/HugoGarcez/agentpromp-sub000/internal/followup"
	"github.com/HugoGarcez/agentpromp-sub000/internal/handlers"
	"github.com/HugoGarcez/agentpromp-sub000/internal/isolation"
	"github.com/HugoGarcez/agentpromp-sub000/internal/orchestrator"
	"github.com/HugoGarcez/agentpromp-sub000/internal/repository"
	"github.com/HugoGarcez/agentpromp-sub000/internal/services"
	"github.com/HugoGarcez/agentpromp-sub000/internal/storage"
	"github.com/HugoGarcez/agentpromp-sub000/pkg/logger"
)

func main() {
	logger.InitLogger()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	conn, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	if err := db.Migrate(conn); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	tenantCache := gocache.New(5*time.Minute, 10*time.Minute)
	tenants := repository.NewTenantRepo(conn, tenantCache)
	history := repository.NewHistoryRepo(conn)
	contacts := repository.NewContactRepo(conn)
	appointments := repository.NewAppointmentRepo(conn)

	channelClient := channel.NewClient(cfg.ChannelAPIBaseURL, cfg.ChannelAPIKey)
	calendarClient := calendar.NewClient(cfg.CalendarBaseURL, cfg.CalendarAPIKey)
	dispatcher := dispatch.NewClient(cfg.ChannelAPIBaseURL, cfg.ChunkDelay)
	ttsClient := tts.NewClient(cfg.TTSBaseURL)
	clients := openaiadapter.NewClientManager(cfg.OpenAIAPIKey)
	events := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue)
	defer events.Close()

	guard := dedup.NewGuard(cfg.DedupWindow)
	isolator := isolation.NewIsolator(channelClient)
	tracker := followup.NewTracker(contacts)
	tools := orchestrator.NewToolRunner(calendarClient, appointments)
	replier := orchestrator.New(clients, tools, cfg.OpenAIModel)
	audioEngine := audio.NewEngine(ttsClient, cfg.TTSDefaultVoiceID, nil)
	uploader := storage.NewManager()

	processor := services.NewProcessor(
		tenants, guard, isolator, tracker, history, replier,
		audioEngine, uploader, dispatcher, events, cfg.HistoryLimit,
	)

	server := handlers.NewServer(processor, tenants, contacts)

	log.Info().Str("port", cfg.Port).Msg("Server starting")
	if err := http.ListenAndServe(":"+cfg.Port, server.Handler()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
