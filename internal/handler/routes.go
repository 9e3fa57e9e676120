package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/leadline-ai/leadline-voice-service/internal/adapters/calendar"
	"github.com/leadline-ai/leadline-voice-service/internal/adapters/notify"
	"github.com/leadline-ai/leadline-voice-service/internal/adapters/tts"
	"github.com/leadline-ai/leadline-voice-service/internal/config"
	"github.com/leadline-ai/leadline-voice-service/internal/core/engine"
	"github.com/leadline-ai/leadline-voice-service/internal/core/model"
	"github.com/leadline-ai/leadline-voice-service/internal/core/session"
	"github.com/leadline-ai/leadline-voice-service/internal/core/tool"
	"github.com/leadline-ai/leadline-voice-service/internal/repository"
	"github.com/leadline-ai/leadline-voice-service/internal/services/call"
	"github.com/leadline-ai/leadline-voice-service/pkg/gcs"
	"github.com/leadline-ai/leadline-voice-service/pkg/logger"
	"github.com/leadline-ai/leadline-voice-service/pkg/pubsub"
	"github.com/leadline-ai/leadline-voice-service/pkg/redis"
	"go.uber.org/zap"
)

// HandlerManager wires the repositories, adapters and services together and
// registers their routes.
type HandlerManager struct {
	config      *config.Config
	repoManager repository.RepositoryManager
	redisSvc    *redis.RedisService
	callService *call.Service
	publisher   *pubsub.PubSubService
}

// NewHandlerManager builds the full service graph. The database, Redis and
// the completion client are required; speech synthesis, audio storage and
// event publishing degrade to disabled when unconfigured.
func NewHandlerManager(cfg *config.Config) (*HandlerManager, error) {
	ctx := context.Background()

	repoManager, err := repository.NewRepositoryManager()
	if err != nil {
		logger.Base().Error("failed to connect to database", zap.Error(err))
		return nil, err
	}

	redisSvc, err := redis.NewRedisService(&redis.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Base().Error("failed to connect to redis", zap.Error(err))
		return nil, err
	}
	sessions := session.NewRedisStore(redisSvc)

	modelClient, err := model.NewOpenAIClient(model.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
	if err != nil {
		logger.Base().Error("failed to build completion client", zap.Error(err))
		return nil, err
	}

	cal := calendar.NewHTTPClient(calendar.Config{
		BaseURL:   cfg.CalendarBaseURL,
		JWTSecret: cfg.CalendarJWTSecret,
		JWTIssuer: cfg.CalendarJWTIssuer,
	})

	notifier := notify.NewService(notify.Config{
		SMTPHost:         cfg.SMTPHost,
		SMTPPort:         cfg.SMTPPort,
		SMTPUser:         cfg.SMTPUser,
		SMTPPassword:     cfg.SMTPPassword,
		EmailFrom:        cfg.EmailFrom,
		TwilioAccountSID: cfg.TwilioAccountSID,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		TwilioFromNumber: cfg.TwilioFromNumber,
	})

	var synth tts.Synthesizer
	if cfg.TTSBaseURL != "" {
		synth = tts.NewClient(tts.Config{
			BaseURL: cfg.TTSBaseURL,
			APIKey:  cfg.TTSAPIKey,
			VoiceID: cfg.TTSVoiceID,
		})
	}

	var audio call.AudioStore
	if cfg.AudioBucket != "" {
		gcsClient, err := gcs.NewGCSClient(ctx, cfg.AudioBucket)
		if err != nil {
			logger.Base().Warn("audio storage unavailable, replies will use gateway tts",
				zap.String("bucket", cfg.AudioBucket),
				zap.Error(err))
		} else {
			audio = gcsClient
		}
	}

	var leadPublisher pubsub.Publisher
	var pubsubSvc *pubsub.PubSubService
	if cfg.PubSubProjectID != "" {
		pubsubSvc, err = pubsub.NewPubSubService(ctx, &pubsub.PubSubConfig{
			ProjectID: cfg.PubSubProjectID,
			TopicName: cfg.PubSubTopic,
		})
		if err != nil {
			logger.Base().Warn("event publishing unavailable", zap.Error(err))
		} else {
			leadPublisher = pubsubSvc
		}
	}

	executor := tool.NewExecutor(modelClient, cal, repoManager.Appointment(), notifier, cfg.SMSAlertsEnabled)
	turns := engine.NewEngine(sessions, executor, repoManager.BusinessConfig())
	finalizer := call.NewFinalizer(sessions, modelClient, repoManager, notifier, leadPublisher, cfg.SMSAlertsEnabled)
	callService := call.NewService(turns, sessions, repoManager.BusinessConfig(), finalizer, synth, audio)

	return &HandlerManager{
		config:      cfg,
		repoManager: repoManager,
		redisSvc:    redisSvc,
		callService: callService,
		publisher:   pubsubSvc,
	}, nil
}

// SetupAllRoutes registers webhook and operational endpoints.
func (hm *HandlerManager) SetupAllRoutes(router *mux.Router) {
	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(TwilioSignatureMiddleware(hm.config.TwilioAuthToken, hm.config.PublicBaseURL, hm.config.ValidateWebhookSig))

	hm.callService.SetupRoutes(router)

	router.HandleFunc("/health", hm.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/status", hm.handleStatus).Methods(http.MethodGet)
}

// Close releases external connections during shutdown.
func (hm *HandlerManager) Close() {
	if hm.publisher != nil {
		if err := hm.publisher.Close(); err != nil {
			logger.Base().Warn("pubsub close failed", zap.Error(err))
		}
	}
	if err := hm.repoManager.Close(); err != nil {
		logger.Base().Warn("database close failed", zap.Error(err))
	}
}

func (hm *HandlerManager) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus reports dependency health. The endpoint stays 200 unless a
// hard dependency is down, so load balancers only evict on real failures.
func (hm *HandlerManager) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	report := map[string]string{
		"status":   "ok",
		"database": "ok",
		"redis":    "ok",
	}

	if err := hm.repoManager.Ping(ctx); err != nil {
		report["status"] = "degraded"
		report["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := hm.redisSvc.Ping(ctx); err != nil {
		report["status"] = "degraded"
		report["redis"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, report)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
