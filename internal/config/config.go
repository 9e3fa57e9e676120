package config

import (
	"os"
	"strconv"
)

// Config holds the service configuration loaded from the environment.
type Config struct {
	Port   string
	LogEnv string

	// OpenAI-compatible completion service
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Telephony gateway (Twilio)
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioFromNumber   string
	ValidateWebhookSig bool
	PublicBaseURL      string

	// Calendar service
	CalendarBaseURL   string
	CalendarJWTSecret string
	CalendarJWTIssuer string

	// Speech synthesis
	TTSBaseURL string
	TTSAPIKey  string
	TTSVoiceID string

	// Audio storage
	AudioBucket string

	// Notifications
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	EmailFrom        string
	SMSAlertsEnabled bool

	// Event publishing
	PubSubProjectID string
	PubSubTopic     string

	// Redis session store
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

// LoadFromEnv loads the configuration from environment variables. The .env
// file, if any, is loaded by main before this is called.
func LoadFromEnv() *Config {
	return &Config{
		Port:   getEnvOrDefault("PORT", "8080"),
		LogEnv: getEnvOrDefault("LOG_ENV", "development"),

		OpenAIAPIKey:  getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),

		TwilioAccountSID:   getEnvOrDefault("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getEnvOrDefault("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:   getEnvOrDefault("TWILIO_FROM_NUMBER", ""),
		ValidateWebhookSig: getEnvAsBoolOrDefault("TWILIO_VALIDATE_SIGNATURE", true),
		PublicBaseURL:      getEnvOrDefault("PUBLIC_BASE_URL", ""),

		CalendarBaseURL:   getEnvOrDefault("CALENDAR_BASE_URL", ""),
		CalendarJWTSecret: getEnvOrDefault("CALENDAR_JWT_SECRET", ""),
		CalendarJWTIssuer: getEnvOrDefault("CALENDAR_JWT_ISSUER", "leadline-voice-service"),

		TTSBaseURL: getEnvOrDefault("TTS_BASE_URL", ""),
		TTSAPIKey:  getEnvOrDefault("TTS_API_KEY", ""),
		TTSVoiceID: getEnvOrDefault("TTS_VOICE_ID", "default"),

		AudioBucket: getEnvOrDefault("AUDIO_BUCKET", ""),

		SMTPHost:         getEnvOrDefault("SMTP_HOST", ""),
		SMTPPort:         getEnvAsIntOrDefault("SMTP_PORT", 587),
		SMTPUser:         getEnvOrDefault("SMTP_USER", ""),
		SMTPPassword:     getEnvOrDefault("SMTP_PASSWORD", ""),
		EmailFrom:        getEnvOrDefault("EMAIL_FROM", "alerts@leadline.ai"),
		SMSAlertsEnabled: getEnvAsBoolOrDefault("SMS_ALERTS_ENABLED", false),

		PubSubProjectID: getEnvOrDefault("PUBSUB_PROJECT_ID", ""),
		PubSubTopic:     getEnvOrDefault("PUBSUB_TOPIC", "leadline-voice-events"),

		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsIntOrDefault("REDIS_DB", 0),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
