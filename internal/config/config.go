package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the API server configuration.
type Config struct {
	Addr           string
	DatabaseURL    string
	CORSOrigin     string
	MeiliURL       string
	MeiliMasterKey string
	MaxUploadBytes int64
	// Extraction (OpenAI-compatible, Groq by default)
	GroqAPIKey         string
	GroqBaseURL        string
	TranscriptionModel string
	ExtractionModel    string
	TranscriptLanguage string
	// Audio archive
	ArchiveDriver    string
	ArchiveRoot      string
	MinIOEndpoint    string
	MinIOAccessKey   string
	MinIOSecretKey   string
	MinIOBucket      string
	MinIOUseSSL      bool
	ReindexOnStartup bool
}

func Load() Config {
	return Config{
		Addr:               getenv("API_ADDR", ":8000"),
		DatabaseURL:        getenv("DATABASE_URL", "sqlite://./data/voice_crm.db"),
		CORSOrigin:         getenv("VOICECRM_CORS_ORIGIN", "*"),
		MeiliURL:           getenv("MEILI_URL", ""),
		MeiliMasterKey:     getenv("MEILI_MASTER_KEY", ""),
		MaxUploadBytes:     int64(getenvInt("VOICECRM_MAX_UPLOAD_MB", 25)) << 20,
		GroqAPIKey:         getenv("GROQ_API_KEY", ""),
		GroqBaseURL:        getenv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		TranscriptionModel: getenv("VOICECRM_TRANSCRIPTION_MODEL", "whisper-large-v3"),
		ExtractionModel:    getenv("VOICECRM_EXTRACTION_MODEL", "llama-3.3-70b-versatile"),
		TranscriptLanguage: getenv("VOICECRM_TRANSCRIPT_LANGUAGE", "en"),
		// archive is off unless a driver is chosen
		ArchiveDriver:    getenv("VOICECRM_ARCHIVE_DRIVER", "none"),
		ArchiveRoot:      getenv("VOICECRM_ARCHIVE_ROOT", "./data/audio"),
		MinIOEndpoint:    getenv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey:   getenv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:   getenv("MINIO_SECRET_KEY", ""),
		MinIOBucket:      getenv("MINIO_BUCKET", "voicecrm-audio"),
		MinIOUseSSL:      getenvBool("MINIO_USE_SSL", false),
		ReindexOnStartup: getenvBool("VOICECRM_REINDEX_ON_STARTUP", true),
	}
}

// Console is the terminal client configuration. Flags override these values.
type Console struct {
	APIURL        string
	ReferencePath string
	RedisURL      string
	LockTTL       time.Duration
	LogFile       string
}

func LoadConsole() Console {
	return Console{
		APIURL:        getenv("VOICECRM_API_URL", "http://localhost:8000"),
		ReferencePath: getenv("VOICECRM_REFERENCE_PATH", "./eval_results.json"),
		RedisURL:      getenv("REDIS_URL", ""),
		LockTTL:       time.Duration(getenvInt("VOICECRM_LOCK_TTL_SECONDS", 120)) * time.Second,
		LogFile:       getenv("VOICECRM_LOG_FILE", "voicecrm-console.log"),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
