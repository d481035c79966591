// Package config loads service configuration from the environment, Cloud Run
// style: every knob is an environment variable with a workable default.
package config

import (
	"os"
	"strconv"
)

// Config is the process-wide configuration assembled at startup.
type Config struct {
	Port        string
	Environment string

	// Gemini
	GeminiAPIKey  string
	GeminiBaseURL string
	// FlashModel serves STANDARD documents, ProModel COMPLEX ones.
	GeminiFlashModel string
	GeminiProModel   string

	// OCR. An empty OCRServiceURL disables the GPU path entirely.
	OCRServiceURL     string
	OCRTimeoutSeconds int

	// Storage. An empty bucket selects the in-memory blob store.
	StorageBucket  string
	GCPProject     string
	UseMemoryStore bool

	// Cloud Tasks. An empty queue path selects synchronous inline processing.
	TasksQueuePath  string
	TasksHandlerURL string
	TasksInvokerSA  string
	TasksVerifyAuth bool

	// Algolia (optional borrower search).
	AlgoliaAppID     string
	AlgoliaAPIKey    string
	AlgoliaIndexName string

	MaxUploadBytes   int64
	ChunkConcurrency int
}

// Load reads the environment. It never fails; absent values get defaults and
// optional integrations stay disabled until configured.
func Load() Config {
	return Config{
		Port:        getenv("PORT", "8111"),
		Environment: getenv("ENVIRONMENT", "local"),

		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:    os.Getenv("GEMINI_BASE_URL"),
		GeminiFlashModel: getenv("GEMINI_FLASH_MODEL", "gemini-2.5-flash"),
		GeminiProModel:   getenv("GEMINI_PRO_MODEL", "gemini-2.5-pro"),

		OCRServiceURL:     os.Getenv("OCR_SERVICE_URL"),
		OCRTimeoutSeconds: getenvInt("OCR_TIMEOUT_SECONDS", 120),

		StorageBucket:  os.Getenv("STORAGE_BUCKET"),
		GCPProject:     os.Getenv("GOOGLE_CLOUD_PROJECT"),
		UseMemoryStore: os.Getenv("USE_MEMORY_STORE") == "true" || os.Getenv("ENVIRONMENT") == "local" || os.Getenv("ENVIRONMENT") == "",

		TasksQueuePath:  os.Getenv("TASKS_QUEUE_PATH"),
		TasksHandlerURL: os.Getenv("TASKS_HANDLER_URL"),
		TasksInvokerSA:  os.Getenv("TASKS_INVOKER_SERVICE_ACCOUNT"),
		TasksVerifyAuth: os.Getenv("TASKS_VERIFY_AUTH") == "true",

		AlgoliaAppID:     os.Getenv("ALGOLIA_APP_ID"),
		AlgoliaAPIKey:    os.Getenv("ALGOLIA_API_KEY"),
		AlgoliaIndexName: getenv("ALGOLIA_INDEX_NAME", "loanlens_borrowers"),

		MaxUploadBytes:   getenvInt64("MAX_UPLOAD_BYTES", 25<<20),
		ChunkConcurrency: getenvInt("CHUNK_CONCURRENCY", 3),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getenvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
