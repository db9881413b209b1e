package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// OpenRouter chat completions
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	ChatModel         string
	AppURL            string
	AppTitle          string

	// OpenWeatherMap
	OpenWeatherAPIKey string
	OpenWeatherURL    string

	// Gemini AI (transcription + embeddings)
	GeminiAPIKey         string
	GeminiModel          string
	GeminiEmbeddingModel string
	GeminiConcurrentReqs int

	// Voice
	Transcriber   string
	TTSURL        string
	VoiceLanguage string
	MaxUploadMB   int

	// Schemes index
	SchemesDBURL    string
	SchemesTopK     int
	SchemesMinScore float64

	// Redis (optional weather cache)
	RedisURL        string
	WeatherCacheTTL time.Duration

	// Outbound + inbound limits
	UpstreamTimeout    time.Duration
	RateLimitPerMinute int
}

func Load() *Config {
	// Load .env file if it exists; secrets.env is what the voice service used historically
	godotenv.Load()
	godotenv.Load("secrets.env")

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "5000"),
		Env:                  getEnvOrDefault("ENV", "development"),
		OpenRouterAPIKey:     os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL:    getEnvOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		ChatModel:            getEnvOrDefault("CHAT_MODEL", "deepseek/deepseek-r1-0528:free"),
		AppURL:               getEnvOrDefault("APP_URL", ""),
		AppTitle:             getEnvOrDefault("APP_TITLE", "AnnaData"),
		OpenWeatherAPIKey:    os.Getenv("OPENWEATHER_API_KEY"),
		OpenWeatherURL:       getEnvOrDefault("OPENWEATHER_URL", "https://api.openweathermap.org/data/2.5/weather"),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiEmbeddingModel: getEnvOrDefault("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		Transcriber:          getEnvOrDefault("TRANSCRIBER", "gemini"),
		TTSURL:               getEnvOrDefault("TTS_URL", "https://translate.google.com/translate_tts"),
		VoiceLanguage:        getEnvOrDefault("VOICE_LANGUAGE", "hi"),
		MaxUploadMB:          getEnvAsIntOrDefault("MAX_UPLOAD_MB", 10),
		SchemesDBURL:         getEnvOrDefault("SCHEMES_DB_URL", "data/schemes.db"),
		SchemesTopK:          getEnvAsIntOrDefault("SCHEMES_TOP_K", 3),
		SchemesMinScore:      getEnvAsFloatOrDefault("SCHEMES_MIN_SCORE", 0),
		RedisURL:             getEnvOrDefault("REDIS_URL", ""),
		WeatherCacheTTL:      time.Duration(getEnvAsIntOrDefault("WEATHER_CACHE_TTL_SECONDS", 600)) * time.Second,
		UpstreamTimeout:      time.Duration(getEnvAsIntOrDefault("UPSTREAM_TIMEOUT_SECONDS", 30)) * time.Second,
		RateLimitPerMinute:   getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 30),
	}

	return cfg
}

// RequireGemini returns the Gemini key or panics. Only the offline index
// builder calls this; the server checks credentials per request.
func (c *Config) RequireGemini() string {
	if c.GeminiAPIKey == "" {
		c.GeminiAPIKey = mustGetEnv("GEMINI_API_KEY")
	}
	return c.GeminiAPIKey
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
