package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppPort         string
	AppEnv          string
	AppBaseURL      string
	DBDSN           string
	JWTSecret       string
	JWTExpiresMin   int
	RedisAddr       string
	RedisPassword   string
	FrontendBaseURL string
	CORSOrigins     string
	UploadDir       string

	GoogleClientID string
	GoogleSecret   string
	GoogleRedirect string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	RazorpayBaseURL       string

	NotifyWorkers   int
	NotifyQueueSize int
	NotifyTimeout   time.Duration
}

func Load() Config {
	return Config{
		AppPort:         get("APP_PORT", "8080"),
		AppEnv:          strings.ToLower(get("APP_ENV", "development")),
		AppBaseURL:      get("APP_BASE_URL", ""),
		DBDSN:           must("DB_DSN"),
		JWTSecret:       must("JWT_SECRET"),
		JWTExpiresMin:   getInt("JWT_EXPIRES_MIN", 10080),
		RedisAddr:       get("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   get("REDIS_PASSWORD", ""),
		FrontendBaseURL: get("FRONTEND_BASE_URL", "http://localhost:5173"),
		CORSOrigins:     get("CORS_ORIGINS", "http://localhost:5173, http://127.0.0.1:5173"),
		UploadDir:       get("UPLOAD_DIR", "./uploads"),

		GoogleClientID: get("GOOGLE_CLIENT_ID", ""),
		GoogleSecret:   get("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirect: get("GOOGLE_REDIRECT_URL", ""),

		RazorpayKeyID:         get("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:     get("RAZORPAY_KEY_SECRET", ""),
		RazorpayWebhookSecret: get("RAZORPAY_WEBHOOK_SECRET", ""),
		RazorpayBaseURL:       get("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1"),

		NotifyWorkers:   getInt("NOTIFY_WORKERS", 4),
		NotifyQueueSize: getInt("NOTIFY_QUEUE_SIZE", 256),
		NotifyTimeout:   time.Duration(getInt("NOTIFY_TIMEOUT_SEC", 5)) * time.Second,
	}
}

func (c Config) IsProduction() bool { return c.AppEnv == "production" }

func get(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getInt(k string, def int) int {
	n, err := strconv.Atoi(get(k, strconv.Itoa(def)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
