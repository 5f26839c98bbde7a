package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                    string
	Env                     string
	FirebaseCredentialsPath string
	PostgresConnStr         string
	MongoURI                string
	MongoDatabase           string
	VAPIDSubscriber         string
	VAPIDPublicKey          string
	VAPIDPrivateKey         string
	SweepInterval           time.Duration
	SweepBatchSize          int
	MaxDeliveryAttempts     int
	SchedulerTimezone       string
	PurgeTime               string
	PurgeRetention          time.Duration
}

func Load() *Config {
	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase_credentials.json"),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "crewdesk"),
		VAPIDSubscriber:         getEnv("VAPID_SUBSCRIBER", "mailto:ops@crewdesk.io"),
		VAPIDPublicKey:          getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey:         getEnv("VAPID_PRIVATE_KEY", ""),
		SweepInterval:           getEnvDuration("SWEEP_INTERVAL", time.Minute),
		SweepBatchSize:          getEnvInt("SWEEP_BATCH_SIZE", 100),
		MaxDeliveryAttempts:     getEnvInt("MAX_DELIVERY_ATTEMPTS", 10),
		SchedulerTimezone:       getEnv("SCHEDULER_TZ", "UTC"),
		PurgeTime:               getEnv("PURGE_TIME", "03:30"),
		PurgeRetention:          getEnvDuration("PURGE_RETENTION", 30*24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
