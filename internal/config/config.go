package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	AuthDatabaseURL string
	CRMDatabaseURL  string
	SecretKey       string
	Algorithm       string
	TokenExpires    int // minutes
	ClientDir       string
	ConfigFile      string
	HTTPAddr        string
	LogLevel        string
	KafkaAddress    string
	ESURL           string
	ESUser          string
	ESPassword      string
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	cfg := &Config{
		AuthDatabaseURL: getenvDefault("AUTH_DATABASE_URL", "users.db"),
		CRMDatabaseURL:  getenvDefault("DATABASE_URL", "crm.db"),
		SecretKey:       os.Getenv("SECRET_KEY"),
		Algorithm:       getenvDefault("ALGORITHM", "HS256"),
		TokenExpires:    15,
		ClientDir:       os.Getenv("CLIENT_DIR"),
		ConfigFile:      os.Getenv("CONFIG_FILE"),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
		KafkaAddress:    os.Getenv("KAFKA_ADDRESS"),
		ESURL:           os.Getenv("ES_URL"),
		ESUser:          os.Getenv("ES_USER"),
		ESPassword:      os.Getenv("ES_PASSWORD"),
	}

	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY is not set")
	}

	if v := os.Getenv("TOKEN_EXPIRES"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TOKEN_EXPIRES %q: %w", v, err)
		}
		cfg.TokenExpires = minutes
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// OpenDB connects to the store behind dsn and migrates the given models.
// A postgres:// DSN selects the postgres driver, anything else is treated
// as a sqlite file path.
func OpenDB(dsn string, dst ...interface{}) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.AutoMigrate(dst...); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}
