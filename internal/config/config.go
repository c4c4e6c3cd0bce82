package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the daemon needs from the environment.
type Config struct {
	NodeRPCURL      string
	ContractAddress string
	ChainID         string

	HTTPPort string

	KafkaBrokers []string
	AuditTopic   string

	FinalityTimeout time.Duration

	APIUser         string
	APIPasswordHash string

	// WalletAccount backs the static wallet when the daemon runs with
	// server-side custody; leave empty to start disconnected.
	WalletAccount string
}

func loadEnv() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}

	possiblePaths := []string{
		filepath.Join(wd, ".env"),
		filepath.Join(wd, "..", ".env"),
		filepath.Join(wd, "..", "..", ".env"),
	}
	for _, envPath := range possiblePaths {
		if err := godotenv.Load(envPath); err == nil {
			log.Printf("Loaded environment variables from %s", envPath)
			return
		}
	}
}

// Load reads configuration from .env (if present) and the environment.
func Load() (*Config, error) {
	loadEnv()

	cfg := &Config{
		NodeRPCURL:      os.Getenv("NODE_RPC_URL"),
		ContractAddress: os.Getenv("CONTRACT_ADDRESS"),
		ChainID:         getEnv("CHAIN_ID", "0xaa36a7"),
		HTTPPort:        getEnv("HTTP_PORT", "9000"),
		AuditTopic:      getEnv("AUDIT_TOPIC", "shipment_transitions"),
		FinalityTimeout: 90 * time.Second,
		APIUser:         os.Getenv("API_USER"),
		APIPasswordHash: os.Getenv("API_PASSWORD_HASH"),
		WalletAccount:   os.Getenv("WALLET_ACCOUNT"),
	}

	if cfg.NodeRPCURL == "" {
		return nil, fmt.Errorf("NODE_RPC_URL is required")
	}
	if cfg.ContractAddress == "" {
		return nil, fmt.Errorf("CONTRACT_ADDRESS is required")
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if raw := os.Getenv("FINALITY_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid FINALITY_TIMEOUT %q: %w", raw, err)
		}
		cfg.FinalityTimeout = d
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
