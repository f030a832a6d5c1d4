package main

import (
	"log"
	"os"
	"strconv"

	"github.com/rawblock/evm-risk-engine/internal/api"
	"github.com/rawblock/evm-risk-engine/internal/collector"
	"github.com/rawblock/evm-risk-engine/internal/db"
	"github.com/rawblock/evm-risk-engine/internal/indexer"
	"github.com/rawblock/evm-risk-engine/internal/lists"
	"github.com/rawblock/evm-risk-engine/internal/rules"
	"github.com/rawblock/evm-risk-engine/internal/scoring"
)

func main() {
	log.Println("Starting EVM Address Risk Scoring Engine...")
	log.Println("Loading reputation lists and rule-evaluation ruleset...")

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values. Values are read from the
	// process environment only; no .env file is loaded.
	// ────────────────────────────────────────────────────────────────────

	var dbConn *db.PostgresStore
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		conn, err := db.Connect(dbURL)
		if err != nil {
			log.Printf("Warning: Failed to connect to PostgreSQL, continuing without persisting analysis results. Error: %v", err)
		} else {
			dbConn = conn
			defer dbConn.Close()
			if err := dbConn.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
		}
	} else {
		log.Println("DATABASE_URL not set — running without the event-sink database")
	}

	listsDir := getEnvOrDefault("LISTS_DIR", "internal/lists/data")
	listLoader := lists.NewLoader(listsDir)

	rulesetPath := getEnvOrDefault("RULESET_PATH", "internal/rules/ruleset.yaml")
	ruleset := rules.NewLoader(rulesetPath)
	if err := ruleset.Load(); err != nil {
		log.Fatalf("FATAL: failed to load ruleset %s: %v", rulesetPath, err)
	}

	indexerClient := indexer.NewClient(indexer.Config{
		BaseURL: getEnvOrDefault("INDEXER_BASE_URL", "https://api.etherscan.io/v2/api"),
		APIKey:  os.Getenv("INDEXER_API_KEY"), // engine still boots without it; live calls fail transiently
	})
	coll := collector.New(indexerClient)

	cfg := scoring.DefaultConfig()
	cfg.MaxHistoryDays = getEnvIntOrDefault("MAX_HISTORY_DAYS", cfg.MaxHistoryDays)
	cfg.Damping = getEnvFloatOrDefault("PPR_DAMPING_FACTOR", cfg.Damping)
	cfg.RulesetPath = rulesetPath
	cfg.ListsDir = listsDir

	engine := scoring.New(cfg, coll, listLoader, ruleset)

	// Setup WebSocket Hub for the dashboard's live analysis feed.
	wsHub := api.NewHub()
	go wsHub.Run()

	// Setup the Gin Router
	r := api.SetupRouter(dbConn, engine, listLoader, wsHub)

	port := getEnvOrDefault("PORT", "8088")

	log.Printf("Engine running on :%s\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloatOrDefault(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}
