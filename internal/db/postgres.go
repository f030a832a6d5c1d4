package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rawblock/evm-risk-engine/pkg/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL for the risk scoring event sink")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes the schema.sql file
func (s *PostgresStore) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/db/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %v", err)
	}

	_, err = s.pool.Exec(context.Background(), string(schemaBytes))
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("Risk engine event-sink schema initialized")
	return nil
}

// SaveAnalysisResult persists one completed address analysis and its
// aggregated fired rules. This is a one-way sink for the dashboard — the
// engine itself never reads it back when scoring a later request.
func (s *PostgresStore) SaveAnalysisResult(ctx context.Context, result models.AddressAnalysisResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tags, err := json.Marshal(result.RiskTags)
	if err != nil {
		return fmt.Errorf("failed to marshal risk tags: %v", err)
	}

	insertSQL := `
		INSERT INTO address_analyses
			(request_id, chain_id, address, risk_score, risk_level, analysis_type, explanation, risk_tags, tx_analyzed, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (request_id) DO UPDATE
		SET risk_score = EXCLUDED.risk_score, risk_level = EXCLUDED.risk_level, explanation = EXCLUDED.explanation,
		    risk_tags = EXCLUDED.risk_tags, tx_analyzed = EXCLUDED.tx_analyzed;
	`
	_, err = tx.Exec(ctx, insertSQL,
		result.RequestID, result.ChainID, result.Address, result.RiskScore, result.RiskLevel,
		result.AnalysisType, result.Explanation, tags, result.Summary.TransactionsAnalyzed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert address_analyses: %v", err)
	}

	if len(result.FiredRules) > 0 {
		insertRuleSQL := `
			INSERT INTO fired_rules (request_id, rule_id, rule_name, score, severity, tx_hash)
			VALUES ($1, $2, $3, $4, $5, $6);
		`
		for _, r := range result.FiredRules {
			_, err = tx.Exec(ctx, insertRuleSQL, result.RequestID, r.RuleID, r.Name, r.Score, r.Severity, r.TxHash)
			if err != nil {
				return fmt.Errorf("failed to insert fired_rules: %v", err)
			}
		}
	}

	return tx.Commit(ctx)
}

// AnalysisInfo is a row summary of a past analysis, used by the dashboard's
// history view.
type AnalysisInfo struct {
	RequestID   string  `json:"requestId"`
	ChainID     int     `json:"chainId"`
	Address     string  `json:"address"`
	RiskScore   float64 `json:"riskScore"`
	RiskLevel   string  `json:"riskLevel"`
	CompletedAt string  `json:"completedAt"`
}

// RecentAnalyses returns the most recently completed analyses, newest first.
func (s *PostgresStore) RecentAnalyses(ctx context.Context, page int, limit int) ([]AnalysisInfo, int, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	var totalCount int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM address_analyses`).Scan(&totalCount); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT request_id, chain_id, address, risk_score, risk_level, completed_at::text
		FROM address_analyses
		ORDER BY completed_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []AnalysisInfo
	for rows.Next() {
		var a AnalysisInfo
		if err := rows.Scan(&a.RequestID, &a.ChainID, &a.Address, &a.RiskScore, &a.RiskLevel, &a.CompletedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	if out == nil {
		out = []AnalysisInfo{}
	}
	return out, totalCount, nil
}

// GetPool exposes the connection pool for less common direct queries.
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}
