package bankdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/agilbank/concierge/agent/contract"
	statex "github.com/agilbank/concierge/agent/state"
)

type customerRow struct {
	bun.BaseModel `bun:"table:customers"`

	CustomerID  string  `bun:"customer_id,pk"`
	BirthDate   string  `bun:"birth_date,notnull"`
	Name        string  `bun:"name,notnull"`
	CreditLimit float64 `bun:"credit_limit,notnull"`
	Score       int     `bun:"score,notnull"`
}

type scoreBandRow struct {
	bun.BaseModel `bun:"table:score_bands"`

	MinScore int     `bun:"min_score,pk"`
	MaxScore int     `bun:"max_score,notnull"`
	MaxLimit float64 `bun:"max_limit,notnull"`
}

type limitRequestRow struct {
	bun.BaseModel `bun:"table:limit_requests"`

	ID             int64   `bun:"id,pk,autoincrement"`
	CustomerID     string  `bun:"customer_id,notnull"`
	RequestedAt    string  `bun:"requested_at,notnull"`
	CurrentLimit   float64 `bun:"current_limit,notnull"`
	RequestedLimit float64 `bun:"requested_limit,notnull"`
	Status         string  `bun:"status,notnull"`
}

type PostgresConfig struct {
	DSN string `envconfig:"DSN" split_words:"true" required:"true"`
}

// BunStore is the Postgres-backed Gateway. Per-customer write
// serialization is delegated to the database's row locking.
type BunStore struct {
	db *bun.DB
}

func NewBunStore(cfg PostgresConfig) (*BunStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunStore{db: db}, nil
}

// CreateTables bootstraps the schema. Intended for local setups and tests.
func (s *BunStore) CreateTables(ctx context.Context) error {
	models := []any{
		(*customerRow)(nil),
		(*scoreBandRow)(nil),
		(*limitRequestRow)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("%w: create table: %v", contractx.ErrGatewayUnavailable, err)
		}
	}
	return nil
}

func (s *BunStore) Close() error {
	return s.db.Close()
}

func (s *BunStore) GetCustomer(ctx context.Context, id string) (statex.CustomerRecord, error) {
	var row customerRow
	err := s.db.NewSelect().Model(&row).Where("customer_id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return statex.CustomerRecord{}, contractx.ErrCustomerNotFound
	}
	if err != nil {
		return statex.CustomerRecord{}, fmt.Errorf("%w: select customer: %v", contractx.ErrGatewayUnavailable, err)
	}
	return statex.CustomerRecord{
		ID:          row.CustomerID,
		BirthDate:   row.BirthDate,
		Name:        row.Name,
		CreditLimit: row.CreditLimit,
		Score:       row.Score,
	}, nil
}

func (s *BunStore) MaxLimitForScore(ctx context.Context, score int) (float64, bool, error) {
	var row scoreBandRow
	err := s.db.NewSelect().Model(&row).
		Where("min_score <= ?", score).
		Where("max_score >= ?", score).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: select score band: %v", contractx.ErrGatewayUnavailable, err)
	}
	return row.MaxLimit, true, nil
}

func (s *BunStore) PutCustomer(ctx context.Context, rec statex.CustomerRecord) error {
	row := customerRow{
		CustomerID:  rec.ID,
		BirthDate:   rec.BirthDate,
		Name:        rec.Name,
		CreditLimit: rec.CreditLimit,
		Score:       rec.Score,
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (customer_id) DO UPDATE").
		Set("birth_date = EXCLUDED.birth_date").
		Set("name = EXCLUDED.name").
		Set("credit_limit = EXCLUDED.credit_limit").
		Set("score = EXCLUDED.score").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: upsert customer: %v", contractx.ErrGatewayUnavailable, err)
	}
	return nil
}

func (s *BunStore) AppendLimitRequest(ctx context.Context, req LimitRequest) error {
	row := limitRequestRow{
		CustomerID:     req.CustomerID,
		RequestedAt:    req.RequestedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		CurrentLimit:   req.CurrentLimit,
		RequestedLimit: req.RequestedLimit,
		Status:         req.Status,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("%w: insert limit request: %v", contractx.ErrGatewayUnavailable, err)
	}
	return nil
}
