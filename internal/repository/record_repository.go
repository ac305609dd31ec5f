package repository

import (
	"context"
	"strings"

	"crypto-correlator/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const createRecordsTable = `
CREATE TABLE IF NOT EXISTS crypto_datasets (
    id                 BIGSERIAL        PRIMARY KEY,
    batch_time         TIMESTAMPTZ      NOT NULL,
    source             TEXT             NOT NULL,
    text               TEXT             NOT NULL,
    author             TEXT             NOT NULL,
    date               TIMESTAMPTZ      NOT NULL,
    engagement         INTEGER          NOT NULL DEFAULT 0,
    coin               TEXT             NOT NULL,
    price              DOUBLE PRECISION NOT NULL,
    sentiment          TEXT             NOT NULL,
    topic              TEXT             NOT NULL,
    volume_24h         DOUBLE PRECISION NOT NULL,
    market_cap         DOUBLE PRECISION NOT NULL,
    volatility_24h     DOUBLE PRECISION NOT NULL,
    source_reliability DOUBLE PRECISION NOT NULL,
    price_24h_ago      DOUBLE PRECISION,
    price_30d_ago      DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_crypto_datasets_coin_date
    ON crypto_datasets (coin, date DESC);
`

const insertRecord = `
INSERT INTO crypto_datasets (
    batch_time, source, text, author, date, engagement, coin, price, sentiment,
    topic, volume_24h, market_cap, volatility_24h, source_reliability,
    price_24h_ago, price_30d_ago
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

const selectRecordColumns = `
SELECT id, batch_time, source, text, author, date, engagement, coin, price, sentiment,
       topic, volume_24h, market_cap, volatility_24h, source_reliability,
       price_24h_ago, price_30d_ago
FROM crypto_datasets`

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type RecordRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewRecordRepository(pool PgxPool, tracer trace.Tracer) *RecordRepository {
	return &RecordRepository{pool: pool, tracer: tracer}
}

func (r *RecordRepository) RunMigrations(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "record-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createRecordsTable)
	return err
}

// InsertRecord writes one joined row. Callers decide what a failure means
// for the rest of their batch.
func (r *RecordRepository) InsertRecord(ctx context.Context, rec domain.JoinedRecord) error {
	ctx, span := r.tracer.Start(ctx, "record-repo.insert-record")
	defer span.End()
	span.SetAttributes(attribute.String("coin", rec.Coin), attribute.String("source", rec.Source))

	_, err := r.pool.Exec(ctx, insertRecord,
		rec.BatchTime, rec.Source, rec.Text, rec.Author, rec.Date, rec.Engagement, rec.Coin,
		rec.Price, string(rec.Sentiment), rec.Topic, rec.Volume24h, rec.MarketCap,
		rec.Volatility24h, rec.SourceReliability, rec.Price24hAgo, rec.Price30dAgo,
	)
	return err
}

// ListRecent returns the newest rows by item date, optionally for one coin.
func (r *RecordRepository) ListRecent(ctx context.Context, coin string, limit int) ([]domain.JoinedRecord, error) {
	ctx, span := r.tracer.Start(ctx, "record-repo.list-recent")
	defer span.End()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	var (
		rows pgx.Rows
		err  error
	)
	coin = strings.TrimSpace(coin)
	if coin == "" {
		rows, err = r.pool.Query(ctx, selectRecordColumns+`
ORDER BY date DESC, id DESC
LIMIT $1`, limit)
	} else {
		rows, err = r.pool.Query(ctx, selectRecordColumns+`
WHERE lower(coin) = lower($1)
ORDER BY date DESC, id DESC
LIMIT $2`, coin, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.JoinedRecord
	for rows.Next() {
		var (
			rec       domain.JoinedRecord
			sentiment string
		)
		if err := rows.Scan(
			&rec.ID, &rec.BatchTime, &rec.Source, &rec.Text, &rec.Author, &rec.Date,
			&rec.Engagement, &rec.Coin, &rec.Price, &sentiment, &rec.Topic, &rec.Volume24h,
			&rec.MarketCap, &rec.Volatility24h, &rec.SourceReliability,
			&rec.Price24hAgo, &rec.Price30dAgo,
		); err != nil {
			return nil, err
		}
		rec.Sentiment = domain.Sentiment(sentiment)
		records = append(records, rec)
	}
	return records, rows.Err()
}
