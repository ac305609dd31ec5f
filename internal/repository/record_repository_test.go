package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"crypto-correlator/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func TestRunMigrationsCreatesTable(t *testing.T) {
	pool := &fakePool{}
	repo := NewRecordRepository(pool, testTracer)

	if err := repo.RunMigrations(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.execs) != 1 || !strings.Contains(pool.execs[0].sql, "CREATE TABLE IF NOT EXISTS crypto_datasets") {
		t.Fatalf("unexpected migration sql: %+v", pool.execs)
	}
}

func TestInsertRecordPassesColumnsInOrder(t *testing.T) {
	pool := &fakePool{}
	repo := NewRecordRepository(pool, testTracer)

	ago := 61000.0
	rec := domain.JoinedRecord{
		BatchTime:         time.Unix(1741100000, 0).UTC(),
		Source:            domain.SourceTheBlock,
		Text:              "Bitcoin price surges",
		Author:            domain.UnknownAuthor,
		Date:              time.Unix(1741096800, 0).UTC(),
		Coin:              "Bitcoin",
		Price:             65000,
		Sentiment:         domain.SentimentPositive,
		Topic:             "рост цен",
		Volume24h:         3e10,
		MarketCap:         1.2e12,
		Volatility24h:     2.5,
		SourceReliability: 0.8,
		Price24hAgo:       &ago,
	}
	if err := repo.InsertRecord(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pool.execs) != 1 {
		t.Fatalf("expected one statement, got %d", len(pool.execs))
	}
	args := pool.execs[0].args
	if len(args) != 16 {
		t.Fatalf("expected 16 args, got %d", len(args))
	}
	if args[1] != domain.SourceTheBlock || args[3] != domain.UnknownAuthor || args[5] != 0 || args[6] != "Bitcoin" {
		t.Fatalf("unexpected args: %v", args)
	}
	if args[8] != "positive" || args[13] != 0.8 {
		t.Fatalf("unexpected sentiment/reliability args: %v", args)
	}
	if p, ok := args[14].(*float64); !ok || p == nil || *p != ago {
		t.Fatalf("expected price_24h_ago pointer, got %#v", args[14])
	}
	if p, ok := args[15].(*float64); !ok || p != nil {
		t.Fatalf("expected nil price_30d_ago, got %#v", args[15])
	}
}

func TestInsertRecordReturnsPoolError(t *testing.T) {
	pool := &fakePool{execErr: errors.New("connection reset")}
	repo := NewRecordRepository(pool, testTracer)
	if err := repo.InsertRecord(context.Background(), domain.JoinedRecord{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestListRecentFiltersByCoinAndScans(t *testing.T) {
	date := time.Unix(1741096800, 0).UTC()
	pool := &fakePool{rows: [][]any{
		{int64(7), date, "Reddit", "ETH to 5k", "alice", date, 12, "Ethereum", 3500.0, "positive",
			"рост цен", 1e10, 4e11, 3.1, 0.6, (*float64)(nil), (*float64)(nil)},
	}}
	repo := NewRecordRepository(pool, testTracer)

	records, err := repo.ListRecent(context.Background(), "ethereum", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.ID != 7 || rec.Coin != "Ethereum" || rec.Engagement != 12 || rec.Sentiment != domain.SentimentPositive {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !strings.Contains(pool.querySQL, "WHERE lower(coin)") {
		t.Fatalf("expected coin filter, got %s", pool.querySQL)
	}
	if pool.queryArgs[0] != "ethereum" || pool.queryArgs[1] != DefaultListLimit {
		t.Fatalf("unexpected query args: %v", pool.queryArgs)
	}
}

func TestListRecentCapsLimit(t *testing.T) {
	pool := &fakePool{}
	repo := NewRecordRepository(pool, testTracer)

	if _, err := repo.ListRecent(context.Background(), "", 10_000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(pool.querySQL, "WHERE") {
		t.Fatalf("expected unfiltered query, got %s", pool.querySQL)
	}
	if pool.queryArgs[0] != MaxListLimit {
		t.Fatalf("expected limit capped to %d, got %v", MaxListLimit, pool.queryArgs[0])
	}
}

type execCall struct {
	sql  string
	args []any
}

type fakePool struct {
	execs     []execCall
	execErr   error
	querySQL  string
	queryArgs []any
	rows      [][]any
}

func (p *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execs = append(p.execs, execCall{sql: sql, args: args})
	if p.execErr != nil {
		return pgconn.CommandTag{}, p.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (p *fakePool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	p.querySQL = sql
	p.queryArgs = args
	return &fakeRows{rows: p.rows, idx: -1}, nil
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.idx], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		value := reflect.ValueOf(row[i])
		if !value.Type().AssignableTo(target.Type()) {
			return fmt.Errorf("scan column %d: cannot assign %s to %s", i, value.Type(), target.Type())
		}
		target.Set(value)
	}
	return nil
}
