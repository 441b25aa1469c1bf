package storage

import (
	"database/sql"
	"strings"

	_ "github.com/lib/pq"

	"github.com/example/carnest-gateway/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveReceipt(r *models.Receipt) error {
	_, err := p.db.Exec(`INSERT INTO submission_receipts(session_id, driver, going_from, going_to, date_time, outcome, error_fields, created_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		r.SessionID, r.Driver, r.GoingFrom, r.GoingTo, r.DateTime, r.Outcome, strings.Join(r.ErrorFields, ","), r.CreatedAt)
	return err
}

func (p *PostgresStore) Close() error { return p.db.Close() }
