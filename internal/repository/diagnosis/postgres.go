package diagnosis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/medlens/internal/domain"
	domdiag "github.com/kailas-cloud/medlens/internal/domain/diagnosis"
	"github.com/kailas-cloud/medlens/internal/domain/evidence"
)

const (
	insertQuery = `INSERT INTO diagnoses
	(id, user_id, disease, probability, description, precautions, symptoms, image_ref, source, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	selectColumns = `SELECT id, user_id, disease, probability, description, precautions,
	symptoms, image_ref, source, created_at FROM diagnoses`

	getQuery = selectColumns + ` WHERE id = $1`

	// LIMIT NULL is LIMIT ALL.
	historyQuery = selectColumns + ` WHERE user_id = $1 AND ($2 = '' OR source = $2)
	ORDER BY created_at DESC LIMIT $3`
)

// PostgresRepo implements usecase/diagnosis.Repository on the diagnoses table.
type PostgresRepo struct {
	db *sql.DB
}

// NewPostgres creates a relational diagnosis repository.
func NewPostgres(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Save inserts the records in one transaction.
func (r *PostgresRepo) Save(ctx context.Context, recs ...domdiag.Record) (err error) {
	if len(recs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, rec := range recs {
		precautions, err := json.Marshal(rec.Precautions())
		if err != nil {
			return fmt.Errorf("marshal precautions: %w", err)
		}
		_, err = tx.ExecContext(ctx, insertQuery,
			rec.ID(), rec.UserID(), rec.Disease(), rec.Probability(), rec.Description(),
			string(precautions), rec.Symptoms(), rec.ImageRef(), string(rec.Source()), rec.CreatedAt(),
		)
		if err != nil {
			return fmt.Errorf("insert diagnosis %s: %w", rec.ID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns a record by ID.
func (r *PostgresRepo) Get(ctx context.Context, id string) (domdiag.Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, getQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domdiag.Record{}, domain.ErrNotFound
	}
	if err != nil {
		return domdiag.Record{}, fmt.Errorf("select diagnosis %s: %w", id, err)
	}
	return rec, nil
}

// History returns a user's records newest first.
func (r *PostgresRepo) History(
	ctx context.Context, userID string, source evidence.Source, limit int,
) ([]domdiag.Record, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}

	rows, err := r.db.QueryContext(ctx, historyQuery, userID, string(source), lim)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer rows.Close()

	out := []domdiag.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// Latest returns the user's newest record for the source.
func (r *PostgresRepo) Latest(ctx context.Context, userID string, source evidence.Source) (domdiag.Record, error) {
	recs, err := r.History(ctx, userID, source, 1)
	if err != nil {
		return domdiag.Record{}, err
	}
	if len(recs) == 0 {
		return domdiag.Record{}, domain.ErrNotFound
	}
	return recs[0], nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (domdiag.Record, error) {
	var (
		id, userID, disease, description string
		symptoms, imageRef, source       string
		probability                      float64
		precautionsRaw                   []byte
		createdAt                        time.Time
	)
	err := s.Scan(&id, &userID, &disease, &probability, &description, &precautionsRaw,
		&symptoms, &imageRef, &source, &createdAt)
	if err != nil {
		return domdiag.Record{}, err
	}
	precautions, err := decodePrecautions(precautionsRaw)
	if err != nil {
		return domdiag.Record{}, err
	}
	return domdiag.Reconstruct(
		id, userID, disease, probability, description, precautions,
		symptoms, imageRef, evidence.Source(source), createdAt.UTC(),
	), nil
}
