// Package sqlitestore is a credentials.Repo backed by a SQLite database.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pascalpierre555/quantix/credentials"
	qerrors "github.com/pascalpierre555/quantix/internal/errors"
	_ "modernc.org/sqlite"
)

var _ credentials.Repo = (*Store)(nil)

const selectColumns = `SELECT username, api_jwt, session_token, google_email,
	google_access_token, google_refresh_token, google_expires_at FROM credentials`

type Store struct {
	db *sql.DB
}

// New opens dsn and applies pending migrations.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, qerrors.Wrapf(qerrors.ErrPersistenceFailure, "open: %v", err)
	}
	// one writer keeps Update's read-modify-write serialized
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, qerrors.Wrapf(qerrors.ErrPersistenceFailure, "migrate: %v", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Get(username string) (*credentials.Record, error) {
	row := s.db.QueryRowContext(context.Background(), selectColumns+` WHERE username = ?`, username)
	return scanRecord(row)
}

func (s *Store) Upsert(record *credentials.Record) error {
	if record == nil || record.Username == "" {
		return qerrors.Wrapf(qerrors.ErrInvalidRequest, "[sqlitestore.Upsert] username is required")
	}
	if err := upsert(context.Background(), s.db, record); err != nil {
		return qerrors.Wrapf(qerrors.ErrPersistenceFailure, "upsert: %v", err)
	}
	return nil
}

func (s *Store) Update(username string, fn func(*credentials.Record) error) error {
	if username == "" {
		return qerrors.Wrapf(qerrors.ErrInvalidRequest, "[sqlitestore.Update] username is required")
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return qerrors.Wrapf(qerrors.ErrPersistenceFailure, "begin: %v", err)
	}
	defer func() {
		_ = tx.Rollback() // safe after commit
	}()

	rec, err := scanRecord(tx.QueryRowContext(ctx, selectColumns+` WHERE username = ?`, username))
	switch {
	case errors.Is(err, qerrors.ErrNotFound):
		rec = &credentials.Record{Username: username}
	case err != nil:
		return err
	}

	if err := fn(rec); err != nil {
		return err
	}
	rec.Username = username

	if err := upsert(ctx, tx, rec); err != nil {
		return qerrors.Wrapf(qerrors.ErrPersistenceFailure, "update: %v", err)
	}
	if err := tx.Commit(); err != nil {
		return qerrors.Wrapf(qerrors.ErrPersistenceFailure, "commit: %v", err)
	}
	return nil
}

func (s *Store) FindBySessionToken(token string) (*credentials.Record, error) {
	if token == "" {
		return nil, qerrors.ErrNotFound
	}
	row := s.db.QueryRowContext(context.Background(), selectColumns+` WHERE session_token = ?`, token)
	return scanRecord(row)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, r *credentials.Record) error {
	var email, access, refresh sql.NullString
	var expires sql.NullInt64
	if r.Google != nil {
		email = sql.NullString{String: r.Google.Email, Valid: true}
		access = sql.NullString{String: r.Google.AccessToken, Valid: true}
		refresh = mapStringNull(r.Google.RefreshToken)
		expires = sql.NullInt64{Int64: r.Google.ExpiresAt.Unix(), Valid: true}
	}

	_, err := db.ExecContext(ctx, `INSERT INTO credentials (username, api_jwt, session_token,
		google_email, google_access_token, google_refresh_token, google_expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			api_jwt = excluded.api_jwt,
			session_token = excluded.session_token,
			google_email = excluded.google_email,
			google_access_token = excluded.google_access_token,
			google_refresh_token = excluded.google_refresh_token,
			google_expires_at = excluded.google_expires_at`,
		r.Username, mapStringNull(r.APIJWT), mapStringNull(r.SessionToken),
		email, access, refresh, expires)
	return err
}

func scanRecord(row *sql.Row) (*credentials.Record, error) {
	var (
		rec                    credentials.Record
		apiJWT, session        sql.NullString
		email, access, refresh sql.NullString
		expires                sql.NullInt64
	)
	err := row.Scan(&rec.Username, &apiJWT, &session, &email, &access, &refresh, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, qerrors.ErrNotFound
	}
	if err != nil {
		return nil, qerrors.Wrapf(qerrors.ErrPersistenceFailure, "scan: %v", err)
	}

	rec.APIJWT = mapNullString(apiJWT)
	rec.SessionToken = mapNullString(session)
	if access.Valid {
		rec.Google = &credentials.Grant{
			Email:        mapNullString(email),
			AccessToken:  access.String,
			RefreshToken: mapNullString(refresh),
			ExpiresAt:    time.Unix(expires.Int64, 0).UTC(),
		}
	}
	return &rec, nil
}

func mapNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func mapStringNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
