package session

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/daveminay/cohoscrape/lib/sqliteutil"
)

//go:embed schema.sql
var Schema string

// SQLStore keeps sessions in sqlite or a remote libsql database, so several
// server instances can share them.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens `dsn` with sqliteutil.OpenDB and applies Schema.
func OpenSQLStore(dsn string) (SQLStore, error) {
	db, err := sqliteutil.OpenDB(Schema, dsn)
	if err != nil {
		return SQLStore{}, err
	}
	return SQLStore{db: db}, nil
}

// NewSQLStore wraps a database that already has Schema applied.
func NewSQLStore(db *sql.DB) SQLStore {
	return SQLStore{db: db}
}

func (s SQLStore) Close() error {
	return s.db.Close()
}

func (s SQLStore) Get(ctx context.Context, id string) (Session, error) {
	var data string
	var archive []byte
	err := s.db.QueryRowContext(
		ctx,
		"select data, archive from session where id = ?",
		id,
	).Scan(&data, &archive)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}

	var out Session
	err = json.Unmarshal([]byte(data), &out)
	if err != nil {
		return Session{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	out.Archive = archive
	return out, nil
}

func (s SQLStore) Put(ctx context.Context, session Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`insert into session(id, stage, data, archive, updated_at) values (?, ?, ?, ?, ?)
		on conflict(id) do update set
			stage = excluded.stage,
			data = excluded.data,
			archive = excluded.archive,
			updated_at = excluded.updated_at`,
		session.ID,
		string(session.Stage),
		string(data),
		session.Archive,
		session.UpdatedAt.Unix(),
	)
	return err
}

func (s SQLStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "delete from session where id = ?", id)
	return err
}

func (s SQLStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(
		ctx,
		`delete from session_authorization
		where authorized_at < ?
		and session_id not in (select id from session where updated_at >= ?)`,
		cutoff.Unix(),
		cutoff.Unix(),
	)
	if err != nil {
		return 0, err
	}
	_, err = tx.ExecContext(ctx, "delete from session_claim where expires_at < ?", cutoff.Unix())
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, "delete from session where updated_at < ?", cutoff.Unix())
	if err != nil {
		return 0, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(removed), tx.Commit()
}

func (s SQLStore) Authorize(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(
		ctx,
		"insert or replace into session_authorization(session_id, authorized_at) values (?, ?)",
		id,
		at.Unix(),
	)
	return err
}

func (s SQLStore) Deauthorize(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "delete from session_authorization where session_id = ?", id)
	return err
}

func (s SQLStore) Authorized(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		"select count(*) from session_authorization where session_id = ?",
		id,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s SQLStore) Claim(ctx context.Context, id string, now time.Time, lease time.Duration) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`insert into session_claim(session_id, expires_at) values (?, ?)
		on conflict(session_id) do update set expires_at = excluded.expires_at
		where session_claim.expires_at <= ?`,
		id,
		now.Add(lease).Unix(),
		now.Unix(),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s SQLStore) Unclaim(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "delete from session_claim where session_id = ?", id)
	return err
}
