package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/kairan-app/kairan/core"
)

const sessionColumns = `id, account_id, token_hash, ip_address, user_agent, expires_at, created_at, updated_at`

func (a *Adapter) CreateSession(session *core.Session) error {
	q := `INSERT INTO sessions (id, account_id, token_hash, ip_address, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`

	return a.pool.QueryRow(context.Background(), q,
		session.ID, session.AccountID, session.TokenHash,
		session.IPAddress, session.UserAgent, session.ExpiresAt).
		Scan(&session.CreatedAt, &session.UpdatedAt)
}

func (a *Adapter) GetSessionByHash(tokenHash string) (*core.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE token_hash = $1`
	return scanSession(a.pool.QueryRow(context.Background(), q, tokenHash))
}

func (a *Adapter) GetSessionByID(id string) (*core.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return scanSession(a.pool.QueryRow(context.Background(), q, id))
}

func (a *Adapter) DeleteSessionByID(id string) error {
	_, err := a.pool.Exec(context.Background(), `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (a *Adapter) DeleteSessionByHash(tokenHash string) error {
	tag, err := a.pool.Exec(context.Background(), `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrSessionNotFound
	}
	return nil
}

func (a *Adapter) DeleteAccountSessions(accountID string) error {
	_, err := a.pool.Exec(context.Background(), `DELETE FROM sessions WHERE account_id = $1`, accountID)
	return err
}

func (a *Adapter) DeleteExpiredSessions() (int, error) {
	tag, err := a.pool.Exec(context.Background(), `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func scanSession(row pgx.Row) (*core.Session, error) {
	session := &core.Session{}
	err := row.Scan(&session.ID, &session.AccountID, &session.TokenHash,
		&session.IPAddress, &session.UserAgent,
		&session.ExpiresAt, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}
