package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kairan-app/kairan/core"
)

func (a *Adapter) CreateAccount(account *core.InternalAccount) error {
	ctx := context.Background()

	if account.ID == "" {
		account.ID = uuid.NewString()
	}

	metadata, err := encodeMetadata(account.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO accounts (id, email, metadata) VALUES ($1, $2, $3) RETURNING created_at, updated_at`
	err = a.pool.QueryRow(ctx, query, account.ID, account.Email, metadata).
		Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrAccountExists
		}
		return err
	}
	return nil
}

func (a *Adapter) GetAccountByID(id string) (*core.InternalAccount, error) {
	q := `SELECT id, email, metadata, created_at, updated_at FROM accounts WHERE id = $1`
	return a.scanAccount(a.pool.QueryRow(context.Background(), q, id))
}

func (a *Adapter) GetAccountByEmail(email string) (*core.InternalAccount, error) {
	q := `SELECT id, email, metadata, created_at, updated_at FROM accounts WHERE email = $1`
	return a.scanAccount(a.pool.QueryRow(context.Background(), q, email))
}

func (a *Adapter) scanAccount(row pgx.Row) (*core.InternalAccount, error) {
	account := &core.InternalAccount{}
	var metadata []byte

	err := row.Scan(&account.ID, &account.Email, &metadata, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrAccountNotFound
		}
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &account.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode account metadata: %w", err)
		}
	}
	return account, nil
}

func (a *Adapter) UpdateAccountMetadata(id string, md map[string]string) error {
	metadata, err := encodeMetadata(md)
	if err != nil {
		return err
	}

	q := `UPDATE accounts SET metadata = $1, updated_at = now() WHERE id = $2`
	tag, err := a.pool.Exec(context.Background(), q, metadata, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrAccountNotFound
	}
	return nil
}

func encodeMetadata(md map[string]string) ([]byte, error) {
	if md == nil {
		return []byte(`{}`), nil
	}
	encoded, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("failed to encode account metadata: %w", err)
	}
	return encoded, nil
}

func (a *Adapter) CreateTicket(t *core.AuthTicket) error {
	q := `INSERT INTO auth_tickets (hash, email, expires_at) VALUES ($1, $2, $3) RETURNING created_at`
	return a.pool.QueryRow(context.Background(), q, t.Hash, t.Email, t.ExpiresAt).Scan(&t.CreatedAt)
}

// RedeemTicketByHash consumes the ticket row in the same statement that
// reads it, so concurrent redemptions of one ticket see at most one winner.
func (a *Adapter) RedeemTicketByHash(hash string) (*core.AuthTicket, error) {
	q := `DELETE FROM auth_tickets WHERE hash = $1 RETURNING email, expires_at, created_at`

	ticket := &core.AuthTicket{Hash: hash}
	err := a.pool.QueryRow(context.Background(), q, hash).
		Scan(&ticket.Email, &ticket.ExpiresAt, &ticket.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrTicketNotFound
		}
		return nil, err
	}

	if time.Now().After(ticket.ExpiresAt) {
		return nil, core.ErrTicketExpired
	}
	return ticket, nil
}

func (a *Adapter) DeleteExpiredTickets() (int, error) {
	tag, err := a.pool.Exec(context.Background(), `DELETE FROM auth_tickets WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
