package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"papertrade/internal/apperr"
	"papertrade/internal/ledger"
	"papertrade/internal/model"
	"papertrade/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const selectAccount = `
	SELECT id, name, email, password_hash, avatar, capital_price, profit_price, loss_price,
		is_blocked, is_online, role, messages, trades, version, created_at, updated_at
	FROM accounts`

// PostgresStore keeps one row per account. Balances are text columns and the
// owned trades and messages are JSONB arrays written together with them.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*model.Account, error) {
	row := s.pool.QueryRow(ctx, selectAccount+" WHERE id = $1", id)
	return scanAccount(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	row := s.pool.QueryRow(ctx, selectAccount+" WHERE email = $1", NormalizeEmail(email))
	return scanAccount(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*model.Account, error) {
	rows, err := s.pool.Query(ctx, selectAccount+" ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, apperr.Store("list accounts", err)
	}
	defer rows.Close()
	out := make([]*model.Account, 0, 16)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list accounts", err)
	}
	return out, nil
}

func (s *PostgresStore) Create(ctx context.Context, acc *model.Account) (*model.Account, error) {
	out := prepareNew(acc, time.Now().UTC())
	messages, trades, err := encodeCollections(out)
	if err != nil {
		return nil, err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, name, email, password_hash, avatar, capital_price, profit_price, loss_price,
			is_blocked, is_online, role, messages, trades, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, out.ID, out.Name, out.Email, out.PasswordHash, out.Avatar,
		ledger.FormatAmount(out.CapitalPrice), ledger.FormatAmount(out.ProfitPrice), ledger.FormatAmount(out.LossPrice),
		out.IsBlocked, out.IsOnline, string(out.Role), messages, trades, out.Version, out.CreatedAt, out.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("email already exists")
		}
		return nil, apperr.Store("create account", err)
	}
	return out, nil
}

func (s *PostgresStore) Save(ctx context.Context, acc *model.Account) (*model.Account, error) {
	out := acc.Clone()
	out.Email = NormalizeEmail(out.Email)
	messages, trades, err := encodeCollections(out)
	if err != nil {
		return nil, err
	}
	err = s.pool.QueryRow(ctx, `
		UPDATE accounts
		SET
			name = $3,
			email = $4,
			password_hash = $5,
			avatar = $6,
			capital_price = $7,
			profit_price = $8,
			loss_price = $9,
			is_blocked = $10,
			is_online = $11,
			role = $12,
			messages = $13,
			trades = $14,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`, out.ID, out.Version, out.Name, out.Email, out.PasswordHash, out.Avatar,
		ledger.FormatAmount(out.CapitalPrice), ledger.FormatAmount(out.ProfitPrice), ledger.FormatAmount(out.LossPrice),
		out.IsBlocked, out.IsOnline, string(out.Role), messages, trades,
	).Scan(&out.Version, &out.UpdatedAt)
	if err == nil {
		return out, nil
	}
	if isUniqueViolation(err) {
		return nil, apperr.Conflict("email already in use by another user")
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Store("save account", err)
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)", out.ID).Scan(&exists); err != nil {
		return nil, apperr.Store("save account", err)
	}
	if !exists {
		return nil, apperr.NotFound("user not found")
	}
	return nil, apperr.Conflict("account was modified concurrently")
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM accounts WHERE id = $1", id)
	if err != nil {
		return apperr.Store("delete account", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	var role, capital, profit, loss string
	var messages, trades []byte
	err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Avatar, &capital, &profit, &loss,
		&a.IsBlocked, &a.IsOnline, &role, &messages, &trades, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Store("load account", err)
	}
	a.Role = types.Role(role)
	if a.CapitalPrice, err = ledger.ParseAmount(capital); err != nil {
		return nil, apperr.Store("decode capital_price", err)
	}
	if a.ProfitPrice, err = ledger.ParseAmount(profit); err != nil {
		return nil, apperr.Store("decode profit_price", err)
	}
	if a.LossPrice, err = ledger.ParseAmount(loss); err != nil {
		return nil, apperr.Store("decode loss_price", err)
	}
	a.Messages = []model.Message{}
	a.Trades = []model.Trade{}
	if len(messages) > 0 {
		if err := json.Unmarshal(messages, &a.Messages); err != nil {
			return nil, apperr.Store("decode messages", err)
		}
	}
	if len(trades) > 0 {
		if err := json.Unmarshal(trades, &a.Trades); err != nil {
			return nil, apperr.Store("decode trades", err)
		}
	}
	return &a, nil
}

func encodeCollections(acc *model.Account) ([]byte, []byte, error) {
	if acc.Messages == nil {
		acc.Messages = []model.Message{}
	}
	if acc.Trades == nil {
		acc.Trades = []model.Trade{}
	}
	messages, err := json.Marshal(acc.Messages)
	if err != nil {
		return nil, nil, apperr.Store("encode messages", err)
	}
	trades, err := json.Marshal(acc.Trades)
	if err != nil {
		return nil, nil, apperr.Store("encode trades", err)
	}
	return messages, trades, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
