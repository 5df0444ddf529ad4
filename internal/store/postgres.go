package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/transactflow/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"

	constraintReference = "transactions_reference_number_key"
	constraintClientKey = "transactions_sender_client_key_key"
)

const accountColumns = "identity, balance, active, version, created_at, updated_at"

const transactionColumns = `id, reference_number, sender_identity, receiver_identity, amount, description, status,
	sender_balance_before, sender_balance_after, receiver_balance_before, receiver_balance_after,
	COALESCE(client_key, ''), request_hash, created_at`

// PostgresStore is the pgx-backed Store.
type PostgresStore struct {
	Db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresStore{Db: pool}, nil
}

func (s *PostgresStore) Close() {
	s.Db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.Db.Ping(ctx)
}

// GetAccount retrieves a single account by identity.
func (s *PostgresStore) GetAccount(ctx context.Context, identity string) (*domain.Account, error) {
	row := s.Db.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE identity = $1", identity)
	return scanAccount(row)
}

func (s *PostgresStore) CreateAccount(ctx context.Context, acc *domain.Account) error {
	err := s.Db.QueryRow(ctx,
		"INSERT INTO accounts (identity, balance, active) VALUES ($1, $2, $3) RETURNING version, created_at, updated_at",
		acc.Identity, numeric(acc.Balance), acc.Active,
	).Scan(&acc.Version, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("account insert failed: %w", err)
	}
	return nil
}

// FindByParticipant lists records newest first.
func (s *PostgresStore) FindByParticipant(ctx context.Context, identity string, role domain.Role) ([]domain.Transaction, error) {
	var where string
	switch role {
	case domain.RoleSender:
		where = "sender_identity = $1"
	case domain.RoleReceiver:
		where = "receiver_identity = $1"
	default:
		where = "sender_identity = $1 OR receiver_identity = $1"
	}

	rows, err := s.Db.Query(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE "+where+" ORDER BY created_at DESC, id DESC",
		identity)
	if err != nil {
		return nil, fmt.Errorf("ledger query failed: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger scan failed: %w", err)
	}
	return out, nil
}

// ExecTransfer runs fn inside one database transaction after acquiring row
// locks on both accounts in identity order (deadlock prevention).
func (s *PostgresStore) ExecTransfer(ctx context.Context, sender, receiver string, fn func(UnitOfWork) error) error {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	unit := &pgUnit{tx: tx, locked: make(map[string]*domain.Account)}
	for _, id := range lockOrder(sender, receiver) {
		acc, err := scanAccount(tx.QueryRow(ctx,
			"SELECT "+accountColumns+" FROM accounts WHERE identity = $1 FOR UPDATE", id))
		if errors.Is(err, domain.ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return classify(fmt.Errorf("lock acquisition failed: %w", err))
		}
		unit.locked[id] = acc
	}

	if err := fn(unit); err != nil {
		return classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("tx commit failed: %w", err))
	}
	return nil
}

type pgUnit struct {
	tx     pgx.Tx
	locked map[string]*domain.Account
}

func (u *pgUnit) Account(ctx context.Context, identity string) (*domain.Account, error) {
	if acc, ok := u.locked[identity]; ok {
		cp := *acc
		return &cp, nil
	}
	acc, err := scanAccount(u.tx.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE identity = $1 FOR UPDATE", identity))
	if err != nil {
		return nil, err
	}
	u.locked[identity] = acc
	cp := *acc
	return &cp, nil
}

func (u *pgUnit) SaveAccount(ctx context.Context, acc *domain.Account) error {
	var version int64
	err := u.tx.QueryRow(ctx,
		`UPDATE accounts SET balance = $1, active = $2, version = version + 1, updated_at = $3
		 WHERE identity = $4 AND version = $5 RETURNING version`,
		numeric(acc.Balance), acc.Active, acc.UpdatedAt, acc.Identity, acc.Version,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("account update failed: %w", err)
	}
	acc.Version = version
	cp := *acc
	u.locked[acc.Identity] = &cp
	return nil
}

func (u *pgUnit) ExistsByReference(ctx context.Context, ref string) (bool, error) {
	var exists bool
	err := u.tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM transactions WHERE reference_number = $1)", ref).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("reference lookup failed: %w", err)
	}
	return exists, nil
}

func (u *pgUnit) FindByClientKey(ctx context.Context, sender, key string) (*domain.Transaction, error) {
	txn, err := scanTransaction(u.tx.QueryRow(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE sender_identity = $1 AND client_key = $2", sender, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return txn, err
}

func (u *pgUnit) Append(ctx context.Context, txn *domain.Transaction) error {
	var key *string
	if txn.ClientKey != "" {
		key = &txn.ClientKey
	}
	err := u.tx.QueryRow(ctx,
		`INSERT INTO transactions (reference_number, sender_identity, receiver_identity, amount, description, status,
			sender_balance_before, sender_balance_after, receiver_balance_before, receiver_balance_after,
			client_key, request_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`,
		txn.ReferenceNumber, txn.SenderIdentity, txn.ReceiverIdentity, numeric(txn.Amount), txn.Description, string(txn.Status),
		numeric(txn.SenderBalanceBefore), numeric(txn.SenderBalanceAfter),
		numeric(txn.ReceiverBalanceBefore), numeric(txn.ReceiverBalanceAfter),
		key, txn.RequestHash, txn.CreatedAt,
	).Scan(&txn.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
			switch pgErr.ConstraintName {
			case constraintClientKey:
				return domain.ErrIdempotencyInProgress
			case constraintReference:
				return domain.ErrDuplicateTransaction
			}
		}
		return fmt.Errorf("transaction insert failed: %w", err)
	}
	return nil
}

// classify turns retryable Postgres failures into domain.ErrConflict.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.Message)
		}
	}
	return err
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var acc domain.Account
	var balance pgtype.Numeric
	err := row.Scan(&acc.Identity, &balance, &acc.Active, &acc.Version, &acc.CreatedAt, &acc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	acc.Balance = fromNumeric(balance)
	return &acc, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		txn                    domain.Transaction
		status                 string
		amount, sb, sa, rb, ra pgtype.Numeric
	)
	err := row.Scan(&txn.ID, &txn.ReferenceNumber, &txn.SenderIdentity, &txn.ReceiverIdentity, &amount,
		&txn.Description, &status, &sb, &sa, &rb, &ra, &txn.ClientKey, &txn.RequestHash, &txn.CreatedAt)
	if err != nil {
		return nil, err
	}
	txn.Status = domain.Status(status)
	txn.Amount = fromNumeric(amount)
	txn.SenderBalanceBefore = fromNumeric(sb)
	txn.SenderBalanceAfter = fromNumeric(sa)
	txn.ReceiverBalanceBefore = fromNumeric(rb)
	txn.ReceiverBalanceAfter = fromNumeric(ra)
	return &txn, nil
}

func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
