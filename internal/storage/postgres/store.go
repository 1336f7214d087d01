package postgres

// Package postgres provides a pgx-backed storage implementation that
// satisfies the repository and writer interfaces used by the services.
//
// It is intentionally small and explicit. Migrations that create the
// expected schema live under db/migrations. This package focuses on
// mapping between the domain entities and SQL rows and running the
// necessary statements and transactions.

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerhouse/ledgerhouse/internal/errs"
	"github.com/ledgerhouse/ledgerhouse/internal/ledger"
	"github.com/ledgerhouse/ledgerhouse/internal/meta"
	"github.com/ledgerhouse/ledgerhouse/internal/service/journal"
)

// Store holds a pgx connection pool and implements the read/write
// interfaces used across the service layer. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

const accountCols = `id, code, name, type, category, normal_side, currency, balance_minor, tags, metadata, system, allow_posting, active, created_at`

func scanAccount(row pgx.Row) (ledger.Account, error) {
	var a ledger.Account
	var mdBytes []byte
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Category, &a.NormalSide, &a.Currency,
		&a.BalanceMinor, &a.Tags, &mdBytes, &a.System, &a.AllowPosting, &a.Active, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Account{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.Account{}, err
	}
	if len(mdBytes) > 0 {
		var m meta.Metadata
		if err := m.UnmarshalJSON(mdBytes); err == nil {
			a.Metadata = m
		}
	}
	return a, nil
}

// --- Account reads ---

func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.pool.Query(ctx, `select `+accountCols+` from accounts order by code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAccount(ctx context.Context, accountID uuid.UUID) (ledger.Account, error) {
	row := s.pool.QueryRow(ctx, `select `+accountCols+` from accounts where id = $1`, accountID)
	return scanAccount(row)
}

func (s *Store) AccountByCode(ctx context.Context, code string) (ledger.Account, error) {
	row := s.pool.QueryRow(ctx, `select `+accountCols+` from accounts where upper(code) = upper($1)`, code)
	return scanAccount(row)
}

// AccountsByTagPrefix matches tags positionally: tags[1:n] = prefix.
func (s *Store) AccountsByTagPrefix(ctx context.Context, prefix []string) ([]ledger.Account, error) {
	rows, err := s.pool.Query(ctx, `
		select `+accountCols+`
		from accounts
		where cardinality(tags) >= cardinality($1::text[])
		  and tags[1:cardinality($1::text[])] = $1::text[]
		order by code
	`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) AccountsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ledger.Account, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]ledger.Account{}, nil
	}
	rows, err := s.pool.Query(ctx, `select `+accountCols+` from accounts where id = any($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID]ledger.Account)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

func (s *Store) AccountHasLines(ctx context.Context, accountID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`select exists(select 1 from voucher_lines where account_id = $1)`, accountID).Scan(&exists)
	return exists, err
}

// --- Account writes ---

func (s *Store) CreateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	md, _ := a.Metadata.MarshalStableJSON()
	_, err := s.pool.Exec(ctx, `
		insert into accounts (id, code, name, type, category, normal_side, currency, balance_minor, tags, tag_key, metadata, system, allow_posting, active, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, a.ID, a.Code, a.Name, a.Type, a.Category, a.NormalSide, a.Currency, a.BalanceMinor,
		a.Tags, nullableKey(a.TagKey()), md, a.System, a.AllowPosting, a.Active, a.CreatedAt)
	if isUniqueViolation(err) {
		return ledger.Account{}, errs.ErrDuplicateCode
	}
	if err != nil {
		return ledger.Account{}, err
	}
	return a, nil
}

func (s *Store) UpdateAccount(ctx context.Context, a ledger.Account) (ledger.Account, error) {
	md, _ := a.Metadata.MarshalStableJSON()
	// balance_minor is deliberately absent: ApplyBalance is its only writer.
	tag, err := s.pool.Exec(ctx, `
		update accounts
		set name = $2, category = $3, metadata = $4, allow_posting = $5, active = $6
		where id = $1
	`, a.ID, a.Name, a.Category, md, a.AllowPosting, a.Active)
	if err != nil {
		return ledger.Account{}, err
	}
	if tag.RowsAffected() == 0 {
		return ledger.Account{}, errs.ErrNotFound
	}
	return s.GetAccount(ctx, a.ID)
}

func (s *Store) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `delete from accounts where id = $1`, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// EnsureTaggedAccount inserts unless the tag key exists; the unique index
// on tag_key makes the check-and-create race-free across workers.
func (s *Store) EnsureTaggedAccount(ctx context.Context, a ledger.Account) (ledger.Account, bool, error) {
	md, _ := a.Metadata.MarshalStableJSON()
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		insert into accounts (id, code, name, type, category, normal_side, currency, balance_minor, tags, tag_key, metadata, system, allow_posting, active, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		on conflict (tag_key) do nothing
		returning id
	`, a.ID, a.Code, a.Name, a.Type, a.Category, a.NormalSide, a.Currency, a.BalanceMinor,
		a.Tags, a.TagKey(), md, a.System, a.AllowPosting, a.Active, a.CreatedAt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, lookupErr := s.accountByTagKey(ctx, a.TagKey())
		if lookupErr != nil {
			return ledger.Account{}, false, lookupErr
		}
		return existing, false, nil
	}
	if isUniqueViolation(err) {
		return ledger.Account{}, false, errs.ErrDuplicateCode
	}
	if err != nil {
		return ledger.Account{}, false, err
	}
	return a, true, nil
}

func (s *Store) accountByTagKey(ctx context.Context, key string) (ledger.Account, error) {
	row := s.pool.QueryRow(ctx, `select `+accountCols+` from accounts where tag_key = $1`, key)
	return scanAccount(row)
}

// ApplyBalance adds a signed delta with a single atomic update.
func (s *Store) ApplyBalance(ctx context.Context, accountID uuid.UUID, deltaMinor int64) error {
	tag, err := s.pool.Exec(ctx,
		`update accounts set balance_minor = balance_minor + $2 where id = $1`, accountID, deltaMinor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *Store) RepointLinks(ctx context.Context, fromAccountID, toAccountID uuid.UUID, toCode string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		update parties set account_id = $2, account_code = $3 where account_id = $1
	`, fromAccountID, toAccountID, toCode)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// --- Voucher reads ---

const voucherCols = `id, number, type, date, description, reference, currency, status, fiscal_year, fiscal_period, created_by, reversed_by, reversal_of, metadata, created_at, posted_at`

func scanVoucher(row pgx.Row) (ledger.Voucher, error) {
	var v ledger.Voucher
	var mdBytes []byte
	var reversedBy, reversalOf *uuid.UUID
	var postedAt *time.Time
	err := row.Scan(&v.ID, &v.Number, &v.Type, &v.Date, &v.Description, &v.Reference, &v.Currency,
		&v.Status, &v.FiscalYear, &v.FiscalPeriod, &v.CreatedBy, &reversedBy, &reversalOf,
		&mdBytes, &v.CreatedAt, &postedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Voucher{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.Voucher{}, err
	}
	if reversedBy != nil {
		v.ReversedBy = *reversedBy
	}
	if reversalOf != nil {
		v.ReversalOf = *reversalOf
	}
	v.PostedAt = postedAt
	if len(mdBytes) > 0 {
		var m meta.Metadata
		if err := m.UnmarshalJSON(mdBytes); err == nil {
			v.Metadata = m
		}
	}
	return v, nil
}

func (s *Store) loadLines(ctx context.Context, voucherIDs []uuid.UUID) (map[uuid.UUID][]ledger.VoucherLine, error) {
	if len(voucherIDs) == 0 {
		return map[uuid.UUID][]ledger.VoucherLine{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		select id, voucher_id, account_id, description, side, amount_minor, currency, department, project, cost_center
		from voucher_lines
		where voucher_id = any($1)
		order by voucher_id, id
	`, voucherIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uuid.UUID][]ledger.VoucherLine)
	for rows.Next() {
		var ln ledger.VoucherLine
		var amountMinor int64
		var currency string
		if err := rows.Scan(&ln.ID, &ln.VoucherID, &ln.AccountID, &ln.Description, &ln.Side,
			&amountMinor, &currency, &ln.Dimensions.Department, &ln.Dimensions.Project, &ln.Dimensions.CostCenter); err != nil {
			return nil, err
		}
		ln.Amount, _ = money.NewAmountFromMinorUnits(currency, amountMinor)
		out[ln.VoucherID] = append(out[ln.VoucherID], ln)
	}
	return out, rows.Err()
}

func (s *Store) GetVoucher(ctx context.Context, voucherID uuid.UUID) (ledger.Voucher, error) {
	v, err := scanVoucher(s.pool.QueryRow(ctx, `select `+voucherCols+` from vouchers where id = $1`, voucherID))
	if err != nil {
		return ledger.Voucher{}, err
	}
	lines, err := s.loadLines(ctx, []uuid.UUID{v.ID})
	if err != nil {
		return ledger.Voucher{}, err
	}
	v.Lines = lines[v.ID]
	return v, nil
}

func (s *Store) ListVouchers(ctx context.Context, f journal.Filter) ([]ledger.Voucher, error) {
	q := `select ` + voucherCols + ` from vouchers where 1=1`
	args := make([]any, 0, 4)
	if f.Type != nil {
		args = append(args, *f.Type)
		q += ` and type = $` + itoa(len(args))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		q += ` and status = $` + itoa(len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		q += ` and date >= $` + itoa(len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		q += ` and date <= $` + itoa(len(args))
	}
	if f.AccountID != uuid.Nil {
		args = append(args, f.AccountID)
		q += ` and id in (select voucher_id from voucher_lines where account_id = $` + itoa(len(args)) + `)`
	}
	q += ` order by date, created_at, number`
	return s.queryVouchers(ctx, q, args...)
}

func (s *Store) ListEffectiveVouchers(ctx context.Context) ([]ledger.Voucher, error) {
	return s.queryVouchers(ctx, `
		select `+voucherCols+` from vouchers
		where status in ('posted','reversed')
		order by date, created_at, number
	`)
}

func (s *Store) queryVouchers(ctx context.Context, q string, args ...any) ([]ledger.Voucher, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Voucher, 0)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		ids = append(ids, v.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	lines, err := s.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}

// --- Voucher writes ---

func (s *Store) CreateVoucher(ctx context.Context, v ledger.Voucher) (ledger.Voucher, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.Voucher{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	md, _ := v.Metadata.MarshalStableJSON()
	if _, err := tx.Exec(ctx, `
		insert into vouchers (id, number, type, date, description, reference, currency, status, fiscal_year, fiscal_period, created_by, reversal_of, metadata, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, v.ID, v.Number, v.Type, v.Date, v.Description, v.Reference, v.Currency, v.Status,
		v.FiscalYear, v.FiscalPeriod, v.CreatedBy, nilUUID(v.ReversalOf), md, v.CreatedAt); err != nil {
		return ledger.Voucher{}, err
	}
	for _, ln := range v.Lines {
		units, _ := ln.Amount.MinorUnits()
		if _, err := tx.Exec(ctx, `
			insert into voucher_lines (id, voucher_id, account_id, description, side, amount_minor, currency, department, project, cost_center)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, ln.ID, v.ID, ln.AccountID, ln.Description, ln.Side, units, ln.Amount.Curr().Code(),
			ln.Dimensions.Department, ln.Dimensions.Project, ln.Dimensions.CostCenter); err != nil {
			return ledger.Voucher{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.Voucher{}, err
	}
	return v, nil
}

// NextVoucherNumber bumps the per-(type, year) sequence row atomically;
// counting existing vouchers would hand out duplicates under concurrency.
func (s *Store) NextVoucherNumber(ctx context.Context, t ledger.VoucherType, fiscalYear int) (int, error) {
	var counter int
	err := s.pool.QueryRow(ctx, `
		insert into voucher_sequences (voucher_type, fiscal_year, counter)
		values ($1, $2, 1)
		on conflict (voucher_type, fiscal_year)
		do update set counter = voucher_sequences.counter + 1
		returning counter
	`, t, fiscalYear).Scan(&counter)
	return counter, err
}

// ApplyPosting runs the status transition and every balance increment in
// one transaction; the draft-only update doubles as a concurrency guard.
func (s *Store) ApplyPosting(ctx context.Context, voucherID uuid.UUID, at time.Time, deltas []journal.BalanceDelta) (ledger.Voucher, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.Voucher{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	tag, err := tx.Exec(ctx, `
		update vouchers set status = 'posted', posted_at = $2 where id = $1 and status = 'draft'
	`, voucherID, at)
	if err != nil {
		return ledger.Voucher{}, err
	}
	if tag.RowsAffected() == 0 {
		return ledger.Voucher{}, errs.ErrWrongStatus
	}
	for _, d := range deltas {
		tag, err := tx.Exec(ctx,
			`update accounts set balance_minor = balance_minor + $2 where id = $1`, d.AccountID, d.DeltaMinor)
		if err != nil {
			return ledger.Voucher{}, err
		}
		if tag.RowsAffected() == 0 {
			return ledger.Voucher{}, errs.ErrNotFound
		}
	}
	if err := tx.Commit(ctx); err != nil {
		if isSerializationFailure(err) {
			return ledger.Voucher{}, errs.ErrConcurrentUpdate
		}
		return ledger.Voucher{}, err
	}
	return s.GetVoucher(ctx, voucherID)
}

// ReverseVoucher claims the original with a posted-only update, inserts the
// offsetting voucher as posted and applies the balance deltas, all in one
// transaction. The claim doubles as the concurrency guard: a racing
// reversal updates zero rows and rolls back without touching balances.
func (s *Store) ReverseVoucher(ctx context.Context, originalID uuid.UUID, reversal ledger.Voucher, deltas []journal.BalanceDelta) (ledger.Voucher, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ledger.Voucher{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	tag, err := tx.Exec(ctx, `
		update vouchers set status = 'reversed', reversed_by = $2 where id = $1 and status = 'posted'
	`, originalID, reversal.ID)
	if err != nil {
		return ledger.Voucher{}, err
	}
	if tag.RowsAffected() == 0 {
		var status ledger.VoucherStatus
		err := tx.QueryRow(ctx, `select status from vouchers where id = $1`, originalID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ledger.Voucher{}, errs.ErrNotFound
		}
		if err != nil {
			return ledger.Voucher{}, err
		}
		if status == ledger.VoucherStatusReversed {
			return ledger.Voucher{}, errs.ErrAlreadyReversed
		}
		return ledger.Voucher{}, errs.ErrWrongStatus
	}
	md, _ := reversal.Metadata.MarshalStableJSON()
	if _, err := tx.Exec(ctx, `
		insert into vouchers (id, number, type, date, description, reference, currency, status, fiscal_year, fiscal_period, created_by, reversal_of, metadata, created_at, posted_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, reversal.ID, reversal.Number, reversal.Type, reversal.Date, reversal.Description, reversal.Reference,
		reversal.Currency, reversal.Status, reversal.FiscalYear, reversal.FiscalPeriod, reversal.CreatedBy,
		nilUUID(reversal.ReversalOf), md, reversal.CreatedAt, reversal.PostedAt); err != nil {
		return ledger.Voucher{}, err
	}
	for _, ln := range reversal.Lines {
		units, _ := ln.Amount.MinorUnits()
		if _, err := tx.Exec(ctx, `
			insert into voucher_lines (id, voucher_id, account_id, description, side, amount_minor, currency, department, project, cost_center)
			values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, ln.ID, reversal.ID, ln.AccountID, ln.Description, ln.Side, units, ln.Amount.Curr().Code(),
			ln.Dimensions.Department, ln.Dimensions.Project, ln.Dimensions.CostCenter); err != nil {
			return ledger.Voucher{}, err
		}
	}
	for _, d := range deltas {
		tag, err := tx.Exec(ctx,
			`update accounts set balance_minor = balance_minor + $2 where id = $1`, d.AccountID, d.DeltaMinor)
		if err != nil {
			return ledger.Voucher{}, err
		}
		if tag.RowsAffected() == 0 {
			return ledger.Voucher{}, errs.ErrNotFound
		}
	}
	if err := tx.Commit(ctx); err != nil {
		if isSerializationFailure(err) {
			return ledger.Voucher{}, errs.ErrConcurrentUpdate
		}
		return ledger.Voucher{}, err
	}
	return s.GetVoucher(ctx, reversal.ID)
}

func (s *Store) CancelVoucher(ctx context.Context, voucherID uuid.UUID) (ledger.Voucher, error) {
	tag, err := s.pool.Exec(ctx, `
		update vouchers set status = 'cancelled' where id = $1 and status = 'draft'
	`, voucherID)
	if err != nil {
		return ledger.Voucher{}, err
	}
	if tag.RowsAffected() == 0 {
		return ledger.Voucher{}, errs.ErrWrongStatus
	}
	return s.GetVoucher(ctx, voucherID)
}

// --- Party reads/writes ---

const partyCols = `id, kind, code, display_name, account_id, account_code, auto_create, active, created_at`

func scanParty(row pgx.Row) (ledger.Party, error) {
	var p ledger.Party
	var accountID *uuid.UUID
	err := row.Scan(&p.ID, &p.Kind, &p.Code, &p.DisplayName, &accountID, &p.Link.AccountCode,
		&p.Link.AutoCreate, &p.Active, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Party{}, errs.ErrNotFound
	}
	if err != nil {
		return ledger.Party{}, err
	}
	if accountID != nil {
		p.Link.AccountID = *accountID
	}
	return p, nil
}

func (s *Store) ListParties(ctx context.Context, kind *ledger.PartyKind) ([]ledger.Party, error) {
	q := `select ` + partyCols + ` from parties`
	args := make([]any, 0, 1)
	if kind != nil {
		args = append(args, *kind)
		q += ` where kind = $1`
	}
	q += ` order by code`
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ledger.Party, 0)
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetParty(ctx context.Context, partyID uuid.UUID) (ledger.Party, error) {
	return scanParty(s.pool.QueryRow(ctx, `select `+partyCols+` from parties where id = $1`, partyID))
}

func (s *Store) PartyByCode(ctx context.Context, kind ledger.PartyKind, code string) (ledger.Party, error) {
	return scanParty(s.pool.QueryRow(ctx,
		`select `+partyCols+` from parties where kind = $1 and upper(code) = upper($2)`, kind, code))
}

func (s *Store) CreateParty(ctx context.Context, p ledger.Party) (ledger.Party, error) {
	_, err := s.pool.Exec(ctx, `
		insert into parties (id, kind, code, display_name, account_id, account_code, auto_create, active, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, p.ID, p.Kind, p.Code, p.DisplayName, nilUUID(p.Link.AccountID), p.Link.AccountCode,
		p.Link.AutoCreate, p.Active, p.CreatedAt)
	if isUniqueViolation(err) {
		return ledger.Party{}, errs.ErrDuplicateCode
	}
	if err != nil {
		return ledger.Party{}, err
	}
	return p, nil
}

func (s *Store) UpdateParty(ctx context.Context, p ledger.Party) (ledger.Party, error) {
	tag, err := s.pool.Exec(ctx, `
		update parties set display_name = $2, account_id = $3, account_code = $4, auto_create = $5, active = $6
		where id = $1
	`, p.ID, p.DisplayName, nilUUID(p.Link.AccountID), p.Link.AccountCode, p.Link.AutoCreate, p.Active)
	if err != nil {
		return ledger.Party{}, err
	}
	if tag.RowsAffected() == 0 {
		return ledger.Party{}, errs.ErrNotFound
	}
	return s.GetParty(ctx, p.ID)
}

// --- Idempotency ---

func (s *Store) GetVoucherByIdempotencyKey(ctx context.Context, key string) (ledger.Voucher, bool, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `select voucher_id from voucher_idempotency where key = $1`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Voucher{}, false, nil
	}
	if err != nil {
		return ledger.Voucher{}, false, err
	}
	v, err := s.GetVoucher(ctx, id)
	if err != nil {
		return ledger.Voucher{}, false, err
	}
	return v, true, nil
}

func (s *Store) SaveIdempotencyKey(ctx context.Context, key string, voucherID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		insert into voucher_idempotency (key, voucher_id) values ($1, $2)
		on conflict (key) do nothing
	`, key, voucherID)
	return err
}

// SeedDev installs a minimal chart of accounts for local testing.
func (s *Store) SeedDev(ctx context.Context, currency string) ([]ledger.Account, error) {
	now := time.Now().UTC()
	accs := []ledger.Account{
		{ID: uuid.New(), Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset, Category: "cash", NormalSide: ledger.SideDebit, Currency: currency, AllowPosting: true, Active: true, CreatedAt: now},
		{ID: uuid.New(), Code: "3000", Name: "Opening Balances", Type: ledger.AccountTypeEquity, Category: "opening_balances", NormalSide: ledger.SideCredit, Currency: currency, System: true, AllowPosting: true, Active: true, CreatedAt: now},
		{ID: uuid.New(), Code: "4000", Name: "Sales Revenue", Type: ledger.AccountTypeRevenue, Category: "operating_revenue", NormalSide: ledger.SideCredit, Currency: currency, AllowPosting: true, Active: true, CreatedAt: now},
		{ID: uuid.New(), Code: "5000", Name: "Salaries Expense", Type: ledger.AccountTypeExpense, Category: "payroll", NormalSide: ledger.SideDebit, Currency: currency, AllowPosting: true, Active: true, CreatedAt: now},
	}
	for _, a := range accs {
		if _, err := s.CreateAccount(ctx, a); err != nil && !errors.Is(err, errs.ErrDuplicateCode) {
			return nil, err
		}
	}
	return accs, nil
}

// --- helpers ---

func nullableKey(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}

func nilUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

func itoa(n int) string { return strconv.Itoa(n) }
