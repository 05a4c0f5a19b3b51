package tenancy

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Queryable is the subset of pgx execution methods the allocator needs. Both
// *pgxpool.Pool and pgx.Tx satisfy it; allocation must run on the same
// transaction as the insert it numbers.
type Queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// lockSequence takes a transaction-scoped advisory lock keyed on
// (table, tenant). MAX-based allocation needs the lock even when the tenant
// has zero rows, which is exactly the case row locks cannot cover: two first
// inserts for a tenant would otherwise both compute 1. The lock is released
// at commit or rollback, so concurrent writers for the same tenant serialize
// here while different tenants never block each other.
func lockSequence(ctx context.Context, q Queryable, table string, tenantID int64) error {
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), $2::int)`, table, tenantID); err != nil {
		return fmt.Errorf("lock %s sequence for tenant %d: %w", table, tenantID, err)
	}
	return nil
}

// NextLocalID reserves the next per-tenant local id for table. It must be
// called inside the transaction that performs the insert. Soft-deleted rows
// still count toward the max: a freed number is never reused.
func NextLocalID(ctx context.Context, q Queryable, table string, tenantID int64) (int64, error) {
	if err := lockSequence(ctx, q, table, tenantID); err != nil {
		return 0, err
	}

	var max int64
	query := fmt.Sprintf(`SELECT COALESCE(MAX(local_id), 0) FROM %s WHERE tenant_id = $1`, table)
	if err := q.QueryRow(ctx, query, tenantID).Scan(&max); err != nil {
		return 0, fmt.Errorf("max local_id for %s tenant %d: %w", table, tenantID, err)
	}
	return max + 1, nil
}

var ticketNumberPattern = regexp.MustCompile(`^TKT-(\d+)$`)

// FormatTicketNumber renders a ticket sequence value as TKT-NNN.
func FormatTicketNumber(n int64) string {
	return fmt.Sprintf("TKT-%03d", n)
}

// ParseTicketNumber extracts the sequence value from a TKT-NNN string.
func ParseTicketNumber(s string) (int64, bool) {
	m := ticketNumberPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// NextTicketNumber reserves the next ticket number for the tenant, under the
// same lock discipline as NextLocalID. The most recently created ticket's
// number is parsed and incremented; an unparsable or absent number starts the
// sequence at 1.
func NextTicketNumber(ctx context.Context, q Queryable, tenantID int64) (string, error) {
	if err := lockSequence(ctx, q, "tickets", tenantID); err != nil {
		return "", err
	}

	var last string
	err := q.QueryRow(ctx,
		`SELECT ticket_number FROM tickets WHERE tenant_id = $1 ORDER BY id DESC LIMIT 1`,
		tenantID).Scan(&last)
	if err != nil {
		if err == pgx.ErrNoRows {
			return FormatTicketNumber(1), nil
		}
		return "", fmt.Errorf("last ticket number for tenant %d: %w", tenantID, err)
	}

	n, ok := ParseTicketNumber(last)
	if !ok {
		return FormatTicketNumber(1), nil
	}
	return FormatTicketNumber(n + 1), nil
}

// RenumberResult reports what a renumbering pass did for one tenant.
type RenumberResult struct {
	TenantID int64
	Examined int
	Updated  int
	Skipped  int
	// Sequence is the final sequence length after the pass.
	Sequence int64
}

// RenumberLocalIDs assigns dense local ids 1..N to a tenant's active rows in
// (created_at, id) order, writing only rows whose stored value differs. In
// only-missing mode existing numbers are left untouched and null rows are
// filled from MAX(local_id)+1 onward, so the pass can never collide with an
// already-assigned number.
func RenumberLocalIDs(ctx context.Context, q Queryable, table string, tenantID int64, onlyMissing bool) (RenumberResult, error) {
	res := RenumberResult{TenantID: tenantID}

	if err := lockSequence(ctx, q, table, tenantID); err != nil {
		return res, err
	}

	var seq int64
	if onlyMissing {
		query := fmt.Sprintf(`SELECT COALESCE(MAX(local_id), 0) FROM %s WHERE tenant_id = $1`, table)
		if err := q.QueryRow(ctx, query, tenantID).Scan(&seq); err != nil {
			return res, fmt.Errorf("max local_id for %s tenant %d: %w", table, tenantID, err)
		}
	}

	query := fmt.Sprintf(
		`SELECT id, local_id FROM %s WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at, id`,
		table)
	rows, err := q.Query(ctx, query, tenantID)
	if err != nil {
		return res, fmt.Errorf("list %s rows for tenant %d: %w", table, tenantID, err)
	}

	type rowRef struct {
		id      int64
		localID *int64
	}
	var refs []rowRef
	for rows.Next() {
		var rr rowRef
		if err := rows.Scan(&rr.id, &rr.localID); err != nil {
			rows.Close()
			return res, fmt.Errorf("scan %s row: %w", table, err)
		}
		refs = append(refs, rr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return res, fmt.Errorf("iterate %s rows: %w", table, err)
	}

	type change struct{ id, want int64 }
	var changes []change
	for _, rr := range refs {
		res.Examined++
		if onlyMissing && rr.localID != nil {
			res.Skipped++
			continue
		}
		seq++
		if rr.localID != nil && *rr.localID == seq {
			continue
		}
		changes = append(changes, change{id: rr.id, want: seq})
	}
	res.Sequence = seq

	// The unique index checks every statement immediately, so a full rewrite
	// must clear the numbers being moved before reassigning them: a row
	// targeted at 1 would otherwise collide with whichever row still holds 1.
	// Nulled rows fall out of the partial index. Only-missing fills start past
	// the tenant's maximum and cannot collide.
	if !onlyMissing {
		clearStmt := fmt.Sprintf(`UPDATE %s SET local_id = NULL WHERE id = $1`, table)
		for _, ch := range changes {
			if _, err := q.Exec(ctx, clearStmt, ch.id); err != nil {
				return res, fmt.Errorf("clear local_id on %s id %d: %w", table, ch.id, err)
			}
		}
	}

	update := fmt.Sprintf(`UPDATE %s SET local_id = $2 WHERE id = $1`, table)
	for _, ch := range changes {
		if _, err := q.Exec(ctx, update, ch.id, ch.want); err != nil {
			return res, fmt.Errorf("set local_id on %s id %d: %w", table, ch.id, err)
		}
		res.Updated++
	}
	return res, nil
}

// RenumberTickets assigns dense TKT-NNN numbers to a tenant's tickets in
// (created_at, id) order. A computed number already held by a different
// ticket of the same tenant is skipped and counted rather than overwritten;
// processing strictly in order should make that impossible, but the guard
// keeps a bad state from getting worse.
func RenumberTickets(ctx context.Context, q Queryable, tenantID int64) (RenumberResult, error) {
	res := RenumberResult{TenantID: tenantID}

	if err := lockSequence(ctx, q, "tickets", tenantID); err != nil {
		return res, err
	}

	rows, err := q.Query(ctx,
		`SELECT id, ticket_number FROM tickets WHERE tenant_id = $1 ORDER BY created_at, id`,
		tenantID)
	if err != nil {
		return res, fmt.Errorf("list tickets for tenant %d: %w", tenantID, err)
	}

	type ticketRef struct {
		id     int64
		number string
	}
	var refs []ticketRef
	for rows.Next() {
		var tr ticketRef
		if err := rows.Scan(&tr.id, &tr.number); err != nil {
			rows.Close()
			return res, fmt.Errorf("scan ticket row: %w", err)
		}
		refs = append(refs, tr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return res, fmt.Errorf("iterate ticket rows: %w", err)
	}

	for _, tr := range refs {
		res.Examined++
		res.Sequence++
		want := FormatTicketNumber(res.Sequence)
		if tr.number == want {
			continue
		}

		var clash bool
		if err := q.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM tickets WHERE tenant_id = $1 AND ticket_number = $2 AND id <> $3)`,
			tenantID, want, tr.id).Scan(&clash); err != nil {
			return res, fmt.Errorf("check ticket number clash: %w", err)
		}
		if clash {
			res.Skipped++
			continue
		}

		if _, err := q.Exec(ctx, `UPDATE tickets SET ticket_number = $2 WHERE id = $1`, tr.id, want); err != nil {
			return res, fmt.Errorf("set ticket number on id %d: %w", tr.id, err)
		}
		res.Updated++
	}
	return res, nil
}
