package backfill

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/reflexo/clinic/internal/domain/tenant"
	"github.com/reflexo/clinic/internal/platform/db"
	"github.com/reflexo/clinic/internal/platform/tenancy"
)

// Tables backfill tools may operate on. The table name reaches SQL verbatim,
// so anything user-supplied is checked against this set first.
var scopedTables = map[string]bool{
	"patients":             true,
	"therapists":           true,
	"histories":            true,
	"appointments":         true,
	"medical_records":      true,
	"predetermined_prices": true,
}

// Parent relations for tenant propagation: child rows inherit the tenant of
// the row their foreign key points at.
var parentRelations = map[string]struct {
	parent string
	fk     string
}{
	"appointments":    {parent: "patients", fk: "patient_id"},
	"histories":       {parent: "patients", fk: "patient_id"},
	"medical_records": {parent: "patients", fk: "patient_id"},
	"tickets":         {parent: "appointments", fk: "appointment_id"},
}

const sampleLimit = 50

// Runner executes the one-off data repair passes exposed by the CLI. Every
// pass runs per tenant in its own transaction; --dry-run swaps the commit for
// a rollback so the reported counts come from real work against real data.
type Runner struct {
	pool    *pgxpool.Pool
	tenants tenant.Repository
	log     zerolog.Logger
}

func NewRunner(pool *pgxpool.Pool, tenants tenant.Repository, log zerolog.Logger) *Runner {
	return &Runner{pool: pool, tenants: tenants, log: log}
}

func validTable(table string) error {
	if !scopedTables[table] {
		return fmt.Errorf("table %q is not tenant-scoped", table)
	}
	return nil
}

func (r *Runner) run(ctx context.Context, dryRun bool, fn func(ctx context.Context) error) error {
	if dryRun {
		return db.WithRollback(ctx, r.pool, fn)
	}
	return db.WithTx(ctx, r.pool, fn)
}

// AssignTenantResult reports an orphan adoption pass.
type AssignTenantResult struct {
	Table    string  `json:"table"`
	TenantID int64   `json:"tenant_id"`
	Assigned int64   `json:"assigned"`
	Sample   []int64 `json:"sample,omitempty"`
	DryRun   bool    `json:"dry_run"`
}

// AssignTenant adopts a table's null-tenant rows into the given tenant. The
// tenant must exist; orphan adoption into a typo would be worse than leaving
// the rows orphaned. The result carries a sample of affected row ids so a dry
// run shows what would move.
func (r *Runner) AssignTenant(ctx context.Context, table string, tenantID int64, dryRun bool) (*AssignTenantResult, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}
	if _, err := r.tenants.GetByID(ctx, tenantID); err != nil {
		if errors.Is(err, tenancy.ErrNotFound) {
			return nil, fmt.Errorf("tenant %d does not exist", tenantID)
		}
		return nil, err
	}

	res := &AssignTenantResult{Table: table, TenantID: tenantID, DryRun: dryRun}
	err := r.run(ctx, dryRun, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)

		rows, err := tx.Query(ctx,
			fmt.Sprintf(`SELECT id FROM %s WHERE tenant_id IS NULL ORDER BY id LIMIT %d`, table, sampleLimit))
		if err != nil {
			return fmt.Errorf("sample orphan rows: %w", err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			res.Sample = append(res.Sample, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET tenant_id = $1 WHERE tenant_id IS NULL`, table), tenantID)
		if err != nil {
			return fmt.Errorf("assign tenant: %w", err)
		}
		res.Assigned = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().Str("table", table).Int64("tenant_id", tenantID).
		Int64("assigned", res.Assigned).Bool("dry_run", dryRun).
		Msg("tenant backfill pass complete")
	return res, nil
}

// CopyTenantResult reports a parent-propagation pass.
type CopyTenantResult struct {
	Table   string `json:"table"`
	Updated int64  `json:"updated"`
	DryRun  bool   `json:"dry_run"`
}

// CopyTenantFromParent fills a child table's null tenants from the parent row
// each child references. Children whose parent is itself tenantless are left
// alone for a later AssignTenant pass.
func (r *Runner) CopyTenantFromParent(ctx context.Context, table string, dryRun bool) (*CopyTenantResult, error) {
	rel, ok := parentRelations[table]
	if !ok {
		return nil, fmt.Errorf("table %q has no parent relation to copy from", table)
	}

	res := &CopyTenantResult{Table: table, DryRun: dryRun}
	err := r.run(ctx, dryRun, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)
		tag, err := tx.Exec(ctx, fmt.Sprintf(
			`UPDATE %[1]s c SET tenant_id = p.tenant_id
			 FROM %[2]s p
			 WHERE c.%[3]s = p.id AND c.tenant_id IS NULL AND p.tenant_id IS NOT NULL`,
			table, rel.parent, rel.fk))
		if err != nil {
			return fmt.Errorf("copy tenant from %s: %w", rel.parent, err)
		}
		res.Updated = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().Str("table", table).Str("parent", rel.parent).
		Int64("updated", res.Updated).Bool("dry_run", dryRun).
		Msg("parent tenant propagation complete")
	return res, nil
}

// tenantList resolves which tenants a pass covers: the explicit one, or every
// tenant owning rows in the table.
func (r *Runner) tenantList(ctx context.Context, table string, tenantID *int64) ([]int64, error) {
	if tenantID != nil {
		if _, err := r.tenants.GetByID(ctx, *tenantID); err != nil {
			if errors.Is(err, tenancy.ErrNotFound) {
				return nil, fmt.Errorf("tenant %d does not exist", *tenantID)
			}
			return nil, err
		}
		return []int64{*tenantID}, nil
	}
	return r.tenants.TenantIDs(ctx, table)
}

// FillLocalIDs renumbers a table's per-tenant local ids. With onlyMissing it
// fills null local ids past the current maximum; otherwise it rewrites the
// whole tenant to a dense 1..N sequence. Each tenant is one transaction, so a
// failure mid-run leaves earlier tenants committed and later ones untouched.
func (r *Runner) FillLocalIDs(ctx context.Context, table string, tenantID *int64, onlyMissing, dryRun bool) ([]tenancy.RenumberResult, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}
	tenants, err := r.tenantList(ctx, table, tenantID)
	if err != nil {
		return nil, err
	}

	var results []tenancy.RenumberResult
	for _, tid := range tenants {
		var res tenancy.RenumberResult
		err := r.run(ctx, dryRun, func(ctx context.Context) error {
			var err error
			res, err = tenancy.RenumberLocalIDs(ctx, db.TxFromContext(ctx), table, tid, onlyMissing)
			return err
		})
		if err != nil {
			return results, fmt.Errorf("tenant %d: %w", tid, err)
		}
		results = append(results, res)
		r.log.Info().Str("table", table).Int64("tenant_id", tid).
			Int("examined", res.Examined).Int("updated", res.Updated).Int("skipped", res.Skipped).
			Bool("only_missing", onlyMissing).Bool("dry_run", dryRun).
			Msg("local id backfill pass complete")
	}
	return results, nil
}

// RenumberTicketNumbers rewrites each tenant's ticket numbers to a dense
// TKT-NNN sequence in creation order.
func (r *Runner) RenumberTicketNumbers(ctx context.Context, tenantID *int64, dryRun bool) ([]tenancy.RenumberResult, error) {
	tenants, err := r.tenantList(ctx, "tickets", tenantID)
	if err != nil {
		return nil, err
	}

	var results []tenancy.RenumberResult
	for _, tid := range tenants {
		var res tenancy.RenumberResult
		err := r.run(ctx, dryRun, func(ctx context.Context) error {
			var err error
			res, err = tenancy.RenumberTickets(ctx, db.TxFromContext(ctx), tid)
			return err
		})
		if err != nil {
			return results, fmt.Errorf("tenant %d: %w", tid, err)
		}
		results = append(results, res)
		r.log.Info().Int64("tenant_id", tid).
			Int("examined", res.Examined).Int("updated", res.Updated).Int("skipped", res.Skipped).
			Bool("dry_run", dryRun).
			Msg("ticket renumber pass complete")
	}
	return results, nil
}
