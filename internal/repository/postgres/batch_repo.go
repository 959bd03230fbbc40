// Package postgres persists batch results for run history. The sink is
// optional: the pipeline's primary outputs are the tabular files.
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"fapiao/internal/domain"
)

// BatchRepo stores batch runs and their invoice records. It implements
// port.RecordSink.
type BatchRepo struct {
	db *sqlx.DB
}

func NewBatchRepo(db *sqlx.DB) *BatchRepo {
	return &BatchRepo{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS batch_runs (
	id UUID PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	record_count INT NOT NULL,
	failure_count INT NOT NULL
);
CREATE TABLE IF NOT EXISTS invoice_records (
	run_id UUID NOT NULL REFERENCES batch_runs(id) ON DELETE CASCADE,
	source_path TEXT NOT NULL,
	display_name TEXT NOT NULL,
	buyer_name TEXT,
	buyer_tax_id TEXT,
	seller_name TEXT,
	seller_tax_id TEXT,
	invoice_code TEXT,
	invoice_number TEXT,
	check_code TEXT,
	invoice_date TEXT,
	total_amount NUMERIC(12,2),
	amount_excl_tax NUMERIC(12,2),
	tax_rate NUMERIC(5,4),
	quality_flags TEXT,
	PRIMARY KEY (run_id, source_path)
);
CREATE TABLE IF NOT EXISTS document_failures (
	run_id UUID NOT NULL REFERENCES batch_runs(id) ON DELETE CASCADE,
	source_path TEXT NOT NULL,
	stage TEXT NOT NULL,
	kind TEXT NOT NULL,
	message TEXT NOT NULL,
	PRIMARY KEY (run_id, source_path)
);`

// EnsureSchema creates the sink tables when missing. The schema is a fixed
// pair of append-only tables, managed inline rather than through migrations.
func (r *BatchRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

// recordRow mirrors invoice_records for named inserts.
type recordRow struct {
	RunID         string   `db:"run_id"`
	SourcePath    string   `db:"source_path"`
	DisplayName   string   `db:"display_name"`
	BuyerName     *string  `db:"buyer_name"`
	BuyerTaxID    *string  `db:"buyer_tax_id"`
	SellerName    *string  `db:"seller_name"`
	SellerTaxID   *string  `db:"seller_tax_id"`
	InvoiceCode   *string  `db:"invoice_code"`
	InvoiceNumber *string  `db:"invoice_number"`
	CheckCode     *string  `db:"check_code"`
	InvoiceDate   *string  `db:"invoice_date"`
	TotalAmount   *float64 `db:"total_amount"`
	AmountExclTax *float64 `db:"amount_excl_tax"`
	TaxRate       *float64 `db:"tax_rate"`
	QualityFlags  string   `db:"quality_flags"`
}

// WriteBatch implements port.RecordSink: the run header, all records, and all
// failures are written in one transaction.
func (r *BatchRepo) WriteBatch(ctx context.Context, result *domain.BatchResult) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batch_runs (id, started_at, finished_at, record_count, failure_count)
		 VALUES ($1, $2, $3, $4, $5)`,
		result.RunID, result.StartedAt, result.FinishedAt, len(result.Records), len(result.Failures))
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", result.RunID, err)
	}

	for i := range result.Records {
		rec := &result.Records[i]
		row := recordRow{
			RunID:         result.RunID.String(),
			SourcePath:    rec.SourcePath,
			DisplayName:   rec.DisplayName,
			BuyerName:     rec.BuyerName,
			BuyerTaxID:    rec.BuyerTaxID,
			SellerName:    rec.SellerName,
			SellerTaxID:   rec.SellerTaxID,
			InvoiceCode:   rec.InvoiceCode,
			InvoiceNumber: rec.InvoiceNumber,
			CheckCode:     rec.CheckCode,
			InvoiceDate:   rec.InvoiceDate,
			TotalAmount:   rec.TotalAmount,
			AmountExclTax: rec.AmountExclTax,
			TaxRate:       rec.TaxRate,
			QualityFlags:  joinFlags(rec.QualityFlags),
		}
		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO invoice_records (
				run_id, source_path, display_name, buyer_name, buyer_tax_id,
				seller_name, seller_tax_id, invoice_code, invoice_number,
				check_code, invoice_date, total_amount, amount_excl_tax,
				tax_rate, quality_flags
			) VALUES (
				:run_id, :source_path, :display_name, :buyer_name, :buyer_tax_id,
				:seller_name, :seller_tax_id, :invoice_code, :invoice_number,
				:check_code, :invoice_date, :total_amount, :amount_excl_tax,
				:tax_rate, :quality_flags
			)`, row)
		if err != nil {
			return fmt.Errorf("inserting record %s: %w", rec.SourcePath, err)
		}
	}

	for _, fail := range result.Failures {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO document_failures (run_id, source_path, stage, kind, message)
			 VALUES ($1, $2, $3, $4, $5)`,
			result.RunID, fail.SourcePath, fail.Stage, fail.Kind, fail.Message)
		if err != nil {
			return fmt.Errorf("inserting failure %s: %w", fail.SourcePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run %s: %w", result.RunID, err)
	}
	return nil
}

func joinFlags(flags []domain.QualityFlag) string {
	out := ""
	for i, f := range flags {
		if i > 0 {
			out += ";"
		}
		out += string(f)
	}
	return out
}
