package domain

// FieldKey names one slot of the fixed invoice schema.
type FieldKey string

const (
	FieldBuyerName     FieldKey = "buyer_name"
	FieldBuyerTaxID    FieldKey = "buyer_tax_id"
	FieldSellerName    FieldKey = "seller_name"
	FieldSellerTaxID   FieldKey = "seller_tax_id"
	FieldInvoiceCode   FieldKey = "invoice_code"
	FieldInvoiceNumber FieldKey = "invoice_number"
	FieldCheckCode     FieldKey = "check_code"
	FieldInvoiceDate   FieldKey = "invoice_date"
	FieldTotalAmount   FieldKey = "total_amount"
	FieldAmountExclTax FieldKey = "amount_excl_tax"
	FieldTaxRate       FieldKey = "tax_rate"
)

// AllFields lists every schema field in stable output order.
func AllFields() []FieldKey {
	return []FieldKey{
		FieldBuyerName,
		FieldBuyerTaxID,
		FieldSellerName,
		FieldSellerTaxID,
		FieldInvoiceCode,
		FieldInvoiceNumber,
		FieldCheckCode,
		FieldInvoiceDate,
		FieldTotalAmount,
		FieldAmountExclTax,
		FieldTaxRate,
	}
}

// DocumentStage is the per-document pipeline state.
type DocumentStage string

const (
	StagePending     DocumentStage = "pending"
	StageRasterizing DocumentStage = "rasterizing"
	StageRecognizing DocumentStage = "recognizing"
	StageExtracting  DocumentStage = "extracting"
	StageAssembled   DocumentStage = "assembled"
	StageFailed      DocumentStage = "failed"
)

// FailureKind classifies a per-document failure.
type FailureKind string

const (
	FailureRasterization FailureKind = "rasterization"
	FailureRecognition   FailureKind = "recognition"
	FailureExtraction    FailureKind = "extraction"
	FailureTimeout       FailureKind = "timeout"
	FailureCanceled      FailureKind = "canceled"
)

// QualityFlag is a non-fatal data-quality signal attached to a record.
type QualityFlag string

const (
	QualityAmountMismatch   QualityFlag = "amount_mismatch"
	QualityDuplicateNumber  QualityFlag = "duplicate_invoice_number"
	QualityNoTextRecognized QualityFlag = "no_text_recognized"
)
