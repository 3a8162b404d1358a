package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldOperation     = "operation"
	FieldError         = "error"
	FieldErrorKind     = "error_kind"
	FieldUserID        = "user_id"
	FieldWalletID      = "wallet_id"
	FieldTransactionID = "transaction_id"
	FieldCategory      = "category"
	FieldDeltaCents    = "delta_cents"
	FieldBalanceCents  = "balance_cents"
	FieldExpectedCents = "expected_cents"
	FieldDriftCents    = "drift_cents"
	FieldCount         = "count"
	FieldBackend       = "backend"
	FieldEventID       = "event_id"
	FieldDuration      = "duration_ms"
	FieldSheetsRef     = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentLedger      = "ledger"
	ComponentWallet      = "wallet"
	ComponentTransaction = "transaction"
	ComponentCategory    = "category"
	ComponentStorage     = "storage"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentSheets      = "sheets"
	ComponentCache       = "cache"
	ComponentBackend     = "backend"
	ComponentCLI         = "cli"
)

// Operations defines standard operation names
const (
	OpCreate     = "create"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpList       = "list"
	OpAdjust     = "adjust"
	OpCompensate = "compensate"
	OpPublish    = "publish"
	OpAudit      = "audit"
	OpExport     = "export"
	OpSeed       = "seed"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithAdjustment adds the fields describing one balance adjustment.
func (f LogFields) WithAdjustment(walletID string, deltaCents, balanceCents int64) LogFields {
	f[FieldWalletID] = walletID
	f[FieldDeltaCents] = deltaCents
	f[FieldBalanceCents] = balanceCents
	return f
}

// WithTransaction adds transaction-related fields
func (f LogFields) WithTransaction(id, walletID, category string) LogFields {
	f[FieldTransactionID] = id
	f[FieldWalletID] = walletID
	f[FieldCategory] = category
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
