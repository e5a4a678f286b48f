package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldAccountID   = "account_id"
	FieldTxID        = "transaction_id"
	FieldRecurrentID = "recurrent_id"
	FieldPositionID  = "position_id"
	FieldEventID     = "event_id"
	FieldAmountCents = "amount_cents"
	FieldDeltaCents  = "delta_cents"
	FieldBalance     = "balance_cents"
	FieldMonth       = "month"
	FieldCollection  = "collection"
	FieldCount       = "count"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentStore        = "store"
	ComponentLedger       = "ledger"
	ComponentTransactions = "transactions"
	ComponentRecurrents   = "recurrents"
	ComponentInvestments  = "investments"
	ComponentBackup       = "backup"
	ComponentAlerts       = "alerts"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentSheets       = "sheets"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpList      = "list"
	OpAdjust    = "adjust"
	OpRecompute = "recompute"
	OpValidate  = "validate"
	OpExport    = "export"
	OpImport    = "import"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)
