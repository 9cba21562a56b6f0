package log

// Common structured-log field names. Keeping them as constants avoids
// drift between the server, the refresh pipeline and the export worker.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldSnapshotID  = "snapshot_id"
	FieldEntity      = "entity"
	FieldWalletCount = "wallet_count"
	FieldDuration    = "duration"
	FieldError       = "error"
)
