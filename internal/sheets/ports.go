// Package sheets defines the export port the backup service publishes
// summaries through, plus the Google Sheets adapter.
package sheets

import "context"

// BackupSummary is one exported-backup row.
type BackupSummary struct {
	ExportedAt   string
	Accounts     int
	Transactions int
	Recurrents   int
	History      int
	Positions    int
	Events       int
}

// BackupWriter records backup summaries in an external sheet. A nil
// writer disables the feature.
type BackupWriter interface {
	AppendBackupSummary(ctx context.Context, summary BackupSummary) error
}
