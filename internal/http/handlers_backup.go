package http

import (
	"io"
	"net/http"

	"financeiro/internal/services"
)

func (s *Server) handleBackupExport(w http.ResponseWriter, r *http.Request) {
	raw, err := s.backup.Export(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="financeiro-backup.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// handleBackupImport restores a posted backup file. Validation failures
// leave the store untouched.
func (s *Server) handleBackupImport(w http.ResponseWriter, r *http.Request) {
	const maxBackupSize = 32 << 20 // 32 MiB
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBackupSize))
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := services.ParseBackup(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.backup.Replace(r.Context(), snap); err != nil {
		writeError(w, r, err)
		return
	}
	s.invoiceCache.Purge()
	writeJSON(w, http.StatusOK, map[string]int{
		"accounts":     len(snap.Accounts),
		"transactions": len(snap.Transactions),
		"recurrents":   len(snap.Recurrents),
		"history":      len(snap.History),
		"positions":    len(snap.InvestmentPositions),
		"events":       len(snap.InvestmentEvents),
	})
}
