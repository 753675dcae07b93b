package server

import (
	"errors"
	"fmt"
	"net/http"

	"helpdesk/internal/helpdesk"
)

const createdAtLayout = "2006-01-02 15:04:05"

type backupEntry struct {
	Name      string `json:"nome"`
	Size      string `json:"tamanho"`
	CreatedAt string `json:"data_criacao"`
}

type backupList struct {
	Success   bool          `json:"success"`
	Total     int           `json:"total_backups"`
	Backups   []backupEntry `json:"backups"`
	Directory string        `json:"diretorio"`
}

type backupConfig struct {
	Success bool   `json:"success"`
	Current string `json:"diretorio_atual"`
	Message string `json:"mensagem,omitempty"`
}

func megabytes(n int64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	snapshots, dir, err := s.rotator.ListSnapshots(r.Context())
	if err != nil {
		s.logger.Error("listing backups", "error", err)
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("error listing backups: %v", err))
		return
	}

	entries := make([]backupEntry, len(snapshots))
	for i, snap := range snapshots {
		entries[i] = backupEntry{
			Name:      snap.Name,
			Size:      megabytes(snap.Size),
			CreatedAt: snap.CreatedAt.Local().Format(createdAtLayout),
		}
	}
	s.writeJSON(w, http.StatusOK, backupList{
		Success:   true,
		Total:     len(entries),
		Backups:   entries,
		Directory: dir,
	})
}

func (s *Server) handleGetBackupConfig(w http.ResponseWriter, r *http.Request) {
	dir, err := s.rotator.ConfiguredBackupDirectory(r.Context())
	if err != nil {
		s.logger.Error("reading backup configuration", "error", err)
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("error reading configuration: %v", err))
		return
	}
	s.writeJSON(w, http.StatusOK, backupConfig{Success: true, Current: dir})
}

func (s *Server) handleSetBackupConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Directory string `json:"diretorio"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Directory == "" {
		s.writeError(w, http.StatusBadRequest, "invalid directory")
		return
	}

	dir, err := s.rotator.SetBackupDirectory(r.Context(), req.Directory)
	if errors.Is(err, helpdesk.ErrInvalidBackupDir) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid directory or missing permissions: %v", err))
		return
	}
	if err != nil {
		s.logger.Error("updating backup directory", "error", err)
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("error updating configuration: %v", err))
		return
	}
	s.writeJSON(w, http.StatusOK, backupConfig{
		Success: true,
		Current: dir,
		Message: "configuration updated",
	})
}

func (s *Server) handleManualBackup(w http.ResponseWriter, r *http.Request) {
	result := s.rotator.RunDailyBackup(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":  result.Success,
		"mensagem": result.Message,
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Compute(r.Context(), r.URL.Query().Get("periodo"))
	if errors.Is(err, helpdesk.ErrInvalidPeriod) {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("computing statistics", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}
