package server

import (
	"net/http"
	"sort"
)

type databaseStats struct {
	TotalSize  string   `json:"total_size"`
	RawSize    int64    `json:"raw_size"`
	TableCount int      `json:"table_count"`
	Tables     []string `json:"tables"`
}

func (s *Server) handleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.DatabaseStats(r.Context())
	if err != nil {
		s.logger.Error("reading database stats", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, databaseStats{
		TotalSize:  megabytes(st.SizeBytes),
		RawSize:    st.SizeBytes,
		TableCount: len(st.Tables),
		Tables:     st.Tables,
	})
}

func (s *Server) handleDatabaseTables(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.DatabaseStats(r.Context())
	if err != nil {
		s.logger.Error("listing tables", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	tables := append([]string(nil), st.Tables...)
	sort.Strings(tables)
	s.writeJSON(w, http.StatusOK, tables)
}
