package model

import (
	"database/sql"
	"time"
)

// User is a row of the usuarios relation.
// PasswordHash is NULL until the first password has been set.
type User struct {
	ID                 int64          `db:"id"`
	Username           string         `db:"username"`
	PasswordHash       sql.NullString `db:"password"`
	Role               string         `db:"role"`
	CreatedAt          time.Time      `db:"created_at"`
	InitialPasswordSet bool           `db:"senha_inicial_definida"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Roles stored in usuarios.role.
const (
	RoleAdmin = "admin"
	RoleGuest = "guest"
)

// Principal is the authenticated user bound to a session.
type Principal struct {
	ID   int64
	Name string
	Role string
}

// Column is one attribute of a relation as reported by the schema catalog.
type Column struct {
	Name string
	Type string
}

// SnapshotInfo describes a backup snapshot file on disk.
type SnapshotInfo struct {
	Name      string
	Path      string
	Size      int64
	CreatedAt time.Time // filesystem change/creation time, authoritative for ordering
}

// DateRange bounds a statistics query by ticket opening date (YYYY-MM-DD).
// Empty bounds are open.
type DateRange struct {
	From string
	To   string
}

// TicketSummary is one entry of the "latest tickets" list.
type TicketSummary struct {
	ID           int64  `db:"id"           json:"id"`
	Subject      string `db:"assunto"      json:"assunto"`
	OpenedAt     string `db:"data_abertura" json:"data_abertura"`
	Status       string `db:"status"       json:"status"`
	CustomerName string `db:"cliente_nome" json:"cliente_nome"`
}

// TicketCounts holds the raw aggregate counts read from the store.
type TicketCounts struct {
	Customers   int64
	Open        int64
	Closed      int64
	Total       int64
	FirstOpened string // earliest date(data_abertura) in range, empty when no tickets
	LastOpened  string
	Latest      []TicketSummary
}

// Statistics is the dashboard aggregate.
type Statistics struct {
	TotalCustomers int64           `json:"total_clientes"`
	OpenTickets    int64           `json:"chamados_abertos"`
	ClosedTickets  int64           `json:"chamados_fechados"`
	DailyAverage   float64         `json:"media_diaria_chamados"`
	LatestTickets  []TicketSummary `json:"ultimos_chamados"`
}

// DatabaseStats summarizes the live database file.
type DatabaseStats struct {
	SizeBytes int64
	Tables    []string
}
