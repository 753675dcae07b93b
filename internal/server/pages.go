package server

import (
	"net/http"

	"helpdesk/internal/session"
)

const loginHTML = `<!DOCTYPE html>
<html lang="pt-BR">
<head><meta charset="utf-8"><title>Helpdesk - Login</title></head>
<body>
<form id="login">
  <input name="username" autocomplete="username">
  <input name="password" type="password" autocomplete="current-password">
  <button type="submit">Entrar</button>
</form>
</body>
</html>
`

const homeHTML = `<!DOCTYPE html>
<html lang="pt-BR">
<head><meta charset="utf-8"><title>Helpdesk</title></head>
<body><main id="app"></main></body>
</html>
`

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	writeHTML(w, loginHTML)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if session.PrincipalFrom(r.Context()) == nil {
		http.Redirect(w, r, loginPage, http.StatusFound)
		return
	}
	writeHTML(w, homeHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
