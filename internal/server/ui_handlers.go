package server

import (
	"html/template"
	"log/slog"
	"net/http"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Firefly sessions</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; }
td, th { padding: 0.3rem 0.8rem; border-bottom: 1px solid #ddd; text-align: left; }
</style>
</head>
<body>
<h1>Firefly sessions</h1>
{{if .}}
<table>
<tr><th>ID</th><th>Objective</th><th>Dim</th><th>State</th><th>Phase</th><th>Iteration</th><th>Best fitness</th><th></th></tr>
{{range .}}
<tr>
<td><code>{{.ID}}</code></td>
<td>{{.Objective}}</td>
<td>{{.Dimension}}</td>
<td>{{.State}}</td>
<td>{{.Phase}}</td>
<td>{{.Iteration}} / {{.MaxIterations}}</td>
<td>{{printf "%.6g" .BestFitness}}</td>
<td>{{if .Chartable}}<a href="/api/v1/sessions/{{.ID}}/chart">chart</a>{{end}}</td>
</tr>
{{end}}
</table>
{{else}}
<p>No sessions yet. Create one with <code>POST /api/v1/sessions</code>.</p>
{{end}}
</body>
</html>
`))

// sessionListItem is the view model of one row on the index page
type sessionListItem struct {
	ID            string
	Objective     string
	Dimension     int
	State         string
	Phase         string
	Iteration     int
	MaxIterations int
	BestFitness   float64
	Chartable     bool
}

// handleIndex handles GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	sessions := s.sessions.ListSessions()
	items := make([]sessionListItem, len(sessions))
	for i, st := range sessions {
		items[i] = sessionListItem{
			ID:            st.ID,
			Objective:     st.Config.Objective,
			Dimension:     st.Config.Dimension,
			State:         string(st.State),
			Phase:         string(snapshotPhase(st)),
			Iteration:     st.Iteration,
			MaxIterations: st.Config.Params.MaxIterations,
			BestFitness:   st.BestFitness,
			Chartable:     st.Config.Dimension <= 2,
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, items); err != nil {
		slog.Error("Failed to render index", "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}
