package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nao1215/depwatch/internal/database"
	"github.com/nao1215/depwatch/internal/model"
	"github.com/nao1215/depwatch/internal/report"
)

// repoPage is the JSON envelope of the repository list endpoint.
type repoPage struct {
	Repositories []model.Repository `json:"repositories"`
	Page         int                `json:"page"`
	PerPage      int                `json:"per_page"`
	Total        int                `json:"total"`
	TotalPages   int                `json:"total_pages"`
	Sort         string             `json:"sort"`
	Order        string             `json:"order"`
	Query        string             `json:"q,omitempty"`
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// handleStats serves aggregate statistics as JSON.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// handleRepos serves one page of the repository list as JSON.
// Query parameters: page, per_page, sort, order, q.
func (s *Server) handleRepos(w http.ResponseWriter, r *http.Request) {
	opts := s.listOptions(r)

	repos, total, err := s.store.ListRepositories(r.Context(), opts)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	totalPages := total / opts.PerPage
	if total%opts.PerPage != 0 {
		totalPages++
	}

	order := "asc"
	if opts.Descending {
		order = "desc"
	}

	s.writeJSON(w, http.StatusOK, repoPage{
		Repositories: repos,
		Page:         opts.Page,
		PerPage:      opts.PerPage,
		Total:        total,
		TotalPages:   totalPages,
		Sort:         string(opts.Sort),
		Order:        order,
		Query:        opts.Search,
	})
}

// handleRepoDetail serves a single repository looked up by owner/name.
func (s *Server) handleRepoDetail(w http.ResponseWriter, r *http.Request) {
	fullName := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "name")

	repo, err := s.store.GetRepository(r.Context(), fullName)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if repo == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "repository not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, repo)
}

// handleExportCSV streams the full repository table as CSV.
// The sort and search parameters apply; pagination does not.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	opts := s.listOptions(r)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="dependents.csv"`)

	err := report.WriteCSV(w, func(fn func(*model.Repository) error) error {
		return s.store.ForEachRepository(r.Context(), opts, fn)
	})
	if err != nil {
		// Headers are already on the wire; all we can do is log and cut
		// the stream short so the client sees a truncated file.
		s.logger.Error("csv export aborted", "error", err)
	}
}

// handleRuns serves recent collection run summaries as JSON.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}

// listOptions parses pagination, sorting, and search query parameters,
// clamping everything to safe bounds. Unknown sort keys fall back to
// stars descending inside the database layer.
func (s *Server) listOptions(r *http.Request) database.ListOptions {
	q := r.URL.Query()

	opts := database.ListOptions{
		Page:    1,
		PerPage: s.perPage,
		Sort:    database.SortByStars,
		Search:  q.Get("q"),
	}

	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Page = n
		}
	}
	if v := q.Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.PerPage = n
		}
	}
	if opts.PerPage > s.maxPerPage {
		opts.PerPage = s.maxPerPage
	}

	if v := q.Get("sort"); v != "" {
		opts.Sort = database.SortKey(v)
	}

	switch q.Get("order") {
	case "asc":
		opts.Descending = false
	case "desc":
		opts.Descending = true
	default:
		// Stars and recency sorts read naturally descending.
		opts.Descending = opts.Sort != database.SortByName
	}

	return opts
}

// writeJSON writes v as a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// serverError logs the failure and returns a generic 500. Internal
// details (paths, SQL) never reach the client.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
