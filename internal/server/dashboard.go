package server

import (
	"html/template"
	"net/http"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// numberPrinter renders counts with thousands separators.
var numberPrinter = message.NewPrinter(language.English)

// dashboardTmpl is parsed once at startup.
var dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"comma": func(n int) string {
		return numberPrinter.Sprintf("%d", n)
	},
	"rfc3339": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	},
}).Parse(dashboardHTML))

// dashboardData is what the dashboard template renders.
type dashboardData struct {
	Toolkit string
	Stats   statsView
	PerPage int
}

// statsView mirrors model.Stats for the template.
type statsView struct {
	TotalRepositories int
	TotalStars        int
	TotalForks        int
	ArchivedCount     int
	ForkCount         int
	NewLastWeek       int
	Languages         []breakdownRow
	Sources           []breakdownRow
	GeneratedAt       time.Time
}

// breakdownRow is one row of a language or source breakdown.
type breakdownRow struct {
	Label string
	Count int
}

// handleDashboard renders the dashboard page. The repository table
// fetches its rows from /api/repos.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	view := statsView{
		TotalRepositories: stats.TotalRepositories,
		TotalStars:        stats.TotalStars,
		TotalForks:        stats.TotalForks,
		ArchivedCount:     stats.ArchivedCount,
		ForkCount:         stats.ForkCount,
		NewLastWeek:       stats.NewLastWeek,
		GeneratedAt:       stats.GeneratedAt,
	}
	for _, lang := range stats.Languages {
		view.Languages = append(view.Languages, breakdownRow{Label: lang.Language, Count: lang.Count})
	}
	for _, src := range stats.Sources {
		view.Sources = append(view.Sources, breakdownRow{Label: src.Source.String(), Count: src.Count})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTmpl.Execute(w, dashboardData{
		Toolkit: s.toolkit,
		Stats:   view,
		PerPage: s.perPage,
	}); err != nil {
		s.logger.Error("failed to render dashboard", "error", err)
	}
}

// dashboardHTML is the single-page dashboard. Server-rendered stats, a
// small script drives the repository table through /api/repos.
const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>depwatch — dependents of {{.Toolkit}}</title>
<style>
  :root { color-scheme: light dark; }
  body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 72rem; padding: 0 1rem; }
  h1 { font-size: 1.4rem; }
  h1 code { font-size: 1.2rem; }
  .cards { display: flex; flex-wrap: wrap; gap: 1rem; margin: 1.5rem 0; }
  .card { border: 1px solid #8884; border-radius: 8px; padding: 0.8rem 1.2rem; min-width: 9rem; }
  .card .num { font-size: 1.6rem; font-weight: 600; }
  .card .label { color: #888; font-size: 0.85rem; }
  .breakdowns { display: flex; flex-wrap: wrap; gap: 2rem; margin-bottom: 1.5rem; }
  .breakdowns table { border-collapse: collapse; }
  .breakdowns td { padding: 0.15rem 0.8rem 0.15rem 0; }
  .toolbar { display: flex; gap: 0.8rem; align-items: center; margin-bottom: 0.8rem; flex-wrap: wrap; }
  .toolbar input { padding: 0.4rem; min-width: 16rem; }
  table.repos { border-collapse: collapse; width: 100%; }
  table.repos th, table.repos td { text-align: left; padding: 0.4rem 0.6rem; border-bottom: 1px solid #8883; }
  table.repos th { cursor: pointer; user-select: none; white-space: nowrap; }
  table.repos td.num { text-align: right; font-variant-numeric: tabular-nums; }
  .pager { display: flex; gap: 0.8rem; align-items: center; margin-top: 0.8rem; }
  .muted { color: #888; font-size: 0.85rem; }
  a { color: inherit; }
</style>
</head>
<body>
<h1>Dependents of <code>{{.Toolkit}}</code></h1>

<div class="cards">
  <div class="card"><div class="num">{{comma .Stats.TotalRepositories}}</div><div class="label">repositories</div></div>
  <div class="card"><div class="num">{{comma .Stats.TotalStars}}</div><div class="label">total stars</div></div>
  <div class="card"><div class="num">{{comma .Stats.TotalForks}}</div><div class="label">total forks</div></div>
  <div class="card"><div class="num">{{comma .Stats.NewLastWeek}}</div><div class="label">new this week</div></div>
  <div class="card"><div class="num">{{comma .Stats.ArchivedCount}}</div><div class="label">archived</div></div>
</div>

<div class="breakdowns">
{{if .Stats.Languages}}
  <div>
    <h2>Languages</h2>
    <table>
    {{range .Stats.Languages}}<tr><td>{{.Label}}</td><td>{{comma .Count}}</td></tr>
    {{end}}</table>
  </div>
{{end}}
{{if .Stats.Sources}}
  <div>
    <h2>Sources</h2>
    <table>
    {{range .Stats.Sources}}<tr><td>{{.Label}}</td><td>{{comma .Count}}</td></tr>
    {{end}}</table>
  </div>
{{end}}
</div>

<div class="toolbar">
  <input id="search" type="search" placeholder="Search name or description">
  <a href="/api/repos/export.csv">Download CSV</a>
  <span class="muted">stats generated {{rfc3339 .Stats.GeneratedAt}}</span>
</div>

<table class="repos">
  <thead>
    <tr>
      <th data-sort="name">Repository</th>
      <th data-sort="stars">Stars</th>
      <th>Forks</th>
      <th>Language</th>
      <th data-sort="pushed_at">Last push</th>
      <th data-sort="discovered_at">Discovered</th>
      <th>Source</th>
    </tr>
  </thead>
  <tbody id="rows"></tbody>
</table>

<div class="pager">
  <button id="prev">&laquo; Prev</button>
  <span id="pageinfo" class="muted"></span>
  <button id="next">Next &raquo;</button>
</div>

<script>
(function () {
  "use strict";
  var state = { page: 1, perPage: {{.PerPage}}, sort: "stars", order: "desc", q: "" };

  function esc(s) {
    return String(s == null ? "" : s).replace(/[&<>"]/g, function (c) {
      return { "&": "&amp;", "<": "&lt;", ">": "&gt;", '"': "&quot;" }[c];
    });
  }

  function day(ts) { return ts ? ts.slice(0, 10) : ""; }

  function load() {
    var url = "/api/repos?page=" + state.page +
      "&per_page=" + state.perPage +
      "&sort=" + encodeURIComponent(state.sort) +
      "&order=" + state.order +
      "&q=" + encodeURIComponent(state.q);
    fetch(url).then(function (resp) { return resp.json(); }).then(function (data) {
      var rows = (data.repositories || []).map(function (r) {
        return "<tr>" +
          '<td><a href="' + esc(r.html_url) + '">' + esc(r.full_name) + "</a>" +
          (r.archived ? ' <span class="muted">(archived)</span>' : "") +
          (r.description ? '<br><span class="muted">' + esc(r.description) + "</span>" : "") +
          "</td>" +
          '<td class="num">' + r.stars.toLocaleString() + "</td>" +
          '<td class="num">' + r.forks.toLocaleString() + "</td>" +
          "<td>" + esc(r.language) + "</td>" +
          "<td>" + day(r.pushed_at) + "</td>" +
          "<td>" + day(r.discovered_at) + "</td>" +
          "<td>" + esc(r.source) + "</td>" +
          "</tr>";
      });
      document.getElementById("rows").innerHTML = rows.join("");
      document.getElementById("pageinfo").textContent =
        "page " + data.page + " of " + Math.max(data.total_pages, 1) +
        " (" + data.total.toLocaleString() + " repositories)";
      document.getElementById("prev").disabled = data.page <= 1;
      document.getElementById("next").disabled = data.page >= data.total_pages;
      state.page = data.page;
      state.totalPages = data.total_pages;
    });
  }

  document.getElementById("prev").addEventListener("click", function () {
    if (state.page > 1) { state.page--; load(); }
  });
  document.getElementById("next").addEventListener("click", function () {
    if (!state.totalPages || state.page < state.totalPages) { state.page++; load(); }
  });

  var searchTimer = null;
  document.getElementById("search").addEventListener("input", function (e) {
    clearTimeout(searchTimer);
    searchTimer = setTimeout(function () {
      state.q = e.target.value;
      state.page = 1;
      load();
    }, 250);
  });

  Array.prototype.forEach.call(document.querySelectorAll("th[data-sort]"), function (th) {
    th.addEventListener("click", function () {
      var key = th.getAttribute("data-sort");
      if (state.sort === key) {
        state.order = state.order === "asc" ? "desc" : "asc";
      } else {
        state.sort = key;
        state.order = key === "name" ? "asc" : "desc";
      }
      state.page = 1;
      load();
    });
  });

  load();
})();
</script>
</body>
</html>
`
