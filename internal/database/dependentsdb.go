package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/depwatch/internal/model"
)

// DependentsDB provides SQLite-based storage for dependent repositories
// and collection run history. It manages connection pooling and provides
// methods for CRUD operations.
//
// Design decision: We use a single database file rather than one file
// per toolkit. The toolkit column on collection runs keeps runs
// attributable, and a single file simplifies the dashboard and
// backup/restore operations.
type DependentsDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures DependentsDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging. Recommended: the dashboard
	// reads while a collect run writes.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a DependentsDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*DependentsDB, error) {
	dbPath := filepath.Join(dbDir, "depwatch.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports only one writer; a single pooled connection avoids
	// SQLITE_BUSY between the collectors and the dashboard queries.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ddb := &DependentsDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := ddb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return ddb, nil
}

// Close closes the database connection.
func (d *DependentsDB) Close() error {
	return d.db.Close()
}

// Path returns the path of the underlying database file.
func (d *DependentsDB) Path() string {
	return d.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (d *DependentsDB) createTables() error {
	schema := `
	-- Dependent repositories, one row per "owner/name"
	CREATE TABLE IF NOT EXISTS repositories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		full_name TEXT NOT NULL UNIQUE,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		html_url TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		stars INTEGER NOT NULL DEFAULT 0,
		forks INTEGER NOT NULL DEFAULT 0,
		language TEXT NOT NULL DEFAULT '',
		archived INTEGER NOT NULL DEFAULT 0,
		fork INTEGER NOT NULL DEFAULT 0,
		pushed_at DATETIME,
		created_at DATETIME,
		source TEXT NOT NULL,
		discovered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_repos_owner ON repositories(owner);
	CREATE INDEX IF NOT EXISTS idx_repos_stars ON repositories(stars);
	CREATE INDEX IF NOT EXISTS idx_repos_language ON repositories(language);
	CREATE INDEX IF NOT EXISTS idx_repos_discovered ON repositories(discovered_at);

	-- Collection run history
	CREATE TABLE IF NOT EXISTS collection_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		toolkit TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		tallies TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON collection_runs(started_at);
	`

	_, err := d.db.ExecContext(context.Background(), schema)
	return err
}

// UpsertResult reports what an upsert did.
type UpsertResult struct {
	// Inserted is true when a new row was created, false when an
	// existing row was refreshed.
	Inserted bool
}

// UpsertRepository inserts a repository or refreshes its mutable metadata.
//
// The unique key is full_name. On conflict, metadata columns (stars,
// forks, description, language, flags, pushed_at) are refreshed and
// updated_at is bumped, while source and discovered_at keep their
// original values.
func (d *DependentsDB) UpsertRepository(ctx context.Context, repo *model.Repository) (UpsertResult, error) {
	if err := repo.Normalize(); err != nil {
		return UpsertResult{}, fmt.Errorf("failed to normalize repository: %w", err)
	}
	if !repo.Source.Valid() {
		return UpsertResult{}, fmt.Errorf("invalid discovery source: %q", repo.Source)
	}

	// Detect insert-vs-update before writing; LastInsertId is unreliable
	// under ON CONFLICT DO UPDATE.
	var exists int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM repositories WHERE full_name = ?", repo.FullName,
	).Scan(&exists)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to check repository existence: %w", err)
	}

	query := `
	INSERT INTO repositories (full_name, owner, name, html_url, description, stars, forks, language, archived, fork, pushed_at, created_at, source)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(full_name) DO UPDATE SET
		html_url = excluded.html_url,
		description = excluded.description,
		stars = excluded.stars,
		forks = excluded.forks,
		language = excluded.language,
		archived = excluded.archived,
		fork = excluded.fork,
		pushed_at = COALESCE(excluded.pushed_at, repositories.pushed_at),
		created_at = COALESCE(excluded.created_at, repositories.created_at),
		updated_at = CURRENT_TIMESTAMP
	`

	_, err = d.db.ExecContext(ctx, query,
		repo.FullName,
		repo.Owner,
		repo.Name,
		repo.HTMLURL,
		repo.Description,
		repo.Stars,
		repo.Forks,
		repo.Language,
		boolToInt(repo.Archived),
		boolToInt(repo.Fork),
		nullableTime(repo.PushedAt),
		nullableTime(repo.CreatedAt),
		string(repo.Source),
	)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to upsert repository: %w", err)
	}

	return UpsertResult{Inserted: exists == 0}, nil
}

// GetRepository retrieves a repository by its full name.
// Returns (nil, nil) when the repository is not stored.
func (d *DependentsDB) GetRepository(ctx context.Context, fullName string) (*model.Repository, error) {
	query := selectRepoColumns + " FROM repositories WHERE full_name = ?"

	row := d.db.QueryRowContext(ctx, query, fullName)
	repo, err := scanRepository(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}
	return repo, nil
}

// SortKey identifies a sortable column of the repository list.
type SortKey string

// Sort keys accepted by ListRepositories. Anything else falls back to
// SortByStars. The indirection keeps user input out of SQL text.
const (
	SortByStars      SortKey = "stars"
	SortByName       SortKey = "name"
	SortByPushedAt   SortKey = "pushed_at"
	SortByDiscovered SortKey = "discovered_at"
	SortByUpdated    SortKey = "updated_at"
)

// sortColumns maps sort keys to actual column expressions.
var sortColumns = map[SortKey]string{
	SortByStars:      "stars",
	SortByName:       "full_name COLLATE NOCASE",
	SortByPushedAt:   "pushed_at",
	SortByDiscovered: "discovered_at",
	SortByUpdated:    "updated_at",
}

// ListOptions controls pagination, sorting, and search of the repository list.
type ListOptions struct {
	// Page is the 1-based page number. Values below 1 are clamped to 1.
	Page int

	// PerPage is the page size. Values below 1 fall back to 25; the
	// caller is expected to cap the upper bound.
	PerPage int

	// Sort selects the sort column. Unknown keys fall back to stars.
	Sort SortKey

	// Descending selects descending order.
	Descending bool

	// Search filters by substring match on full_name and description.
	Search string
}

// normalize clamps the options to safe values.
func (o ListOptions) normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PerPage < 1 {
		o.PerPage = 25
	}
	if _, ok := sortColumns[o.Sort]; !ok {
		o.Sort = SortByStars
		o.Descending = true
	}
	return o
}

// whereClause builds the WHERE fragment and its arguments for the
// search filter. The fragment starts with " WHERE" or is empty.
func (o ListOptions) whereClause() (string, []any) {
	if o.Search == "" {
		return "", nil
	}
	pattern := "%" + escapeLike(o.Search) + "%"
	clause := ` WHERE (full_name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`
	return clause, []any{pattern, pattern}
}

// orderClause builds the ORDER BY fragment from the whitelisted column map.
func (o ListOptions) orderClause() string {
	column := sortColumns[o.Sort]
	direction := "ASC"
	if o.Descending {
		direction = "DESC"
	}
	// Secondary key keeps pagination stable when the primary key ties.
	return fmt.Sprintf(" ORDER BY %s %s, full_name ASC", column, direction)
}

// escapeLike escapes LIKE metacharacters in user-supplied search text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// ListRepositories returns one page of repositories plus the total count
// of rows matching the search filter.
func (d *DependentsDB) ListRepositories(ctx context.Context, opts ListOptions) ([]model.Repository, int, error) {
	opts = opts.normalize()
	where, args := opts.whereClause()

	var total int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM repositories"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count repositories: %w", err)
	}

	query := selectRepoColumns + " FROM repositories" + where + opts.orderClause() + " LIMIT ? OFFSET ?"
	args = append(args, opts.PerPage, (opts.Page-1)*opts.PerPage)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		repo, err := scanRepository(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan repository: %w", err)
		}
		repos = append(repos, *repo)
	}

	return repos, total, rows.Err()
}

// ForEachRepository streams every repository matching the filter/sort to
// fn, in order. Used by the CSV export so the full set never needs to be
// held in memory. Iteration stops on the first error from fn.
func (d *DependentsDB) ForEachRepository(ctx context.Context, opts ListOptions, fn func(*model.Repository) error) error {
	opts = opts.normalize()
	where, args := opts.whereClause()

	query := selectRepoColumns + " FROM repositories" + where + opts.orderClause()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query repositories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		repo, err := scanRepository(rows.Scan)
		if err != nil {
			return fmt.Errorf("failed to scan repository: %w", err)
		}
		if err := fn(repo); err != nil {
			return err
		}
	}

	return rows.Err()
}

// CountRepositories returns the number of stored repositories.
func (d *DependentsDB) CountRepositories(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM repositories").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count repositories: %w", err)
	}
	return count, nil
}

// Stats computes aggregate statistics over all stored repositories.
func (d *DependentsDB) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{GeneratedAt: time.Now().UTC()}

	err := d.db.QueryRowContext(ctx, `
	SELECT COUNT(*),
	       COALESCE(SUM(stars), 0),
	       COALESCE(SUM(forks), 0),
	       COALESCE(SUM(archived), 0),
	       COALESCE(SUM(fork), 0)
	FROM repositories
	`).Scan(&stats.TotalRepositories, &stats.TotalStars, &stats.TotalForks, &stats.ArchivedCount, &stats.ForkCount)
	if err != nil {
		return nil, fmt.Errorf("failed to compute totals: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, `
	SELECT CASE WHEN language = '' THEN '(none)' ELSE language END AS lang, COUNT(*)
	FROM repositories
	GROUP BY lang
	ORDER BY COUNT(*) DESC, lang ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to compute language breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lc model.LanguageCount
		if err := rows.Scan(&lc.Language, &lc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan language count: %w", err)
		}
		stats.Languages = append(stats.Languages, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	srcRows, err := d.db.QueryContext(ctx, `
	SELECT source, COUNT(*)
	FROM repositories
	GROUP BY source
	ORDER BY COUNT(*) DESC, source ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to compute source breakdown: %w", err)
	}
	defer srcRows.Close()

	for srcRows.Next() {
		var sc model.SourceCount
		var src string
		if err := srcRows.Scan(&src, &sc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan source count: %w", err)
		}
		sc.Source = model.Source(src)
		stats.Sources = append(stats.Sources, sc)
	}
	if err := srcRows.Err(); err != nil {
		return nil, err
	}

	err = d.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM repositories
	WHERE discovered_at > datetime('now', '-7 days')
	`).Scan(&stats.NewLastWeek)
	if err != nil {
		return nil, fmt.Errorf("failed to count recent repositories: %w", err)
	}

	return stats, nil
}

// InsertRun stores a collection run summary.
// Tallies are stored as JSON; the run history is append-only.
func (d *DependentsDB) InsertRun(ctx context.Context, run *model.RunSummary) error {
	talliesJSON, err := json.Marshal(run.Tallies)
	if err != nil {
		return fmt.Errorf("failed to serialize tallies: %w", err)
	}

	query := `
	INSERT INTO collection_runs (run_id, toolkit, started_at, finished_at, tallies, error)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = d.db.ExecContext(ctx, query,
		run.RunID,
		run.Toolkit,
		run.StartedAt.UTC().Format(sqliteTimeFormat),
		run.FinishedAt.UTC().Format(sqliteTimeFormat),
		string(talliesJSON),
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert collection run: %w", err)
	}

	return nil
}

// ListRuns returns the most recent collection runs, newest first.
func (d *DependentsDB) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit < 1 {
		limit = 20
	}

	query := `
	SELECT id, run_id, toolkit, started_at, finished_at, tallies, error
	FROM collection_runs
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection runs: %w", err)
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		var run model.RunSummary
		var started, finished, talliesJSON string

		if err := rows.Scan(&run.ID, &run.RunID, &run.Toolkit, &started, &finished, &talliesJSON, &run.Error); err != nil {
			return nil, fmt.Errorf("failed to scan collection run: %w", err)
		}

		run.StartedAt = parseTimestamp(started)
		run.FinishedAt = parseTimestamp(finished)
		if talliesJSON != "" {
			if err := json.Unmarshal([]byte(talliesJSON), &run.Tallies); err != nil {
				return nil, fmt.Errorf("failed to parse tallies: %w", err)
			}
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// selectRepoColumns is the shared column list for repository queries.
// Keep in sync with scanRepository.
const selectRepoColumns = `
SELECT id, full_name, owner, name, html_url, description, stars, forks, language, archived, fork, pushed_at, created_at, source, discovered_at, updated_at`

// scanRepository scans one repository row via the given Scan function.
// Works with both sql.Row and sql.Rows.
func scanRepository(scan func(...any) error) (*model.Repository, error) {
	var repo model.Repository
	var archived, fork int
	var pushedAt, createdAt sql.NullString
	var source, discoveredAt, updatedAt string

	err := scan(
		&repo.ID,
		&repo.FullName,
		&repo.Owner,
		&repo.Name,
		&repo.HTMLURL,
		&repo.Description,
		&repo.Stars,
		&repo.Forks,
		&repo.Language,
		&archived,
		&fork,
		&pushedAt,
		&createdAt,
		&source,
		&discoveredAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	repo.Archived = archived != 0
	repo.Fork = fork != 0
	repo.Source = model.Source(source)
	if pushedAt.Valid {
		repo.PushedAt = parseTimestamp(pushedAt.String)
	}
	if createdAt.Valid {
		repo.CreatedAt = parseTimestamp(createdAt.String)
	}
	repo.DiscoveredAt = parseTimestamp(discoveredAt)
	repo.UpdatedAt = parseTimestamp(updatedAt)

	return &repo, nil
}

// sqliteTimeFormat is the storage format for explicit timestamps.
const sqliteTimeFormat = "2006-01-02 15:04:05"

// boolToInt converts a bool to a SQLite-friendly integer.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullableTime converts a time to a nullable storage value; zero times
// become NULL so COALESCE-based upserts keep prior values.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(sqliteTimeFormat)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
