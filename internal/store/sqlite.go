package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/btouchard/gigd/internal/roster"
)

// emailRx is the syntactic shape check for client contact addresses:
// non-empty local part, "@", non-empty domain containing a ".".
var emailRx = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)

var migrations = []string{
	`CREATE TABLE gigs (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		client_email TEXT NOT NULL,
		fee INTEGER NOT NULL
	)`,
	`CREATE TABLE assignments (
		gig_id TEXT NOT NULL REFERENCES gigs(id),
		gent_id TEXT NOT NULL,
		PRIMARY KEY (gig_id, gent_id)
	)`,
}

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, zero CGO).
// With the default ":memory:" path all state lives in process memory and
// is gone on restart.
type SQLiteStore struct {
	db     *sql.DB
	roster *roster.Roster

	mu       sync.RWMutex
	onNotify NotifyFunc
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the gig database and runs migrations. A path of
// ":memory:" (or "") keeps the database in memory; a file path is created
// with 0600 permissions and its parent directory with 0700.
func NewSQLiteStore(path string, ros *roster.Roster) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" && path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
			if err != nil {
				return nil, fmt.Errorf("creating database file: %w", err)
			}
			_ = f.Close()
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection serializes read-modify-write sequences; with
	// ":memory:" additional pool connections would each see their own
	// empty database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, roster: ros}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		slog.Debug("applying migration", "version", i+1)
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SetNotifyFunc sets the callback invoked when a gent's visible gig
// state changes.
func (s *SQLiteStore) SetNotifyFunc(fn NotifyFunc) {
	s.mu.Lock()
	s.onNotify = fn
	s.mu.Unlock()
}

// emit calls the notify callback once per gent. It runs after the
// store mutation is committed, so no database lock is held during
// notification dispatch.
func (s *SQLiteStore) emit(gents ...string) {
	s.mu.RLock()
	fn := s.onNotify
	s.mu.RUnlock()
	if fn == nil {
		return
	}
	for _, g := range gents {
		fn(g)
	}
}

// --- Gigs ---

// CreateGig validates the client email, allocates a fresh ID and stores
// the gig with an empty assignment set. Nothing is notified: a new gig
// has no assignees to tell.
func (s *SQLiteStore) CreateGig(date, clientEmail string, fee int64) (*Gig, error) {
	if !emailRx.MatchString(clientEmail) {
		return nil, &ValidationError{Field: "client_email", Reason: "must be of the form local@domain.tld"}
	}

	g := &Gig{
		ID:          uuid.New().String(),
		Date:        date,
		ClientEmail: clientEmail,
		Fee:         fee,
	}

	_, err := s.db.Exec(`INSERT INTO gigs (id, date, client_email, fee) VALUES (?, ?, ?, ?)`,
		g.ID, g.Date, g.ClientEmail, g.Fee)
	if err != nil {
		return nil, fmt.Errorf("inserting gig: %w", err)
	}

	slog.Info("gig created", "gig_id", g.ID, "date", g.Date)
	return g, nil
}

// GetGig returns the gig with the given ID, or ErrGigNotFound.
func (s *SQLiteStore) GetGig(id string) (*Gig, error) {
	row := s.db.QueryRow(`SELECT id, date, client_email, fee FROM gigs WHERE id = ?`, id)
	return scanGig(row)
}

// ListGigs returns every gig in insertion order, each with its sorted
// assignee list.
func (s *SQLiteStore) ListGigs() ([]GigWithGents, error) {
	rows, err := s.db.Query(`SELECT id, date, client_email, fee FROM gigs ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing gigs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var gigs []GigWithGents
	for rows.Next() {
		var g Gig
		if err := rows.Scan(&g.ID, &g.Date, &g.ClientEmail, &g.Fee); err != nil {
			return nil, fmt.Errorf("scanning gig: %w", err)
		}
		gigs = append(gigs, GigWithGents{Gig: g, Gents: []string{}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing gigs: %w", err)
	}

	assignments, err := s.db.Query(`SELECT gig_id, gent_id FROM assignments ORDER BY gent_id`)
	if err != nil {
		return nil, fmt.Errorf("listing assignments: %w", err)
	}
	defer func() { _ = assignments.Close() }()

	byGig := make(map[string][]string)
	for assignments.Next() {
		var gigID, gentID string
		if err := assignments.Scan(&gigID, &gentID); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		byGig[gigID] = append(byGig[gigID], gentID)
	}
	if err := assignments.Err(); err != nil {
		return nil, fmt.Errorf("listing assignments: %w", err)
	}

	for i := range gigs {
		if gents, ok := byGig[gigs[i].ID]; ok {
			gigs[i].Gents = gents
		}
	}

	return gigs, nil
}

// UpdateGig applies a partial patch to a gig. Validation happens before
// any field is written, so an invalid email never leaves a half-applied
// patch behind. When the gig has assignees, each one is notified
// regardless of which field changed.
func (s *SQLiteStore) UpdateGig(id string, patch GigPatch) (*Gig, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	g, err := scanGig(tx.QueryRow(`SELECT id, date, client_email, fee FROM gigs WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	if patch.ClientEmail != nil && !emailRx.MatchString(*patch.ClientEmail) {
		return nil, &ValidationError{Field: "client_email", Reason: "must be of the form local@domain.tld"}
	}

	if patch.Date != nil {
		g.Date = *patch.Date
	}
	if patch.ClientEmail != nil {
		g.ClientEmail = *patch.ClientEmail
	}
	if patch.Fee != nil {
		g.Fee = *patch.Fee
	}

	_, err = tx.Exec(`UPDATE gigs SET date = ?, client_email = ?, fee = ? WHERE id = ?`,
		g.Date, g.ClientEmail, g.Fee, g.ID)
	if err != nil {
		return nil, fmt.Errorf("updating gig: %w", err)
	}

	gents, err := assignedGents(tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing update: %w", err)
	}

	s.emit(gents...)
	return g, nil
}

// --- Assignments ---

// SetAssignment moves a gent into or out of a gig's assignee set.
// The call is idempotent: when the desired state already holds, nothing
// changes and nothing is notified. On an actual membership change the
// affected gent (and only that gent) gets one notification.
func (s *SQLiteStore) SetAssignment(gigID, gentID string, assigned bool) ([]string, error) {
	if !s.roster.Contains(gentID) {
		return nil, ErrUnknownGent
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM gigs WHERE id = ?`, gigID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking gig: %w", err)
	}
	if exists == 0 {
		return nil, ErrGigNotFound
	}

	var res sql.Result
	if assigned {
		res, err = tx.Exec(`INSERT OR IGNORE INTO assignments (gig_id, gent_id) VALUES (?, ?)`, gigID, gentID)
	} else {
		res, err = tx.Exec(`DELETE FROM assignments WHERE gig_id = ? AND gent_id = ?`, gigID, gentID)
	}
	if err != nil {
		return nil, fmt.Errorf("writing assignment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reading rows affected: %w", err)
	}
	changed := affected > 0

	gents, err := assignedGents(tx, gigID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing assignment: %w", err)
	}

	if changed {
		slog.Info("assignment changed", "gig_id", gigID, "gent_id", gentID, "assigned", assigned)
		s.emit(gentID)
	}

	return gents, nil
}

// ListGigsForGent returns the gigs the gent is currently assigned to,
// sorted by (date, id) ascending. Dates compare as plain strings.
func (s *SQLiteStore) ListGigsForGent(gentID string) ([]Gig, error) {
	if !s.roster.Contains(gentID) {
		return nil, ErrUnknownGent
	}

	rows, err := s.db.Query(`SELECT g.id, g.date, g.client_email, g.fee
		FROM gigs g
		JOIN assignments a ON a.gig_id = g.id
		WHERE a.gent_id = ?
		ORDER BY g.date, g.id`, gentID)
	if err != nil {
		return nil, fmt.Errorf("listing gigs for gent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	gigs := []Gig{}
	for rows.Next() {
		var g Gig
		if err := rows.Scan(&g.ID, &g.Date, &g.ClientEmail, &g.Fee); err != nil {
			return nil, fmt.Errorf("scanning gig: %w", err)
		}
		gigs = append(gigs, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing gigs for gent: %w", err)
	}

	return gigs, nil
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGig(row rowScanner) (*Gig, error) {
	var g Gig
	if err := row.Scan(&g.ID, &g.Date, &g.ClientEmail, &g.Fee); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGigNotFound
		}
		return nil, fmt.Errorf("scanning gig: %w", err)
	}
	return &g, nil
}

func assignedGents(tx *sql.Tx, gigID string) ([]string, error) {
	rows, err := tx.Query(`SELECT gent_id FROM assignments WHERE gig_id = ? ORDER BY gent_id`, gigID)
	if err != nil {
		return nil, fmt.Errorf("listing assignees: %w", err)
	}
	defer func() { _ = rows.Close() }()

	gents := []string{}
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scanning assignee: %w", err)
		}
		gents = append(gents, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing assignees: %w", err)
	}
	return gents, nil
}
