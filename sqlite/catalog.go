package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/fwojciec/docpilot"
)

// Compile-time interface verification.
var _ docpilot.CatalogService = (*CatalogService)(nil)

// CatalogService implements docpilot.CatalogService using SQLite.
type CatalogService struct {
	db *DB

	// Now returns the commit and tombstone timestamp. Defaults to time.Now.
	Now func() time.Time
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(db *DB) *CatalogService {
	return &CatalogService{db: db, Now: time.Now}
}

const recordColumns = `r.id, r.file_path, r.kind, r.symbol_kind, r.text, r.ancestry, r.level, r.start_line, r.end_line, r.asset, r.asset_exists`

// ScanNeeded reports whether file must be read and extracted.
func (s *CatalogService) ScanNeeded(ctx context.Context, file *docpilot.DocumentFile) (bool, error) {
	var size, modTime int64
	var fingerprint string
	var deletedAt sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT size, mod_time, fingerprint, deleted_at FROM files WHERE path = ?
	`, file.Path).Scan(&size, &modTime, &fingerprint, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, docpilot.WrapError(docpilot.ESTORE, err, "scan check for %s failed", file.Path)
	}

	return deletedAt.Valid || size != file.Size || modTime != file.ModTime || fingerprint != file.Fingerprint, nil
}

// Upsert replaces the records of file in a single transaction. A nil
// record set for a live file whose content hash and fingerprint match
// only refreshes the signature; the records and commit timestamp stay as
// they are.
func (s *CatalogService) Upsert(ctx context.Context, file *docpilot.DocumentFile, records []*docpilot.Record) error {
	if err := file.Validate(); err != nil {
		return err
	}
	if file.Hash == "" {
		return docpilot.Errorf(docpilot.EINVALID, "document hash required")
	}
	for _, r := range records {
		if r.Path != file.Path {
			return docpilot.Errorf(docpilot.EINVALID, "record path %q does not match %q", r.Path, file.Path)
		}
		if err := r.Validate(file.LineCount); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return docpilot.WrapError(docpilot.ESTORE, err, "begin upsert of %s failed", file.Path)
	}
	defer tx.Rollback()

	var stored struct {
		size, modTime int64
		hash          string
		fingerprint   string
		lineCount     int
		runID         string
		scannedAt     string
		deletedAt     sql.NullString
	}
	err = tx.QueryRowContext(ctx, `
		SELECT size, mod_time, hash, fingerprint, line_count, run_id, scanned_at, deleted_at FROM files WHERE path = ?
	`, file.Path).Scan(&stored.size, &stored.modTime, &stored.hash, &stored.fingerprint, &stored.lineCount,
		&stored.runID, &stored.scannedAt, &stored.deletedAt)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return docpilot.WrapError(docpilot.ESTORE, err, "load %s failed", file.Path)
	}

	if records == nil && exists && !stored.deletedAt.Valid &&
		stored.hash == file.Hash && stored.fingerprint == file.Fingerprint {
		scannedAt, err := parseTime(stored.scannedAt, "scanned_at")
		if err != nil {
			return docpilot.WrapError(docpilot.ESTORE, err, "load %s failed", file.Path)
		}
		file.LineCount = stored.lineCount
		file.RunID = stored.runID
		file.ScannedAt = scannedAt
		file.DeletedAt = nil

		if stored.size == file.Size && stored.modTime == file.ModTime {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE files SET size = ?, mod_time = ? WHERE path = ?
		`, file.Size, file.ModTime, file.Path); err != nil {
			return docpilot.WrapError(docpilot.ESTORE, err, "touch %s failed", file.Path)
		}
		if err := bumpGeneration(ctx, tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return docpilot.WrapError(docpilot.ESTORE, err, "commit touch of %s failed", file.Path)
		}
		return nil
	}

	now := s.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO files (path, size, mod_time, hash, fingerprint, line_count, run_id, scanned_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mod_time = excluded.mod_time,
			hash = excluded.hash,
			fingerprint = excluded.fingerprint,
			line_count = excluded.line_count,
			run_id = excluded.run_id,
			scanned_at = excluded.scanned_at,
			deleted_at = NULL
	`, file.Path, file.Size, file.ModTime, file.Hash, file.Fingerprint, file.LineCount, file.RunID, formatTime(now)); err != nil {
		return docpilot.WrapError(docpilot.ESTORE, err, "write %s failed", file.Path)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE file_path = ?", file.Path); err != nil {
		return docpilot.WrapError(docpilot.ESTORE, err, "clear records of %s failed", file.Path)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (file_path, kind, symbol_kind, text, folded, ancestry, level, start_line, end_line, asset, asset_exists)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return docpilot.WrapError(docpilot.ESTORE, err, "prepare records of %s failed", file.Path)
	}
	defer stmt.Close()

	ids := make([]int64, len(records))
	for i, r := range records {
		res, err := stmt.ExecContext(ctx, r.Path, string(r.Kind), string(r.SymbolKind), r.Text, strings.ToLower(r.Text),
			joinAncestry(r.Ancestry), r.Level, r.StartLine, r.EndLine, r.Asset, r.AssetExists)
		if err != nil {
			return docpilot.WrapError(docpilot.ESTORE, err, "write record of %s failed", file.Path)
		}
		if ids[i], err = res.LastInsertId(); err != nil {
			return docpilot.WrapError(docpilot.ESTORE, err, "write record of %s failed", file.Path)
		}
	}

	if err := bumpGeneration(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return docpilot.WrapError(docpilot.ESTORE, err, "commit %s failed", file.Path)
	}

	for i, r := range records {
		r.ID = ids[i]
	}
	file.ScannedAt = now
	file.DeletedAt = nil
	return nil
}

// RemoveStale tombstones every live file whose path is not in seen.
func (s *CatalogService) RemoveStale(ctx context.Context, seen []string) ([]string, error) {
	keep := make(map[string]struct{}, len(seen))
	for _, p := range seen {
		keep[p] = struct{}{}
	}

	rows, err := s.db.QueryContext(ctx, "SELECT path FROM files WHERE deleted_at IS NULL")
	if err != nil {
		return nil, docpilot.WrapError(docpilot.ESTORE, err, "list live files failed")
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, docpilot.WrapError(docpilot.ESTORE, err, "list live files failed")
		}
		if _, ok := keep[p]; !ok {
			stale = append(stale, p)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, docpilot.WrapError(docpilot.ESTORE, err, "list live files failed")
	}
	rows.Close()

	if len(stale) == 0 {
		return nil, nil
	}
	sort.Strings(stale)

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, docpilot.WrapError(docpilot.ESTORE, err, "begin tombstoning failed")
	}
	defer tx.Rollback()

	now := formatTime(s.Now())
	for _, p := range stale {
		if _, err := tx.ExecContext(ctx, "UPDATE files SET deleted_at = ? WHERE path = ?", now, p); err != nil {
			return nil, docpilot.WrapError(docpilot.ESTORE, err, "tombstone %s failed", p)
		}
	}
	if err := bumpGeneration(ctx, tx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, docpilot.WrapError(docpilot.ESTORE, err, "commit tombstones failed")
	}
	return stale, nil
}

// Purge deletes files tombstoned before the given time. Their records
// go with them.
func (s *CatalogService) Purge(ctx context.Context, before time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return 0, docpilot.WrapError(docpilot.ESTORE, err, "begin purge failed")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM files WHERE deleted_at IS NOT NULL AND deleted_at < ?
	`, formatTime(before))
	if err != nil {
		return 0, docpilot.WrapError(docpilot.ESTORE, err, "purge failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, docpilot.WrapError(docpilot.ESTORE, err, "purge failed")
	}
	if n == 0 {
		return 0, nil
	}

	if err := bumpGeneration(ctx, tx); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, docpilot.WrapError(docpilot.ESTORE, err, "commit purge failed")
	}
	return int(n), nil
}

// QueryCandidates returns records of live files whose display text
// contains the term, ignoring case. Exact matches come first, then
// shorter texts, so a limit cuts the loosest matches.
func (s *CatalogService) QueryCandidates(ctx context.Context, q docpilot.CandidateQuery) ([]*docpilot.Record, error) {
	if q.Term == "" {
		return nil, nil
	}

	var query strings.Builder
	folded := strings.ToLower(q.Term)
	args := []any{likePattern(folded), folded}

	query.WriteString("SELECT " + recordColumns + ` FROM records r
		JOIN files f ON f.path = r.file_path
		WHERE f.deleted_at IS NULL AND r.folded LIKE ? ESCAPE '\'
		ORDER BY r.folded = ? DESC, length(r.folded), r.id`)
	appendLimit(&query, &args, q.Limit)

	return s.queryRecords(ctx, query.String(), args...)
}

// FindFile retrieves a file by path, tombstoned or not.
func (s *CatalogService) FindFile(ctx context.Context, path string) (*docpilot.DocumentFile, error) {
	var f docpilot.DocumentFile
	var scannedAt string
	var deletedAt sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT path, size, mod_time, hash, fingerprint, line_count, run_id, scanned_at, deleted_at
		FROM files
		WHERE path = ?
	`, path).Scan(&f.Path, &f.Size, &f.ModTime, &f.Hash, &f.Fingerprint, &f.LineCount, &f.RunID, &scannedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docpilot.Errorf(docpilot.ENOTFOUND, "document %s not found", path)
	}
	if err != nil {
		return nil, docpilot.WrapError(docpilot.ESTORE, err, "find %s failed", path)
	}

	if f.ScannedAt, err = parseTime(scannedAt, "scanned_at"); err != nil {
		return nil, docpilot.WrapError(docpilot.ESTORE, err, "find %s failed", path)
	}
	if deletedAt.Valid {
		t, err := parseTime(deletedAt.String, "deleted_at")
		if err != nil {
			return nil, docpilot.WrapError(docpilot.ESTORE, err, "find %s failed", path)
		}
		f.DeletedAt = &t
	}
	return &f, nil
}

// FindRecords retrieves records of live files matching the filter, ordered
// by path and line.
func (s *CatalogService) FindRecords(ctx context.Context, filter docpilot.RecordFilter) ([]*docpilot.Record, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT " + recordColumns + ` FROM records r
		JOIN files f ON f.path = r.file_path
		WHERE f.deleted_at IS NULL`)

	if filter.Path != nil {
		query.WriteString(" AND r.file_path = ?")
		args = append(args, *filter.Path)
	}
	if filter.Kind != nil {
		query.WriteString(" AND r.kind = ?")
		args = append(args, string(*filter.Kind))
	}
	if filter.FromLine > 0 {
		query.WriteString(" AND r.end_line >= ?")
		args = append(args, filter.FromLine)
	}
	if filter.ToLine > 0 {
		query.WriteString(" AND r.start_line <= ?")
		args = append(args, filter.ToLine)
	}
	query.WriteString(" ORDER BY r.file_path, r.start_line, r.id")

	return s.queryRecords(ctx, query.String(), args...)
}

// Generation returns the mutation counter.
func (s *CatalogService) Generation(ctx context.Context) (int64, error) {
	var gen int64
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'generation'").Scan(&gen)
	if err != nil {
		return 0, docpilot.WrapError(docpilot.ESTORE, err, "read generation failed")
	}
	return gen, nil
}

// Stats returns catalog-wide counts.
func (s *CatalogService) Stats(ctx context.Context) (*docpilot.CatalogStats, error) {
	stats := &docpilot.CatalogStats{Records: make(map[docpilot.RecordKind]int)}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN deleted_at IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN deleted_at IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM files
	`).Scan(&stats.Files, &stats.Tombstoned)
	if err != nil {
		return nil, docpilot.WrapError(docpilot.ESTORE, err, "count files failed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.kind, COUNT(*) FROM records r
		JOIN files f ON f.path = r.file_path
		WHERE f.deleted_at IS NULL
		GROUP BY r.kind
	`)
	if err != nil {
		return nil, docpilot.WrapError(docpilot.ESTORE, err, "count records failed")
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, docpilot.WrapError(docpilot.ESTORE, err, "count records failed")
		}
		stats.Records[docpilot.RecordKind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, docpilot.WrapError(docpilot.ESTORE, err, "count records failed")
	}

	if stats.Generation, err = s.Generation(ctx); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *CatalogService) queryRecords(ctx context.Context, query string, args ...any) ([]*docpilot.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, docpilot.WrapError(docpilot.ESTORE, err, "query records failed")
	}
	defer rows.Close()

	var records []*docpilot.Record
	for rows.Next() {
		var r docpilot.Record
		var kind, symbolKind, ancestry string
		if err := rows.Scan(&r.ID, &r.Path, &kind, &symbolKind, &r.Text, &ancestry, &r.Level,
			&r.StartLine, &r.EndLine, &r.Asset, &r.AssetExists); err != nil {
			return nil, docpilot.WrapError(docpilot.ESTORE, err, "scan record failed")
		}
		r.Kind = docpilot.RecordKind(kind)
		r.SymbolKind = docpilot.SymbolKind(symbolKind)
		r.Ancestry = splitAncestry(ancestry)
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, docpilot.WrapError(docpilot.ESTORE, err, "query records failed")
	}
	return records, nil
}

func bumpGeneration(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, "UPDATE meta SET value = value + 1 WHERE key = 'generation'"); err != nil {
		return docpilot.WrapError(docpilot.ESTORE, err, "bump generation failed")
	}
	return nil
}
