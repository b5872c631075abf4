package db

import (
	"database/sql"
	stderrors "errors"

	"github.com/hpungsan/ctxpack/internal/errors"
	"github.com/hpungsan/ctxpack/internal/manifest"
)

// Snapshot is one imported manifest.
type Snapshot struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	FileCount  int    `json:"file_count"`
	ImportedAt int64  `json:"imported_at"`
}

// InsertSnapshot stores s and every entry of m in one transaction.
// s.FileCount is set from m.
func InsertSnapshot(db *sql.DB, s *Snapshot, m *manifest.Manifest) error {
	s.FileCount = m.Len()

	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO manifest_snapshots (id, source, file_count, imported_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.Source, s.FileCount, s.ImportedAt,
	); err != nil {
		return errors.NewInternal(err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO manifest_files (
			snapshot_id, path, type, summary, token_count, summary_token_count
		) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer stmt.Close()

	for _, path := range m.Paths() {
		md := m.Files[path]
		t := md.Type
		if _, err := stmt.Exec(s.ID, path, toNullString(&t), toNullString(md.Summary),
			toNullInt(md.TokenCount), toNullInt(md.SummaryTokenCount)); err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetSnapshot retrieves a snapshot by ID.
func GetSnapshot(db *sql.DB, id string) (*Snapshot, error) {
	row := db.QueryRow(`
		SELECT id, source, file_count, imported_at
		FROM manifest_snapshots
		WHERE id = ?
	`, id)
	s, err := scanSnapshot(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("manifest snapshot", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return s, nil
}

// LatestSnapshot returns the most recently imported snapshot. ULIDs sort by
// time, so id breaks ties within the same second.
func LatestSnapshot(db *sql.DB) (*Snapshot, error) {
	row := db.QueryRow(`
		SELECT id, source, file_count, imported_at
		FROM manifest_snapshots
		ORDER BY imported_at DESC, id DESC
		LIMIT 1
	`)
	s, err := scanSnapshot(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("manifest snapshot", "latest")
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return s, nil
}

// ListSnapshots returns up to limit snapshots, newest first.
func ListSnapshots(db *sql.DB, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, source, file_count, imported_at
		FROM manifest_snapshots
		ORDER BY imported_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.Source, &s.FileCount, &s.ImportedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// LoadManifest rebuilds the manifest stored under snapshotID.
func LoadManifest(db *sql.DB, snapshotID string) (*manifest.Manifest, error) {
	if _, err := GetSnapshot(db, snapshotID); err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT path, type, summary, token_count, summary_token_count
		FROM manifest_files
		WHERE snapshot_id = ?
	`, snapshotID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	m := &manifest.Manifest{Files: make(map[string]manifest.FileMetadata)}
	for rows.Next() {
		path, md, err := scanFile(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		m.Files[path] = md
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return m, nil
}

// LookupFile returns one entry from a snapshot.
func LookupFile(db *sql.DB, snapshotID, path string) (manifest.FileMetadata, error) {
	row := db.QueryRow(`
		SELECT path, type, summary, token_count, summary_token_count
		FROM manifest_files
		WHERE snapshot_id = ? AND path = ?
	`, snapshotID, manifest.NormalizeKey(path))
	_, md, err := scanFile(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return manifest.FileMetadata{}, errors.NewNotFound("manifest entry", path)
	}
	if err != nil {
		return manifest.FileMetadata{}, errors.NewInternal(err)
	}
	return md, nil
}

// PruneSnapshots deletes all but the newest keep snapshots and returns how
// many were removed. Their files go with them (ON DELETE CASCADE).
func PruneSnapshots(db *sql.DB, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := db.Exec(`
		DELETE FROM manifest_snapshots
		WHERE id NOT IN (
			SELECT id FROM manifest_snapshots
			ORDER BY imported_at DESC, id DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var s Snapshot
	if err := row.Scan(&s.ID, &s.Source, &s.FileCount, &s.ImportedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanFile(row scanner) (string, manifest.FileMetadata, error) {
	var (
		path         string
		typ          sql.NullString
		summary      sql.NullString
		tokenCount   sql.NullInt64
		summaryCount sql.NullInt64
	)
	if err := row.Scan(&path, &typ, &summary, &tokenCount, &summaryCount); err != nil {
		return "", manifest.FileMetadata{}, err
	}
	md := manifest.FileMetadata{
		Summary:           fromNullString(summary),
		TokenCount:        fromNullInt(tokenCount),
		SummaryTokenCount: fromNullInt(summaryCount),
	}
	if typ.Valid {
		md.Type = typ.String
	}
	return path, md, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func toNullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func fromNullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
