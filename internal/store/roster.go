package store

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/studyaide/internal/model"
)

// Expected roster columns, one row per (student, module, document) tuple.
var rosterColumns = []string{"Student ID", "Code", "Programme", "Module", "PDF File"}

// ErrEmptyRoster is returned when an import finds no valid rows.
var ErrEmptyRoster = errors.New("roster has no valid rows")

// NormalizeID canonicalizes a student ID for matching.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// normalizeCode canonicalizes an access code: trimmed, case-insensitive.
func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// ImportRosterFile loads a roster CSV into the store. The roster is the
// authoritative credential source, so a missing or unreadable file is fatal.
func (s *Store) ImportRosterFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open roster %s: %w", path, err)
	}
	defer f.Close()
	n, err := s.ImportRoster(f)
	if err != nil {
		return n, fmt.Errorf("import roster %s: %w", path, err)
	}
	return n, nil
}

// ImportRoster reads roster rows from r and loads them into the store.
// Malformed rows are skipped with a warning; the import fails only when the
// header is wrong or no valid row remains. Returns the number of imported
// rows.
func (s *Store) ImportRoster(r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read roster header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, want := range rosterColumns {
		if _, ok := col[want]; !ok {
			return 0, fmt.Errorf("roster missing column %q", want)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// position counter per (student, module), preserving file order as listed
	positions := make(map[[2]string]int)
	seenFiles := make(map[[3]string]bool)
	imported := 0
	line := 1

	for {
		line++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Warn("skipping malformed roster row", "line", line, "error", err)
			continue
		}
		row := struct{ id, code, programme, module, file string }{}
		get := func(name string) string {
			i := col[name]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		row.id = NormalizeID(get("Student ID"))
		row.code = normalizeCode(get("Code"))
		row.programme = get("Programme")
		row.module = get("Module")
		row.file = get("PDF File")

		if row.id == "" || row.code == "" || row.module == "" || row.file == "" {
			slog.Warn("skipping incomplete roster row", "line", line, "student_id", row.id)
			continue
		}

		if err := upsertStudent(tx, row.id, row.code, row.programme); err != nil {
			return 0, fmt.Errorf("import student %s: %w", row.id, err)
		}

		fileKey := [3]string{row.id, row.module, row.file}
		if seenFiles[fileKey] {
			slog.Debug("duplicate roster row", "line", line, "student_id", row.id, "file", row.file)
			continue
		}
		seenFiles[fileKey] = true

		posKey := [2]string{row.id, row.module}
		pos, started := positions[posKey]
		if !started {
			// First row for this pair in this import: replace any rows from a
			// previous import so re-imports do not accumulate documents.
			_, err := tx.Exec(
				`DELETE FROM documents WHERE student_id = ? AND module = ?`,
				row.id, row.module,
			)
			if err != nil {
				return 0, fmt.Errorf("replace documents for %s: %w", row.id, err)
			}
		}
		positions[posKey] = pos + 1

		_, err = tx.Exec(
			`INSERT INTO documents (student_id, module, file, position) VALUES (?, ?, ?, ?)`,
			row.id, row.module, row.file, pos,
		)
		if err != nil {
			return 0, fmt.Errorf("import document %s: %w", row.file, err)
		}
		imported++
	}

	if imported == 0 {
		return 0, ErrEmptyRoster
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	slog.Info("imported roster", "rows", imported, "students", len(positions))
	return imported, nil
}

func upsertStudent(tx *sql.Tx, id, code, programme string) error {
	var exists int
	err := tx.QueryRow(`SELECT COUNT(*) FROM students WHERE student_id = ?`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash access code: %w", err)
	}
	_, err = tx.Exec(
		`INSERT INTO students (student_id, code_hash, programme) VALUES (?, ?, ?)`,
		id, string(hash), programme,
	)
	return err
}

// Lookup validates a (student ID, access code) pair against the roster and
// returns the full student record. Both an unknown ID and a wrong code return
// ErrNotFound; callers cannot distinguish the two.
func (s *Store) Lookup(studentID, code string) (*model.Student, error) {
	id := NormalizeID(studentID)
	var hash string
	err := s.db.QueryRow(`SELECT code_hash FROM students WHERE student_id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(normalizeCode(code))) != nil {
		return nil, ErrNotFound
	}
	return s.GetStudent(id)
}
