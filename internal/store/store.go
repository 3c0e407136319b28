package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/pavelanni/studyaide/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no roster row matches the given credentials.
var ErrNotFound = errors.New("student not found")

// Store is the roster index. It is read-only after import and safe for
// concurrent reads.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		student_id TEXT PRIMARY KEY,
		code_hash TEXT NOT NULL,
		programme TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id TEXT NOT NULL,
		module TEXT NOT NULL,
		file TEXT NOT NULL,
		position INTEGER NOT NULL,
		FOREIGN KEY (student_id) REFERENCES students(student_id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_student_module
		ON documents(student_id, module, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetStudent returns the roster entry for a student ID without checking the
// access code. Returns ErrNotFound if the ID is not in the roster.
func (s *Store) GetStudent(studentID string) (*model.Student, error) {
	id := NormalizeID(studentID)
	var st model.Student
	err := s.db.QueryRow(
		`SELECT student_id, programme FROM students WHERE student_id = ?`, id,
	).Scan(&st.ID, &st.Programme)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query student: %w", err)
	}
	modules, err := s.Modules(id)
	if err != nil {
		return nil, err
	}
	st.Modules = modules
	return &st, nil
}

// Modules returns all modules for a student with their documents in
// file-listing order.
func (s *Store) Modules(studentID string) (map[string][]model.DocumentRef, error) {
	rows, err := s.db.Query(
		`SELECT module, file FROM documents WHERE student_id = ? ORDER BY module, position`,
		NormalizeID(studentID),
	)
	if err != nil {
		return nil, fmt.Errorf("query modules: %w", err)
	}
	defer rows.Close()

	modules := make(map[string][]model.DocumentRef)
	for rows.Next() {
		var module, file string
		if err := rows.Scan(&module, &file); err != nil {
			return nil, err
		}
		modules[module] = append(modules[module], docRef(module, file))
	}
	return modules, rows.Err()
}

// DocumentsFor returns the documents for one (student, module) pair in
// file-listing order. A student or module with no documents yields an empty
// slice, not an error.
func (s *Store) DocumentsFor(studentID, module string) ([]model.DocumentRef, error) {
	rows, err := s.db.Query(
		`SELECT file FROM documents WHERE student_id = ? AND module = ? ORDER BY position`,
		NormalizeID(studentID), module,
	)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var refs []model.DocumentRef
	for rows.Next() {
		var file string
		if err := rows.Scan(&file); err != nil {
			return nil, err
		}
		refs = append(refs, docRef(module, file))
	}
	return refs, rows.Err()
}

// Stats returns roster-wide counts for the startup log.
func (s *Store) Stats() (model.RosterStats, error) {
	var st model.RosterStats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM students`).Scan(&st.Students); err != nil {
		return st, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(DISTINCT programme) FROM students`).Scan(&st.Programmes); err != nil {
		return st, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(DISTINCT module) FROM documents`).Scan(&st.Modules); err != nil {
		return st, err
	}
	return st, nil
}

// StudentCount returns the number of students in the roster.
func (s *Store) StudentCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM students`).Scan(&count)
	return count, err
}

func docRef(module, file string) model.DocumentRef {
	return model.DocumentRef{
		File:           file,
		Type:           model.DocTypeForFile(file),
		Module:         module,
		CourseworkType: model.CourseworkTypeForFile(file),
		DisplayName:    model.DisplayNameForFile(file),
	}
}
