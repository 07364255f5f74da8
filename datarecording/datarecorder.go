// Package datarecording stores rows of flat structs in an SQLite database.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

var (
	// ErrFileExists is returned when the database file is already there.
	ErrFileExists = errors.New("datarecording: file already exists")

	// ErrTableExists is returned when a table is created twice.
	ErrTableExists = errors.New("datarecording: table already exists")

	// ErrNoSuchTable is returned when inserting into an unknown table.
	ErrNoSuchTable = errors.New("datarecording: no such table")

	// ErrUnsupportedEntry is returned for entries that are not structs of
	// scalar fields, or that do not match the table they go into.
	ErrUnsupportedEntry = errors.New("datarecording: unsupported entry")

	// ErrClosed is returned once the recorder has been closed.
	ErrClosed = errors.New("datarecording: recorder closed")
)

// DefaultBatchSize is the number of buffered rows that triggers a flush.
const DefaultBatchSize = 100000

// DataRecorder is a backend that can record and store data.
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any) error

	// InsertData buffers a row for a table that already exists.
	InsertData(tableName string, entry any) error

	// ListTables returns the names of all tables, sorted.
	ListTables() []string

	// Flush writes all the buffered rows into the database.
	Flush() error

	// Close flushes and closes the database.
	Close() error
}

type table struct {
	structType reflect.Type
	entries    []any
}

// sqliteWriter is the writer that writes data into an SQLite database.
type sqliteWriter struct {
	mu sync.Mutex

	db       *sql.DB
	path     string
	ownsDB   bool
	closed   bool
	tables   map[string]*table
	batch    int
	buffered int
}

// New creates a recorder backed by a new SQLite file. An empty name picks a
// unique one. The ".sqlite3" extension is appended.
func New(name string) (DataRecorder, error) {
	if name == "" {
		name = "saturn_recording_" + xid.New().String()
	}

	path := name + ".sqlite3"

	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileExists, path)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("datarecording: open %s: %w", path, err)
	}

	w := newWriter(db)
	w.path = path
	w.ownsDB = true

	atexit.Register(func() { _ = w.Close() })

	return w, nil
}

// NewWithDB creates a recorder on an open database. The caller keeps
// ownership of db; Close only flushes.
func NewWithDB(db *sql.DB) DataRecorder {
	return newWriter(db)
}

// Path returns the database file of a recorder created with New, or an
// empty string.
func Path(r DataRecorder) string {
	w, ok := r.(*sqliteWriter)
	if !ok {
		return ""
	}

	return w.path
}

func newWriter(db *sql.DB) *sqliteWriter {
	return &sqliteWriter{
		db:     db,
		tables: make(map[string]*table),
		batch:  DefaultBatchSize,
	}
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

// Unsigned 64-bit values above MaxInt64 are rejected by the driver, so they
// are stored as signed integers with the same bits.
func columnValue(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Uint64, reflect.Uint:
		return int64(v.Uint())
	default:
		return v.Interface()
	}
}

func checkEntry(entry any) error {
	t := reflect.TypeOf(entry)
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %T is not a struct", ErrUnsupportedEntry, entry)
	}

	if t.NumField() == 0 {
		return fmt.Errorf("%w: %T has no fields", ErrUnsupportedEntry, entry)
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if !field.IsExported() {
			return fmt.Errorf("%w: field %s is not exported",
				ErrUnsupportedEntry, field.Name)
		}

		kind := field.Type.Kind()
		if !isAllowedKind(kind) {
			return fmt.Errorf("%w: field %s has kind %s",
				ErrUnsupportedEntry, field.Name, kind)
		}
	}

	return nil
}

func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	if _, exists := w.tables[tableName]; exists {
		return fmt.Errorf("%w: %s", ErrTableExists, tableName)
	}

	if err := checkEntry(sampleEntry); err != nil {
		return err
	}

	fields := strings.Join(structs.Names(sampleEntry), ", \n\t")
	query := `CREATE TABLE ` + tableName +
		` (` + "\n\t" + fields + "\n" + `);`

	if _, err := w.db.Exec(query); err != nil {
		return fmt.Errorf("datarecording: create table %s: %w", tableName, err)
	}

	w.tables[tableName] = &table{structType: reflect.TypeOf(sampleEntry)}

	return nil
}

func (w *sqliteWriter) InsertData(tableName string, entry any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	t, exists := w.tables[tableName]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNoSuchTable, tableName)
	}

	if reflect.TypeOf(entry) != t.structType {
		return fmt.Errorf("%w: %T does not match table %s",
			ErrUnsupportedEntry, entry, tableName)
	}

	t.entries = append(t.entries, entry)

	w.buffered++
	if w.buffered >= w.batch {
		return w.flush()
	}

	return nil
}

func (w *sqliteWriter) ListTables() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	names := make([]string, 0, len(w.tables))
	for name := range w.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (w *sqliteWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	return w.flush()
}

func (w *sqliteWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	err := w.flush()
	w.closed = true

	if w.ownsDB {
		err = errors.Join(err, w.db.Close())
	}

	return err
}

func (w *sqliteWriter) flush() error {
	if w.buffered == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("datarecording: begin: %w", err)
	}

	names := make([]string, 0, len(w.tables))
	for name := range w.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		t := w.tables[name]
		if len(t.entries) == 0 {
			continue
		}

		if err := insertAll(tx, name, t.entries); err != nil {
			_ = tx.Rollback()
			return err
		}

		t.entries = nil
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("datarecording: commit: %w", err)
	}

	w.buffered = 0

	return nil
}

func insertAll(tx *sql.Tx, tableName string, entries []any) error {
	placeholders := structs.Names(entries[0])
	for i := range placeholders {
		placeholders[i] = "?"
	}

	query := "INSERT INTO " + tableName +
		" VALUES (" + strings.Join(placeholders, ", ") + ")"

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("datarecording: prepare %s: %w", tableName, err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		v := reflect.ValueOf(entry)

		values := make([]any, 0, v.NumField())
		for i := 0; i < v.NumField(); i++ {
			values = append(values, columnValue(v.Field(i)))
		}

		if _, err := stmt.Exec(values...); err != nil {
			return fmt.Errorf("datarecording: insert into %s: %w", tableName, err)
		}
	}

	return nil
}
