package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/multidiagtools/mdtsql/internal/compiler"
	"github.com/multidiagtools/mdtsql/internal/ir"
	"github.com/multidiagtools/mdtsql/internal/queryir"
)

// ErrNotFound is returned when a named definition is not in the catalog.
var ErrNotFound = errors.New("not found")

// DefinitionRecord is one catalog row.
type DefinitionRecord struct {
	Name        string
	Kind        compiler.Kind
	Filter      string
	Description string
	Strict      bool
	Fingerprint string
	Tree        string // canonical JSON of the expression tree
	SQL         string // SQLite rendering
}

// SaveDefinition inserts or replaces the catalog row for def.Name.
// Saving the same definition twice leaves one identical row.
//
// The tree is serialized to canonical JSON and rendered with the store's
// dialect before writing.
func (s *Store) SaveDefinition(ctx context.Context, def *compiler.Definition) error {
	if def == nil || def.Node == nil {
		return fmt.Errorf("save definition: no expression")
	}

	tree, err := marshalTree(def.Node)
	if err != nil {
		return fmt.Errorf("save definition %s: %w", def.Name, err)
	}

	fingerprint, err := queryir.Fingerprint(def.Node)
	if err != nil {
		return fmt.Errorf("save definition %s: %w", def.Name, err)
	}

	rendered, err := def.ToSQL(s.Escaper())
	if err != nil {
		return fmt.Errorf("save definition %s: %w", def.Name, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO definitions
		(name, kind, filter, description, strict, fingerprint, tree, sql)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			kind = excluded.kind,
			filter = excluded.filter,
			description = excluded.description,
			strict = excluded.strict,
			fingerprint = excluded.fingerprint,
			tree = excluded.tree,
			sql = excluded.sql
	`,
		def.Name,
		string(def.Kind),
		def.Filter,
		def.Description,
		def.Strict,
		fingerprint,
		tree,
		rendered,
	)
	if err != nil {
		return fmt.Errorf("save definition %s: %w", def.Name, err)
	}

	return nil
}

// GetDefinition loads a definition and recompiles its filter.
//
// Returns an error wrapping ErrNotFound if no row exists, and an error if
// the recompiled tree does not match the stored fingerprint.
func (s *Store) GetDefinition(ctx context.Context, name string) (*compiler.Definition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, kind, filter, description, strict, fingerprint, tree, sql
		FROM definitions
		WHERE name = ?
	`, name)

	rec, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("definition %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get definition %s: %w", name, err)
	}

	return rec.Definition()
}

// ListDefinitions returns catalog rows ordered by name. An empty kind
// returns every row.
//
// Returns an empty slice (not nil) if the catalog is empty.
func (s *Store) ListDefinitions(ctx context.Context, kind compiler.Kind) ([]DefinitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, kind, filter, description, strict, fingerprint, tree, sql
		FROM definitions
		WHERE ? = '' OR kind = ?
		ORDER BY name COLLATE BINARY ASC
	`, string(kind), string(kind))
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()

	records := []DefinitionRecord{}
	for rows.Next() {
		rec, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate definitions: %w", err)
	}

	return records, nil
}

// DeleteDefinition removes a definition. Deleting a missing name is not an
// error.
func (s *Store) DeleteDefinition(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM definitions WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete definition %s: %w", name, err)
	}
	return nil
}

// Definition recompiles the record's filter and checks it against the
// stored fingerprint.
func (r DefinitionRecord) Definition() (*compiler.Definition, error) {
	node, err := queryir.Parse(r.Filter)
	if err != nil {
		return nil, fmt.Errorf("definition %s: %w", r.Name, err)
	}

	fingerprint, err := queryir.Fingerprint(node)
	if err != nil {
		return nil, fmt.Errorf("definition %s: %w", r.Name, err)
	}
	if fingerprint != r.Fingerprint {
		return nil, fmt.Errorf("definition %s: fingerprint mismatch: stored %s, filter compiles to %s",
			r.Name, r.Fingerprint, fingerprint)
	}

	return &compiler.Definition{
		Name:        r.Name,
		Kind:        r.Kind,
		Filter:      r.Filter,
		Description: r.Description,
		Strict:      r.Strict,
		Node:        node,
		Fingerprint: fingerprint,
	}, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (DefinitionRecord, error) {
	var rec DefinitionRecord
	var kind string
	if err := row.Scan(
		&rec.Name,
		&kind,
		&rec.Filter,
		&rec.Description,
		&rec.Strict,
		&rec.Fingerprint,
		&rec.Tree,
		&rec.SQL,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DefinitionRecord{}, err
		}
		return DefinitionRecord{}, fmt.Errorf("scan definition: %w", err)
	}
	rec.Kind = compiler.Kind(kind)
	return rec, nil
}

// marshalTree serializes an expression tree to canonical JSON.
func marshalTree(n queryir.Node) (string, error) {
	obj, err := queryir.Canonical(n)
	if err != nil {
		return "", fmt.Errorf("marshal tree: %w", err)
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal tree: %w", err)
	}
	return string(data), nil
}
