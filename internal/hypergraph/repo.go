package hypergraph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/hypermind/internal/apperr"
	"github.com/starford/hypermind/internal/checksum"
	"github.com/starford/hypermind/internal/models"
)

// Create inserts a hypergraph record. Creating an id that already exists is
// not an error: the existing record is kept, which resolves creation races.
func (db *DB) Create(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("hypergraph: create: %w", apperr.ErrInvalidInput)
	}
	_, err := db.conn.ExecContext(ctx, `INSERT INTO hypergraphs (id) VALUES (?) ON CONFLICT(id) DO NOTHING`, id)
	if err != nil {
		return fmt.Errorf("hypergraph: create: %w", err)
	}
	return nil
}

// Exists reports whether a hypergraph with id has been created.
func (db *DB) Exists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM hypergraphs WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("hypergraph: exists: %w", err)
	}
	return n > 0, nil
}

// Hyperedges returns every hyperedge of the hypergraph in insertion order.
func (db *DB) Hyperedges(ctx context.Context, id string) ([]models.Hyperedge, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, symbols FROM hyperedges WHERE hypergraph_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("hypergraph: list hyperedges: %w", err)
	}
	defer rows.Close()

	out := []models.Hyperedge{}
	for rows.Next() {
		var edgeID, raw string
		if err := rows.Scan(&edgeID, &raw); err != nil {
			return nil, err
		}
		var symbols []string
		if err := json.Unmarshal([]byte(raw), &symbols); err != nil {
			return nil, fmt.Errorf("hypergraph: decode symbols of %s: %w", edgeID, err)
		}
		out = append(out, models.Hyperedge{ID: edgeID, Symbols: symbols})
	}
	return out, rows.Err()
}

// Add appends symbol to the hyperedge whose path equals path, or creates the
// hyperedge path+symbol when no such edge exists. It returns the id of the
// resulting hyperedge.
func (db *DB) Add(ctx context.Context, id string, path []string, symbol string) (string, error) {
	if symbol == "" {
		return "", fmt.Errorf("hypergraph: add: empty symbol: %w", apperr.ErrInvalidInput)
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("hypergraph: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := requireGraph(ctx, tx, id); err != nil {
		return "", err
	}

	next := append(append([]string(nil), path...), symbol)
	nextID := checksum.HyperedgeID(next)
	payload, _ := json.Marshal(next)

	if dup, err := edgeExists(ctx, tx, id, nextID); err != nil {
		return "", err
	} else if dup {
		return nextID, tx.Commit()
	}

	var res sql.Result
	if len(path) > 0 {
		res, err = tx.ExecContext(ctx,
			`UPDATE hyperedges SET id = ?, symbols = ? WHERE hypergraph_id = ? AND id = ?`,
			nextID, string(payload), id, checksum.HyperedgeID(path))
		if err != nil {
			return "", fmt.Errorf("hypergraph: extend hyperedge: %w", err)
		}
	}
	if res == nil || rowsAffected(res) == 0 {
		if err := insertEdge(ctx, tx, id, nextID, string(payload)); err != nil {
			return "", err
		}
	}
	return nextID, tx.Commit()
}

// AddHyperedges inserts whole paths, skipping empty paths and duplicates.
// It returns how many new hyperedges were stored.
func (db *DB) AddHyperedges(ctx context.Context, id string, paths [][]string) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("hypergraph: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := requireGraph(ctx, tx, id); err != nil {
		return 0, err
	}

	added := 0
	for _, p := range paths {
		if len(p) == 0 {
			continue
		}
		edgeID := checksum.HyperedgeID(p)
		dup, err := edgeExists(ctx, tx, id, edgeID)
		if err != nil {
			return 0, err
		}
		if dup {
			continue
		}
		payload, _ := json.Marshal(p)
		if err := insertEdge(ctx, tx, id, edgeID, string(payload)); err != nil {
			return 0, err
		}
		added++
	}
	return added, tx.Commit()
}

// Remove deletes the hyperedge whose path equals path.
func (db *DB) Remove(ctx context.Context, id string, path []string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM hyperedges WHERE hypergraph_id = ? AND id = ?`, id, checksum.HyperedgeID(path))
	if err != nil {
		return fmt.Errorf("hypergraph: remove: %w", err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("hypergraph: remove: %w", apperr.ErrNotFound)
	}
	return nil
}

func requireGraph(ctx context.Context, tx *sql.Tx, id string) error {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM hypergraphs WHERE id = ?`, id).Scan(&n); err != nil {
		return fmt.Errorf("hypergraph: lookup: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("hypergraph %q: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func edgeExists(ctx context.Context, tx *sql.Tx, graphID, edgeID string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM hyperedges WHERE hypergraph_id = ? AND id = ?`, graphID, edgeID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("hypergraph: lookup hyperedge: %w", err)
	}
	return true, nil
}

func insertEdge(ctx context.Context, tx *sql.Tx, graphID, edgeID, payload string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO hyperedges (hypergraph_id, id, position, symbols)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM hyperedges WHERE hypergraph_id = ?), ?)
	`, graphID, edgeID, graphID, payload)
	if err != nil {
		return fmt.Errorf("hypergraph: insert hyperedge: %w", err)
	}
	return nil
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
