package datastore

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// Table is a typed accessor for one PostgREST table, parameterized over the
// row's Go struct (models.Molecule, models.Calculation, models.QualityMetrics,
// models.Lineage — spec §3.2).
type Table[T any] struct {
	client *Client
	name   string
}

// NewTable builds a Table bound to name on client.
func NewTable[T any](client *Client, name string) Table[T] {
	return Table[T]{client: client, name: name}
}

// Get fetches rows matching filters.
func (t Table[T]) Get(ctx context.Context, filters Filters) ([]T, error) {
	body, err := t.client.do(ctx, t.name+".get", http.MethodGet, t.client.endpoint(t.name, filters.encode()), nil, nil)
	if err != nil {
		return nil, err
	}
	var rows []T
	if err := decode(t.name+".get", body, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert creates one row and returns the DataStore's copy (with any
// server-assigned defaults applied).
func (t Table[T]) Insert(ctx context.Context, row T) (T, error) {
	rows, err := t.insert(ctx, []T{row})
	if err != nil {
		var zero T
		return zero, err
	}
	if len(rows) == 0 {
		return row, nil
	}
	return rows[0], nil
}

// InsertMany creates several rows in a single request.
func (t Table[T]) InsertMany(ctx context.Context, rows []T) ([]T, error) {
	return t.insert(ctx, rows)
}

func (t Table[T]) insert(ctx context.Context, rows []T) ([]T, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, &Error{Op: t.name + ".insert", Cause: err}
	}
	headers := map[string]string{"Prefer": "return=representation"}
	body, err := t.client.do(ctx, t.name+".insert", http.MethodPost, t.client.endpoint(t.name, ""), strings.NewReader(string(data)), headers)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := decode(t.name+".insert", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update patches every row matching filters and returns the updated rows.
func (t Table[T]) Update(ctx context.Context, filters Filters, patch any) ([]T, error) {
	data, err := json.Marshal(patch)
	if err != nil {
		return nil, &Error{Op: t.name + ".update", Cause: err}
	}
	headers := map[string]string{"Prefer": "return=representation"}
	body, err := t.client.do(ctx, t.name+".update", http.MethodPatch, t.client.endpoint(t.name, filters.encode()), strings.NewReader(string(data)), headers)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := decode(t.name+".update", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes every row matching filters and reports how many were removed.
func (t Table[T]) Delete(ctx context.Context, filters Filters) (int, error) {
	headers := map[string]string{"Prefer": "return=representation"}
	body, err := t.client.do(ctx, t.name+".delete", http.MethodDelete, t.client.endpoint(t.name, filters.encode()), nil, headers)
	if err != nil {
		return 0, err
	}
	var out []T
	if err := decode(t.name+".delete", body, &out); err != nil {
		return 0, err
	}
	return len(out), nil
}
