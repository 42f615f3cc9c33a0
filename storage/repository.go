// Package storage provides the storage abstraction layer for fieldcheck records.
package storage

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrNamespaceNotFound is returned when the containing namespace does not exist.
var ErrNamespaceNotFound = errors.New("namespace not found")

// Record is a single stored value. Data is an opaque payload; callers
// marshal their own types (JSON throughout this codebase).
type Record struct {
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository defines the interface for keyed record storage. Records are
// addressed by (namespace, recordType, recordID); namespaces group related
// record types (officers, sessions, query log) and map to a bucket, map,
// or table partition depending on the backend.
type Repository interface {
	Put(namespace, recordType, recordID string, rec *Record) error
	Get(namespace, recordType, recordID string) (*Record, error)
	List(namespace, recordType string) ([]string, error)
	Delete(namespace, recordType, recordID string) error
}

// PutJSON marshals v and stores it under the given key.
func PutJSON(repo Repository, namespace, recordType, recordID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return repo.Put(namespace, recordType, recordID, &Record{
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	})
}

// GetJSON loads the record at the given key and unmarshals it into v.
func GetJSON(repo Repository, namespace, recordType, recordID string, v any) error {
	rec, err := repo.Get(namespace, recordType, recordID)
	if err != nil {
		return err
	}
	return json.Unmarshal(rec.Data, v)
}
