// Package storage provides the storage abstraction layer for certificate
// authority records. Records are opaque byte blobs (PEM, JSON) grouped by
// kind and addressed by name.
package storage

import "errors"

// ErrNotFound is returned when the referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// Record kinds used by the certificate authority.
const (
	KindCertificate = "certificate"
	KindRequest     = "request"
	KindKey         = "key"
	KindState       = "state"
)

// Repository defines the interface for CA record storage.
//
// Get returns ErrNotFound (possibly wrapped) for missing records; Delete of
// a missing record is also ErrNotFound. List returns names only, in
// unspecified order; callers sort.
type Repository interface {
	Put(kind string, name string, data []byte) error
	Get(kind string, name string) ([]byte, error)
	Delete(kind string, name string) error
	List(kind string) ([]string, error)
}
