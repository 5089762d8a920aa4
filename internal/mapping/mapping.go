// Package mapping owns the table of registered proxy targets: the data
// model for one mapping, the Store interface, and its backends.
package mapping

import (
	"errors"
	"fmt"
	"time"
)

// CredentialMode selects what authentication material is attached to
// upstream fetches for a mapping. It is decided once, at creation time.
type CredentialMode string

const (
	// ModeNone sends no credentials upstream.
	ModeNone CredentialMode = "none"
	// ModeBasic sends HTTP basic auth upstream.
	ModeBasic CredentialMode = "basic"
	// ModeBearer sends a bearer token upstream.
	ModeBearer CredentialMode = "bearer"
)

// Credential holds the authentication material for a mapping. Exactly
// the fields matching the mapping's CredentialMode are populated.
type Credential struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"` //#nosec G117 -- upstream credentials are the point of this proxy
	Token    string `json:"token,omitempty"`
}

// Mapping represents one registered proxy target, addressed by an
// opaque random identifier.
type Mapping struct {
	ID         string            `json:"id"`
	TargetURL  string            `json:"url"`
	Mode       CredentialMode    `json:"credential_mode"`
	Credential Credential        `json:"credential,omitempty"`
	TTLSeconds int               `json:"ttl_seconds"`
	Headers    map[string]string `json:"headers,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// TTL returns the cache lifetime for responses fetched through this
// mapping.
func (m *Mapping) TTL() time.Duration {
	return time.Duration(m.TTLSeconds) * time.Second
}

// Definition describes a mapping to be created. The ID is minted by
// the store.
type Definition struct {
	TargetURL  string
	Mode       CredentialMode
	Credential Credential
	TTLSeconds int
	Headers    map[string]string
}

// ErrEmptyTargetURL is returned by Create when no target URL is given.
var ErrEmptyTargetURL = errors.New("mapping: target url is empty")

// PersistenceError reports a failed durable write of the mapping table.
// The in-memory table has already been mutated when this is returned;
// memory stays ahead of durable storage until the next successful write.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("mapping: persisting table failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is the authoritative table of mappings. Mappings are created
// exactly once and never updated or deleted.
type Store interface {
	// Create mints a fresh identifier for def, adds the mapping to the
	// table and durably persists it. A *PersistenceError means the
	// durable write failed after the in-memory table was mutated.
	Create(def Definition) (*Mapping, error)

	// Lookup returns the mapping for id, if any. Pure read.
	Lookup(id string) (*Mapping, bool)

	// Len returns the number of mappings in the table.
	Len() int

	// Close releases any resources held by the store.
	Close() error
}

// normalize validates def and forces the credential shape to match the
// mode, so a mapping never carries material its mode would not send.
func (d *Definition) normalize() error {
	if d.TargetURL == "" {
		return ErrEmptyTargetURL
	}

	switch d.Mode {
	case ModeBasic:
		d.Credential.Token = ""
	case ModeBearer:
		d.Credential.Username = ""
		d.Credential.Password = ""
	case ModeNone, "":
		d.Mode = ModeNone
		d.Credential = Credential{}
	default:
		return fmt.Errorf("mapping: unknown credential mode %q", d.Mode)
	}

	return nil
}

// build turns a normalized definition into a mapping with the given id.
func (d Definition) build(id string, now time.Time) *Mapping {
	return &Mapping{
		ID:         id,
		TargetURL:  d.TargetURL,
		Mode:       d.Mode,
		Credential: d.Credential,
		TTLSeconds: d.TTLSeconds,
		Headers:    d.Headers,
		CreatedAt:  now,
	}
}
