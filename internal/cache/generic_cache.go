package cache

import "encoding/json"

// Store maps a canonical request key to the payload observed for it
type Store map[string]json.RawMessage

// Clone returns a shallow copy of the store
func (s Store) Clone() Store {
	out := make(Store, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Persister mirrors a Store to durable storage
type Persister interface {
	// reads the durable copy. Never fails: a missing, unreadable or
	// malformed copy yields an empty store.
	Load() Store
	// replaces the durable copy with a full serialization of store
	Persist(store Store) error
	// describes where the durable copy lives (a file path)
	Location() string
}
