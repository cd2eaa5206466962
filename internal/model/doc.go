// Package model defines the domain entities shared between the local
// datastore, the remote adapter, and the sync engine.
//
// Every entity carries a stable UUID assigned at creation, an UpdatedAt
// timestamp maintained by the remote store (used for incremental pulls),
// and a nullable DeletedAt tombstone. Rows are never hard-deleted remotely;
// a set DeletedAt must be propagated locally as a deletion.
//
// Relationships are expressed as ID strings rather than pointers to avoid
// circular references. A reference that cannot be resolved locally yet
// (e.g. a Split pointing at a Person that has not been pulled) is left nil
// and heals on a later sync cycle.
package model
