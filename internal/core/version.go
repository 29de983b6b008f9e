package core

// version.go implements the append-only version chain.
//
// A record is never updated in place. A candidate for a key with no history
// becomes the first version; a candidate for a known key becomes a new
// version whose descriptive bag is the prior bag overlaid by the
// candidate's. Lookup of the latest version and insertion of the new one
// happen inside VersionStore.Apply, which is the only serialization point
// between concurrent writers of the same key.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VersionResolution is the precision of version timestamps. It matches
// PostgreSQL timestamptz so stored versions round-trip exactly.
const VersionResolution = time.Microsecond

// VersionStore holds version chains keyed by business key.
type VersionStore interface {
	// Apply looks up the latest version of key and appends the record
	// returned by build, atomically with respect to other Apply calls
	// for the same key. latest is nil when the key has no history.
	// If build returns an error nothing is appended.
	Apply(ctx context.Context, key BusinessKey, build func(latest *CanonicalRecord) (CanonicalRecord, error)) (CanonicalRecord, error)

	// FindLatest returns the version with the greatest timestamp.
	FindLatest(ctx context.Context, key BusinessKey) (CanonicalRecord, bool, error)

	// History returns every version of key in ascending version order.
	History(ctx context.Context, key BusinessKey) ([]CanonicalRecord, error)
}

// Emission is the result of emitting one candidate.
type Emission struct {
	Record       CanonicalRecord
	Merged       bool      // a prior version existed
	PriorVersion time.Time // zero when Merged is false
}

// Engine reconciles candidates with the version store.
type Engine struct {
	store VersionStore
	now   func() time.Time
}

// NewEngine creates an engine backed by store. A nil clock uses time.Now.
func NewEngine(store VersionStore, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{store: store, now: now}
}

// Emit appends candidate as a new version of its business key.
// candidate.Version and candidate.ID are assigned here.
func (e *Engine) Emit(ctx context.Context, candidate CanonicalRecord) (Emission, error) {
	var em Emission
	rec, err := e.store.Apply(ctx, candidate.Key(), func(latest *CanonicalRecord) (CanonicalRecord, error) {
		out := Merge(latest, candidate, e.now())
		out.ID = uuid.NewString()
		em.Merged = latest != nil
		if latest != nil {
			em.PriorVersion = latest.Version
		}
		return out, nil
	})
	if err != nil {
		return Emission{}, fmt.Errorf("emit %s: %w", candidate.Key(), err)
	}
	em.Record = rec
	return em, nil
}

// Latest returns the current version of key.
func (e *Engine) Latest(ctx context.Context, key BusinessKey) (CanonicalRecord, bool, error) {
	return e.store.FindLatest(ctx, key)
}

// History returns every version of key, oldest first.
func (e *Engine) History(ctx context.Context, key BusinessKey) ([]CanonicalRecord, error) {
	return e.store.History(ctx, key)
}

// Merge builds the record to append. Without a prior version the candidate
// is returned as-is apart from its version. With one, fixed fields come from
// the candidate and descriptive keys from the candidate override the prior
// bag; keys only in the prior bag are kept. Neither input is modified.
func Merge(prior *CanonicalRecord, candidate CanonicalRecord, now time.Time) CanonicalRecord {
	out := candidate.Clone()
	if out.Descriptive == nil {
		out.Descriptive = Descriptive{}
	}
	if prior == nil {
		out.Version = NextVersion(time.Time{}, now)
		return out
	}

	merged := prior.Descriptive.Clone()
	for k, v := range candidate.Descriptive {
		merged[k] = v
	}
	out.Descriptive = merged
	out.Version = NextVersion(prior.Version, now)
	return out
}

// NextVersion returns a timestamp strictly greater than prior: now, unless
// the clock has not advanced past prior, in which case prior plus one tick.
func NextVersion(prior, now time.Time) time.Time {
	v := now.UTC().Truncate(VersionResolution)
	if prior.IsZero() {
		return v
	}
	if floor := prior.UTC().Add(VersionResolution); v.Before(floor) {
		return floor
	}
	return v
}

// PickLatest returns the record with the greatest version. Equal maximal
// versions should not occur; when they do the record with the
// lexicographically largest JSON serialization wins so the choice is
// deterministic.
func PickLatest(records []CanonicalRecord) (CanonicalRecord, bool) {
	if len(records) == 0 {
		return CanonicalRecord{}, false
	}
	best := records[0]
	var bestJSON []byte
	for _, r := range records[1:] {
		switch {
		case r.Version.After(best.Version):
			best, bestJSON = r, nil
		case r.Version.Equal(best.Version):
			if bestJSON == nil {
				bestJSON = canonicalJSON(best)
			}
			if rj := canonicalJSON(r); bytes.Compare(rj, bestJSON) > 0 {
				best, bestJSON = r, rj
			}
		}
	}
	return best, true
}

// canonicalJSON serializes a record for tie-breaking. encoding/json sorts
// map keys, so equal records always serialize identically.
func canonicalJSON(r CanonicalRecord) []byte {
	b, err := json.Marshal(r)
	if err != nil {
		return []byte(r.ID)
	}
	return b
}
