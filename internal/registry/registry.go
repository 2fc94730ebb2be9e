// Package registry holds the vendor identity table as an explicit state
// object. A run clones the prior snapshot, resolves observations into the
// clone and hands it back for persistence; nothing here is global.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"ledger/internal/core"
)

var (
	ErrEmptyName     = errors.New("empty normalized name")
	ErrDuplicateName = errors.New("normalized name mapped to more than one vendor")
	ErrDuplicateID   = errors.New("duplicate vendor id")
	ErrUnknownVendor = errors.New("unknown vendor id")
	ErrConflict      = errors.New("registry conflict")
)

// IDPrefix starts every allocated vendor id.
const IDPrefix = "V"

// Registry maps normalized names to stable vendor identities.
type Registry struct {
	vendors map[string]*core.VendorIdentity
	byName  map[string]string
	next    int

	// Identities whose classification or summary this run wrote; Merge
	// only lets these fields win over the on-disk copy.
	classified map[string]bool
	summarized map[string]bool
}

// Snapshot is the persisted form of a Registry.
type Snapshot struct {
	NextSeq int
	Vendors []core.VendorIdentity
}

func New() *Registry {
	return &Registry{
		vendors:    make(map[string]*core.VendorIdentity),
		byName:     make(map[string]string),
		classified: make(map[string]bool),
		summarized: make(map[string]bool),
	}
}

// FromSnapshot rebuilds a Registry, rejecting snapshots that break the
// one-name-one-id invariant.
func FromSnapshot(s Snapshot) (*Registry, error) {
	r := New()
	r.next = s.NextSeq
	for i := range s.Vendors {
		v := s.Vendors[i].Clone()
		if v.NormalizedName == "" {
			return nil, fmt.Errorf("vendor %s: %w", v.ID, ErrEmptyName)
		}
		if _, ok := r.vendors[v.ID]; ok {
			return nil, fmt.Errorf("vendor %s: %w", v.ID, ErrDuplicateID)
		}
		if other, ok := r.byName[v.NormalizedName]; ok {
			return nil, fmt.Errorf("%q (%s, %s): %w", v.NormalizedName, other, v.ID, ErrDuplicateName)
		}
		sort.Strings(v.Aliases)
		v.Aliases = dedupeSorted(v.Aliases)
		if v.Source == "" {
			v.Source = core.SourceAuto
		}
		r.vendors[v.ID] = &v
		r.byName[v.NormalizedName] = v.ID
		if seq, ok := parseSeq(v.ID); ok && seq >= r.next {
			r.next = seq + 1
		}
	}
	return r, nil
}

// Snapshot returns a deep copy ordered by vendor id.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{NextSeq: r.next, Vendors: r.Vendors()}
}

// Clone returns an independent copy with no run-local markers.
func (r *Registry) Clone() *Registry {
	out := New()
	out.next = r.next
	for id, v := range r.vendors {
		c := v.Clone()
		out.vendors[id] = &c
	}
	for name, id := range r.byName {
		out.byName[name] = id
	}
	return out
}

// Resolve returns the vendor id for normalized, creating an identity when
// the name is new, and records raw as an alias.
func (r *Registry) Resolve(normalized, raw string) (string, error) {
	if normalized == "" {
		return "", ErrEmptyName
	}
	if id, ok := r.byName[normalized]; ok {
		r.vendors[id].AddAlias(raw)
		return id, nil
	}

	id := FormatID(r.next)
	r.next++
	v := &core.VendorIdentity{
		ID:             id,
		NormalizedName: normalized,
		Classification: core.DefaultClassification(),
		Source:         core.SourceAuto,
	}
	v.AddAlias(raw)
	r.vendors[id] = v
	r.byName[normalized] = id
	return id, nil
}

// Lookup returns the id registered for normalized.
func (r *Registry) Lookup(normalized string) (string, bool) {
	id, ok := r.byName[normalized]
	return id, ok
}

// Get returns a copy of the identity with the given id.
func (r *Registry) Get(id string) (core.VendorIdentity, bool) {
	v, ok := r.vendors[id]
	if !ok {
		return core.VendorIdentity{}, false
	}
	return v.Clone(), true
}

func (r *Registry) Len() int {
	return len(r.vendors)
}

// NextSeq is the counter the next new identity will receive.
func (r *Registry) NextSeq() int {
	return r.next
}

// Vendors returns copies of all identities ordered by id.
func (r *Registry) Vendors() []core.VendorIdentity {
	ids := make([]string, 0, len(r.vendors))
	for id := range r.vendors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]core.VendorIdentity, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.vendors[id].Clone())
	}
	return out
}

// IDsByName returns the normalized-name index.
func (r *Registry) IDsByName() map[string]string {
	out := make(map[string]string, len(r.byName))
	for name, id := range r.byName {
		out[name] = id
	}
	return out
}

// Classifications returns the current classification of every identity.
func (r *Registry) Classifications() map[string]core.Classification {
	out := make(map[string]core.Classification, len(r.vendors))
	for id, v := range r.vendors {
		out[id] = v.Classification
	}
	return out
}

// Validate checks the registry invariants: every identity has a non-empty
// normalized name and each name belongs to exactly one id.
func (r *Registry) Validate() error {
	seen := make(map[string]string, len(r.vendors))
	for id, v := range r.vendors {
		if v.NormalizedName == "" {
			return fmt.Errorf("vendor %s: %w", id, ErrEmptyName)
		}
		if other, ok := seen[v.NormalizedName]; ok {
			return fmt.Errorf("%q (%s, %s): %w", v.NormalizedName, other, id, ErrDuplicateName)
		}
		seen[v.NormalizedName] = id
		if r.byName[v.NormalizedName] != id {
			return fmt.Errorf("index for %q points at %q, not %s: %w", v.NormalizedName, r.byName[v.NormalizedName], id, ErrDuplicateName)
		}
	}
	if len(r.byName) != len(r.vendors) {
		return fmt.Errorf("name index has %d entries for %d vendors: %w", len(r.byName), len(r.vendors), ErrDuplicateName)
	}
	return nil
}

// FormatID renders a sequence number as a vendor id.
func FormatID(seq int) string {
	return fmt.Sprintf("%s%05d", IDPrefix, seq)
}

func parseSeq(id string) (int, bool) {
	if !strings.HasPrefix(id, IDPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, IDPrefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func dedupeSorted(in []string) []string {
	out := in[:0]
	for _, v := range in {
		if len(out) > 0 && out[len(out)-1] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}
