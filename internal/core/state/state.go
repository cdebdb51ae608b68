// Package state holds the client session state: the reference position,
// the loaded records and the current selection. State values are never
// mutated; Reduce returns a new one.
package state

import (
	"errors"
	"fmt"

	"github.com/samirrijal/hazardmap/internal/core/domain"
)

var (
	ErrInvalidPosition = errors.New("state: position out of range")
	ErrUnknownRecord   = errors.New("state: no such record")
)

var displayOrder = []domain.Kind{domain.KindWaypoint, domain.KindHazardZone, domain.KindIncident, domain.KindPlace}

// Selection identifies the focused record.
type Selection struct {
	Kind domain.Kind `json:"kind"`
	ID   string      `json:"id"`
}

// State is an immutable snapshot of a session.
type State struct {
	Version  uint64
	Position *domain.GeoPoint
	Selected *Selection

	records map[domain.Kind][]domain.Record
}

// Records returns the loaded records of kind. The slice must not be modified.
func (s State) Records(kind domain.Kind) []domain.Record {
	return s.records[kind]
}

// All returns every loaded record, grouped by kind.
func (s State) All() []domain.Record {
	var out []domain.Record
	for _, k := range displayOrder {
		out = append(out, s.records[k]...)
	}
	return out
}

// SelectedRecord returns the focused record, or nil.
func (s State) SelectedRecord() domain.Record {
	if s.Selected == nil {
		return nil
	}
	return s.find(s.Selected.Kind, s.Selected.ID)
}

func (s State) find(kind domain.Kind, id string) domain.Record {
	for _, r := range s.records[kind] {
		if r.Base().ID == id {
			return r
		}
	}
	return nil
}

// Action is one of PositionChanged, PositionCleared, RecordsLoaded, Select
// or ClearSelection.
type Action interface{ isAction() }

// PositionChanged moves the reference position and re-annotates distances.
type PositionChanged struct{ Position domain.GeoPoint }

// PositionCleared drops the reference position and all distances.
type PositionCleared struct{}

// RecordsLoaded replaces the records of one kind.
type RecordsLoaded struct {
	Kind    domain.Kind
	Records []domain.Record
}

// Select focuses a loaded record.
type Select struct {
	Kind domain.Kind
	ID   string
}

// ClearSelection drops the focus.
type ClearSelection struct{}

func (PositionChanged) isAction() {}
func (PositionCleared) isAction() {}
func (RecordsLoaded) isAction()   {}
func (Select) isAction()          {}
func (ClearSelection) isAction()  {}

// Reduce applies a to s and returns the resulting state. s is left untouched
// and records are copied before their distance is changed. On error s is
// returned unchanged.
func Reduce(s State, a Action) (State, error) {
	next := s
	switch act := a.(type) {
	case PositionChanged:
		if !act.Position.Valid() {
			return s, fmt.Errorf("%w: %v", ErrInvalidPosition, act.Position)
		}
		pos := act.Position
		next.Position = &pos
		next.records = annotateAll(s.records, next.Position)

	case PositionCleared:
		next.Position = nil
		next.records = annotateAll(s.records, nil)

	case RecordsLoaded:
		for _, r := range act.Records {
			if r.RecordKind() != act.Kind {
				return s, fmt.Errorf("%w: %s record loaded as %s", domain.ErrKindMismatch, r.RecordKind(), act.Kind)
			}
		}
		next.records = copyMap(s.records)
		next.records[act.Kind] = annotate(act.Records, s.Position)
		if next.Selected != nil && next.Selected.Kind == act.Kind && next.find(act.Kind, next.Selected.ID) == nil {
			next.Selected = nil
		}

	case Select:
		if s.find(act.Kind, act.ID) == nil {
			return s, fmt.Errorf("%w: %s %s", ErrUnknownRecord, act.Kind, act.ID)
		}
		next.Selected = &Selection{Kind: act.Kind, ID: act.ID}

	case ClearSelection:
		next.Selected = nil

	default:
		return s, fmt.Errorf("state: unknown action %T", a)
	}
	next.Version = s.Version + 1
	return next, nil
}

func annotateAll(in map[domain.Kind][]domain.Record, ref *domain.GeoPoint) map[domain.Kind][]domain.Record {
	out := make(map[domain.Kind][]domain.Record, len(in))
	for k, rs := range in {
		out[k] = annotate(rs, ref)
	}
	return out
}

func annotate(in []domain.Record, ref *domain.GeoPoint) []domain.Record {
	out := make([]domain.Record, len(in))
	for i, r := range in {
		c := domain.Clone(r)
		// an unanchored zone keeps a nil distance
		_ = domain.Measure(c, ref)
		out[i] = c
	}
	return out
}

func copyMap(in map[domain.Kind][]domain.Record) map[domain.Kind][]domain.Record {
	out := make(map[domain.Kind][]domain.Record, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Snapshot is the JSON view of a State pushed to clients.
type Snapshot struct {
	Version  uint64           `json:"version"`
	Position *domain.GeoPoint `json:"position,omitempty"`
	Selected *Selection       `json:"selected,omitempty"`
	Records  []domain.Record  `json:"records"`
}

// Snapshot renders s for transport.
func (s State) Snapshot() Snapshot {
	records := s.All()
	if records == nil {
		records = []domain.Record{}
	}
	return Snapshot{Version: s.Version, Position: s.Position, Selected: s.Selected, Records: records}
}
