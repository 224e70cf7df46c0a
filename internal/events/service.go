// Package events owns the event list: loading it from the key-value
// store (or the seed list on first run), the add-event flow with its
// duplicate-slot check, and persisting the whole list after each change.
package events

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"plancal/internal/calendar"
	appLog "plancal/internal/log"
	"plancal/internal/model"
	"plancal/internal/store"
)

// Key is the store key holding the serialized event list.
const Key = "events"

//go:embed seed.json
var defaultSeed []byte

var (
	ErrDuplicateSlot = errors.New("another event exists at the same date & time")
	ErrNotFound      = errors.New("event not found")
	ErrInvalidStatus = errors.New("invalid completion status")
)

// Options tunes a Service. Zero values pick sensible defaults.
type Options struct {
	// Seed is the JSON list used when the store has no "events" key.
	Seed      []byte
	Location  *time.Location
	WeekStart time.Weekday
	Now       func() time.Time
	NewID     func() string
}

// Service holds the in-memory list and mirrors every change to the store.
type Service struct {
	kv        store.KV
	seed      []byte
	loc       *time.Location
	weekStart time.Weekday
	now       func() time.Time
	newID     func() string

	mu     sync.RWMutex
	events []model.Event
}

func NewService(kv store.KV, opts Options) *Service {
	s := &Service{
		kv:        kv,
		seed:      opts.Seed,
		loc:       opts.Location,
		weekStart: opts.WeekStart,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if s.seed == nil {
		s.seed = defaultSeed
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Now returns the current time in the display zone.
func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) WeekStart() time.Weekday {
	return s.weekStart
}

// Load reads the list from the store. On first run the seed list is
// used and written back. Records without an ID are given one and times
// are normalized to HH:mm. The store read happens under the same lock as
// mutations so a reload never replaces a newer in-memory list.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, found, err := s.kv.Get(ctx, Key)
	if err != nil {
		return fmt.Errorf("events: load: %w", err)
	}
	seeded := false
	if !found {
		raw = s.seed
		seeded = true
	}

	list, err := decode(raw)
	if err != nil {
		if seeded {
			return fmt.Errorf("events: decode seed: %w", err)
		}
		return fmt.Errorf("events: decode stored list: %w", err)
	}

	assigned, normalized := 0, 0
	for i := range list {
		if list[i].ID == "" {
			list[i].ID = s.newID()
			assigned++
		}
		if list[i].Normalize() {
			normalized++
		}
	}

	s.events = list
	if seeded || assigned > 0 || normalized > 0 {
		if err := s.persistLocked(ctx); err != nil {
			return err
		}
	}
	appLog.Info("events loaded", "count", len(list), "seeded", seeded, "ids_assigned", assigned, "normalized", normalized)
	return nil
}

// Reload re-reads the store after an external change.
func (s *Service) Reload(ctx context.Context) error {
	return s.Load(ctx)
}

func decode(raw []byte) ([]model.Event, error) {
	var list []model.Event
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Event{}
	}
	return list, nil
}

// List returns a copy of all events in insertion order.
func (s *Service) List() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

func (s *Service) Get(id string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.events[i], nil
	}
	return model.Event{}, ErrNotFound
}

// Today returns the events dated today in the display zone.
func (s *Service) Today() []model.Event {
	return calendar.EventsOn(s.List(), s.Now())
}

// Month builds the grid for the month containing month.
func (s *Service) Month(month time.Time) (calendar.Grid, error) {
	return calendar.BuildMonth(month.In(s.loc), s.List(), s.Now(), s.weekStart)
}

// Add validates the draft and appends it as a pending event unless the
// slot (same date, same start time) is already taken.
func (s *Service) Add(ctx context.Context, d model.Draft) (model.Event, error) {
	if err := d.Validate(); err != nil {
		return model.Event{}, err
	}
	ev := d.Event(s.newID())

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slotTakenLocked(ev) {
		return model.Event{}, ErrDuplicateSlot
	}

	prev := s.events
	s.events = append(slices.Clone(prev), ev)
	if err := s.persistLocked(ctx); err != nil {
		s.events = prev
		return model.Event{}, err
	}
	appLog.Info("event added", "id", ev.ID, "date", ev.Date, "start", ev.StartTime)
	return ev, nil
}

// Import appends events in one write, skipping those whose slot is taken
// (by the existing list or an earlier event in the batch).
func (s *Service) Import(ctx context.Context, incoming []model.Event) (added, skipped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.events
	next := slices.Clone(prev)
	for _, ev := range incoming {
		ev.Normalize()
		taken := slices.ContainsFunc(next, ev.SameSlot)
		if taken {
			skipped++
			continue
		}
		if ev.ID == "" || slices.ContainsFunc(next, func(o model.Event) bool { return o.ID == ev.ID }) {
			ev.ID = s.newID()
		}
		next = append(next, ev)
		added++
	}
	if added == 0 {
		return 0, skipped, nil
	}

	s.events = next
	if err := s.persistLocked(ctx); err != nil {
		s.events = prev
		return 0, 0, err
	}
	appLog.Info("events imported", "added", added, "skipped", skipped)
	return added, skipped, nil
}

// SetStatus marks an event pending or completed.
func (s *Service) SetStatus(ctx context.Context, id string, status model.Status) (model.Event, error) {
	if !status.Valid() {
		return model.Event{}, ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return model.Event{}, ErrNotFound
	}
	prev := s.events
	s.events = slices.Clone(prev)
	s.events[i].CompletionStatus = status
	if err := s.persistLocked(ctx); err != nil {
		s.events = prev
		return model.Event{}, err
	}
	return s.events[i], nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return ErrNotFound
	}
	prev := s.events
	s.events = slices.Delete(slices.Clone(prev), i, i+1)
	if err := s.persistLocked(ctx); err != nil {
		s.events = prev
		return err
	}
	appLog.Info("event deleted", "id", id)
	return nil
}

func (s *Service) slotTakenLocked(ev model.Event) bool {
	return slices.ContainsFunc(s.events, ev.SameSlot)
}

func (s *Service) indexLocked(id string) int {
	return slices.IndexFunc(s.events, func(e model.Event) bool { return e.ID == id })
}

// persistLocked writes the whole list; caller holds mu.
func (s *Service) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.events)
	if err != nil {
		return fmt.Errorf("events: encode: %w", err)
	}
	if err := s.kv.Set(ctx, Key, data); err != nil {
		appLog.Error("events persist failed", err, "count", len(s.events))
		return fmt.Errorf("events: persist: %w", err)
	}
	return nil
}
