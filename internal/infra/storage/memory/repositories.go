package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainavailability "travelbook/internal/domain/availability"
	domainbooking "travelbook/internal/domain/booking"
	domainresources "travelbook/internal/domain/resources"
	"travelbook/internal/domain/shared/daterange"
)

// ErrResourceNotFound is returned when a resource cannot be located in memory.
var ErrResourceNotFound = domainresources.ErrResourceNotFound

// ResourceRepository is an in-memory catalog of bookable resources.
type ResourceRepository struct {
	mu    sync.RWMutex
	items map[domainresources.ResourceID]domainresources.Resource
}

func NewResourceRepository() *ResourceRepository {
	return &ResourceRepository{items: make(map[domainresources.ResourceID]domainresources.Resource)}
}

// ByID returns a copy of the resource or ErrResourceNotFound.
func (r *ResourceRepository) ByID(ctx context.Context, id domainresources.ResourceID) (*domainresources.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.items[id]
	if !ok {
		return nil, ErrResourceNotFound
	}
	return &res, nil
}

func (r *ResourceRepository) Save(ctx context.Context, res *domainresources.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[res.ID] = *res
	return nil
}

func (r *ResourceRepository) List(ctx context.Context) ([]*domainresources.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainresources.Resource, 0, len(r.items))
	for _, res := range r.items {
		res := res
		out = append(out, &res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type recordKey struct {
	resource domainresources.ResourceID
	date     time.Time
}

// AvailabilityStore keeps per-date availability records in memory.
type AvailabilityStore struct {
	mu      sync.RWMutex
	records map[recordKey]domainavailability.Record
}

func NewAvailabilityStore() *AvailabilityStore {
	return &AvailabilityStore{records: make(map[recordKey]domainavailability.Record)}
}

func (s *AvailabilityStore) Get(ctx context.Context, id domainresources.ResourceID, date time.Time) (*domainavailability.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordKey{resource: id, date: daterange.Day(date)}]
	if !ok {
		return nil, nil
	}
	clone := rec.Clone()
	return &clone, nil
}

func (s *AvailabilityStore) GetRange(ctx context.Context, id domainresources.ResourceID, dr daterange.DateRange) (map[time.Time]domainavailability.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[time.Time]domainavailability.Record)
	for d := range dr.Days() {
		if rec, ok := s.records[recordKey{resource: id, date: d}]; ok {
			out[d] = rec.Clone()
		}
	}
	return out, nil
}

func (s *AvailabilityStore) Put(ctx context.Context, rec domainavailability.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Date = daterange.Day(rec.Date)
	s.records[recordKey{resource: rec.ResourceID, date: rec.Date}] = rec.Clone()
	return nil
}

func (s *AvailabilityStore) Delete(ctx context.Context, id domainresources.ResourceID, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recordKey{resource: id, date: daterange.Day(date)})
	return nil
}

func (s *AvailabilityStore) ListByStatus(ctx context.Context, status domainavailability.Status) ([]domainavailability.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domainavailability.Record, 0)
	for _, rec := range s.records {
		if rec.Status == status {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ResourceID == out[j].ResourceID {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ResourceID < out[j].ResourceID
	})
	return out, nil
}

// BookingRepository stores booking snapshots in memory.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]*domainbooking.Booking
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{items: make(map[domainbooking.BookingID]*domainbooking.Booking)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrNotFound
	}
	return b.Snapshot(), nil
}

// Save stores the current booking state, rejecting stale versions.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.items[b.ID]; ok && existing.Version != b.Version {
		return ErrConcurrentUpdate
	}
	b.Version++
	r.items[b.ID] = b.Snapshot()
	return nil
}

func (r *BookingRepository) ListByResource(ctx context.Context, id domainresources.ResourceID) ([]*domainbooking.Booking, error) {
	return r.filter(func(b *domainbooking.Booking) bool { return b.ResourceID == id }), nil
}

func (r *BookingRepository) ListByStatus(ctx context.Context, status domainbooking.Status) ([]*domainbooking.Booking, error) {
	return r.filter(func(b *domainbooking.Booking) bool { return b.Status == status }), nil
}

func (r *BookingRepository) filter(keep func(*domainbooking.Booking) bool) []*domainbooking.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domainbooking.Booking, 0)
	for _, b := range r.items {
		if keep(b) {
			matches = append(matches, b.Snapshot())
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	return matches
}

// ErrConcurrentUpdate mirrors the optimistic version check of the durable store.
var ErrConcurrentUpdate = domainbooking.ErrVersionConflict

var (
	_ domainresources.Repository = (*ResourceRepository)(nil)
	_ domainavailability.Store   = (*AvailabilityStore)(nil)
	_ domainbooking.Repository   = (*BookingRepository)(nil)
)
