package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/samirrijal/hazardmap/internal/core/domain"
)

// --- Mock RecordSource ---

type mockSource struct {
	mu               sync.Mutex
	calls            map[domain.Kind]int
	fetchWaypointsFn func(ctx context.Context) ([]domain.WaypointWire, error)
	fetchZonesFn     func(ctx context.Context) ([]domain.HazardZoneWire, error)
	fetchIncidentsFn func(ctx context.Context) ([]domain.IncidentWire, error)
}

func (m *mockSource) count(kind domain.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[domain.Kind]int{}
	}
	m.calls[kind]++
}

func (m *mockSource) Calls(kind domain.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[kind]
}

func (m *mockSource) FetchWaypoints(ctx context.Context) ([]domain.WaypointWire, error) {
	m.count(domain.KindWaypoint)
	if m.fetchWaypointsFn != nil {
		return m.fetchWaypointsFn(ctx)
	}
	return nil, nil
}

func (m *mockSource) FetchHazardZones(ctx context.Context) ([]domain.HazardZoneWire, error) {
	m.count(domain.KindHazardZone)
	if m.fetchZonesFn != nil {
		return m.fetchZonesFn(ctx)
	}
	return nil, nil
}

func (m *mockSource) FetchIncidents(ctx context.Context) ([]domain.IncidentWire, error) {
	m.count(domain.KindIncident)
	if m.fetchIncidentsFn != nil {
		return m.fetchIncidentsFn(ctx)
	}
	return nil, nil
}

// --- Mock CacheService ---

var errCacheMiss = errors.New("cache miss")

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Mock RecordWriter ---

type mockWriter struct {
	createFn func(ctx context.Context, sub *domain.Submission) (string, error)
	deleteFn func(ctx context.Context, kind domain.Kind, id string) error
}

func (m *mockWriter) Create(ctx context.Context, sub *domain.Submission) (string, error) {
	if m.createFn != nil {
		return m.createFn(ctx, sub)
	}
	return "1", nil
}

func (m *mockWriter) Delete(ctx context.Context, kind domain.Kind, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, kind, id)
	}
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.RecordEvent
	err    error
}

func (m *mockPublisher) PublishRecordEvent(ctx context.Context, event *domain.RecordEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, *event)
	return nil
}

// --- Mock SubmissionStarter ---

type mockStarter struct {
	startFn func(ctx context.Context, sub *domain.Submission) (string, error)
}

func (m *mockStarter) StartSubmission(ctx context.Context, sub *domain.Submission) (string, error) {
	if m.startFn != nil {
		return m.startFn(ctx, sub)
	}
	return "submission-" + sub.ID, nil
}

// --- Mock Geocoder / IPLocator ---

type mockGeocoder struct {
	searchFn func(ctx context.Context, query string, bias domain.GeoPoint, limit int) ([]domain.GeocodeResult, error)
}

func (m *mockGeocoder) Search(ctx context.Context, query string, bias domain.GeoPoint, limit int) ([]domain.GeocodeResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, bias, limit)
	}
	return nil, nil
}

type mockLocator struct {
	locateFn func(ip string) (*domain.GeoPoint, error)
}

func (m *mockLocator) Locate(ip string) (*domain.GeoPoint, error) {
	if m.locateFn != nil {
		return m.locateFn(ip)
	}
	return nil, errors.New("not found")
}

// --- Mock EventSubscriber ---

type mockSubscriber struct {
	handler func(ctx context.Context, event *domain.RecordEvent) error
}

func (m *mockSubscriber) SubscribeRecordEvents(ctx context.Context, handler func(ctx context.Context, event *domain.RecordEvent) error) error {
	m.handler = handler
	return nil
}

func (m *mockSubscriber) deliver(ctx context.Context, event domain.RecordEvent) error {
	return m.handler(ctx, &event)
}
