package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/core/ports"
	"github.com/samirrijal/hazardmap/internal/pkg/metrics"
	"github.com/samirrijal/hazardmap/internal/pkg/telemetry"
)

var recordTracer = telemetry.Tracer("hazardmap/records")

// RecordService fetches raw collections from the records backend, caches
// them, and returns normalized, distance-annotated records.
type RecordService struct {
	source     ports.RecordSource
	cache      ports.CacheService
	normalizer *Normalizer
	ttl        int
}

// NewRecordService creates a new RecordService. cache may be nil.
func NewRecordService(source ports.RecordSource, cache ports.CacheService, normalizer *Normalizer, ttlSeconds int) *RecordService {
	return &RecordService{source: source, cache: cache, normalizer: normalizer, ttl: ttlSeconds}
}

// RawCacheKey is the cache key holding the raw collection of kind.
func RawCacheKey(kind domain.Kind) string {
	return fmt.Sprintf("records:raw:%s", kind)
}

// Waypoints returns normalized waypoints.
func (s *RecordService) Waypoints(ctx context.Context, ref *domain.GeoPoint) ([]domain.Record, error) {
	return s.List(ctx, domain.KindWaypoint, ref)
}

// HazardZones returns normalized hazard zones.
func (s *RecordService) HazardZones(ctx context.Context, ref *domain.GeoPoint) ([]domain.Record, error) {
	return s.List(ctx, domain.KindHazardZone, ref)
}

// Incidents returns normalized incidents.
func (s *RecordService) Incidents(ctx context.Context, ref *domain.GeoPoint) ([]domain.Record, error) {
	return s.List(ctx, domain.KindIncident, ref)
}

// List returns the normalized records of one stored kind in backend order.
func (s *RecordService) List(ctx context.Context, kind domain.Kind, ref *domain.GeoPoint) (records []domain.Record, err error) {
	ctx, span := recordTracer.Start(ctx, "list-records")
	span.SetAttributes(attribute.String(telemetry.AttrRecordKind, string(kind)))
	defer func() { telemetry.EndSpan(span, err) }()

	var rejected []Rejection
	switch kind {
	case domain.KindWaypoint:
		raw, ferr := fetchCached(ctx, s, kind, s.source.FetchWaypoints)
		if ferr != nil {
			return nil, ferr
		}
		records, rejected = s.normalizer.Waypoints(raw, ref)
	case domain.KindHazardZone:
		raw, ferr := fetchCached(ctx, s, kind, s.source.FetchHazardZones)
		if ferr != nil {
			return nil, ferr
		}
		records, rejected = s.normalizer.HazardZones(raw, ref)
	case domain.KindIncident:
		raw, ferr := fetchCached(ctx, s, kind, s.source.FetchIncidents)
		if ferr != nil {
			return nil, ferr
		}
		records, rejected = s.normalizer.Incidents(raw, ref)
	default:
		return nil, fmt.Errorf("%w: %q is not a stored kind", ErrInvalidQuery, kind)
	}

	observeNormalized(kind, records, rejected)
	span.SetAttributes(
		attribute.Int(telemetry.AttrRecordCount, len(records)),
		attribute.Int(telemetry.AttrRejected, len(rejected)),
	)
	return records, nil
}

// All returns every stored kind: waypoints, then hazard zones, then
// incidents. The three collections are fetched concurrently.
func (s *RecordService) All(ctx context.Context, ref *domain.GeoPoint) ([]domain.Record, error) {
	results := make([][]domain.Record, len(domain.StoredKinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range domain.StoredKinds {
		g.Go(func() error {
			recs, err := s.List(gctx, kind, ref)
			if err != nil {
				return fmt.Errorf("list %s: %w", kind, err)
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []domain.Record
	for _, recs := range results {
		out = append(out, recs...)
	}
	return out, nil
}

// Nearby returns records of the given kinds (all stored kinds when empty)
// within radiusKm of ref, nearest first.
func (s *RecordService) Nearby(ctx context.Context, ref domain.GeoPoint, radiusKm float64, kinds []domain.Kind) ([]domain.Record, error) {
	if !ref.Valid() {
		return nil, fmt.Errorf("%w: reference position out of range", ErrInvalidQuery)
	}
	if radiusKm <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", ErrInvalidQuery)
	}

	var candidates []domain.Record
	if len(kinds) == 0 {
		all, err := s.All(ctx, &ref)
		if err != nil {
			return nil, err
		}
		candidates = all
	} else {
		for _, kind := range kinds {
			recs, err := s.List(ctx, kind, &ref)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, recs...)
		}
	}

	out := make([]domain.Record, 0, len(candidates))
	for _, r := range candidates {
		if d := r.Base().Distance; d != nil && *d <= radiusKm {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].Base().Distance < *out[j].Base().Distance
	})
	return out, nil
}

// Get returns a single record by kind and id.
func (s *RecordService) Get(ctx context.Context, kind domain.Kind, id string, ref *domain.GeoPoint) (domain.Record, error) {
	recs, err := s.List(ctx, kind, ref)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r.Base().ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// Invalidate drops the cached raw collection of kind.
func (s *RecordService) Invalidate(ctx context.Context, kind domain.Kind) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, RawCacheKey(kind))
}

// FollowEvents invalidates the cached collection of every record created or
// deleted elsewhere, e.g. by the reporter worker or another replica.
func (s *RecordService) FollowEvents(ctx context.Context, sub ports.EventSubscriber) error {
	return sub.SubscribeRecordEvents(ctx, func(ctx context.Context, event *domain.RecordEvent) error {
		return s.Invalidate(ctx, event.Kind)
	})
}

func fetchCached[T any](ctx context.Context, s *RecordService, kind domain.Kind, fetch func(context.Context) ([]T, error)) ([]T, error) {
	key := RawCacheKey(kind)
	op := "records:" + string(kind)

	// Try cache
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var raw []T
			if err := json.Unmarshal(data, &raw); err == nil {
				metrics.CacheHits.WithLabelValues(op).Inc()
				return raw, nil
			}
		}
		metrics.CacheMisses.WithLabelValues(op).Inc()
	}

	start := time.Now()
	raw, err := fetch(ctx)
	metrics.BackendFetchDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendFetchErrors.WithLabelValues(string(kind)).Inc()
		return nil, fmt.Errorf("fetch %s: %w", kind, err)
	}

	if s.cache != nil && s.ttl > 0 {
		if data, err := json.Marshal(raw); err == nil {
			_ = s.cache.Set(ctx, key, data, s.ttl)
		}
	}

	return raw, nil
}

func observeNormalized(kind domain.Kind, records []domain.Record, rejected []Rejection) {
	metrics.RecordsNormalized.WithLabelValues(string(kind)).Add(float64(len(records)))
	for _, r := range rejected {
		metrics.RecordsRejected.WithLabelValues(string(kind), RejectReason(r.Reason)).Inc()
	}
}
