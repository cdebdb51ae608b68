package usecases

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/core/ports"
	"github.com/samirrijal/hazardmap/internal/pkg/logging"
	"github.com/samirrijal/hazardmap/internal/pkg/metrics"
	"github.com/samirrijal/hazardmap/internal/pkg/telemetry"
)

// Bias sources, in order of preference.
const (
	BiasReference = "reference"
	BiasGeoIP     = "geoip"
	BiasDefault   = "default"
)

// PlaceService turns free-text queries into Place records.
type PlaceService struct {
	geocoder ports.Geocoder
	locator  ports.IPLocator
	fallback domain.GeoPoint
	limit    int
}

// NewPlaceService creates a new PlaceService. locator may be nil.
func NewPlaceService(geocoder ports.Geocoder, locator ports.IPLocator, fallback domain.GeoPoint, limit int) *PlaceService {
	if limit <= 0 {
		limit = 10
	}
	return &PlaceService{geocoder: geocoder, locator: locator, fallback: fallback, limit: limit}
}

// Search geocodes query. Results are biased towards ref, else the client's
// GeoIP position, else the configured default. Distances are only set when
// ref is given.
func (s *PlaceService) Search(ctx context.Context, query string, ref *domain.GeoPoint, clientIP string) (places []*domain.Place, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*domain.Place{}, nil
	}

	ctx, span := recordTracer.Start(ctx, "search-places")
	defer func() { telemetry.EndSpan(span, err) }()

	bias, source := s.bias(ctx, ref, clientIP)
	span.SetAttributes(attribute.String(telemetry.AttrBiasSource, source))
	metrics.GeocodeRequests.WithLabelValues(source).Inc()

	results, err := s.geocoder.Search(ctx, query, bias, s.limit)
	if err != nil {
		return nil, err
	}

	places = make([]*domain.Place, 0, len(results))
	for _, r := range results {
		if !r.Location.Valid() {
			continue
		}
		p := PlaceFromResult(r)
		_ = domain.Measure(p, ref) // a place always has coordinates
		places = append(places, p)
	}
	return places, nil
}

func (s *PlaceService) bias(ctx context.Context, ref *domain.GeoPoint, clientIP string) (domain.GeoPoint, string) {
	if ref != nil {
		return *ref, BiasReference
	}
	if s.locator != nil && clientIP != "" {
		p, err := s.locator.Locate(clientIP)
		if err == nil && p != nil {
			return *p, BiasGeoIP
		}
		if err != nil {
			logging.FromContext(ctx).Debug("geoip lookup failed", "ip", clientIP, "error", err)
		}
	}
	return s.fallback, BiasDefault
}

// PlaceFromResult maps a geocoding candidate to a Place.
func PlaceFromResult(r domain.GeocodeResult) *domain.Place {
	return &domain.Place{
		RecordBase: domain.RecordBase{
			ID:   placeID(r),
			Kind: domain.KindPlace,
			Name: r.Name,
		},
		Coords:        r.Location,
		Type:          r.OSMValue,
		Address:       FormatAddress(r),
		MainLine:      FormatMainLine(r),
		SecondaryLine: FormatSecondaryLine(r),
	}
}

func placeID(r domain.GeocodeResult) string {
	if r.OSMID == 0 {
		return ""
	}
	return r.OSMType + strconv.FormatInt(r.OSMID, 10)
}

// FormatMainLine renders "Name (Street Number)".
func FormatMainLine(r domain.GeocodeResult) string {
	switch {
	case r.HouseNumber != "":
		return r.Name + " (" + r.Street + " " + r.HouseNumber + ")"
	case r.Street != "":
		return r.Name + " (" + r.Street + ")"
	}
	return r.Name
}

// FormatSecondaryLine renders "Type, City, Country", omitting the country
// when it equals the place name.
func FormatSecondaryLine(r domain.GeocodeResult) string {
	var parts []string
	if r.OSMValue != "" {
		parts = append(parts, titleWords(strings.ReplaceAll(r.OSMValue, "_", " ")))
	}
	if r.City != "" {
		parts = append(parts, r.City)
	}
	if r.Country != "" && r.Country != r.Name {
		parts = append(parts, r.Country)
	}
	return strings.Join(parts, ", ")
}

// FormatAddress renders "Street Number, Postcode City".
func FormatAddress(r domain.GeocodeResult) string {
	locality := strings.TrimSpace(r.Postcode + " " + r.City)
	switch {
	case r.HouseNumber != "":
		return joinNonEmpty(", ", r.Street+" "+r.HouseNumber, locality)
	case r.Street != "":
		return joinNonEmpty(", ", r.Street, locality)
	}
	return joinNonEmpty(", ", r.Postcode, r.City)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// titleWords upper-cases the first letter of every word.
func titleWords(s string) string {
	var b strings.Builder
	prevWord := false
	for _, r := range s {
		isWord := unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
		if isWord && !prevWord {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
		prevWord = isWord
	}
	return b.String()
}
