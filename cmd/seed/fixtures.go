package main

import (
	"fmt"
	"math/rand"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/pkg/geospatial"
)

// Fixtures is the layout of fixtures/seed.yaml. Positions are given as a
// distance (and optionally a bearing) from Base.
type Fixtures struct {
	Base        domain.GeoPoint     `yaml:"base"`
	Incidents   []IncidentFixture   `yaml:"incidents"`
	Waypoints   []WaypointFixture   `yaml:"waypoints"`
	HazardZones []HazardZoneFixture `yaml:"hazard_zones"`
}

// Placement positions a fixture relative to the base point. A nil bearing
// picks a random direction.
type Placement struct {
	DistanceKm float64  `yaml:"distance_km"`
	Bearing    *float64 `yaml:"bearing"`
}

type IncidentFixture struct {
	Name               string `yaml:"name"`
	Description        string `yaml:"description"`
	Severity           string `yaml:"severity"`
	ReportedMinutesAgo int    `yaml:"reported_minutes_ago"`
	Placement          `yaml:",inline"`
}

type WaypointFixture struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	Telephone   string `yaml:"telephone"`
	Available   *bool  `yaml:"available"`
	Placement   `yaml:",inline"`
}

type HazardZoneFixture struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Severity    string  `yaml:"severity"`
	RadiusKm    float64 `yaml:"radius_km"`
	Sides       int     `yaml:"sides"`
	Placement   `yaml:",inline"`
}

// Seed is a submission with the creation time it should be stored with.
type Seed struct {
	domain.Submission
	CreatedAt time.Time
}

// ParseFixtures decodes a fixture file. A missing base defaults to Berlin.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var fix Fixtures
	if err := yaml.Unmarshal(data, &fix); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	if fix.Base == (domain.GeoPoint{}) {
		fix.Base = domain.GeoPoint{Lat: 52.52, Lon: 13.405}
	}
	if !fix.Base.Valid() {
		return nil, fmt.Errorf("base (%v, %v) out of range", fix.Base.Lat, fix.Base.Lon)
	}
	for i, z := range fix.HazardZones {
		if z.Sides < 3 {
			return nil, fmt.Errorf("hazard zone %d (%s): sides must be at least 3", i, z.Name)
		}
		if z.RadiusKm <= 0 {
			return nil, fmt.Errorf("hazard zone %d (%s): radius_km must be positive", i, z.Name)
		}
	}
	return &fix, nil
}

// Submissions expands the fixtures into submissions positioned around Base.
// Incidents are backdated by their reported age.
func (f *Fixtures) Submissions(now time.Time, rng *rand.Rand) []Seed {
	seeds := make([]Seed, 0, len(f.Incidents)+len(f.Waypoints)+len(f.HazardZones))

	for _, inc := range f.Incidents {
		at := f.place(inc.Placement, rng)
		seeds = append(seeds, Seed{
			Submission: domain.Submission{
				Kind:        domain.KindIncident,
				Name:        inc.Name,
				Description: inc.Description,
				Location:    &at,
				Severity:    domain.Severity(inc.Severity),
			},
			CreatedAt: now.Add(-time.Duration(inc.ReportedMinutesAgo) * time.Minute),
		})
	}

	for _, wp := range f.Waypoints {
		at := f.place(wp.Placement, rng)
		seeds = append(seeds, Seed{
			Submission: domain.Submission{
				Kind:        domain.KindWaypoint,
				Name:        wp.Name,
				Description: wp.Description,
				Location:    &at,
				Type:        domain.WaypointType(wp.Type),
				Telephone:   wp.Telephone,
				IsAvailable: wp.Available,
			},
			CreatedAt: now,
		})
	}

	for _, z := range f.HazardZones {
		center := f.place(z.Placement, rng)
		seeds = append(seeds, Seed{
			Submission: domain.Submission{
				Kind:        domain.KindHazardZone,
				Name:        z.Name,
				Description: z.Description,
				Vertices:    regularPolygon(center, z.RadiusKm, z.Sides),
				Severity:    domain.Severity(z.Severity),
			},
			CreatedAt: now,
		})
	}

	return seeds
}

func (f *Fixtures) place(p Placement, rng *rand.Rand) domain.GeoPoint {
	bearing := rng.Float64() * 360
	if p.Bearing != nil {
		bearing = *p.Bearing
	}
	return geospatial.Offset(f.Base, p.DistanceKm, bearing)
}

// regularPolygon returns an open ring of n vertices radiusKm around center.
func regularPolygon(center domain.GeoPoint, radiusKm float64, n int) []domain.GeoPoint {
	ring := make([]domain.GeoPoint, n)
	for i := range ring {
		ring[i] = geospatial.Offset(center, radiusKm, float64(i)*360/float64(n))
	}
	return ring
}
