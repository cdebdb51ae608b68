// Package geoip approximates client positions from a MaxMind City database.
package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"github.com/samirrijal/hazardmap/internal/core/domain"
)

// ErrInvalidIP is returned for strings that are not an IP address.
var ErrInvalidIP = errors.New("geoip: invalid ip address")

type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// Locator implements ports.IPLocator.
type Locator struct {
	reader cityReader
}

// Open loads the database at path.
func Open(path string) (*Locator, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &Locator{reader: r}, nil
}

// Locate returns the approximate position of ip. Private, loopback and
// unknown addresses yield nil without an error.
func (l *Locator) Locate(ip string) (*domain.GeoPoint, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() || parsed.IsLinkLocalUnicast() {
		return nil, nil
	}

	rec, err := l.reader.City(parsed)
	if err != nil {
		return nil, fmt.Errorf("geoip lookup: %w", err)
	}
	p := domain.GeoPoint{Lat: rec.Location.Latitude, Lon: rec.Location.Longitude}
	// MaxMind reports 0,0 when it only knows the country or nothing at all
	if (p.Lat == 0 && p.Lon == 0) || !p.Valid() {
		return nil, nil
	}
	return &p, nil
}

// Close releases the database.
func (l *Locator) Close() error {
	return l.reader.Close()
}
