// Package photon queries a Photon geocoder (https://photon.komoot.io).
package photon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/pkg/logging"
)

// Client implements ports.Geocoder.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a Client for the Photon search endpoint, e.g.
// "https://photon.komoot.io/api/".
func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

// Search returns up to limit candidates for query, biased towards bias.
func (c *Client) Search(ctx context.Context, query string, bias domain.GeoPoint, limit int) ([]domain.GeocodeResult, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("photon endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("lat", strconv.FormatFloat(bias.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(bias.Lon, 'f', -1, 64))
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.FromContext(ctx).Error("photon request failed", "error", err)
		return nil, fmt.Errorf("photon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("photon: expected status code %d, but got %d", http.StatusOK, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("photon: read body: %w", err)
	}
	return Decode(body)
}

// Decode parses a Photon FeatureCollection. Features without a point
// geometry are skipped.
func Decode(body []byte) ([]domain.GeocodeResult, error) {
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("photon: decode: %w", err)
	}

	results := make([]domain.GeocodeResult, 0, len(fc.Features))
	for _, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		props := f.Properties
		r := domain.GeocodeResult{
			Name:        props.MustString("name", ""),
			Street:      props.MustString("street", ""),
			HouseNumber: props.MustString("housenumber", ""),
			City:        props.MustString("city", ""),
			Postcode:    props.MustString("postcode", ""),
			State:       props.MustString("state", ""),
			Country:     props.MustString("country", ""),
			OSMKey:      props.MustString("osm_key", ""),
			OSMValue:    props.MustString("osm_value", ""),
			OSMType:     props.MustString("osm_type", ""),
			OSMID:       int64(props.MustFloat64("osm_id", 0)),
			Location:    domain.GeoPoint{Lat: pt.Lat(), Lon: pt.Lon()},
		}
		if r.Name == "" {
			r.Name = r.Street
		}
		results = append(results, r)
	}
	return results, nil
}
