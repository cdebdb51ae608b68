// Package backend talks to the records backend over its REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/pkg/logging"
	"github.com/samirrijal/hazardmap/internal/pkg/telemetry"
)

var tracer = telemetry.Tracer("hazardmap/backend")

// StatusError is a non-2xx backend answer.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Client implements ports.RecordBackend against the REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for baseURL, e.g. "http://localhost:8080/api".
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

func collectionPath(kind domain.Kind) (string, error) {
	switch kind {
	case domain.KindWaypoint:
		return "/waypoints/", nil
	case domain.KindHazardZone:
		return "/hazard-zones/", nil
	case domain.KindIncident:
		return "/incidents/", nil
	}
	return "", fmt.Errorf("%w: %q is not stored by the backend", domain.ErrInvalidKind, kind)
}

// FetchWaypoints returns the raw waypoint collection.
func (c *Client) FetchWaypoints(ctx context.Context) ([]domain.WaypointWire, error) {
	var out []domain.WaypointWire
	return out, c.fetch(ctx, domain.KindWaypoint, &out)
}

// FetchHazardZones returns the raw hazard zone collection.
func (c *Client) FetchHazardZones(ctx context.Context) ([]domain.HazardZoneWire, error) {
	var out []domain.HazardZoneWire
	return out, c.fetch(ctx, domain.KindHazardZone, &out)
}

// FetchIncidents returns the raw incident collection.
func (c *Client) FetchIncidents(ctx context.Context) ([]domain.IncidentWire, error) {
	var out []domain.IncidentWire
	return out, c.fetch(ctx, domain.KindIncident, &out)
}

func (c *Client) fetch(ctx context.Context, kind domain.Kind, out any) (err error) {
	ctx, span := tracer.Start(ctx, "fetch-records")
	span.SetAttributes(attribute.String(telemetry.AttrRecordKind, string(kind)))
	defer func() { telemetry.EndSpan(span, err) }()

	path, err := collectionPath(kind)
	if err != nil {
		return err
	}
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s collection: %w", kind, err)
	}
	return nil
}

// createPayload is the body the backend expects on POST. Geometries are
// GeoJSON in [lon, lat] order.
type createPayload struct {
	Kind        domain.Kind       `json:"kind"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Location    *geojson.Geometry `json:"location"`
	Center      *geojson.Geometry `json:"center,omitempty"`
	Severity    domain.Severity   `json:"severity,omitempty"`
	Type        string            `json:"type,omitempty"`
	Telephone   string            `json:"telephone,omitempty"`
	IsAvailable *bool             `json:"is_available,omitempty"`
}

// PayloadFor converts a validated submission to the backend body.
func PayloadFor(sub *domain.Submission) ([]byte, error) {
	p := createPayload{
		Kind:        sub.Kind,
		Name:        sub.Name,
		Description: sub.Description,
		Severity:    sub.Severity,
		Type:        string(sub.Type),
		Telephone:   sub.Telephone,
		IsAvailable: sub.IsAvailable,
	}
	switch {
	case len(sub.Vertices) > 0:
		ring := make(orb.Ring, 0, len(sub.Vertices)+1)
		for _, v := range sub.Vertices {
			ring = append(ring, orb.Point{v.Lon, v.Lat})
		}
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		p.Location = geojson.NewGeometry(orb.Polygon{ring})
	case sub.Location != nil:
		p.Location = geojson.NewGeometry(orb.Point{sub.Location.Lon, sub.Location.Lat})
	default:
		return nil, fmt.Errorf("%w: submission has no geometry", domain.ErrInvalidGeometry)
	}
	if sub.Center != nil {
		p.Center = geojson.NewGeometry(orb.Point{sub.Center.Lon, sub.Center.Lat})
	}
	return json.Marshal(p)
}

// Create posts a submission and returns the id the backend assigned.
func (c *Client) Create(ctx context.Context, sub *domain.Submission) (id string, err error) {
	ctx, span := tracer.Start(ctx, "create-record")
	span.SetAttributes(attribute.String(telemetry.AttrRecordKind, string(sub.Kind)))
	defer func() { telemetry.EndSpan(span, err) }()

	path, err := collectionPath(sub.Kind)
	if err != nil {
		return "", err
	}
	payload, err := PayloadFor(sub)
	if err != nil {
		return "", err
	}
	body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return "", err
	}

	var created struct {
		ID domain.RecordID `json:"id"`
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err = json.Unmarshal(body, &created); err != nil {
			return "", fmt.Errorf("decode create response: %w", err)
		}
	}
	return string(created.ID), nil
}

// Delete removes a record by id.
func (c *Client) Delete(ctx context.Context, kind domain.Kind, id string) (err error) {
	ctx, span := tracer.Start(ctx, "delete-record")
	span.SetAttributes(attribute.String(telemetry.AttrRecordKind, string(kind)))
	defer func() { telemetry.EndSpan(span, err) }()

	path, err := collectionPath(kind)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, path+url.PathEscape(id)+"/", nil)
	return err
}

// Ping checks that the waypoint collection answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodHead, "/waypoints/", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	log := logging.FromContext(ctx)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("backend request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read backend response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("backend %s %s: %w", method, path, domain.ErrRecordNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		log.Error("backend answered with an error", "method", method, "path", path, "status", resp.StatusCode)
		return nil, &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: truncate(string(data), 200)}
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
