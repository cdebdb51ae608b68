package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/hazardmap/internal/adapters/http"
	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/core/usecases"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// ---- Mocks ----

type mockSource struct {
	waypoints []domain.WaypointWire
	zones     []domain.HazardZoneWire
	incidents []domain.IncidentWire
	err       error
}

func (m *mockSource) FetchWaypoints(ctx context.Context) ([]domain.WaypointWire, error) {
	return m.waypoints, m.err
}
func (m *mockSource) FetchHazardZones(ctx context.Context) ([]domain.HazardZoneWire, error) {
	return m.zones, m.err
}
func (m *mockSource) FetchIncidents(ctx context.Context) ([]domain.IncidentWire, error) {
	return m.incidents, m.err
}

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
	return nil, nil
}

// ---- Test helpers ----

var berlin = domain.GeoPoint{Lat: 52.52, Lon: 13.405}

func defaultSource() *mockSource {
	return &mockSource{
		waypoints: []domain.WaypointWire{
			{ID: "1", Name: "Charité", Type: "hospital", Location: domain.WKTGeometry("SRID=4326;POINT (13.3777 52.5256)")},
			{ID: "2", Name: "No location", Type: "hospital"},
		},
		zones: []domain.HazardZoneWire{
			{
				ID:       "10",
				Name:     "Tiergarten flood",
				Severity: "high",
				Location: domain.WKTGeometry("SRID=4326;POLYGON ((13.35 52.51, 13.37 52.51, 13.37 52.52, 13.35 52.52, 13.35 52.51))"),
			},
		},
		incidents: []domain.IncidentWire{
			{ID: "20", Name: "Gate blocked", Severity: "low", Location: domain.PointGeometry(domain.GeoPoint{Lat: 52.5163, Lon: 13.3777})},
			{ID: "21", Name: "Marienplatz fire", Location: domain.PointGeometry(domain.GeoPoint{Lat: 48.137, Lon: 11.575})},
		},
	}
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	return makeDepsWith(defaultSource(), &mockWriter{}, opts...)
}

func makeDepsWith(source *mockSource, writer *mockWriter, opts ...func(*handler.Dependencies)) *handler.Dependencies {
	normalizer := usecases.NewNormalizer(func() time.Time { return fixedNow }, nil)
	records := usecases.NewRecordService(source, nil, normalizer, 0)
	d := &handler.Dependencies{
		Records:     records,
		Submissions: usecases.NewSubmissionService(writer, nil, nil, records),
		Places:      usecases.NewPlaceService(&mockGeocoder{}, nil, berlin, 5),
		Normalizer:  normalizer,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

type listResult struct {
	Data       []map[string]interface{} `json:"data"`
	Pagination struct {
		Offset int `json:"offset"`
		Limit  int `json:"limit"`
		Total  int `json:"total"`
	} `json:"pagination"`
}

func decodeList(t *testing.T, body io.Reader) listResult {
	t.Helper()
	var result listResult
	if err := json.NewDecoder(body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return result
}

func decodeError(t *testing.T, body io.Reader) handler.APIError {
	t.Helper()
	var apiErr handler.APIError
	if err := json.NewDecoder(body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return apiErr
}

// ---- Record listing ----

func TestListWaypoints_SkipsInvalid(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/waypoints", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	result := decodeList(t, resp.Body)
	if result.Pagination.Total != 1 {
		t.Fatalf("expected total 1, got %d", result.Pagination.Total)
	}
	wp := result.Data[0]
	if wp["id"] != "1" || wp["kind"] != "waypoint" {
		t.Errorf("unexpected waypoint %v", wp)
	}
	if _, ok := wp["distance"]; ok {
		t.Errorf("expected no distance without a reference, got %v", wp["distance"])
	}
}

func TestListIncidents_DistanceAnnotation(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/incidents?lat=52.52&lon=13.405", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	result := decodeList(t, resp.Body)
	if len(result.Data) != 2 {
		t.Fatalf("expected 2 incidents, got %d", len(result.Data))
	}
	// backend order is kept
	if result.Data[0]["id"] != "20" {
		t.Errorf("expected first incident 20, got %v", result.Data[0]["id"])
	}
	d, ok := result.Data[0]["distance"].(float64)
	if !ok || d < 1.5 || d > 2.5 {
		t.Errorf("expected distance ~1.9km, got %v", result.Data[0]["distance"])
	}
	if label, _ := result.Data[0]["distance_label"].(string); !strings.HasSuffix(label, "km") {
		t.Errorf("expected km label, got %q", label)
	}
	if result.Data[1]["severity"] != nil {
		t.Errorf("expected absent severity, got %v", result.Data[1]["severity"])
	}
}

func TestListRecords_BadReference(t *testing.T) {
	app := setupApp(makeDeps())

	for _, q := range []string{"lat=52.5", "lat=91&lon=0", "lat=abc&lon=1"} {
		req := httptest.NewRequest("GET", "/v1/records?"+q, nil)
		resp, _ := app.Test(req, -1)
		if resp.StatusCode != 400 {
			t.Errorf("%s: expected 400, got %d", q, resp.StatusCode)
			continue
		}
		if apiErr := decodeError(t, resp.Body); apiErr.Code != "bad_request" {
			t.Errorf("%s: expected bad_request, got %s", q, apiErr.Code)
		}
	}
}

func TestListAllRecords_OrderAndPagination(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/records?offset=1&limit=2", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	result := decodeList(t, resp.Body)
	if result.Pagination.Total != 4 {
		t.Errorf("expected total 4, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 2 {
		t.Fatalf("expected 2 records in page, got %d", len(result.Data))
	}
	// waypoints, then hazard zones, then incidents
	if result.Data[0]["kind"] != "hazardZone" || result.Data[1]["kind"] != "incident" {
		t.Errorf("unexpected order: %v, %v", result.Data[0]["kind"], result.Data[1]["kind"])
	}

	link := resp.Header.Get("Link")
	for _, rel := range []string{`rel="first"`, `rel="prev"`, `rel="next"`, `rel="last"`} {
		if !strings.Contains(link, rel) {
			t.Errorf("expected %s in Link header, got %s", rel, link)
		}
	}
}

func TestListHazardZones_PolylineEncoding(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/hazard-zones?encoding=polyline", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	result := decodeList(t, resp.Body)
	zone := result.Data[0]
	if zone["polyline"] == "" || zone["polyline"] == nil {
		t.Error("expected polyline")
	}
	if _, ok := zone["coordinates"]; ok {
		t.Error("expected coordinates to be replaced by the polyline")
	}
	if zone["shape"] != "Polygon" || zone["severity"] != "high" {
		t.Errorf("unexpected zone %v", zone)
	}
}

func TestListRecords_BackendError(t *testing.T) {
	deps := makeDepsWith(&mockSource{err: errors.New("connection refused")}, &mockWriter{})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/incidents", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 502 {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	if apiErr := decodeError(t, resp.Body); apiErr.Code != "bad_gateway" {
		t.Errorf("expected bad_gateway, got %s", apiErr.Code)
	}
}

func TestNearbyRecords_FilteredAndSorted(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/records/nearby?lat=52.52&lon=13.405&radius_km=10", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data []map[string]interface{} `json:"data"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Data) != 3 {
		t.Fatalf("expected 3 records within 10km, got %d", len(result.Data))
	}
	prev := -1.0
	for _, r := range result.Data {
		d := r["distance"].(float64)
		if d < prev {
			t.Errorf("records not sorted by distance: %v after %v", d, prev)
		}
		prev = d
	}
}

func TestNearbyRecords_KindsFilter(t *testing.T) {
	app := setupApp(makeDeps())

	// Nuremberg: Munich is ~150 km away, Berlin ~380 km, both inside the cap.
	req := httptest.NewRequest("GET", "/v1/records/nearby?lat=49.45&lon=11.08&radius_km=500&kinds=incident", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Data) != 2 {
		t.Fatalf("expected 2 incidents, got %d", len(result.Data))
	}
	if result.Data[0]["id"] != "21" || result.Data[1]["id"] != "20" {
		t.Errorf("expected nearest incident first, got %v then %v", result.Data[0]["id"], result.Data[1]["id"])
	}
}

func TestNearbyRecords_MissingParams(t *testing.T) {
	app := setupApp(makeDeps())

	tests := []string{
		"/v1/records/nearby",
		"/v1/records/nearby?lat=52.52&lon=13.405&radius_km=0",
		"/v1/records/nearby?lat=52.52&lon=13.405&radius_km=500.5",
		"/v1/records/nearby?lat=52.52&lon=13.405&kinds=photonPlace",
		"/v1/records/nearby?lat=52.52&lon=13.405&kinds=volcano",
	}
	for _, url := range tests {
		req := httptest.NewRequest("GET", url, nil)
		resp, _ := app.Test(req, -1)
		if resp.StatusCode != 400 {
			t.Errorf("%s: expected 400, got %d", url, resp.StatusCode)
		}
	}
}

func TestGetRecord(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/hazard-zones/10", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var zone map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&zone)
	if zone["name"] != "Tiergarten flood" {
		t.Errorf("unexpected zone %v", zone)
	}
	coords, _ := zone["coordinates"].([]interface{})
	if len(coords) != 5 {
		t.Errorf("expected 5 listed vertices, got %d", len(coords))
	}
}

func TestGetRecord_NotFound(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/waypoints/999", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if apiErr := decodeError(t, resp.Body); apiErr.Code != "not_found" {
		t.Errorf("expected not_found, got %s", apiErr.Code)
	}
}

// ---- Submissions ----

func TestCreateIncident_Created(t *testing.T) {
	var got *domain.Submission
	writer := &mockWriter{
		createFn: func(ctx context.Context, sub *domain.Submission) (string, error) {
			got = sub
			return "42", nil
		},
	}
	app := setupApp(makeDepsWith(defaultSource(), writer))

	body := `{"name":"  Fallen tree ","location":{"lat":52.5,"lon":13.4}}`
	req := httptest.NewRequest("POST", "/v1/incidents", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}
	if loc := resp.Header.Get("Location"); loc != "/v1/incidents/42" {
		t.Errorf("expected Location /v1/incidents/42, got %q", loc)
	}

	var res usecases.SubmitResult
	json.NewDecoder(resp.Body).Decode(&res)
	if res.Status != "created" || res.RecordID != "42" || res.SubmissionID == "" {
		t.Errorf("unexpected result %+v", res)
	}
	if got == nil {
		t.Fatal("writer not called")
	}
	if got.Kind != domain.KindIncident || got.Name != "Fallen tree" || got.Severity != domain.SeverityMedium {
		t.Errorf("unexpected submission %+v", got)
	}
}

func TestCreateHazardZone_CenterIsCentroid(t *testing.T) {
	var got *domain.Submission
	writer := &mockWriter{
		createFn: func(ctx context.Context, sub *domain.Submission) (string, error) {
			got = sub
			return "7", nil
		},
	}
	app := setupApp(makeDepsWith(defaultSource(), writer))

	body := `{"name":"Zone","severity":"critical","vertices":[{"lat":0,"lon":0},{"lat":0,"lon":2},{"lat":2,"lon":2},{"lat":2,"lon":0}]}`
	req := httptest.NewRequest("POST", "/v1/hazard-zones", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 201 {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, readBody(t, resp.Body))
	}
	if got.Center == nil || *got.Center != (domain.GeoPoint{Lat: 1, Lon: 1}) {
		t.Errorf("expected center (1, 1), got %v", got.Center)
	}
	if got.Severity != domain.SeverityCritical {
		t.Errorf("expected critical, got %s", got.Severity)
	}
}

func TestCreateRecord_SchemaViolations(t *testing.T) {
	app := setupApp(makeDeps())

	tests := []struct {
		name string
		path string
		body string
	}{
		{"too few vertices", "/v1/hazard-zones", `{"name":"Z","vertices":[{"lat":0,"lon":0},{"lat":1,"lon":1}]}`},
		{"unknown waypoint type", "/v1/waypoints", `{"name":"W","type":"bakery","location":{"lat":1,"lon":1}}`},
		{"unknown severity", "/v1/incidents", `{"name":"I","severity":"extreme","location":{"lat":1,"lon":1}}`},
		{"latitude out of range", "/v1/incidents", `{"name":"I","location":{"lat":95,"lon":1}}`},
		{"missing name", "/v1/incidents", `{"location":{"lat":1,"lon":1}}`},
		{"name too long", "/v1/incidents", `{"name":"` + strings.Repeat("x", 51) + `","location":{"lat":1,"lon":1}}`},
		{"unknown field", "/v1/incidents", `{"name":"I","location":{"lat":1,"lon":1},"color":"red"}`},
		{"bad idempotency key", "/v1/incidents", `{"id":"abc","name":"I","location":{"lat":1,"lon":1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, _ := app.Test(req, -1)
			if resp.StatusCode != 422 {
				t.Fatalf("expected 422, got %d", resp.StatusCode)
			}
			if apiErr := decodeError(t, resp.Body); apiErr.Code != "unprocessable" {
				t.Errorf("expected unprocessable, got %s", apiErr.Code)
			}
		})
	}
}

func TestCreateRecord_MalformedJSON(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/v1/incidents", strings.NewReader(`{"name":`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateRecord_BackendFailure(t *testing.T) {
	writer := &mockWriter{
		createFn: func(ctx context.Context, sub *domain.Submission) (string, error) {
			return "", errors.New("backend: 500")
		},
	}
	app := setupApp(makeDepsWith(defaultSource(), writer))

	req := httptest.NewRequest("POST", "/v1/incidents", strings.NewReader(`{"name":"I","location":{"lat":1,"lon":1}}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 502 {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
}

func TestDeleteRecord(t *testing.T) {
	var deleted string
	writer := &mockWriter{
		deleteFn: func(ctx context.Context, kind domain.Kind, id string) error {
			if id == "404" {
				return fmt.Errorf("backend: %w", domain.ErrRecordNotFound)
			}
			deleted = string(kind) + "/" + id
			return nil
		},
	}
	app := setupApp(makeDepsWith(defaultSource(), writer))

	req := httptest.NewRequest("DELETE", "/v1/waypoints/1", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 204 {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if deleted != "waypoint/1" {
		t.Errorf("expected waypoint/1 deleted, got %q", deleted)
	}

	req = httptest.NewRequest("DELETE", "/v1/waypoints/404", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// ---- Geometry ----

func postJSON(t *testing.T, app *fiber.App, path, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, readBody(t, resp.Body)
}

func TestGeometryParse(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := postJSON(t, app, "/v1/geometry/parse", `{"wkt":"SRID=4326;POINT (13.405 52.52)"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var point handler.ParseResponse
	json.Unmarshal(body, &point)
	if point.Shape != domain.ShapePoint || len(point.Points) != 1 || point.Points[0] != berlin {
		t.Errorf("unexpected point %+v", point)
	}

	status, body = postJSON(t, app, "/v1/geometry/parse", `{"wkt":"POLYGON ((0 0, 2 0, 2 2, 0 0))"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var poly handler.ParseResponse
	json.Unmarshal(body, &poly)
	if poly.Shape != domain.ShapePolygon || len(poly.Points) != 4 || poly.Polyline == "" {
		t.Errorf("unexpected polygon %+v", poly)
	}
	if poly.Points[1] != (domain.GeoPoint{Lat: 0, Lon: 2}) {
		t.Errorf("expected [lat, lon] order, got %+v", poly.Points[1])
	}

	status, _ = postJSON(t, app, "/v1/geometry/parse", `{"wkt":"POLYGON ((0 0, bad, 2 2))"}`)
	if status != 422 {
		t.Errorf("expected 422 for malformed polygon, got %d", status)
	}

	// keywords are upper case only, as in hazard zone normalization
	for _, wkt := range []string{"point (13.405 52.52)", "polygon ((0 0, 2 0, 2 2))"} {
		status, _ = postJSON(t, app, "/v1/geometry/parse", `{"wkt":"`+wkt+`"}`)
		if status != 422 {
			t.Errorf("%s: expected 422, got %d", wkt, status)
		}
	}
}

func TestDocs_ServesConfiguredSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hazardmap.yaml")
	if err := os.WriteFile(path, []byte("openapi: 3.0.3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	app := setupApp(makeDeps(func(d *handler.Dependencies) { d.DocsPath = path }))

	resp, err := app.Test(httptest.NewRequest("GET", "/docs/openapi.yaml", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := string(readBody(t, resp.Body)); got != "openapi: 3.0.3\n" {
		t.Errorf("unexpected body %q", got)
	}

	app = setupApp(makeDeps(func(d *handler.Dependencies) { d.DocsPath = filepath.Join(t.TempDir(), "missing.yaml") }))
	resp, err = app.Test(httptest.NewRequest("GET", "/docs/openapi.yaml", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("expected 404 for missing document, got %d", resp.StatusCode)
	}
}

func TestGeometryDistance(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := postJSON(t, app, "/v1/geometry/distance", `{"from":{"lat":0,"lon":0},"to":{"lat":0,"lon":1}}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var res handler.DistanceResponse
	json.Unmarshal(body, &res)
	if res.Kilometers < 111.1 || res.Kilometers > 111.3 {
		t.Errorf("expected ~111.19km, got %v", res.Kilometers)
	}
	if res.Label != "111.2 km" {
		t.Errorf("expected label 111.2 km, got %q", res.Label)
	}

	status, _ = postJSON(t, app, "/v1/geometry/distance", `{"from":{"lat":0,"lon":0}}`)
	if status != 400 {
		t.Errorf("expected 400 without to, got %d", status)
	}
}

func TestGeometryCentroid(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := postJSON(t, app, "/v1/geometry/centroid", `{"points":[{"lat":0,"lon":0},{"lat":0,"lon":2},{"lat":2,"lon":2},{"lat":2,"lon":0}]}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var res struct {
		Centroid domain.GeoPoint `json:"centroid"`
	}
	json.Unmarshal(body, &res)
	if res.Centroid != (domain.GeoPoint{Lat: 1, Lon: 1}) {
		t.Errorf("expected (1, 1), got %+v", res.Centroid)
	}

	status, body = postJSON(t, app, "/v1/geometry/centroid", `{"points":[]}`)
	if status != 422 {
		t.Fatalf("expected 422 for empty list, got %d", status)
	}
	var apiErr handler.APIError
	json.Unmarshal(body, &apiErr)
	if apiErr.Code != "unprocessable" {
		t.Errorf("expected unprocessable, got %s", apiErr.Code)
	}
}

func TestNormalize(t *testing.T) {
	app := setupApp(makeDeps())

	body := `{
		"waypoints": [{"id": 1, "name": "A", "location": "POINT (13.4 52.5)", "created_at": "2024-05-01T10:00:00Z"}],
		"hazard_zones": [{"id": 2, "name": "", "location": "POINT (13.4 52.5)", "severity": "nuclear"}],
		"incidents": [{"id": 3, "name": "C", "location": {"type": "Point", "coordinates": [13.4, 52.5]}, "created_at": null}]
	}`
	status, raw := postJSON(t, app, "/v1/normalize?lat=52.5&lon=13.4", body)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, raw)
	}

	var res struct {
		Records  []map[string]interface{} `json:"records"`
		Rejected []handler.RejectionView  `json:"rejected"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(res.Records))
	}
	if res.Records[1]["created_at"] != fixedNow.Format(time.RFC3339) {
		t.Errorf("expected null timestamp to become now, got %v", res.Records[1]["created_at"])
	}
	if res.Records[0]["distance"] != 0.0 {
		t.Errorf("expected zero distance, got %v", res.Records[0]["distance"])
	}
	if len(res.Rejected) != 1 || res.Rejected[0].Kind != domain.KindHazardZone || res.Rejected[0].ID != "2" {
		t.Errorf("unexpected rejections %+v", res.Rejected)
	}
}

// ---- Places ----

func TestSearchPlaces_BiasFromClientIP(t *testing.T) {
	var gotBias domain.GeoPoint
	var gotIP string
	geocoder := &mockGeocoder{
		searchFn: func(ctx context.Context, query string, bias domain.GeoPoint, limit int) ([]domain.GeocodeResult, error) {
			gotBias = bias
			return []domain.GeocodeResult{
				{Name: "Hauptbahnhof", City: "Hamburg", Country: "Deutschland", OSMType: "N", OSMID: 1, Location: domain.GeoPoint{Lat: 53.553, Lon: 10.006}},
			}, nil
		},
	}
	locator := &mockLocator{
		locateFn: func(ip string) (*domain.GeoPoint, error) {
			gotIP = ip
			return &domain.GeoPoint{Lat: 53.55, Lon: 10.0}, nil
		},
	}
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Places = usecases.NewPlaceService(geocoder, locator, berlin, 5)
	})
	app := setupApp(deps)

	req := httptest.NewRequest("GET", "/v1/places/search?q=hauptbahnhof", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gotIP != "203.0.113.9" {
		t.Errorf("expected first forwarded address, got %q", gotIP)
	}
	if gotBias != (domain.GeoPoint{Lat: 53.55, Lon: 10.0}) {
		t.Errorf("expected geoip bias, got %+v", gotBias)
	}

	var result struct {
		Data []map[string]interface{} `json:"data"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if len(result.Data) != 1 || result.Data[0]["kind"] != "photonPlace" {
		t.Fatalf("unexpected places %v", result.Data)
	}
	if _, ok := result.Data[0]["distance"]; ok {
		t.Error("expected no distance without a reference")
	}
}

func TestSearchPlaces_MissingQuery(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/places/search", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Export ----

func TestExportGeoJSON(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/export.geojson", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("unexpected content type %q", ct)
	}
	var fc struct {
		Type     string        `json:"type"`
		Features []interface{} `json:"features"`
	}
	json.NewDecoder(resp.Body).Decode(&fc)
	if fc.Type != "FeatureCollection" || len(fc.Features) != 4 {
		t.Errorf("expected 4 features, got %s/%d", fc.Type, len(fc.Features))
	}
}

func TestExportKML(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/export.kml", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := string(readBody(t, resp.Body))
	if !strings.Contains(body, "<kml") || !strings.Contains(body, "Tiergarten flood") {
		t.Errorf("unexpected KML body: %s", body)
	}
}

// ---- GraphQL ----

func TestGraphQL_Incidents(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := postJSON(t, app, "/graphql", `{"query":"{ incidents(lat: 52.52, lon: 13.405) { id kind distance location { lat lon } } }"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var res struct {
		Data struct {
			Incidents []struct {
				ID       string   `json:"id"`
				Kind     string   `json:"kind"`
				Distance *float64 `json:"distance"`
				Location struct {
					Lat float64 `json:"lat"`
				} `json:"location"`
			} `json:"incidents"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) > 0 {
		t.Fatalf("unexpected errors %v", res.Errors)
	}
	if len(res.Data.Incidents) != 2 || res.Data.Incidents[0].ID != "20" {
		t.Fatalf("unexpected incidents %+v", res.Data.Incidents)
	}
	if res.Data.Incidents[0].Distance == nil || res.Data.Incidents[0].Location.Lat != 52.5163 {
		t.Errorf("unexpected incident %+v", res.Data.Incidents[0])
	}
}

func TestGraphQL_Distance(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := postJSON(t, app, "/graphql", `{"query":"{ distance(fromLat: 0, fromLon: 0, toLat: 0, toLon: 0.001) { km label } }"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"label":"111 m"`) {
		t.Errorf("expected 111 m label, got %s", body)
	}
}

// ---- Health and middleware ----

func TestHealth_Returns200(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if result["status"] != "healthy" {
		t.Errorf("expected healthy status, got %v", result["status"])
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReady(t *testing.T) {
	// Backend is nil → not ready
	app := setupApp(makeDeps())
	req := httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 503 {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}

	app = setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Backend = pingerFunc(func(ctx context.Context) error { return nil })
	}))
	req = httptest.NewRequest("GET", "/v1/ready", nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAPIVersionHeader(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/health", nil)
	resp, _ := app.Test(req, -1)
	if v := resp.Header.Get("X-API-Version"); v != "1.0.0" {
		t.Errorf("expected X-API-Version 1.0.0, got %q", v)
	}
}

func TestETag_NotModified(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/waypoints", nil)
	resp, _ := app.Test(req, -1)
	etag := resp.Header.Get("ETag")
	if !strings.HasPrefix(etag, `W/"`) {
		t.Fatalf("expected weak ETag, got %q", etag)
	}

	req = httptest.NewRequest("GET", "/v1/waypoints", nil)
	req.Header.Set("If-None-Match", etag)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Fatalf("expected 304, got %d", resp.StatusCode)
	}
}

func TestCacheControl_PrivateWithReference(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/incidents?lat=52.52&lon=13.405", nil)
	resp, _ := app.Test(req, -1)
	if cc := resp.Header.Get("Cache-Control"); !strings.HasPrefix(cc, "private") {
		t.Errorf("expected private Cache-Control, got %q", cc)
	}
}

func TestDeprecatedAlias(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/hazardzones/10", nil)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Deprecation") != "true" {
		t.Error("expected Deprecation header")
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, "successor-version") {
		t.Errorf("expected successor link, got %q", link)
	}

	req = httptest.NewRequest("GET", "/v1/hazard-zones/10", nil)
	resp, _ = app.Test(req, -1)
	if resp.Header.Get("Deprecation") != "" {
		t.Error("expected no Deprecation header on the current route")
	}
}

func TestRequestIDInErrors(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("GET", "/v1/waypoints/nope", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, _ := app.Test(req, -1)
	if apiErr := decodeError(t, resp.Body); apiErr.RequestID != "req-123" {
		t.Errorf("expected request id req-123, got %q", apiErr.RequestID)
	}
}

// TestAccessLogMiddleware verifies structured access logging is emitted.
func TestAccessLogMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(handler.AccessLogMiddleware())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "test-req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ok") {
		t.Errorf("expected response body to contain 'ok', got %s", string(body))
	}
}
