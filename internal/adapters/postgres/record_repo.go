package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/pkg/telemetry"
)

var tracer = telemetry.Tracer("hazardmap/postgres")

// RecordRepo implements ports.RecordBackend by reading the backend's PostGIS
// tables directly. Hazard zone locations are read as EWKT and points as
// GeoJSON, the same shapes the REST API serves.
type RecordRepo struct {
	db *DB
}

// NewRecordRepo creates a new RecordRepo.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

func tableFor(kind domain.Kind) (string, error) {
	switch kind {
	case domain.KindWaypoint:
		return "waypoints", nil
	case domain.KindHazardZone:
		return "hazard_zones", nil
	case domain.KindIncident:
		return "incidents", nil
	}
	return "", fmt.Errorf("%w: %q is not stored", domain.ErrInvalidKind, kind)
}

// FetchWaypoints returns every waypoint.
func (r *RecordRepo) FetchWaypoints(ctx context.Context) (out []domain.WaypointWire, err error) {
	ctx, span := tracer.Start(ctx, "select-waypoints")
	defer func() { telemetry.EndSpan(span, err) }()

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, description, ST_AsGeoJSON(location), telephone, is_available, type, created_at
		FROM waypoints ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = []domain.WaypointWire{}
	for rows.Next() {
		var (
			w         domain.WaypointWire
			id        int64
			location  *string
			available bool
			createdAt time.Time
		)
		if err := rows.Scan(&id, &w.Name, &w.Description, &location, &w.Telephone, &available, &w.Type, &createdAt); err != nil {
			return nil, fmt.Errorf("scan waypoint: %w", err)
		}
		w.ID = domain.RecordID(strconv.FormatInt(id, 10))
		w.Kind = string(domain.KindWaypoint)
		w.Location = geometryOrNull(location)
		w.IsAvailable = &available
		w.CreatedAt = domain.TimestampAt(createdAt)
		out = append(out, w)
	}
	span.SetAttributes(attribute.Int(telemetry.AttrRecordCount, len(out)))
	return out, rows.Err()
}

// FetchHazardZones returns every hazard zone.
func (r *RecordRepo) FetchHazardZones(ctx context.Context) (out []domain.HazardZoneWire, err error) {
	ctx, span := tracer.Start(ctx, "select-hazard-zones")
	defer func() { telemetry.EndSpan(span, err) }()

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, description, ST_AsEWKT(location), ST_AsGeoJSON(center), severity, created_at
		FROM hazard_zones ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = []domain.HazardZoneWire{}
	for rows.Next() {
		var (
			z         domain.HazardZoneWire
			id        int64
			location  *string
			center    *string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &z.Name, &z.Description, &location, &center, &z.Severity, &createdAt); err != nil {
			return nil, fmt.Errorf("scan hazard zone: %w", err)
		}
		z.ID = domain.RecordID(strconv.FormatInt(id, 10))
		z.Kind = string(domain.KindHazardZone)
		if location != nil {
			z.Location = domain.WKTGeometry(*location)
		}
		z.Center = geometryOrNull(center)
		z.CreatedAt = domain.TimestampAt(createdAt)
		out = append(out, z)
	}
	span.SetAttributes(attribute.Int(telemetry.AttrRecordCount, len(out)))
	return out, rows.Err()
}

// FetchIncidents returns every incident, newest first.
func (r *RecordRepo) FetchIncidents(ctx context.Context) (out []domain.IncidentWire, err error) {
	ctx, span := tracer.Start(ctx, "select-incidents")
	defer func() { telemetry.EndSpan(span, err) }()

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, description, ST_AsGeoJSON(location), severity, created_at
		FROM incidents ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out = []domain.IncidentWire{}
	for rows.Next() {
		var (
			i         domain.IncidentWire
			id        int64
			location  *string
			createdAt time.Time
		)
		if err := rows.Scan(&id, &i.Name, &i.Description, &location, &i.Severity, &createdAt); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		i.ID = domain.RecordID(strconv.FormatInt(id, 10))
		i.Kind = string(domain.KindIncident)
		i.Location = geometryOrNull(location)
		i.CreatedAt = domain.TimestampAt(createdAt)
		out = append(out, i)
	}
	span.SetAttributes(attribute.Int(telemetry.AttrRecordCount, len(out)))
	return out, rows.Err()
}

// Create inserts a validated submission. Re-running the same submission
// returns the id of the row written the first time.
func (r *RecordRepo) Create(ctx context.Context, sub *domain.Submission) (string, error) {
	return r.CreateAt(ctx, sub, time.Time{})
}

// CreateAt is Create with an explicit creation time. A zero time means now.
func (r *RecordRepo) CreateAt(ctx context.Context, sub *domain.Submission, createdAt time.Time) (id string, err error) {
	ctx, span := tracer.Start(ctx, "insert-record")
	span.SetAttributes(attribute.String(telemetry.AttrRecordKind, string(sub.Kind)))
	defer func() { telemetry.EndSpan(span, err) }()

	geom := sub.GeometryWKT()
	if geom == "" {
		return "", fmt.Errorf("%w: submission has no geometry", domain.ErrInvalidGeometry)
	}
	subID := nullableUUID(sub.ID)
	var created *time.Time
	if !createdAt.IsZero() {
		created = &createdAt
	}

	var row pgx.Row
	switch sub.Kind {
	case domain.KindWaypoint:
		available := true
		if sub.IsAvailable != nil {
			available = *sub.IsAvailable
		}
		row = r.db.Pool.QueryRow(ctx, `
			INSERT INTO waypoints (submission_id, name, description, location, telephone, is_available, type, created_at)
			VALUES ($1, $2, $3, ST_GeomFromEWKT($4), $5, $6, $7, COALESCE($8, now()))
			ON CONFLICT (submission_id) DO UPDATE SET submission_id = EXCLUDED.submission_id
			RETURNING id
		`, subID, sub.Name, sub.Description, geom, sub.Telephone, available, string(sub.Type), created)

	case domain.KindHazardZone:
		var center *string
		if sub.Center != nil {
			c := domain.Submission{Location: sub.Center}
			w := c.GeometryWKT()
			center = &w
		}
		row = r.db.Pool.QueryRow(ctx, `
			INSERT INTO hazard_zones (submission_id, name, description, location, center, severity, created_at)
			VALUES ($1, $2, $3, ST_GeomFromEWKT($4), ST_GeomFromEWKT($5), $6, COALESCE($7, now()))
			ON CONFLICT (submission_id) DO UPDATE SET submission_id = EXCLUDED.submission_id
			RETURNING id
		`, subID, sub.Name, sub.Description, geom, center, severityOrDefault(sub.Severity), created)

	case domain.KindIncident:
		row = r.db.Pool.QueryRow(ctx, `
			INSERT INTO incidents (submission_id, name, description, location, severity, created_at)
			VALUES ($1, $2, $3, ST_GeomFromEWKT($4), $5, COALESCE($6, now()))
			ON CONFLICT (submission_id) DO UPDATE SET submission_id = EXCLUDED.submission_id
			RETURNING id
		`, subID, sub.Name, sub.Description, geom, severityOrDefault(sub.Severity), created)

	default:
		return "", fmt.Errorf("%w: %q is not stored", domain.ErrInvalidKind, sub.Kind)
	}

	var newID int64
	if err := row.Scan(&newID); err != nil {
		return "", fmt.Errorf("insert %s: %w", sub.Kind, err)
	}
	return strconv.FormatInt(newID, 10), nil
}

// Delete removes a record by id.
func (r *RecordRepo) Delete(ctx context.Context, kind domain.Kind, id string) (err error) {
	ctx, span := tracer.Start(ctx, "delete-record")
	span.SetAttributes(attribute.String(telemetry.AttrRecordKind, string(kind)))
	defer func() { telemetry.EndSpan(span, err) }()

	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrRecordNotFound)
	}
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, n)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrRecordNotFound)
	}
	return nil
}

// Ping checks the connection.
func (r *RecordRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Count returns the number of rows of kind.
func (r *RecordRepo) Count(ctx context.Context, kind domain.Kind) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

// DeleteAll removes every row of kind and returns how many were deleted.
func (r *RecordRepo) DeleteAll(ctx context.Context, kind domain.Kind) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM `+table)
	if err != nil {
		return 0, fmt.Errorf("delete all %s: %w", kind, err)
	}
	return tag.RowsAffected(), nil
}

// ClearAll deletes every kind inside one transaction.
func (r *RecordRepo) ClearAll(ctx context.Context) (map[domain.Kind]int64, error) {
	deleted := make(map[domain.Kind]int64, len(domain.StoredKinds))
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		for _, kind := range domain.StoredKinds {
			table, err := tableFor(kind)
			if err != nil {
				return err
			}
			tag, err := tx.Exec(ctx, `DELETE FROM `+table)
			if err != nil {
				return fmt.Errorf("delete all %s: %w", kind, err)
			}
			deleted[kind] = tag.RowsAffected()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func geometryOrNull(geojson *string) domain.RawGeometry {
	if geojson == nil {
		return domain.RawGeometry{}
	}
	return domain.GeoJSONGeometry([]byte(*geojson))
}

func severityOrDefault(s domain.Severity) string {
	if s == "" {
		return string(domain.SeverityMedium)
	}
	return string(s)
}

func nullableUUID(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
