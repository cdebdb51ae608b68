package http

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/samirrijal/hazardmap/internal/core/domain"
)

// ErrMalformedBody is returned when a submission body is not JSON at all.
var ErrMalformedBody = errors.New("malformed JSON body")

//go:embed schemas/*.json
var schemaFS embed.FS

var schemaFiles = map[domain.Kind]string{
	domain.KindWaypoint:   "schemas/waypoint.json",
	domain.KindHazardZone: "schemas/hazard_zone.json",
	domain.KindIncident:   "schemas/incident.json",
}

// SubmissionValidator checks submission bodies against the JSON schema of
// their record kind.
type SubmissionValidator struct {
	schemas map[domain.Kind]*gojsonschema.Schema
}

// severityFormat accepts the severities known to the records backend.
type severityFormat struct{}

func (severityFormat) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	if !ok {
		return false
	}
	_, err := domain.ParseSeverity(s)
	return err == nil
}

// waypointTypeFormat accepts the waypoint categories, including "".
type waypointTypeFormat struct{}

func (waypointTypeFormat) IsFormat(input interface{}) bool {
	s, ok := input.(string)
	if !ok {
		return false
	}
	_, err := domain.ParseWaypointType(s)
	return err == nil
}

func init() {
	gojsonschema.FormatCheckers.Add("severity", severityFormat{})
	gojsonschema.FormatCheckers.Add("waypoint-type", waypointTypeFormat{})
}

// NewSubmissionValidator compiles the embedded schemas.
func NewSubmissionValidator() (*SubmissionValidator, error) {
	v := &SubmissionValidator{schemas: make(map[domain.Kind]*gojsonschema.Schema, len(schemaFiles))}
	for kind, file := range schemaFiles {
		data, err := schemaFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", file, err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", file, err)
		}
		v.schemas[kind] = schema
	}
	return v, nil
}

// Validate checks a raw JSON body. Every violation is reported in one error.
func (v *SubmissionValidator) Validate(kind domain.Kind, body []byte) error {
	schema, ok := v.schemas[kind]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("validation failed: %s", strings.Join(problems, "; "))
}
