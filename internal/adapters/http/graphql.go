package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/pkg/geospatial"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	// One flat type for every kind; kind-specific fields are null elsewhere.
	recordType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Record",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.String},
			"kind":          &graphql.Field{Type: graphql.String},
			"name":          &graphql.Field{Type: graphql.String},
			"description":   &graphql.Field{Type: graphql.String},
			"createdAt":     &graphql.Field{Type: graphql.String},
			"distance":      &graphql.Field{Type: graphql.Float},
			"distanceLabel": &graphql.Field{Type: graphql.String},
			"location":      &graphql.Field{Type: geoPointType},
			"shape":         &graphql.Field{Type: graphql.String},
			"coordinates":   &graphql.Field{Type: graphql.NewList(geoPointType)},
			"center":        &graphql.Field{Type: geoPointType},
			"severity":      &graphql.Field{Type: graphql.String},
			"type":          &graphql.Field{Type: graphql.String},
			"telephone":     &graphql.Field{Type: graphql.String},
			"isAvailable":   &graphql.Field{Type: graphql.Boolean},
			"address":       &graphql.Field{Type: graphql.String},
		},
	})

	distanceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Distance",
		Fields: graphql.Fields{
			"km":     &graphql.Field{Type: graphql.Float},
			"meters": &graphql.Field{Type: graphql.Float},
			"label":  &graphql.Field{Type: graphql.String},
		},
	})

	refArgs := graphql.FieldConfigArgument{
		"lat": &graphql.ArgumentConfig{Type: graphql.Float},
		"lon": &graphql.ArgumentConfig{Type: graphql.Float},
	}

	listKind := func(kind domain.Kind) *graphql.Field {
		return &graphql.Field{
			Type: graphql.NewList(recordType),
			Args: refArgs,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				ref, err := refFromArgs(p.Args)
				if err != nil {
					return nil, err
				}
				recs, err := deps.Records.List(p.Context, kind, ref)
				if err != nil {
					return nil, err
				}
				return recordViews(recs), nil
			},
		}
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"records": &graphql.Field{
				Type: graphql.NewList(recordType),
				Args: graphql.FieldConfigArgument{
					"lat":      &graphql.ArgumentConfig{Type: graphql.Float},
					"lon":      &graphql.ArgumentConfig{Type: graphql.Float},
					"radiusKm": &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ref, err := refFromArgs(p.Args)
					if err != nil {
						return nil, err
					}
					if radius, ok := p.Args["radiusKm"].(float64); ok {
						if ref == nil {
							return nil, errors.New("radiusKm requires lat and lon")
						}
						recs, err := deps.Records.Nearby(p.Context, *ref, radius, nil)
						if err != nil {
							return nil, err
						}
						return recordViews(recs), nil
					}
					recs, err := deps.Records.All(p.Context, ref)
					if err != nil {
						return nil, err
					}
					return recordViews(recs), nil
				},
			},
			"waypoints":   listKind(domain.KindWaypoint),
			"hazardZones": listKind(domain.KindHazardZone),
			"incidents":   listKind(domain.KindIncident),
			"places": &graphql.Field{
				Type: graphql.NewList(recordType),
				Args: graphql.FieldConfigArgument{
					"q":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lat": &graphql.ArgumentConfig{Type: graphql.Float},
					"lon": &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Places == nil {
						return nil, errors.New("geocoding not configured")
					}
					ref, err := refFromArgs(p.Args)
					if err != nil {
						return nil, err
					}
					q, _ := p.Args["q"].(string)
					places, err := deps.Places.Search(p.Context, q, ref, "")
					if err != nil {
						return nil, err
					}
					recs := make([]domain.Record, len(places))
					for i, pl := range places {
						recs[i] = pl
					}
					return recordViews(recs), nil
				},
			},
			"distance": &graphql.Field{
				Type: distanceType,
				Args: graphql.FieldConfigArgument{
					"fromLat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"fromLon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"toLat":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"toLon":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					from := domain.GeoPoint{Lat: p.Args["fromLat"].(float64), Lon: p.Args["fromLon"].(float64)}
					to := domain.GeoPoint{Lat: p.Args["toLat"].(float64), Lon: p.Args["toLon"].(float64)}
					if !from.Valid() || !to.Valid() {
						return nil, errors.New("coordinates out of range")
					}
					km := geospatial.DistanceKm(from, to)
					return DistanceResponse{Kilometers: km, Meters: km * 1000, Label: geospatial.FormatDistance(km)}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func refFromArgs(args map[string]interface{}) (*domain.GeoPoint, error) {
	lat, hasLat := args["lat"].(float64)
	lon, hasLon := args["lon"].(float64)
	if !hasLat && !hasLon {
		return nil, nil
	}
	if !hasLat || !hasLon {
		return nil, errors.New("lat and lon must be given together")
	}
	ref := domain.GeoPoint{Lat: lat, Lon: lon}
	if !ref.Valid() {
		return nil, errors.New("coordinates out of range")
	}
	return &ref, nil
}

func recordViews(records []domain.Record) []map[string]interface{} {
	out := make([]map[string]interface{}, len(records))
	for i, r := range records {
		out[i] = recordView(r)
	}
	return out
}

// recordView flattens a record into the field names of the Record type.
func recordView(r domain.Record) map[string]interface{} {
	b := r.Base()
	v := map[string]interface{}{
		"id":          b.ID,
		"kind":        string(b.Kind),
		"name":        b.Name,
		"description": b.Description,
		"createdAt":   b.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if b.Distance != nil {
		v["distance"] = *b.Distance
		v["distanceLabel"] = b.DistanceLabel
	}

	switch rec := r.(type) {
	case *domain.Waypoint:
		v["location"] = rec.Location
		v["type"] = string(rec.Type)
		v["telephone"] = rec.Telephone
		if rec.IsAvailable != nil {
			v["isAvailable"] = *rec.IsAvailable
		}
	case *domain.HazardZone:
		v["shape"] = string(rec.Shape)
		v["coordinates"] = rec.Coordinates
		if rec.Center != nil {
			v["center"] = *rec.Center
		}
		if rec.Severity != "" {
			v["severity"] = string(rec.Severity)
		}
	case *domain.Incident:
		v["location"] = rec.Location
		if rec.Severity != "" {
			v["severity"] = string(rec.Severity)
		}
	case *domain.Place:
		v["location"] = rec.Coords
		v["type"] = rec.Type
		v["address"] = rec.Address
	}
	return v
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
