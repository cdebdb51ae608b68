// Command seed fills or empties the PostGIS records backend.
//
//	seed populate [fixtures.yaml]
//	seed wipe-incidents
//	seed clear --confirm
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/samirrijal/hazardmap/internal/adapters/postgres"
	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/core/ports"
	"github.com/samirrijal/hazardmap/internal/core/usecases"
	"github.com/samirrijal/hazardmap/internal/pkg/config"
	"github.com/samirrijal/hazardmap/internal/pkg/geospatial"
)

const defaultFixtures = "fixtures/seed.yaml"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: seed <populate [file]|wipe-incidents|clear --confirm>")
	}

	cfg, err := config.Load("hazardmap-seed")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	repo := postgres.NewRecordRepo(db)

	switch os.Args[1] {
	case "populate":
		path := defaultFixtures
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		populate(ctx, repo, path)
	case "wipe-incidents":
		n, err := wipe(ctx, repo, domain.KindIncident)
		if err != nil {
			log.Fatalf("wipe incidents: %v", err)
		}
		fmt.Printf("deleted %d incidents\n", n)
	case "clear":
		if len(os.Args) < 3 || os.Args[2] != "--confirm" {
			fmt.Println("This deletes ALL records. Run `seed clear --confirm` to proceed.")
			return
		}
		clearAll(ctx, repo)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func populate(ctx context.Context, repo *postgres.RecordRepo, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	fix, err := ParseFixtures(data)
	if err != nil {
		log.Fatalf("parse %s: %v", path, err)
	}

	// Populating replaces the sample incidents.
	if _, err := wipe(ctx, repo, domain.KindIncident); err != nil {
		log.Fatalf("wipe incidents: %v", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	seeds := fix.Submissions(time.Now(), rng)

	// Validate fills in hazard zone centers and default types.
	checker := usecases.NewSubmissionService(repo, nil, nil, nil)
	created := 0
	for _, s := range seeds {
		if err := checker.Validate(&s.Submission); err != nil {
			log.Printf("skip %s %q: %v", s.Kind, s.Name, err)
			continue
		}
		id, err := repo.CreateAt(ctx, &s.Submission, s.CreatedAt)
		if err != nil {
			log.Fatalf("create %s %q: %v", s.Kind, s.Name, err)
		}
		created++
		fmt.Printf("OK  %-10s %-5s %s at %s\n", s.Kind, id, s.Name, describe(&s.Submission, fix.Base))
	}

	log.Printf("created %d records", created)
}

// wipe deletes every record of kind, reporting how many there were.
func wipe(ctx context.Context, repo ports.MaintenanceRepository, kind domain.Kind) (int64, error) {
	n, err := repo.Count(ctx, kind)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return repo.DeleteAll(ctx, kind)
}

func clearAll(ctx context.Context, repo *postgres.RecordRepo) {
	for _, kind := range domain.StoredKinds {
		n, err := repo.Count(ctx, kind)
		if err != nil {
			log.Fatalf("count: %v", err)
		}
		fmt.Printf("found %d %s records\n", n, kind)
	}

	deleted, err := repo.ClearAll(ctx)
	if err != nil {
		log.Fatalf("clear: %v", err)
	}
	for _, kind := range domain.StoredKinds {
		fmt.Printf("deleted %d %s records\n", deleted[kind], kind)
	}
}

func describe(sub *domain.Submission, base domain.GeoPoint) string {
	p := sub.Location
	if p == nil {
		p = sub.Center
	}
	if p == nil {
		return "?"
	}
	return fmt.Sprintf("(%.4f, %.4f), %s away", p.Lat, p.Lon, geospatial.FormatDistance(geospatial.DistanceKm(base, *p)))
}
