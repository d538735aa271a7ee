// Command seed populates the database with deterministic sample data for
// local development and demos.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/unsubtrack/tracker/internal/storage"
)

var senders = []struct {
	name   string
	domain string
}{
	{"Acme Newsletters", "acme.test"},
	{"Globex Promotions", "globex.test"},
	{"Initech Updates", "initech.test"},
	{"Umbrella Digest", "umbrella.test"},
	{"Hooli Weekly", "hooli.test"},
	{"Stark Industries News", "stark.test"},
	{"Wayne Enterprises Bulletin", "wayne.test"},
	{"Tyrell Corp Announcements", "tyrell.test"},
}

func main() {
	dbPath := flag.String("db", "./data/tracker.db", "SQLite database file")
	count := flag.Int("count", 50, "number of sample records to insert")
	flag.Parse()

	_ = godotenv.Load()

	store, err := storage.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	methods := []string{"direct_link", "isp_level"}

	for i := 0; i < *count; i++ {
		s := senders[i%len(senders)]
		email := fmt.Sprintf("news+%d@%s", i, s.domain)
		method := methods[i%len(methods)]
		if _, err := store.InsertEmail(ctx, s.name, email, method); err != nil {
			log.Fatalf("Insert %d failed: %v", i, err)
		}
	}

	if _, err := store.InsertLog(ctx, "seed", "INFO", "Sample data created.",
		map[string]any{"count": *count}, "seed_script"); err != nil {
		log.Fatalf("Seed log failed: %v", err)
	}

	fmt.Printf("Inserted %d sample records into %s\n", *count, *dbPath)
}
