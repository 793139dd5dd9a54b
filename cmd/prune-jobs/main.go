package main

import (
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/zzn199216/hum2song-webui/internal/jobstore"
)

// cmd/prune-jobs is a standalone entry point for the maintenance operation
// jobstore.Store.Prune implements. The job store itself is in-memory and
// scoped to the running server process, so this binary cannot prune a live
// server's state from the outside; it exists to exercise and document the
// exact maxAge contract. A long-running deployment runs the equivalent
// loop in-process — see cmd/server/main.go's periodic prune ticker.
func main() {
	maxAge := flag.Duration("max-age", 24*time.Hour, "prune jobs whose last update is older than this")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("warning: .env file not found, using system environment variables")
	}

	store := jobstore.New()
	removed := store.Prune(*maxAge)
	log.Printf("pruned %d job(s) older than %s", removed, maxAge.String())
}
