// Command lookupcache loads reference data into a local SQLite cache and
// enriches JSON events with lookups against it.
package main

import (
	"os"

	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/lookupcache/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
