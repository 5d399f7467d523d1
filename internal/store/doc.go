// Package store provides the SQLite-backed local lookup cache.
//
// Every loader owns two tables:
//   - Live table: the name lookups query, e.g. servers
//   - Staging table: temp_servers, which receives the next snapshot
//
// # Refresh Protocol
//
// A refresh inserts the new snapshot into the staging table without any
// lock, then swaps names under the write lock in a single transaction:
//
//	temp_servers -> swap_<random>
//	servers      -> temp_servers
//	swap_<random> -> servers
//	DELETE FROM temp_servers
//
// Renaming is constant time, so lookups are blocked only for the swap and
// never for the remote fetch or the bulk insert.
//
// # Database Configuration
//
//   - WAL mode for file stores: concurrent reads during writes
//   - Shared cache for in-memory stores: table-level locks, one pinned
//     connection keeps the database alive
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
