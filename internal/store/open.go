package store

import "fmt"

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Open creates a local backend. Postgres lives in the db package and is opened by the caller.
func Open(backend, path string) (PlanStore, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		if path == "" {
			return nil, fmt.Errorf("file store requires a path")
		}
		return NewFile(path)
	case BackendSQLite:
		if path == "" {
			return nil, fmt.Errorf("sqlite store requires a path")
		}
		return OpenSQLite(path)
	case BackendPostgres:
		return nil, fmt.Errorf("postgres store must be opened with db.Connect")
	default:
		return nil, fmt.Errorf("unknown store backend %q (want memory, file, sqlite or postgres)", backend)
	}
}
