package conventions

import (
	"path/filepath"

	"k8s.io/client-go/util/homedir"
)

const (
	// DefaultDataDir is the default jobwatch data directory name (relative to home).
	DefaultDataDir = ".jobwatch"
	// DBFile is the SQLite database filename inside the data directory.
	DBFile = "jobwatch.db"

	// DefaultFakeServerAddress is the default listen address of the fake analysis server.
	DefaultFakeServerAddress = ":8000"
	// DefaultMetricsAddress is the default listen address of the metrics server.
	DefaultMetricsAddress = ":8081"
	// MetricsPath is the HTTP path where the metrics are served.
	MetricsPath = "/metrics"
)

// DataDir returns the jobwatch data directory of the current user.
func DataDir() string {
	return filepath.Join(homedir.HomeDir(), DefaultDataDir)
}

// DBPath returns the default SQLite database path.
func DBPath() string {
	return DBPathIn(DataDir())
}

// DBPathIn returns the SQLite database path inside a data directory.
func DBPathIn(dataDir string) string {
	return filepath.Join(dataDir, DBFile)
}
