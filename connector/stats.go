package connector

// ConnectionStats represents database connection pool statistics.
type ConnectionStats struct {
	MaxConnections  int
	OpenConnections int
	InUse           int
	Idle            int
	Acquires        int64
}
