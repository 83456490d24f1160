package server

import (
	"context"
	"database/sql"
)

// DBHealthService probes the postgres connection.
type DBHealthService struct {
	DB *sql.DB
}

func (s DBHealthService) Probe(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}
