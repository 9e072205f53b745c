package testutils

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

type PostgresTestContainer struct {
	Pool     *dockertest.Pool
	Resource *dockertest.Resource
	URL      string
}

// SetupTestPostgres starts a disposable PostgreSQL container and waits until
// it accepts connections.
func SetupTestPostgres() (*PostgresTestContainer, error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("could not construct pool: %w", err)
	}

	if err := pool.Client.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to Docker: %w", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_USER=postgres",
			"POSTGRES_DB=mbse_test",
			"listen_addresses = '*'",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, fmt.Errorf("could not start resource: %w", err)
	}

	hostAndPort := resource.GetHostPort("5432/tcp")
	databaseURL := fmt.Sprintf("postgres://postgres:postgres@%s/mbse_test?sslmode=disable", hostAndPort)

	_ = resource.Expire(180)
	pool.MaxWait = 180 * time.Second

	if err = pool.Retry(func() error {
		db, err := sql.Open("pgx", databaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Ping()
	}); err != nil {
		_ = pool.Purge(resource)
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	return &PostgresTestContainer{
		Pool:     pool,
		Resource: resource,
		URL:      databaseURL,
	}, nil
}

func (c *PostgresTestContainer) Cleanup() error {
	if err := c.Pool.Purge(c.Resource); err != nil {
		return fmt.Errorf("could not purge resource: %w", err)
	}
	return nil
}
