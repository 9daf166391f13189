package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	postgresOnce      sync.Once
	postgresContainer testcontainers.Container
	postgresURL       string
	postgresErr       error
)

func TestMain(m *testing.M) {
	code := m.Run()
	if postgresContainer != nil {
		if err := postgresContainer.Terminate(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
		}
	}
	os.Exit(code)
}

// testDatabaseURL prefers TEST_DATABASE_URL. With TEST_WITH_CONTAINERS set it
// starts one throwaway Postgres for the whole package instead.
func testDatabaseURL(t *testing.T) string {
	t.Helper()
	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		return url
	}
	if os.Getenv("TEST_WITH_CONTAINERS") == "" {
		t.Skip("TEST_DATABASE_URL not set and TEST_WITH_CONTAINERS not enabled")
	}

	postgresOnce.Do(func() {
		postgresContainer, postgresURL, postgresErr = startPostgres(context.Background())
	})
	if postgresErr != nil {
		t.Skipf("postgres container unavailable: %v", postgresErr)
	}
	return postgresURL
}

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "friendzone",
			"POSTGRES_PASSWORD": "friendzone",
			"POSTGRES_DB":       "friendzone_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return container, "", err
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return container, "", err
	}

	url := fmt.Sprintf("postgres://friendzone:friendzone@%s:%s/friendzone_test?sslmode=disable", host, port.Port())
	return container, url, nil
}
