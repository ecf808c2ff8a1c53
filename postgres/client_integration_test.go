//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	postgres "github.com/slackmgr/projectindex/postgres"
	"github.com/slackmgr/projectindex/store"
	"github.com/slackmgr/projectindex/storetest"
)

var client *postgres.Client

func TestMain(m *testing.M) {
	ctx := context.Background()
	c := postgres.New(
		postgres.WithHost("localhost"),
		postgres.WithPort(5432),
		postgres.WithUser("postgres"),
		postgres.WithPassword("qwerty"),
		postgres.WithDatabase("projectindex"),
		postgres.WithSSLMode(postgres.SSLModeDisable),
		postgres.WithRecordsTable("__records_integration_test"),
	)

	err := c.Connect(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Ensure the database is clean before running tests
	err = c.DropAllData(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("failed to drop integration test tables: %w", err))
		os.Exit(1)
	}

	err = c.Init(ctx, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	client = c

	code := m.Run()

	err = client.DropAllData(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("failed to drop integration test tables: %w", err))
	}

	_ = client.Close(ctx)

	os.Exit(code)
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		t.Helper()

		ctx := context.Background()

		if err := client.DropAllData(ctx); err != nil {
			t.Fatalf("failed to drop records table: %v", err)
		}

		if err := client.Init(ctx, true); err != nil {
			t.Fatalf("failed to recreate records table: %v", err)
		}

		return client
	})
}
