//go:build container

package mongo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"fintrack/internal/store"
	"fintrack/internal/store/storetest"
)

func startMongo(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := c.MappedPort(ctx, "27017/tcp")
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf("mongodb://%s:%s", host, port.Port())
}

func TestStore(t *testing.T) {
	uri := startMongo(t)

	storetest.Run(t, func(t *testing.T) store.Store {
		// A fresh database per subtest keeps them independent.
		s, err := Open(context.Background(), uri, "fintrack_"+uuid.NewString()[:8])
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() {
			_ = s.db.Drop(context.Background())
			_ = s.Close()
		})
		return s
	})
}
