package testutil

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var mongoC shared

// GetMongoURI returns a connection URI for a shared MongoDB container.
// The server runs as a single-node replica set so transactions work.
func GetMongoURI(t *testing.T) string {
	t.Helper()
	return mongoC.get(t, "mongo", startMongo)
}

func startMongo(ctx context.Context) (string, error) {
	c, err := testcontainers.Run(
		ctx, "mongo:7",
		testcontainers.WithExposedPorts("27017/tcp"),
		testcontainers.WithCmd("--replSet", "rs0", "--bind_ip_all"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("27017/tcp"),
			wait.ForLog("Waiting for connections"),
		),
	)
	if err != nil {
		return "", err
	}

	if err := initiateReplicaSet(ctx, c); err != nil {
		_ = c.Terminate(context.Background()) // best-effort cleanup
		return "", err
	}

	endpoint, err := c.Endpoint(ctx, "")
	if err != nil {
		_ = c.Terminate(context.Background()) // best-effort cleanup
		return "", err
	}
	// The member is registered as localhost inside the container.
	return fmt.Sprintf("mongodb://%s/?directConnection=true", endpoint), nil
}

// initiateReplicaSet turns the server into a one-member replica set and waits
// until it accepts writes.
func initiateReplicaSet(ctx context.Context, c testcontainers.Container) error {
	if _, err := mongosh(ctx, c, `rs.initiate({_id: "rs0", members: [{_id: 0, host: "localhost:27017"}]})`); err != nil {
		return fmt.Errorf("initiate replica set: %w", err)
	}

	for {
		out, err := mongosh(ctx, c, `db.hello().isWritablePrimary`)
		if err == nil && strings.Contains(out, "true") {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for primary: %w", ctx.Err())
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func mongosh(ctx context.Context, c testcontainers.Container, script string) (string, error) {
	code, r, err := c.Exec(ctx, []string{"mongosh", "--quiet", "--eval", script})
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", fmt.Errorf("mongosh exited with %d: %s", code, out)
	}
	return string(out), nil
}
