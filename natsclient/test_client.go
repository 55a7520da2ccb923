package natsclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DefaultTestImage is the NATS server image used by NewTestClient.
const DefaultTestImage = "nats:2.11.7-alpine"

// TestClient is a connected Client backed by a throwaway NATS container.
type TestClient struct {
	Client *Client
	URL    string
}

// StartTestServer starts a NATS container and returns its client URL and a
// terminate function. Used by TestMain-style setups that need no testing.T.
func StartTestServer(ctx context.Context, image string) (string, func(), error) {
	if image == "" {
		image = DefaultTestImage
	}
	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{"4222/tcp", "8222/tcp"},
		Cmd:          []string{"--port", "4222", "--http_port", "8222"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4222/tcp"),
			wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(30*time.Second),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", nil, fmt.Errorf("start NATS container: %w", err)
	}
	terminate := func() { _ = container.Terminate(context.Background()) }

	host, err := container.Host(ctx)
	if err != nil {
		terminate()
		return "", nil, fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "4222")
	if err != nil {
		terminate()
		return "", nil, fmt.Errorf("mapped port: %w", err)
	}
	return fmt.Sprintf("nats://%s:%s", host, port.Port()), terminate, nil
}

// NewTestClient starts a container, connects a Client to it and registers
// cleanup with t.
func NewTestClient(t testing.TB, opts ...ClientOption) *TestClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	url, terminate, err := StartTestServer(ctx, "")
	if err != nil {
		t.Fatalf("NATS test server: %v", err)
	}

	opts = append([]ClientOption{WithTimeout(5 * time.Second), WithMaxReconnects(0)}, opts...)
	client, err := NewClient(url, opts...)
	if err != nil {
		terminate()
		t.Fatalf("create NATS client: %v", err)
	}
	if err := client.Connect(ctx); err != nil {
		terminate()
		t.Fatalf("connect to NATS: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close(context.Background())
		terminate()
	})
	return &TestClient{Client: client, URL: url}
}
