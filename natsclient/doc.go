// Package natsclient wraps a NATS connection for the engine's transports.
//
// The client adds three things to the plain nats.go connection: a circuit
// breaker on Connect, context-aware Publish and Subscribe helpers, and
// classified errors. ErrNotConnected and ErrCircuitOpen wrap
// errors.ErrNoConnection, so retry.Do treats them as transient.
//
// # Circuit Breaker
//
// Every failed Connect is counted. After the threshold (default 5) the
// circuit opens and Connect returns ErrCircuitOpen without dialing. The
// circuit half-opens once the backoff elapses; each further trip doubles the
// backoff up to the configured maximum. A successful connect or reconnect
// resets the breaker.
//
// # Lifecycle
//
//	client, err := natsclient.NewClient(cfg.URL,
//	    natsclient.WithName("livegraph"),
//	    natsclient.WithLogger(logger),
//	    natsclient.WithMetrics(registry),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
// Connection state moves through Disconnected, Connecting, Connected and
// Reconnecting. Callbacks registered with WithDisconnectCallback,
// WithReconnectCallback and WithHealthChangeCallback run on their own
// goroutines.
//
// # Testing
//
// NewTestClient starts a NATS container with testcontainers-go and returns a
// connected client. Tests that use it carry the integration build tag.
package natsclient
