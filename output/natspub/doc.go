// Package natspub forwards graph updates to NATS.
//
// A Subscriber is registered on a pubsub.Publisher like any other handler.
// Each update is encoded as JSON and published to "<prefix>.<kind>", with
// the underscore in batch kinds turned into a token separator
// ("graph.updates.add.batch"), so downstream consumers can filter by update
// kind with ordinary NATS wildcards:
//
//	client, _ := natsclient.NewClient(url)
//	_ = client.Connect(ctx)
//
//	out, err := natspub.New(client, natspub.WithPrefix("graph.updates"))
//	if err != nil {
//		return err
//	}
//	publisher.Subscribe("nats", out)
//
// Publishing is retried with pkg/retry while the failure is transient
// (connection lost, circuit open). Invalid updates are rejected without
// touching the connection.
package natspub
