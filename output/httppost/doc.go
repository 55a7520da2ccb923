// Package httppost delivers graph updates to an HTTP webhook.
//
// Output is a pubsub.Subscriber. Every update is POSTed as its JSON form
// ({"kind":"add_batch","triples":[...]}) with the configured content type and
// headers.
//
// Responses are classified before the retry policy sees them:
//
//   - 2xx: delivered
//   - 429 and 5xx, or a transport error: transient, retried with backoff
//   - any other status: invalid, returned immediately
//
// A failed delivery is returned to the publisher, so a synchronous publisher
// surfaces webhook outages to the caller. Wrap the output in a
// pubsub.AsyncSubscriber to decouple them.
//
//	hook, err := httppost.NewOutput(httppost.Config{
//	    URL:     "https://hooks.example.com/graph",
//	    Headers: map[string]string{"Authorization": "Bearer " + token},
//	    Timeout: 10 * time.Second,
//	}, httppost.WithRetry(retry.DefaultConfig()))
//	publisher.Subscribe("webhook", hook)
package httppost
