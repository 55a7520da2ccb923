// Package pubsub fans graph updates out to subscribers.
//
// A Publisher keeps a set of subscribers keyed by id and an optional list of
// topic memberships. Publish delivers to every registered subscriber;
// PublishTopic delivers only to the members of one topic. Subscribing through
// SubscribeTopic makes a subscriber eligible for both paths.
//
// Delivery is synchronous and runs in registration order. The first handler
// error stops the call and is returned to the publisher's caller wrapped in an
// *errors.HandlerError, so errors.Is(err, errors.ErrHandlerFailed) and
// errors.Is(err, handlerErr) both hold. Subscribers that must not slow the
// publishing path can be wrapped in an AsyncSubscriber, which hands updates to
// a bounded worker pool:
//
//	pub := pubsub.NewPublisher(pubsub.WithMetrics(registry))
//	async, err := pubsub.NewAsyncSubscriber(wsOutput, pubsub.AsyncConfig{Workers: 2, QueueSize: 512})
//	if err != nil {
//	    return err
//	}
//	if err := async.Start(ctx); err != nil {
//	    return err
//	}
//	pub.Subscribe("websocket", async)
//
// The subscriber set is guarded by one mutex. Handlers are called after the
// lock is released, so a handler may itself subscribe or unsubscribe.
package pubsub
