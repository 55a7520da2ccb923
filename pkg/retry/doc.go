// Package retry runs an operation with exponential backoff.
//
// Do retries only errors the configured predicate accepts. By default that is
// errors classified as transient by the errors package, so invalid input and
// fatal state errors fail on the first attempt. NonRetryable forces the same
// for any error.
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return client.Publish(ctx, subject, data)
//	})
//
// Quick suits connection setup during startup, where many short attempts are
// preferable to a few long waits.
package retry
