// Package errors provides standardized error handling patterns for livegraph components.
//
// # Overview
//
// Errors fall into three classes: Transient (temporary, retryable), Invalid
// (bad input or configuration, never retried) and Fatal (unrecoverable, stop
// processing). Transports such as the NATS subscriber use the class to decide
// whether a failed delivery is worth another attempt.
//
// # Wrapping
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Three wrappers attach a class as well as context:
//
//	errors.WrapTransient(err, "Subscriber", "HandleUpdate", "publish")
//	errors.WrapInvalid(err, "Cache", "New", "validate max size")
//	errors.WrapFatal(err, "Materializer", "MaterializeAdd", "derive")
//
// # Engine errors
//
// The engine core rejects no input, so only two engine-specific failures exist:
//
//   - ErrStateUnavailable: a component's guarded state was poisoned by a panic
//     inside its critical section. Always fatal, never reported as "not found".
//   - ErrHandlerFailed: a subscriber returned an error during a synchronous
//     publish. The concrete *HandlerError names the subscriber and unwraps to
//     the handler's own error.
//
// Handler failures can be told apart from the manager's own errors:
//
//	if err := mgr.AddTriple(ctx, t); err != nil {
//	    var he *errors.HandlerError
//	    if errors.As(err, &he) {
//	        log.Warn("subscriber failed", "id", he.SubscriberID, "error", he.Err)
//	    }
//	}
//
// All types support errors.Is and errors.As through wrapping chains.
package errors
