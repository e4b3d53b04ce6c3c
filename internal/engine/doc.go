/*
Package engine is the query handler which binds the rate limiter, the response cache and a
resolver into the single operation the HTTP front end needs: given a client and a raw DNS query,
produce a response or a classified error.

Every request moves through these states:

	Received -> Throttled
	Received -> Admitted -> CacheHit
	Received -> Admitted -> CacheMiss -> Racing -> Served
	Received -> Admitted -> CacheMiss -> Racing -> GlobalFailure

Concurrent misses for an identical query share one race. Errors returned by the engine wrap one
of ErrClientInput, ErrThrottled or ErrGlobalFailure and StatusCode() maps them to the HTTP status
the front end should return.
*/
package engine
