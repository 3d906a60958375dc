// Package cache provides a read-through, time-bounded cache on top of a
// durable row store.
//
// # Controller
//
// A [Controller] owns the get-or-populate decision. It holds a
// [rowstore.Store] for persistence and a [Codec] for turning values into the
// raw strings the store keeps:
//
//	store, err := rowstore.NewSQLite("cache.db", rowstore.WithTable("objects"))
//	if err != nil {
//	    return err
//	}
//	c := cache.New(store, cache.WithKeyPrefix("user42:"), cache.WithCodec(cache.MsgpackCodec{}))
//
// The store is prepared (for example its table created) lazily on first use.
// Call [Controller.EnsureReady] to do it up front.
//
// # Generic Operations
//
// Go does not allow generic methods, so the typed operations are package
// level functions that take the controller:
//
//	obj, src, err := cache.Get(ctx, c, "object1",
//	    func(ctx context.Context) (SampleObject, error) {
//	        return client.Fetch(ctx, "object1")
//	    },
//	    cache.MaxAge(5*time.Minute),
//	)
//	if src == cache.FromCache {
//	    // served without calling the accessor
//	}
//
// [Get] reads the entry, evaluates the [Policy] and either decodes the stored
// value ([FromCache]) or calls the accessor, writes its result and returns it
// ([FreshlyComputed]). Provenance is returned per call, so one controller can
// be shared by any number of goroutines.
//
// [QueryOnly] decodes whatever is stored, without a staleness check or
// accessor. [SetMany] writes a batch unconditionally, for pre-warming.
//
// # Staleness Policies
//
//   - [MaxAge]: stale once more than d has passed since the last write.
//   - [AbsoluteExpiry]: stale when the last write happened before a cutoff.
//
// The last write is the entry's modification time, or its creation time when it
// has never been overwritten. A missing entry is always stale.
//
// # Key Prefix
//
// Every key is prefixed with the controller's key prefix before it reaches the
// store. The prefix is concatenated as is, with no separator, so choose
// prefixes that cannot run into each other ("user1:" rather than "user1").
// [Controller.SetKeyPrefix] changes the prefix for later calls.
//
// # Concurrency
//
// Store preparation runs once, guarded by a mutex; no lock is held while the
// accessor or the store is working. Two concurrent Get calls that both find a
// key stale both call the accessor and the last write wins. [WithSingleFlight]
// collapses them into one accessor call.
//
// # Errors
//
// Failures are returned as they were produced, marked with one of
// [ErrAccessorFailure], [ErrStoreFailure], [ErrDecodeFailure] or
// [ErrEncodeFailure]. Test for the kind with errors.Is from
// [github.com/cockroachdb/errors]; the original error is still reachable
// through the standard errors.Is and errors.As. [QueryOnly] reports a missing
// entry with [ErrNotFound]. Nothing is retried: a failed accessor leaves the
// stale row in place without serving it, and an undecodable value is an error
// rather than a miss. The provenance returned alongside an error carries no
// meaning.
//
// # Tracing
//
// Every operation starts an OpenTelemetry span from the global tracer
// provider, recording the effective key and, for Get, the provenance.
package cache
