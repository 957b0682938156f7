// Package bridge moves asynchronous native queries between the host's main
// goroutine and background workers.
//
// A [Bridge] accepts a query with a filter value and a callback, encodes the
// filter into the native record layout, starts the native query on a worker
// and keeps the returned token in a pending map. Once per host frame,
// [Bridge.Update] schedules a poll pass on a worker: each pending token is
// asked for its result count, resolved tokens have their records decoded in
// index order, and the callback is queued onto the main context. A token's
// callback fires at most once. Disabling the bridge discards every pending
// token without firing callbacks.
//
// [Settings] applies persistent tracker settings. Submitting the value that
// was most recently submitted is a no-op.
//
// Lifecycle:
//
//	b := bridge.New("found_objects", lib, handles, codec, dispatcher)
//	_ = b.Submit(filter, func(objs []Object, code result.Code) { ... })
//	// every frame:
//	b.Update()
//	dispatcher.DrainMain()
//	// on shutdown:
//	b.Disable()
package bridge
