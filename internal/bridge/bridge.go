package bridge

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/spatialbridge/internal/errors"
	"github.com/Iron-Ham/spatialbridge/internal/event"
	"github.com/Iron-Ham/spatialbridge/internal/logging"
	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/result"
)

// pendingQuery is the state kept for one query token.
type pendingQuery[F, R any] struct {
	filter    F
	callback  Callback[R]
	submitted time.Time
}

// Bridge dispatches queries of one feature and polls them once per frame.
type Bridge[F, R any] struct {
	name    string
	lib     native.QueryLibrary
	handles Handles
	codec   Codec[F, R]
	props   PropertyCodec[R]
	sched   Scheduler

	bus        *event.Bus
	logger     *logging.Logger
	table      result.Table
	maxResults int

	mu         sync.Mutex
	enabled    bool
	generation uint64
	pending    map[native.Handle]*pendingQuery[F, R]

	// gate is held around every native call that uses the tracker handle.
	gate Gate

	// polling is held for the duration of a poll pass.
	polling atomic.Bool

	stats struct {
		submitted, completed, errored, discarded atomic.Uint64
		droppedCalls, decodeFailures             atomic.Uint64
		skippedTicks, polls                      atomic.Uint64
	}
}

// New creates an enabled Bridge. If codec also implements PropertyCodec[R],
// every decoded result has its properties fetched and attached.
//
// lib, handles, codec and sched must be non-nil. Passing nil panics early to
// surface wiring bugs immediately.
func New[F, R any](name string, lib native.QueryLibrary, handles Handles, codec Codec[F, R], sched Scheduler, opts ...Option) *Bridge[F, R] {
	if lib == nil {
		panic("bridge: QueryLibrary must not be nil")
	}
	if handles == nil {
		panic("bridge: Handles must not be nil")
	}
	if codec == nil {
		panic("bridge: Codec must not be nil")
	}
	if sched == nil {
		panic("bridge: Scheduler must not be nil")
	}

	cfg := newConfig(opts)
	b := &Bridge[F, R]{
		name:       name,
		lib:        lib,
		handles:    handles,
		codec:      codec,
		sched:      sched,
		bus:        cfg.bus,
		logger:     cfg.logger.WithFeature(name),
		table:      cfg.table,
		maxResults: cfg.maxResults,
		enabled:    true,
		pending:    make(map[native.Handle]*pendingQuery[F, R]),
	}
	if pc, ok := any(codec).(PropertyCodec[R]); ok {
		b.props = pc
	}
	return b
}

// Name returns the feature name.
func (b *Bridge[F, R]) Name() string { return b.name }

// MaxResults returns the per-query result cap.
func (b *Bridge[F, R]) MaxResults() int { return b.maxResults }

// -----------------------------------------------------------------------------
// Submission
// -----------------------------------------------------------------------------

// Submit starts a native query and records its token. It returns nil if and
// only if a token was added to the pending map. cb is never called from
// within Submit; it runs later on the main context.
//
// Submit performs the native begin-query call on the calling goroutine. Use
// SubmitAsync from the main context.
func (b *Bridge[F, R]) Submit(filter F, cb Callback[R]) error {
	if cb == nil {
		return errors.NewResultError("submit", result.InvalidParam, errors.ErrNilCallback).
			WithFeature(b.name)
	}
	if !b.gate.Enter() {
		return errors.NewResultError("submit", result.UnspecifiedFailure, errors.ErrDisabled).
			WithFeature(b.name)
	}
	defer b.gate.Leave()

	b.mu.Lock()
	enabled, gen := b.enabled, b.generation
	b.mu.Unlock()
	if !enabled {
		return errors.NewResultError("submit", result.UnspecifiedFailure, errors.ErrDisabled).
			WithFeature(b.name)
	}

	tracker := b.handles.Handle()
	if !tracker.Valid() {
		return errors.NewResultError("submit", result.InvalidParam, errors.ErrNotStarted).
			WithFeature(b.name)
	}

	record, err := b.codec.EncodeFilter(filter)
	if err != nil {
		return errors.NewResultError("submit", result.InvalidParam,
			fmt.Errorf("%w: %w", errors.ErrInvalidFilter, err)).WithFeature(b.name)
	}

	token := native.InvalidHandle
	var status native.Status
	if err := errors.Guard("begin query", func() {
		token, status = b.lib.BeginQuery(tracker, record)
	}); err != nil {
		b.logger.Failure("begin query entry point missing", err)
		return err
	}

	if status != native.StatusOk || !token.Valid() {
		code := b.translate("begin query", status)
		if code == result.Ok || code == result.Pending {
			code = result.UnspecifiedFailure
		}
		err := errors.NewResultError("submit", code, errors.ErrNativeCall).
			WithFeature(b.name).WithStatus(status)
		b.logger.Failure("begin query failed", err)
		return err
	}

	b.mu.Lock()
	if !b.enabled || b.generation != gen {
		b.mu.Unlock()
		b.logger.Debug("query discarded, bridge disabled during submit", "query", token.String())
		return errors.NewResultError("submit", result.UnspecifiedFailure, errors.ErrDisabled).
			WithFeature(b.name).WithToken(token)
	}
	b.pending[token] = &pendingQuery[F, R]{
		filter:    filter,
		callback:  cb,
		submitted: time.Now(),
	}
	b.mu.Unlock()

	b.stats.submitted.Add(1)
	b.logger.WithQuery(token).Debug("query submitted")
	b.publish(event.NewQuerySubmittedEvent(b.name, token))
	return nil
}

// SubmitAsync runs Submit on a background worker. A synchronous failure is
// delivered once through cb on the main context. The returned error covers
// only problems detected before scheduling: a nil callback or a closed
// dispatcher.
func (b *Bridge[F, R]) SubmitAsync(filter F, cb Callback[R]) error {
	if cb == nil {
		return errors.NewResultError("submit", result.InvalidParam, errors.ErrNilCallback).
			WithFeature(b.name)
	}

	b.mu.Lock()
	gen := b.generation
	b.mu.Unlock()

	return b.sched.ScheduleWork(func() {
		err := b.Submit(filter, cb)
		if err == nil {
			return
		}
		code := errors.CodeOf(err)
		b.logger.Debug("async submit failed", "code", code.String(), "error", err.Error())
		b.scheduleCallback(gen, native.InvalidHandle, func() { cb(nil, code) })
	})
}

// -----------------------------------------------------------------------------
// Per-frame polling
// -----------------------------------------------------------------------------

// Update is the per-frame entry point. While enabled it schedules one poll
// pass on a background worker. If the previous pass has not finished, the
// frame is skipped.
func (b *Bridge[F, R]) Update() {
	if !b.Enabled() {
		return
	}
	if !b.polling.CompareAndSwap(false, true) {
		b.stats.skippedTicks.Add(1)
		return
	}
	if err := b.sched.ScheduleWork(func() {
		defer b.polling.Store(false)
		b.poll()
	}); err != nil {
		b.polling.Store(false)
		b.logger.Warn("failed to schedule poll", "error", err.Error())
	}
}

// Poll runs one poll pass on the calling goroutine. It returns false without
// polling if another pass is running.
func (b *Bridge[F, R]) Poll() bool {
	if !b.polling.CompareAndSwap(false, true) {
		return false
	}
	defer b.polling.Store(false)
	b.poll()
	return true
}

type tokenEntry[F, R any] struct {
	token native.Handle
	query *pendingQuery[F, R]
}

func (b *Bridge[F, R]) poll() {
	if !b.gate.Enter() {
		return
	}
	defer b.gate.Leave()

	b.mu.Lock()
	if !b.enabled {
		b.mu.Unlock()
		return
	}
	gen := b.generation
	entries := make([]tokenEntry[F, R], 0, len(b.pending))
	for token, q := range b.pending {
		entries = append(entries, tokenEntry[F, R]{token: token, query: q})
	}
	b.mu.Unlock()

	defer b.stats.polls.Add(1)
	if len(entries) == 0 {
		return
	}

	slices.SortFunc(entries, func(a, c tokenEntry[F, R]) int {
		switch {
		case a.token < c.token:
			return -1
		case a.token > c.token:
			return 1
		}
		return 0
	})

	tracker := b.handles.Handle()
	completed := make([]native.Handle, 0, len(entries))
	errored := make([]native.Handle, 0)

	for _, e := range entries {
		if b.stale(gen) {
			break
		}
		results, code, resolved := b.pollToken(tracker, e.token)
		if !resolved {
			continue
		}
		if results == nil && code.IsError() {
			errored = append(errored, e.token)
			b.stats.errored.Add(1)
		} else {
			completed = append(completed, e.token)
			if code.IsError() {
				b.stats.errored.Add(1)
			} else {
				b.stats.completed.Add(1)
			}
		}
		b.deliver(gen, e.token, e.query, results, code)
	}

	b.mu.Lock()
	if b.generation == gen {
		for _, token := range completed {
			delete(b.pending, token)
		}
		for _, token := range errored {
			delete(b.pending, token)
		}
	}
	b.mu.Unlock()

	if len(completed)+len(errored) > 0 {
		b.logger.Debug("poll pass resolved tokens",
			"completed", len(completed),
			"errored", len(errored),
			"pending", len(entries)-len(completed)-len(errored))
	}
}

// pollToken asks the native side about one token. resolved is false while
// the token is still pending.
func (b *Bridge[F, R]) pollToken(tracker, token native.Handle) (results []R, code result.Code, resolved bool) {
	log := b.logger.WithQuery(token)

	var count uint32
	var status native.Status
	if err := errors.Guard("result count", func() {
		count, status = b.lib.ResultCount(tracker, token)
	}); err != nil {
		log.Failure("result count entry point missing", err)
		return nil, result.UnspecifiedFailure, true
	}

	code = b.translate("result count", status)
	switch {
	case code == result.Pending:
		return nil, code, false
	case code != result.Ok:
		log.Warn("query failed", "code", code.String(), "status", int32(status))
		return nil, code, true
	case int(count) > b.maxResults:
		log.Warn("query returned too many results",
			"count", count, "max", b.maxResults, "error", errors.ErrTooManyResults.Error())
		return nil, result.UnspecifiedFailure, true
	}

	results = make([]R, count)
	failed := 0
	for i := uint32(0); i < count; i++ {
		if err := b.marshal(tracker, token, i, &results[i]); err != nil {
			failed++
			b.stats.decodeFailures.Add(1)
			log.Failure("result record failed", err, "index", i)
		}
	}
	if failed > 0 {
		return results, result.UnspecifiedFailure, true
	}
	return results, result.Ok, true
}

// marshal fetches, decodes and attaches properties to the record at index.
// On a record failure out is left as the zero value. On a property failure
// the decoded record is kept with the properties read so far.
func (b *Bridge[F, R]) marshal(tracker, token native.Handle, index uint32, out *R) error {
	var record []byte
	var status native.Status
	if err := errors.Guard("result", func() {
		record, status = b.lib.Result(tracker, token, index)
	}); err != nil {
		return err
	}
	if status != native.StatusOk {
		return errors.NewResultError("result", b.translate("result", status), errors.ErrNativeCall).
			WithToken(token).WithStatus(status)
	}

	decoded, err := b.codec.DecodeResult(record)
	if err != nil {
		return err
	}
	*out = decoded

	if b.props == nil {
		return nil
	}
	return b.attachProperties(tracker, token, index, out)
}

func (b *Bridge[F, R]) attachProperties(tracker, token native.Handle, index uint32, out *R) error {
	var count uint32
	var status native.Status
	if err := errors.Guard("property count", func() {
		count, status = b.lib.PropertyCount(tracker, token, index)
	}); err != nil {
		return err
	}
	if status != native.StatusOk {
		return errors.NewResultError("property count", b.translate("property count", status), errors.ErrNativeCall).
			WithToken(token).WithStatus(status)
	}

	for p := uint32(0); p < count; p++ {
		var record []byte
		if err := errors.Guard("property", func() {
			record, status = b.lib.Property(tracker, token, index, p)
		}); err != nil {
			return err
		}
		if status != native.StatusOk {
			return errors.NewResultError("property", b.translate("property", status), errors.ErrNativeCall).
				WithToken(token).WithStatus(status)
		}
		if err := b.props.AttachProperty(out, record); err != nil {
			return err
		}
	}
	return nil
}

// deliver queues the callback for a resolved token on the main context.
func (b *Bridge[F, R]) deliver(gen uint64, token native.Handle, q *pendingQuery[F, R], results []R, code result.Code) {
	b.logger.WithQuery(token).Debug("query resolved",
		"code", code.String(),
		"count", len(results),
		"latency_ms", time.Since(q.submitted).Milliseconds())

	b.scheduleCallback(gen, token, func() {
		b.publish(event.NewQueryResolvedEvent(b.name, token, code, len(results)))
		q.callback(results, code)
	})
}

// stale reports whether the bridge was disabled since generation gen.
func (b *Bridge[F, R]) stale(gen uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation != gen
}

// scheduleCallback queues fn on the main context. fn is dropped if the
// bridge has been disabled since generation gen.
func (b *Bridge[F, R]) scheduleCallback(gen uint64, token native.Handle, fn func()) {
	err := b.sched.ScheduleMain(func() {
		b.mu.Lock()
		current := b.generation
		b.mu.Unlock()
		if current != gen {
			b.stats.droppedCalls.Add(1)
			b.logger.WithQuery(token).Debug("callback dropped, bridge disabled")
			return
		}
		fn()
	})
	if err != nil {
		b.stats.droppedCalls.Add(1)
		b.logger.WithQuery(token).Warn("failed to schedule callback", "error", err.Error())
	}
}

// -----------------------------------------------------------------------------
// Enable / disable
// -----------------------------------------------------------------------------

// Enable lets Update schedule poll passes again.
func (b *Bridge[F, R]) Enable() {
	b.gate.Open()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = true
}

// Disable stops polling, discards every pending token and suppresses
// callbacks already queued for the main context. It returns once no poll
// pass or submit is still calling into the native side, so the caller may
// destroy the tracker afterwards.
func (b *Bridge[F, R]) Disable() {
	b.mu.Lock()
	b.enabled = false
	b.generation++
	discarded := len(b.pending)
	b.pending = make(map[native.Handle]*pendingQuery[F, R])
	b.mu.Unlock()

	b.gate.Close()

	b.stats.discarded.Add(uint64(discarded))
	if discarded > 0 {
		b.logger.Info("pending queries discarded", "count", discarded)
	}
}

// Enabled reports whether Update polls.
func (b *Bridge[F, R]) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// Pending returns the pending tokens in ascending order.
func (b *Bridge[F, R]) Pending() []native.Handle {
	b.mu.Lock()
	out := make([]native.Handle, 0, len(b.pending))
	for token := range b.pending {
		out = append(out, token)
	}
	b.mu.Unlock()
	slices.Sort(out)
	return out
}

// Filter returns the filter a pending token was submitted with.
func (b *Bridge[F, R]) Filter(token native.Handle) (F, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.pending[token]
	if !ok {
		var zero F
		return zero, false
	}
	return q.filter, true
}

// Stats returns a snapshot of the bridge counters.
func (b *Bridge[F, R]) Stats() Stats {
	return Stats{
		Submitted:      b.stats.submitted.Load(),
		Completed:      b.stats.completed.Load(),
		Errored:        b.stats.errored.Load(),
		Discarded:      b.stats.discarded.Load(),
		DroppedCalls:   b.stats.droppedCalls.Load(),
		DecodeFailures: b.stats.decodeFailures.Load(),
		SkippedTicks:   b.stats.skippedTicks.Load(),
		Polls:          b.stats.polls.Load(),
	}
}

func (b *Bridge[F, R]) translate(op string, status native.Status) result.Code {
	code, known := b.table.Translate(status)
	if !known {
		b.logger.Warn("unmapped native status", "op", op, "status", int32(status))
	}
	return code
}

func (b *Bridge[F, R]) publish(e event.Event) {
	if b.bus != nil {
		b.bus.Publish(e)
	}
}
