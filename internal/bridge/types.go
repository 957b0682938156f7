package bridge

import (
	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/result"
)

// Codec converts filters to native records and result records back to values.
type Codec[F, R any] interface {
	// EncodeFilter builds the versioned filter record for a query.
	EncodeFilter(filter F) ([]byte, error)

	// DecodeResult decodes one result record.
	DecodeResult(record []byte) (R, error)
}

// PropertyCodec is implemented by codecs whose results carry secondary
// key/value property records. The poll pass fetches them per result.
type PropertyCodec[R any] interface {
	AttachProperty(r *R, record []byte) error
}

// SettingsCodec encodes a settings value into its native record.
type SettingsCodec[S any] interface {
	EncodeSettings(settings S) ([]byte, error)
}

// Callback receives the results of one query on the main context. results
// has exactly as many entries as the native side reported; it is nil when
// the query failed before any record was read.
type Callback[R any] func(results []R, code result.Code)

// Handles exposes the native resource a bridge issues calls against.
// *handle.Manager implements it.
type Handles interface {
	Feature() string
	Handle() native.Handle
}

// Scheduler moves work between the main context and background workers.
// *dispatch.Dispatcher implements it.
type Scheduler interface {
	ScheduleMain(fn func()) error
	ScheduleWork(fn func()) error
}

// Stats counts bridge activity since creation.
type Stats struct {
	Submitted      uint64 // tokens created
	Completed      uint64 // tokens resolved with records
	Errored        uint64 // tokens resolved with an error
	Discarded      uint64 // tokens dropped by Disable
	DroppedCalls   uint64 // callbacks suppressed because the bridge was disabled
	DecodeFailures uint64 // records or properties that failed to decode
	SkippedTicks   uint64 // Update calls skipped while a poll was running
	Polls          uint64 // completed poll passes
}
