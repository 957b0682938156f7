package foundobjects_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/Iron-Ham/spatialbridge/internal/dispatch"
	"github.com/Iron-Ham/spatialbridge/internal/errors"
	"github.com/Iron-Ham/spatialbridge/internal/event"
	"github.com/Iron-Ham/spatialbridge/internal/feature"
	"github.com/Iron-Ham/spatialbridge/internal/feature/foundobjects"
	"github.com/Iron-Ham/spatialbridge/internal/native"
	"github.com/Iron-Ham/spatialbridge/internal/native/sim"
	"github.com/Iron-Ham/spatialbridge/internal/native/wire"
	"github.com/Iron-Ham/spatialbridge/internal/result"
)

type fixture struct {
	lib     *sim.Library
	disp    *dispatch.Dispatcher
	bus     *event.Bus
	tracker *foundobjects.Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		lib:  sim.New(foundobjects.SymbolPrefix),
		disp: dispatch.New(2, nil),
		bus:  event.NewBus(),
	}
	t.Cleanup(f.disp.Close)
	f.tracker = foundobjects.New(f.lib, feature.Deps{
		Scheduler:  f.disp,
		Privileges: f.lib,
		Bus:        f.bus,
	})
	return f
}

func (f *fixture) tick() {
	f.tracker.Update()
	f.disp.Settle()
}

type outcome struct {
	calls   int
	objects []foundobjects.Object
	code    result.Code
}

func (o *outcome) cb(objects []foundobjects.Object, code result.Code) {
	o.calls++
	o.objects = objects
	o.code = code
}

var room = []foundobjects.Object{
	{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Label: "chair", Position: wire.Vec3{X: 1},
		Properties: []foundobjects.Property{{Key: "material", Value: "wood"}}},
	{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), Label: "table", Position: wire.Vec3{X: 2}},
	{ID: uuid.MustParse("00000000-0000-0000-0000-000000000003"), Label: "chair", Position: wire.Vec3{X: 10}},
}

func TestTracker_QueryResolves(t *testing.T) {
	f := newFixture(t)
	f.lib.Respond(foundobjects.Responder(room, 1))

	if err := f.tracker.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var got outcome
	if err := f.tracker.Query(foundobjects.Filter{Label: "chair"}, got.cb); err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	f.disp.Settle()

	f.tick() // pending
	if got.calls != 0 {
		t.Fatalf("callback ran before the query resolved")
	}
	f.tick()

	if got.calls != 1 {
		t.Fatalf("callback calls = %d, want 1", got.calls)
	}
	if got.code != result.Ok {
		t.Errorf("code = %v, want Ok", got.code)
	}
	want := []foundobjects.Object{room[0], room[2]}
	if diff := cmp.Diff(want, got.objects); diff != "" {
		t.Errorf("objects mismatch (-want +got):\n%s", diff)
	}
}

func TestTracker_MaxResultsCapsResponse(t *testing.T) {
	f := newFixture(t)
	f.lib.Respond(foundobjects.Responder(room, 0))
	if err := f.tracker.Start(); err != nil {
		t.Fatal(err)
	}

	var got outcome
	if err := f.tracker.QuerySync(foundobjects.Filter{MaxResults: 2}, got.cb); err != nil {
		t.Fatalf("QuerySync() error = %v", err)
	}
	f.tick()

	if len(got.objects) != 2 {
		t.Errorf("len(objects) = %d, want 2", len(got.objects))
	}
}

func TestTracker_PrivilegeDenied(t *testing.T) {
	f := newFixture(t)
	f.lib.Deny(native.PrivilegeSpatialMapping)

	err := f.tracker.Start()
	if errors.CodeOf(err) != result.PrivilegeDenied {
		t.Fatalf("Start() code = %v, want PrivilegeDenied", errors.CodeOf(err))
	}
	if f.tracker.Running() {
		t.Error("tracker must not run without the privilege")
	}
	if f.lib.Calls(sim.OpCreate) != 0 {
		t.Error("native create must not be called")
	}

	err = f.tracker.QuerySync(foundobjects.Filter{}, func([]foundobjects.Object, result.Code) {})
	if err == nil {
		t.Error("QuerySync() on a stopped tracker should fail")
	}
}

func TestTracker_PauseDiscardsQueries(t *testing.T) {
	f := newFixture(t)
	f.lib.Respond(foundobjects.Responder(room, 2))
	if err := f.tracker.Start(); err != nil {
		t.Fatal(err)
	}

	var got outcome
	if err := f.tracker.QuerySync(foundobjects.Filter{}, got.cb); err != nil {
		t.Fatal(err)
	}
	f.tick()

	if err := f.tracker.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if len(f.tracker.Pending()) != 0 {
		t.Error("Pause should discard pending queries")
	}
	f.tick()

	if err := f.tracker.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if !f.tracker.Running() {
		t.Fatal("tracker should run again after Resume")
	}
	for range 3 {
		f.tick()
	}
	if got.calls != 0 {
		t.Errorf("callback of a discarded query ran %d times", got.calls)
	}

	if err := f.tracker.QuerySync(foundobjects.Filter{}, got.cb); err != nil {
		t.Fatalf("QuerySync() after Resume error = %v", err)
	}
	for range 3 {
		f.tick()
	}
	if got.calls != 1 || got.code != result.Ok {
		t.Errorf("after resume calls = %d code = %v, want 1 Ok", got.calls, got.code)
	}
	if f.lib.LiveTrackers() != 1 {
		t.Errorf("LiveTrackers() = %d, want 1", f.lib.LiveTrackers())
	}
}

func TestTracker_ExtendedStatus(t *testing.T) {
	f := newFixture(t)
	f.lib.RespondAlways(sim.Response{Status: foundobjects.StatusSpaceNotLocalized})
	if err := f.tracker.Start(); err != nil {
		t.Fatal(err)
	}

	var got outcome
	if err := f.tracker.QuerySync(foundobjects.Filter{}, got.cb); err != nil {
		t.Fatal(err)
	}
	f.tick()

	if got.code != result.FoundObjectsSpaceNotLocalized {
		t.Errorf("code = %v, want FoundObjectsSpaceNotLocalized", got.code)
	}
	if got.objects != nil {
		t.Errorf("objects = %v, want nil", got.objects)
	}
}

func TestTracker_StopDestroys(t *testing.T) {
	f := newFixture(t)
	if err := f.tracker.Start(); err != nil {
		t.Fatal(err)
	}
	if err := f.tracker.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if f.lib.LiveTrackers() != 0 {
		t.Errorf("LiveTrackers() = %d, want 0", f.lib.LiveTrackers())
	}
	if err := f.tracker.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

// holdingLib parks the first Result call until release is closed and counts
// result reads that happen after the tracker was destroyed.
type holdingLib struct {
	*sim.Library
	entered      chan struct{}
	release      chan struct{}
	once         sync.Once
	destroyed    atomic.Bool
	afterDestroy atomic.Int32
}

func (l *holdingLib) Destroy(h native.Handle) native.Status {
	l.destroyed.Store(true)
	return l.Library.Destroy(h)
}

func (l *holdingLib) Result(tracker, token native.Handle, index uint32) ([]byte, native.Status) {
	l.once.Do(func() {
		close(l.entered)
		<-l.release
	})
	if l.destroyed.Load() {
		l.afterDestroy.Add(1)
	}
	return l.Library.Result(tracker, token, index)
}

func TestTracker_PauseWaitsForInFlightPoll(t *testing.T) {
	lib := &holdingLib{
		Library: sim.New(foundobjects.SymbolPrefix),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	lib.Respond(foundobjects.Responder(room, 0))
	disp := dispatch.New(2, nil)
	t.Cleanup(disp.Close)
	release := sync.OnceFunc(func() { close(lib.release) })
	t.Cleanup(release)

	tracker := foundobjects.New(lib, feature.Deps{Scheduler: disp, Privileges: lib})
	if err := tracker.Start(); err != nil {
		t.Fatal(err)
	}
	var got outcome
	if err := tracker.QuerySync(foundobjects.Filter{MaxResults: 3}, got.cb); err != nil {
		t.Fatal(err)
	}

	tracker.Update()
	select {
	case <-lib.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("poll never reached Result")
	}

	paused := make(chan error, 1)
	go func() { paused <- tracker.Pause() }()

	select {
	case <-paused:
		t.Fatal("Pause returned while a poll was still reading results")
	case <-time.After(50 * time.Millisecond):
	}
	if lib.LiveTrackers() != 1 {
		t.Fatalf("tracker destroyed under an in-flight poll")
	}

	release()
	select {
	case err := <-paused:
		if err != nil {
			t.Fatalf("Pause() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pause did not return after the poll finished")
	}
	disp.Settle()

	if n := lib.afterDestroy.Load(); n != 0 {
		t.Errorf("%d result reads used the destroyed tracker", n)
	}
	if lib.LiveTrackers() != 0 {
		t.Errorf("LiveTrackers() = %d, want 0", lib.LiveTrackers())
	}
	if got.calls != 0 {
		t.Errorf("callback ran %d times across Pause", got.calls)
	}
}
