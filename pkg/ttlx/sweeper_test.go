package ttlx

import (
	"sync"
	"testing"
	"time"
)

type fakeTarget struct {
	mu       sync.Mutex
	expired  map[string][]string
	deleted  map[string]int
	failName string
}

func (f *fakeTarget) CollectionNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.expired))
	for name := range f.expired {
		names = append(names, name)
	}
	return names
}

func (f *fakeTarget) ExpiredIDs(collection string, now time.Time) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expired[collection]
}

func (f *fakeTarget) DeleteExpired(collection string, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if collection == f.failName {
		return 0, errFake
	}
	f.deleted[collection] += len(ids)
	return len(ids), nil
}

var errFake = &sweepError{"simulated sweep failure"}

type sweepError struct{ msg string }

func (e *sweepError) Error() string { return e.msg }

func TestSweeperDeletesExpiredDocuments(t *testing.T) {
	target := &fakeTarget{
		expired: map[string][]string{"docs": {"a", "b"}},
		deleted: map[string]int{},
	}

	swept := make(chan struct{}, 1)
	s := New(target, 20*time.Millisecond)
	s.OnSweep = func(collection string, deleted int, _ time.Duration) {
		swept <- struct{}{}
	}
	s.Start()
	defer s.Stop()

	select {
	case <-swept:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sweep")
	}

	if target.deleted["docs"] != 2 {
		t.Fatalf("expected 2 deletions, got %d", target.deleted["docs"])
	}
}

func TestSweeperContinuesPastFailingCollection(t *testing.T) {
	target := &fakeTarget{
		expired: map[string][]string{
			"broken": {"x"},
			"ok":     {"y"},
		},
		deleted:  map[string]int{},
		failName: "broken",
	}

	swept := make(chan string, 2)
	s := New(target, 20*time.Millisecond)
	s.OnSweep = func(collection string, deleted int, _ time.Duration) {
		swept <- collection
	}
	s.Start()
	defer s.Stop()

	select {
	case name := <-swept:
		if name != "ok" {
			t.Fatalf("expected sweep of ok, got %s", name)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sweep")
	}

	if target.deleted["ok"] != 1 {
		t.Fatalf("expected ok collection swept, got %d", target.deleted["ok"])
	}
}

func TestSweeperStopIsIdempotent(t *testing.T) {
	target := &fakeTarget{expired: map[string][]string{}, deleted: map[string]int{}}
	s := New(target, time.Hour)
	s.Start()
	s.Stop()
	s.Stop()
}
