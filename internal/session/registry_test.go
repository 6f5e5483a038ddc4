package session

import (
	"testing"
	"time"

	"fableweaver/server/internal/config"
)

func testRegistry() *Registry {
	cfg := config.GameConfig{MaxTurns: 10, Hero: "Rook"}
	deps := Deps{Engine: &fakeEngine{}, Images: &fakeImages{}}
	return NewRegistry(cfg, deps)
}

// TestGetOrCreateReattaches verifies a second connection for the same
// id reuses the live session.
func TestGetOrCreateReattaches(t *testing.T) {
	r := testRegistry()
	c1, c2 := &fakeConn{}, &fakeConn{}

	s1, created := r.GetOrCreate("abc", c1)
	if !created {
		t.Fatal("first contact did not create a session")
	}
	s2, created := r.GetOrCreate("abc", c2)
	if created {
		t.Fatal("second contact created a new session")
	}
	if s1 != s2 {
		t.Fatal("reattach returned a different session")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

// TestReleaseKeepsReattachedSession verifies a stale socket's exit
// does not tear down a session a newer connection has taken over.
func TestReleaseKeepsReattachedSession(t *testing.T) {
	r := testRegistry()
	c1, c2 := &fakeConn{}, &fakeConn{}

	r.GetOrCreate("abc", c1)
	r.GetOrCreate("abc", c2)

	r.Release("abc", c1)
	if r.Len() != 1 {
		t.Fatalf("Len = %d after stale release, want 1", r.Len())
	}

	r.Release("abc", c2)
	if r.Len() != 0 {
		t.Errorf("Len = %d after current release, want 0", r.Len())
	}
}

// TestRemoveDrainsBackgroundTasks verifies Remove waits for in-flight
// tasks before dropping the session.
func TestRemoveDrainsBackgroundTasks(t *testing.T) {
	r := testRegistry()
	s, _ := r.GetOrCreate("abc", &fakeConn{})

	finished := false
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		<-s.taskCtx.Done()
		time.Sleep(10 * time.Millisecond)
		finished = true
	}()

	r.Remove("abc")
	if !finished {
		t.Error("Remove returned before background task finished")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
	// Removing again is a no-op.
	r.Remove("abc")
}
