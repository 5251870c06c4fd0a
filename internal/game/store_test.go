package game

import (
	"testing"
	"time"

	"github.com/danmuck/dicerace/internal/testutil/testlog"
)

func TestStoreMembershipIndex(t *testing.T) {
	testlog.Start(t)

	st := NewStore()
	sess := newSession("ABC123", "c0", time.Unix(0, 0))
	st.put(sess)
	sess.Players = append(sess.Players, &Player{ConnectionID: "c1"})
	st.seat("c1", sess)

	if got, ok := st.SessionOf("c1"); !ok || got != sess {
		t.Fatalf("expected c1 seated in %s", sess.Code)
	}
	if st.Members() != 2 {
		t.Fatalf("members = %d, want 2", st.Members())
	}

	st.remove("ABC123")
	if st.Has("ABC123") {
		t.Fatalf("session should be gone")
	}
	if _, ok := st.SessionOf("c0"); ok {
		t.Fatalf("membership should be cleared with the session")
	}
	st.remove("ABC123")
}

func TestStoreSnapshotIsDetachedAndOrdered(t *testing.T) {
	testlog.Start(t)

	st := NewStore()
	st.put(newSession("ZZZ999", "z", time.Unix(0, 0)))
	a := newSession("AAA111", "a", time.Unix(0, 0))
	st.put(a)

	snap := st.Snapshot()
	if len(snap) != 2 || snap[0].Code != "AAA111" || snap[1].Code != "ZZZ999" {
		t.Fatalf("unexpected snapshot order: %+v", snap)
	}
	snap[0].Players[0].Position = 9
	if a.Players[0].Position != 0 {
		t.Fatalf("snapshot shares memory with live session")
	}

	st.Reset()
	if st.Len() != 0 || st.Members() != 0 {
		t.Fatalf("reset left state behind: len=%d members=%d", st.Len(), st.Members())
	}
}
