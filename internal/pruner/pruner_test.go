package pruner

import (
	"testing"
	"time"

	"github.com/dokzlo13/huesyncd/internal/store"
)

func TestPrune_RemovesStaleEntries(t *testing.T) {
	st := store.NewMemory()
	st.Set("lights.old-1.name", "Old", nil)
	st.Set("lights.fresh-2.name", "Fresh", nil)

	p := New(st, time.Hour, 24*time.Hour)

	// both were just synced: nothing to prune
	if pruned := p.Prune(time.Now()); pruned != 0 {
		t.Errorf("pruned %d fresh entries", pruned)
	}

	// a day from now both are stale
	if pruned := p.Prune(time.Now().Add(25 * time.Hour)); pruned != 2 {
		t.Errorf("pruned = %d, want 2", pruned)
	}
	if _, ok := st.Get("lights.old-1.name"); ok {
		t.Error("stale entry should be deleted")
	}
}

func TestPrune_SparesNeverSyncedEntries(t *testing.T) {
	st := store.NewMemory()
	// Subscribe creates the entry without a sync timestamp
	st.Subscribe("lights.lamp-1.action.on")
	st.Set("lights.lamp-1.name", "Lamp", nil)

	p := New(st, time.Hour, 24*time.Hour)
	pruned := p.Prune(time.Now().Add(48 * time.Hour))

	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}
	if !st.Subscribed("lights.lamp-1.action.on") {
		t.Error("an entry never seen in a poll must survive pruning")
	}
}
