package usage

import (
	"sync"
	"testing"
)

func TestTrackerLifecycle(t *testing.T) {
	tr := NewTracker()

	id1 := tr.Begin("get_inventory_level", `{"product_id":"P100"}`)
	tr.Complete(id1, `{"quantity":42}`)

	id2 := tr.Begin("get_product_info", `{"product_id":"P999"}`)
	tr.Fail(id2, "Product P999 not found")

	recs := tr.Snapshot()
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}

	if recs[0].Step != 1 || recs[1].Step != 2 {
		t.Errorf("steps = %d, %d; want 1, 2", recs[0].Step, recs[1].Step)
	}
	if recs[0].Output != `{"quantity":42}` || recs[0].Error != "" {
		t.Errorf("record 1 = %+v", recs[0])
	}
	if recs[1].Error != "Product P999 not found" {
		t.Errorf("record 2 error = %q", recs[1].Error)
	}
}

func TestTrackerUnknownID(t *testing.T) {
	tr := NewTracker()
	tr.Begin("list_products", "{}")

	// Unknown or stale IDs must not panic or corrupt records.
	tr.Complete("no-such-id", "out")
	tr.Fail("no-such-id", "err")

	recs := tr.Snapshot()
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].Output != "" || recs[0].Error != "" {
		t.Errorf("in-flight record mutated: %+v", recs[0])
	}
}

func TestTrackerSnapshotIsCopy(t *testing.T) {
	tr := NewTracker()
	id := tr.Begin("get_top_selling_products", "{}")

	snap := tr.Snapshot()
	tr.Complete(id, "result")

	if snap[0].Output != "" {
		t.Error("snapshot should not observe later mutations")
	}
	if tr.Snapshot()[0].Output != "result" {
		t.Error("tracker should record completion after snapshot")
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker()
	tr.Begin("list_products", "{}")
	tr.Reset()

	if tr.Count() != 0 {
		t.Errorf("Count after Reset = %d, want 0", tr.Count())
	}
	id := tr.Begin("get_product_info", "{}")
	tr.Complete(id, "ok")
	if got := tr.Snapshot()[0].Step; got != 1 {
		t.Errorf("step numbering should restart at 1, got %d", got)
	}
}

func TestTrackerConcurrent(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := tr.Begin("get_sales_data_for_product", "{}")
			tr.Complete(id, "ok")
		}()
	}
	// Concurrent snapshots while invocations are in flight.
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Snapshot()
		}()
	}
	wg.Wait()

	recs := tr.Snapshot()
	if len(recs) != 20 {
		t.Fatalf("got %d records, want 20", len(recs))
	}
	seen := map[int]bool{}
	for _, r := range recs {
		if seen[r.Step] {
			t.Errorf("duplicate step %d", r.Step)
		}
		seen[r.Step] = true
	}
}
