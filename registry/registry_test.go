package registry

import (
	"testing"
	"time"
)

func TestDefinePLCIsIdempotentOnName(t *testing.T) {
	r := New()
	p1 := r.DefinePLC("line1", "10.0.0.1", 0)
	p2 := r.DefinePLC("line1", "10.0.0.2", 1)
	if p1 != p2 {
		t.Fatal("expected the same PLC on name collision")
	}
	if p2.Host != "10.0.0.2" || p2.Slot != 1 {
		t.Fatalf("expected host/slot updated in place, got %+v", p2)
	}
}

func TestAddTagCreatesListAndParses(t *testing.T) {
	r := New()
	p := r.DefinePLC("plc", "10.0.0.1", 0)

	tag, err := r.AddTag(p, time.Second, "Local:2:I.Ch0Data", 1)
	if err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	if len(tag.ParsedTag) != 3 {
		t.Fatalf("expected 3 parsed segments, got %d", len(tag.ParsedTag))
	}
	if len(p.Lists()) != 1 || p.Lists()[0].Period != time.Second {
		t.Fatalf("expected one scan list at 1s, got %+v", p.Lists())
	}
}

func TestAddTagMigratesToFasterList(t *testing.T) {
	r := New()
	p := r.DefinePLC("plc", "10.0.0.1", 0)

	slow, err := r.AddTag(p, 2*time.Second, "arr[0]", 1)
	if err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	fast, err := r.AddTag(p, 500*time.Millisecond, "arr[0]", 1)
	if err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	if slow != fast {
		t.Fatal("expected the same TagInfo for the same tag string")
	}
	if fast.List().Period != 500*time.Millisecond {
		t.Fatalf("expected migration to the faster list, got period %v", fast.List().Period)
	}
	for _, tag := range fast.List().Tags() {
		if tag == fast {
			return
		}
	}
	t.Fatal("migrated tag not present on its new list")
}

func TestAddTagRaisesElementCountMonotonically(t *testing.T) {
	r := New()
	p := r.DefinePLC("plc", "10.0.0.1", 0)

	tag, _ := r.AddTag(p, time.Second, "arr[0]", 5)
	if tag.ElementCount != 5 {
		t.Fatalf("ElementCount = %d, want 5", tag.ElementCount)
	}
	tag2, _ := r.AddTag(p, time.Second, "arr[0]", 2)
	if tag2.ElementCount != 5 {
		t.Fatalf("ElementCount should stay at max(5,2)=5, got %d", tag2.ElementCount)
	}
}

func TestAddTagRejectsBadTagString(t *testing.T) {
	r := New()
	p := r.DefinePLC("plc", "10.0.0.1", 0)
	if _, err := r.AddTag(p, time.Second, "[3]", 1); err == nil {
		t.Fatal("expected a parse error for a leading index segment")
	}
}

func TestFindTag(t *testing.T) {
	r := New()
	p := r.DefinePLC("plc", "10.0.0.1", 0)
	r.AddTag(p, time.Second, "Foo", 1)

	if _, ok := r.FindTag(p, "Foo"); !ok {
		t.Fatal("expected to find Foo")
	}
	if _, ok := r.FindTag(p, "Bar"); ok {
		t.Fatal("did not expect to find Bar")
	}
}

func TestCallbackDedupAndRemove(t *testing.T) {
	r := New()
	p := r.DefinePLC("plc", "10.0.0.1", 0)
	tag, _ := r.AddTag(p, time.Second, "Foo", 1)

	calls := 0
	fn := func(*TagInfo, any) { calls++ }
	token := new(int)

	tag.AddCallback(fn, token)
	tag.AddCallback(fn, token) // duplicate, ignored
	tag.Dispatch()
	if calls != 1 {
		t.Fatalf("expected 1 call after dedup, got %d", calls)
	}

	tag.RemoveCallback(fn, token)
	tag.Dispatch()
	if calls != 1 {
		t.Fatalf("expected no additional calls after removal, got %d", calls)
	}
}

func TestPLCsSortedByName(t *testing.T) {
	r := New()
	r.DefinePLC("b", "h", 0)
	r.DefinePLC("a", "h", 0)
	plcs := r.PLCs()
	if len(plcs) != 2 || plcs[0].Name != "a" || plcs[1].Name != "b" {
		t.Fatalf("expected sorted [a b], got %v", plcs)
	}
}
