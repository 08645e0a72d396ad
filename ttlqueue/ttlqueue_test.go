package ttlqueue

import "testing"

func TestScheduleAndPopDue(t *testing.T) {
	q := New()
	q.Schedule("a", 100)
	q.Schedule("b", 50)
	q.Schedule("c", 200)

	if d, found := q.Peek(); !found || d != 50 {
		t.Fatalf("got %v, %v, want 50, true", d, found)
	}

	due := q.PopDue(150)
	if len(due) != 2 || due[0] != "b" || due[1] != "a" {
		t.Fatalf("got %v, want [b a]", due)
	}
	if q.Len() != 1 {
		t.Fatalf("got len %v, want 1", q.Len())
	}
	due = q.PopDue(200)
	if len(due) != 1 || due[0] != "c" {
		t.Fatalf("got %v, want [c]", due)
	}
	if q.Len() != 0 {
		t.Fatalf("got len %v, want 0", q.Len())
	}
}

func TestReschedule(t *testing.T) {
	q := New()
	q.Schedule("k", 1000)
	q.Schedule("k", 10)
	if d, found := q.Deadline("k"); !found || d != 10 {
		t.Fatalf("got %v, %v, want 10, true", d, found)
	}
	if q.Len() != 1 {
		t.Fatalf("got len %v, want 1 (reschedule must not duplicate)", q.Len())
	}
}

func TestCancel(t *testing.T) {
	q := New()
	q.Schedule("k", 10)
	if !q.Cancel("k") {
		t.Fatalf("expected Cancel to report removal")
	}
	if q.Cancel("k") {
		t.Fatalf("expected second Cancel to report no removal")
	}
	if _, found := q.Deadline("k"); found {
		t.Fatalf("expected no deadline after cancel")
	}
}

func TestPopDueEmpty(t *testing.T) {
	q := New()
	if due := q.PopDue(1000); due != nil {
		t.Fatalf("got %v, want nil", due)
	}
}

func TestPopDueOrderingManyKeys(t *testing.T) {
	q := New()
	deadlines := map[string]DeadlineMS{"e": 5, "a": 1, "d": 4, "b": 2, "c": 3}
	for k, d := range deadlines {
		q.Schedule(k, d)
	}
	due := q.PopDue(5)
	want := []string{"a", "b", "c", "d", "e"}
	if len(due) != len(want) {
		t.Fatalf("got %v, want %v", due, want)
	}
	for i, k := range want {
		if due[i] != k {
			t.Errorf("position %d: got %q, want %q", i, due[i], k)
		}
	}
}
