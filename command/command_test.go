package command

import (
	"testing"

	"github.com/bxcodec/faker/v4"
	"github.com/google/go-cmp/cmp"

	"kvcached/store"
	"kvcached/ttlqueue"
	"kvcached/wire"
)

func newDeps() *Deps {
	now := int64(1_000_000)
	return &Deps{
		Keyspace: store.NewKeyspace(),
		TTL:      ttlqueue.New(),
		NowMS:    func() int64 { return now },
	}
}

func mustInt(t *testing.T, r interface{ IntValue() (int64, bool) }, want int64) {
	t.Helper()
	got, ok := r.IntValue()
	if !ok || got != want {
		t.Fatalf("got %v, %v, want %v, true", got, ok, want)
	}
}

func TestSetGetDel(t *testing.T) {
	d := newDeps()
	reply := Dispatch(d, []string{"SET", "a", "hello"})
	if s, ok := reply.StrValue(); !ok || s != "OK" {
		t.Fatalf("got %v, %v, want OK, true", s, ok)
	}
	reply = Dispatch(d, []string{"GET", "a"})
	if s, ok := reply.StrValue(); !ok || s != "hello" {
		t.Fatalf("got %v, %v, want hello, true", s, ok)
	}
	reply = Dispatch(d, []string{"DEL", "a"})
	mustInt(t, reply, 1)
	reply = Dispatch(d, []string{"GET", "a"})
	if reply.Type() != 0 {
		t.Fatalf("expected NIL after delete")
	}
}

func TestWrongTypeLeavesValueUnchanged(t *testing.T) {
	d := newDeps()
	Dispatch(d, []string{"SET", "s", "hello"})
	reply := Dispatch(d, []string{"HSET", "s", "f", "v"})
	code, _, ok := reply.ErrValue()
	if !ok || code != 3 {
		t.Fatalf("got %v, %v, want code 3, true", reply, ok)
	}
	reply = Dispatch(d, []string{"GET", "s"})
	if s, _ := reply.StrValue(); s != "hello" {
		t.Fatalf("expected value unchanged, got %v", s)
	}
}

func TestZAddZQuerySequence(t *testing.T) {
	d := newDeps()
	mustInt(t, Dispatch(d, []string{"ZADD", "z", "1", "n1"}), 1)
	mustInt(t, Dispatch(d, []string{"ZADD", "z", "2", "n2"}), 1)
	mustInt(t, Dispatch(d, []string{"ZADD", "z", "1.1", "n1"}), 0)

	reply := Dispatch(d, []string{"ZQUERY", "z", "1", "", "0", "10"})
	elements, ok := reply.ArrValue()
	if !ok || len(elements) != 4 {
		t.Fatalf("got %v, %v, want 4 elements", elements, ok)
	}
	if s, _ := elements[0].StrValue(); s != "n1" {
		t.Errorf("element 0: got %q, want n1", s)
	}
	if v, _ := elements[1].DblValue(); v != 1.1 {
		t.Errorf("element 1: got %v, want 1.1", v)
	}
	if s, _ := elements[2].StrValue(); s != "n2" {
		t.Errorf("element 2: got %q, want n2", s)
	}
	if v, _ := elements[3].DblValue(); v != 2.0 {
		t.Errorf("element 3: got %v, want 2.0", v)
	}
}

func TestIncrDecrSequence(t *testing.T) {
	d := newDeps()
	mustInt(t, Dispatch(d, []string{"INCR", "counter"}), 1)
	mustInt(t, Dispatch(d, []string{"INCRBY", "counter", "9"}), 10)
	mustInt(t, Dispatch(d, []string{"DECR", "counter"}), 9)
	mustInt(t, Dispatch(d, []string{"DECRBY", "counter", "4"}), 5)
}

func TestIncrOnNonIntegerString(t *testing.T) {
	d := newDeps()
	Dispatch(d, []string{"SET", "k", "notanumber"})
	reply := Dispatch(d, []string{"INCR", "k"})
	code, _, ok := reply.ErrValue()
	if !ok || code != 4 {
		t.Fatalf("got %v, want ERR code 4", reply)
	}
}

func TestPExpireAndPTTL(t *testing.T) {
	d := newDeps()
	Dispatch(d, []string{"SET", "k", "v"})
	mustInt(t, Dispatch(d, []string{"PEXPIRE", "k", "5000"}), 1)
	reply := Dispatch(d, []string{"PTTL", "k"})
	got, _ := reply.IntValue()
	if got != 5000 {
		t.Fatalf("got %v, want 5000", got)
	}

	reply = Dispatch(d, []string{"PTTL", "missing"})
	mustInt(t, reply, -2)

	Dispatch(d, []string{"SET", "noexpiry", "v"})
	reply = Dispatch(d, []string{"PTTL", "noexpiry"})
	mustInt(t, reply, -1)
}

func TestSetClearsExistingTTL(t *testing.T) {
	d := newDeps()
	Dispatch(d, []string{"SET", "k", "v"})
	Dispatch(d, []string{"PEXPIRE", "k", "5000"})
	Dispatch(d, []string{"SET", "k", "v2"})
	reply := Dispatch(d, []string{"PTTL", "k"})
	mustInt(t, reply, -1)
}

func TestMSetMGetMDel(t *testing.T) {
	d := newDeps()
	reply := Dispatch(d, []string{"MSET", "a", "1", "b", "2"})
	if s, _ := reply.StrValue(); s != "OK" {
		t.Fatalf("got %v, want OK", reply)
	}
	reply = Dispatch(d, []string{"MGET", "a", "b", "missing"})
	elements, _ := reply.ArrValue()
	if len(elements) != 3 {
		t.Fatalf("got %v elements, want 3", len(elements))
	}
	if s, _ := elements[0].StrValue(); s != "1" {
		t.Errorf("got %v, want 1", s)
	}
	if elements[2].Type() != 0 {
		t.Errorf("expected NIL for missing key")
	}
	reply = Dispatch(d, []string{"MDEL", "a", "b", "missing"})
	mustInt(t, reply, 2)
}

func TestMSetAcceptsSingleKeyValuePair(t *testing.T) {
	d := newDeps()
	reply := Dispatch(d, []string{"MSET", "a", "1"})
	if s, ok := reply.StrValue(); !ok || s != "OK" {
		t.Fatalf("got %v, %v, want OK, true", s, ok)
	}
	reply = Dispatch(d, []string{"GET", "a"})
	if s, _ := reply.StrValue(); s != "1" {
		t.Fatalf("got %v, want 1", s)
	}
}

func TestMSetOddTrailingArgIsArityErrorNotPanic(t *testing.T) {
	d := newDeps()
	reply := Dispatch(d, []string{"MSET", "a", "1", "b"})
	code, _, ok := reply.ErrValue()
	if !ok || code != wire.CodeArg {
		t.Fatalf("got %v, want an ARG arity error", reply)
	}
}

// TestMSetMGetBatchRoundTrip fills a random set of key/value fixtures
// with faker (mirroring the teacher's storage/dbm faker.FakeData
// fixtures) and checks the full batch survives MSET/MGET using
// cmp.Diff, the same comparison the teacher's GetMulti/Proc tests use.
func TestMSetMGetBatchRoundTrip(t *testing.T) {
	type pair struct {
		Key   string `faker:"uuid_hyphenated"`
		Value string `faker:"word"`
	}
	var fixtures [5]pair
	for i := range fixtures {
		if err := faker.FakeData(&fixtures[i]); err != nil {
			t.Fatalf("faker.FakeData: %v", err)
		}
	}

	d := newDeps()
	args := []string{"MSET"}
	want := map[string]string{}
	for _, f := range fixtures {
		args = append(args, f.Key, f.Value)
		want[f.Key] = f.Value
	}
	if reply := Dispatch(d, args); func() string { s, _ := reply.StrValue(); return s }() != "OK" {
		t.Fatalf("MSET failed: %v", reply)
	}

	getArgs := []string{"MGET"}
	keys := make([]string, 0, len(fixtures))
	for _, f := range fixtures {
		getArgs = append(getArgs, f.Key)
		keys = append(keys, f.Key)
	}
	reply := Dispatch(d, getArgs)
	elements, ok := reply.ArrValue()
	if !ok || len(elements) != len(fixtures) {
		t.Fatalf("got %v, %v, want %v elements", elements, ok, len(fixtures))
	}
	got := map[string]string{}
	for i, key := range keys {
		s, ok := elements[i].StrValue()
		if !ok {
			t.Fatalf("element %d (%s): expected a string reply, got %v", i, key, elements[i])
		}
		got[key] = s
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MGET batch mismatch (-want +got):\n%s", diff)
	}
}

func TestHashCommands(t *testing.T) {
	d := newDeps()
	mustInt(t, Dispatch(d, []string{"HSET", "h", "f1", "v1", "f2", "v2"}), 2)
	mustInt(t, Dispatch(d, []string{"HSET", "h", "f1", "v1b"}), 0)
	reply := Dispatch(d, []string{"HGET", "h", "f1"})
	if s, _ := reply.StrValue(); s != "v1b" {
		t.Fatalf("got %v, want v1b", reply)
	}
	mustInt(t, Dispatch(d, []string{"HEXISTS", "h", "f2"}), 1)
	mustInt(t, Dispatch(d, []string{"HDEL", "h", "f2"}), 1)
	mustInt(t, Dispatch(d, []string{"HEXISTS", "h", "f2"}), 0)
}

func TestArityRejection(t *testing.T) {
	d := newDeps()
	reply := Dispatch(d, []string{"GET"})
	code, _, ok := reply.ErrValue()
	if !ok || code != 4 {
		t.Fatalf("got %v, want ARG error", reply)
	}
}

func TestUnknownCommand(t *testing.T) {
	d := newDeps()
	reply := Dispatch(d, []string{"FROBNICATE", "x"})
	code, _, ok := reply.ErrValue()
	if !ok || code != 1 {
		t.Fatalf("got %v, want UNKNOWN error", reply)
	}
}

func TestKeysGlobDispatch(t *testing.T) {
	d := newDeps()
	Dispatch(d, []string{"SET", "user:1", "a"})
	Dispatch(d, []string{"SET", "user:2", "b"})
	reply := Dispatch(d, []string{"KEYS", "user:*"})
	elements, _ := reply.ArrValue()
	if len(elements) != 2 {
		t.Fatalf("got %v elements, want 2", len(elements))
	}
}
