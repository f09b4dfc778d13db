package jdeser

import (
	"fmt"
	"testing"
)

// lookupAs resolves hd and type-asserts it to T, for tests that want to
// assert both the lookup and the variant in one step. The parser itself
// always resolves a reference generically and type-checks the result at
// its actual use site (e.g. classDesc), since a TC_REFERENCE can name
// any Content variant depending on grammar position.
func lookupAs[T Content](h *handleTable, hd Handle, wantKind string) (T, error) {
	var zero T
	c, err := h.lookup(hd)
	if err != nil {
		return zero, err
	}
	v, ok := c.(T)
	if !ok {
		return zero, fmt.Errorf("reference to handle %#x expected %s, found %T", hd, wantKind, c)
	}
	return v, nil
}

func TestHandleTableBindRejectsDoubleBind(t *testing.T) {
	ht := newHandleTable()
	hd := ht.allocate()
	s := &String{Handle: hd, Value: "x"}

	if err := ht.bind(hd, s); err != nil {
		t.Fatalf("first bind: unexpected error: %v", err)
	}
	if err := ht.bind(hd, s); err == nil {
		t.Fatal("second bind to the same handle should fail")
	}
}

func TestHandleTableLookupUnboundIsError(t *testing.T) {
	ht := newHandleTable()
	if _, err := ht.lookup(BaseWireHandle); err == nil {
		t.Fatal("lookup of an unbound handle should fail")
	}
}

func TestHandleTableAllocateSequential(t *testing.T) {
	ht := newHandleTable()
	a := ht.allocate()
	b := ht.allocate()
	if a != BaseWireHandle || b != BaseWireHandle+1 {
		t.Errorf("got handles %#x, %#x, want %#x, %#x", a, b, BaseWireHandle, BaseWireHandle+1)
	}
}

func TestHandleTableResetArchivesAndRestarts(t *testing.T) {
	ht := newHandleTable()
	hd := ht.allocate()
	s := &String{Handle: hd, Value: "a"}
	if err := ht.bind(hd, s); err != nil {
		t.Fatalf("bind: %v", err)
	}

	ht.reset()

	if ht.next != BaseWireHandle {
		t.Errorf("next = %#x after reset, want %#x", ht.next, BaseWireHandle)
	}
	if _, err := ht.lookup(hd); err == nil {
		t.Error("lookup should fail in the fresh epoch after reset")
	}

	hd2 := ht.allocate()
	if hd2 != BaseWireHandle {
		t.Errorf("first handle in new epoch = %#x, want %#x", hd2, BaseWireHandle)
	}
}

func TestHandleTableResetOnEmptyTableDoesNotArchive(t *testing.T) {
	ht := newHandleTable()
	ht.reset()
	epochs := ht.finalize()
	if len(epochs) != 0 {
		t.Errorf("got %d epochs, want 0 for a reset with nothing bound", len(epochs))
	}
}

func TestHandleTableFinalizeIncludesLiveEpoch(t *testing.T) {
	ht := newHandleTable()
	hd := ht.allocate()
	s := &String{Handle: hd, Value: "live"}
	if err := ht.bind(hd, s); err != nil {
		t.Fatalf("bind: %v", err)
	}

	epochs := ht.finalize()
	if len(epochs) != 1 {
		t.Fatalf("got %d epochs, want 1", len(epochs))
	}
	if epochs[0][hd] != Content(s) {
		t.Errorf("finalized epoch does not carry the bound content")
	}
}

func TestLookupAsTypeMismatch(t *testing.T) {
	ht := newHandleTable()
	hd := ht.allocate()
	if err := ht.bind(hd, &String{Handle: hd, Value: "not a class"}); err != nil {
		t.Fatalf("bind: %v", err)
	}

	if _, err := lookupAs[*ClassDesc](ht, hd, "class descriptor"); err == nil {
		t.Fatal("expected type-mismatch error, got nil")
	}
}

func TestLookupAsSuccess(t *testing.T) {
	ht := newHandleTable()
	hd := ht.allocate()
	cls := &ClassDesc{Handle: hd, Name: "pkg/C"}
	if err := ht.bind(hd, cls); err != nil {
		t.Fatalf("bind: %v", err)
	}

	got, err := lookupAs[*ClassDesc](ht, hd, "class descriptor")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cls {
		t.Error("lookupAs did not return the bound ClassDesc")
	}
}
