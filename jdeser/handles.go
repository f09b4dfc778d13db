package jdeser

// handleTable maps wire handles to parsed Content within the current
// handle epoch (spec.md §4.3). On reset the current map is archived and
// a fresh epoch begins at BaseWireHandle.
type handleTable struct {
	next   Handle
	table  map[Handle]Content
	epochs []map[Handle]Content
}

func newHandleTable() *handleTable {
	return &handleTable{
		next:  BaseWireHandle,
		table: make(map[Handle]Content),
	}
}

// allocate reserves the next handle in the current epoch without
// binding it to anything yet.
func (h *handleTable) allocate() Handle {
	hd := h.next
	h.next++
	return hd
}

// bind associates a handle (previously returned by allocate) with its
// fully- or partially-initialized Content. Binding an already-bound
// handle is a protocol violation (spec.md §3 Invariant 1).
func (h *handleTable) bind(hd Handle, c Content) error {
	if _, exists := h.table[hd]; exists {
		return validityErrorf("handle %#x already bound in current epoch", hd)
	}
	h.table[hd] = c
	return nil
}

// lookup resolves a TC_REFERENCE handle within the current epoch.
func (h *handleTable) lookup(hd Handle) (Content, error) {
	c, ok := h.table[hd]
	if !ok {
		return nil, validityErrorf("reference to handle %#x not bound in current epoch", hd)
	}
	return c, nil
}

// reset archives the current epoch (if non-empty) into the historical
// list, clears the live map, and restarts allocation at BaseWireHandle.
func (h *handleTable) reset() {
	if len(h.table) > 0 {
		h.epochs = append(h.epochs, h.table)
	}
	h.table = make(map[Handle]Content)
	h.next = BaseWireHandle
}

// finalize archives the final epoch (if non-empty) and returns the full
// ordered list of historical epochs, oldest first.
func (h *handleTable) finalize() []map[Handle]Content {
	if len(h.table) > 0 {
		h.epochs = append(h.epochs, h.table)
		h.table = make(map[Handle]Content)
	}
	return h.epochs
}
