package jdeser

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// streamBuilder assembles a raw Java Object Serialization stream byte
// by byte for grammar-driver tests, since the real fixtures in
// fixtures_test.go only exercise the well-known-type happy path.
type streamBuilder struct {
	buf bytes.Buffer
}

func newStream() *streamBuilder {
	b := &streamBuilder{}
	b.u16(uint16(streamMagic))
	b.u16(uint16(streamVersion))
	return b
}

func (b *streamBuilder) bytes() []byte { return b.buf.Bytes() }

func (b *streamBuilder) u8(v uint8)   { b.buf.WriteByte(v) }
func (b *streamBuilder) i8(v int8)    { b.buf.WriteByte(byte(v)) }
func (b *streamBuilder) u16(v uint16) { var a [2]byte; binary.BigEndian.PutUint16(a[:], v); b.buf.Write(a[:]) }
func (b *streamBuilder) i32(v int32)  { var a [4]byte; binary.BigEndian.PutUint32(a[:], uint32(v)); b.buf.Write(a[:]) }
func (b *streamBuilder) i64(v int64)  { var a [8]byte; binary.BigEndian.PutUint64(a[:], uint64(v)); b.buf.Write(a[:]) }

func (b *streamBuilder) tc(t typeCode) { b.u8(typeCodeBase + uint8(t)) }

// utf8 writes a modified-UTF-8 string in the short (u16-length) form;
// the test strings used here are plain ASCII, which is encoded
// identically in both modified and standard UTF-8.
func (b *streamBuilder) utf8(s string) {
	b.u16(uint16(len(s)))
	b.buf.WriteString(s)
}

func (b *streamBuilder) string(s string) {
	b.tc(tcString)
	b.utf8(s)
}

func parseBytes(t *testing.T, raw []byte, opts ...Option) *Result {
	t.Helper()
	result, err := Parse(bytes.NewReader(raw), opts...)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return result
}

func TestBadMagic(t *testing.T) {
	raw := []byte{0x00, 0x00, 0x00, 0x05}
	if _, err := Parse(bytes.NewReader(raw)); err == nil {
		t.Fatal("expected error for bad magic, got nil")
	}
}

func TestBadVersion(t *testing.T) {
	b := &streamBuilder{}
	b.u16(uint16(streamMagic))
	b.u16(0x0099)
	if _, err := Parse(bytes.NewReader(b.bytes())); err == nil {
		t.Fatal("expected error for bad version, got nil")
	}
}

func TestTopLevelNull(t *testing.T) {
	b := newStream()
	b.tc(tcNull)
	result := parseBytes(t, b.bytes())

	if len(result.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(result.Items))
	}
	if result.Items[0] != nil {
		t.Errorf("got %v, want nil", result.Items[0])
	}
}

func TestStringBackReference(t *testing.T) {
	b := newStream()
	b.string("hi")
	b.tc(tcReference)
	b.i32(int32(BaseWireHandle))
	result := parseBytes(t, b.bytes())

	if len(result.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(result.Items))
	}
	s1, ok := result.Items[0].(*String)
	if !ok || s1.Value != "hi" {
		t.Fatalf("items[0] = %#v, want *String{Value: \"hi\"}", result.Items[0])
	}
	s2, ok := result.Items[1].(*String)
	if !ok {
		t.Fatalf("items[1] = %#v, want *String", result.Items[1])
	}
	if s1 != s2 {
		t.Errorf("back-reference did not resolve to the same *String instance")
	}
}

func TestStringRecordsModifiedUTF8ByteLength(t *testing.T) {
	// "é" encodes as the two-byte modified-UTF-8 sequence 0xC3 0xA9; the
	// recorded UTF8Len is the wire byte count, not the rune or UTF-8 count
	// (equal here, but the distinction matters for supplementary-plane
	// characters encoded as two three-byte surrogate halves).
	b := newStream()
	b.tc(tcString)
	b.u16(2)
	b.u8(0xC3)
	b.u8(0xA9)

	result := parseBytes(t, b.bytes())
	s, ok := result.Items[0].(*String)
	if !ok {
		t.Fatalf("items[0] = %#v, want *String", result.Items[0])
	}
	if s.Value != "é" {
		t.Errorf("Value = %q, want %q", s.Value, "é")
	}
	if s.UTF8Len != 2 {
		t.Errorf("UTF8Len = %d, want 2", s.UTF8Len)
	}
}

func TestDanglingReferenceIsValidityError(t *testing.T) {
	b := newStream()
	b.tc(tcReference)
	b.i32(int32(BaseWireHandle) + 7)
	if _, err := Parse(bytes.NewReader(b.bytes())); err == nil {
		t.Fatal("expected validity error for dangling reference, got nil")
	}
}

func TestHandleResetArchivesEpoch(t *testing.T) {
	b := newStream()
	b.string("a")
	b.tc(tcReset)
	b.string("b")
	result := parseBytes(t, b.bytes())

	if len(result.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(result.Items))
	}
	if len(result.Epochs) != 2 {
		t.Fatalf("got %d epochs, want 2", len(result.Epochs))
	}
	first, ok := result.Epochs[0][BaseWireHandle].(*String)
	if !ok || first.Value != "a" {
		t.Errorf("epoch 0 handle %#x = %#v, want *String{Value: \"a\"}", BaseWireHandle, result.Epochs[0][BaseWireHandle])
	}
	second, ok := result.Epochs[1][BaseWireHandle].(*String)
	if !ok || second.Value != "b" {
		t.Errorf("epoch 1 handle %#x = %#v, want *String{Value: \"b\"}", BaseWireHandle, result.Epochs[1][BaseWireHandle])
	}
}

// simpleSerializableClassDesc writes a TC_CLASSDESC for a class named
// name with no declared fields, SC_SERIALIZABLE only, no annotations,
// and a null superclass.
func (b *streamBuilder) simpleSerializableClassDesc(name string) {
	b.tc(tcClassDesc)
	b.utf8(name)
	b.i64(0)
	b.u8(scSerializable)
	b.u16(0) // field count, as i16 but 0 fits either way
	b.tc(tcEndBlockData)
	b.tc(tcNull)
}

func TestExceptionInStream(t *testing.T) {
	b := newStream()
	b.tc(tcException)
	b.tc(tcObject)
	b.simpleSerializableClassDesc("E")
	result := parseBytes(t, b.bytes())

	if len(result.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(result.Items))
	}
	exc, ok := result.Items[0].(*ExceptionState)
	if !ok {
		t.Fatalf("items[0] = %#v, want *ExceptionState", result.Items[0])
	}
	if exc.Exception == nil || exc.Exception.Class.Name != "E" {
		t.Errorf("exception class = %#v, want class named E", exc.Exception)
	}
	if !exc.Exception.IsException {
		t.Error("wrapped instance should have IsException set")
	}
	if len(exc.Data) == 0 {
		t.Error("expected non-empty recorded raw bytes for the exception item")
	}
}

func TestSimpleObjectFieldValues(t *testing.T) {
	b := newStream()
	b.tc(tcObject)
	b.tc(tcClassDesc)
	b.utf8("P")
	b.i64(42)
	b.u8(scSerializable)
	b.u16(1)
	b.u8(byte(FieldInt))
	b.utf8("x")
	b.tc(tcEndBlockData) // class annotation list (§4.5 step 6), empty
	b.tc(tcNull)         // super
	b.i32(7)             // field x value, read during class-data walk

	result := parseBytes(t, b.bytes())
	inst, ok := result.Items[0].(*Instance)
	if !ok {
		t.Fatalf("items[0] = %#v, want *Instance", result.Items[0])
	}
	f := fieldNamed(inst.Class, "x")
	if f == nil {
		t.Fatal("field x not found")
	}
	v, _ := inst.FieldValues[inst.Class][f].(int32)
	if v != 7 {
		t.Errorf("field x = %v, want 7", inst.FieldValues[inst.Class][f])
	}
}

func TestEnumWithoutSCEnumFlagIsError(t *testing.T) {
	b := newStream()
	b.tc(tcEnum)
	b.simpleSerializableClassDesc("pkg/Color") // SC_SERIALIZABLE only, no SC_ENUM
	if _, err := Parse(bytes.NewReader(b.bytes())); err == nil {
		t.Fatal("expected error for enum constant referencing a non-enum class descriptor")
	}
}

func TestBothSerializableAndExternalizableIsError(t *testing.T) {
	b := newStream()
	b.tc(tcObject)
	b.tc(tcClassDesc)
	b.utf8("Bad")
	b.i64(0)
	b.u8(scSerializable | scExternalizable)
	b.u16(0)
	b.tc(tcEndBlockData)
	b.tc(tcNull)
	if _, err := Parse(bytes.NewReader(b.bytes())); err == nil {
		t.Fatal("expected error for conflicting SERIALIZABLE+EXTERNALIZABLE flags, got nil")
	}
}
