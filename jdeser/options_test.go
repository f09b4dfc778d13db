package jdeser

import (
	"bytes"
	"testing"
)

func TestWithReconnectFalseSkipsRename(t *testing.T) {
	b := newStream()
	b.tc(tcClassDesc)
	b.utf8("pkg/Outer")
	b.i64(0)
	b.u8(scSerializable)
	b.u16(0)
	b.tc(tcEndBlockData)
	b.tc(tcNull)

	b.tc(tcClassDesc)
	b.utf8("pkg/Outer$Inner")
	b.i64(0)
	b.u8(scSerializable)
	b.u16(1)
	b.u8(byte(FieldObject))
	b.utf8("this$0")
	b.string("Lpkg/Outer;")
	b.tc(tcEndBlockData)
	b.tc(tcNull)

	result := parseBytes(t, b.bytes(), WithReconnect(false))

	inner, ok := result.Items[1].(*ClassDesc)
	if !ok {
		t.Fatalf("items[1] = %#v, want *ClassDesc", result.Items[1])
	}
	if inner.Name != "pkg/Outer$Inner" {
		t.Errorf("inner.Name = %q, want unrenamed %q", inner.Name, "pkg/Outer$Inner")
	}
	if inner.IsInnerClass {
		t.Error("IsInnerClass should not be set when reconnection is disabled")
	}
}

func TestWithMaxBlockSizeRejectsOversizedLongBlock(t *testing.T) {
	b := newStream()
	b.tc(tcBlockDataLong)
	b.i32(100)
	for i := 0; i < 100; i++ {
		b.u8(0)
	}

	if _, err := Parse(bytes.NewReader(b.bytes()), WithMaxBlockSize(10)); err == nil {
		t.Fatal("expected an error when a block exceeds the configured maximum")
	}
}

func TestDefaultMaxBlockSizeAcceptsModestBlock(t *testing.T) {
	b := newStream()
	b.tc(tcBlockDataLong)
	b.i32(100)
	for i := 0; i < 100; i++ {
		b.u8(0)
	}

	result, err := Parse(bytes.NewReader(b.bytes()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bd, ok := result.Items[0].(*BlockData)
	if !ok || len(bd.Data) != 100 {
		t.Errorf("items[0] = %#v, want 100-byte *BlockData", result.Items[0])
	}
}

func TestWithMaxBlockSizeIgnoresNonPositive(t *testing.T) {
	cfg := defaultConfig()
	WithMaxBlockSize(0)(cfg)
	if cfg.maxBlockSize != defaultMaxBlockSize {
		t.Errorf("maxBlockSize = %d after WithMaxBlockSize(0), want unchanged default %d", cfg.maxBlockSize, defaultMaxBlockSize)
	}
	WithMaxBlockSize(-5)(cfg)
	if cfg.maxBlockSize != defaultMaxBlockSize {
		t.Errorf("maxBlockSize = %d after WithMaxBlockSize(-5), want unchanged default %d", cfg.maxBlockSize, defaultMaxBlockSize)
	}
}

func TestWithLoggerIgnoresNil(t *testing.T) {
	cfg := defaultConfig()
	before := cfg.logger
	WithLogger(nil)(cfg)
	if cfg.logger != before {
		t.Error("WithLogger(nil) should leave the configured logger unchanged")
	}
}
