package jdeser

// Handle identifies a previously-written object for intra-stream
// back-references. Handles are allocated sequentially within an epoch
// and reset to BaseWireHandle whenever TC_RESET is encountered.
type Handle int32

// BaseWireHandle is the first handle value assigned in any epoch.
const BaseWireHandle Handle = 0x7E0000

// Stream framing constants (spec.md §6).
const (
	streamMagic   uint16 = 0xACED
	streamVersion uint16 = 0x0005
)

// Type codes from the Java Object Serialization Stream Protocol,
// chapter 6. Values are the wire byte minus the 0x70 base offset used
// throughout the grammar driver.
type typeCode uint8

const (
	tcNull           typeCode = 0x00
	tcReference      typeCode = 0x01
	tcClassDesc      typeCode = 0x02
	tcObject         typeCode = 0x03
	tcString         typeCode = 0x04
	tcArray          typeCode = 0x05
	tcClass          typeCode = 0x06
	tcBlockData      typeCode = 0x07
	tcEndBlockData   typeCode = 0x08
	tcReset          typeCode = 0x09
	tcBlockDataLong  typeCode = 0x0A
	tcException      typeCode = 0x0B
	tcLongString     typeCode = 0x0C
	tcProxyClassDesc typeCode = 0x0D
	tcEnum           typeCode = 0x0E

	typeCodeBase uint8    = 0x70
	maxTypeCode  typeCode = tcEnum
)

var typeCodeNames = map[typeCode]string{
	tcNull:           "TC_NULL",
	tcReference:      "TC_REFERENCE",
	tcClassDesc:      "TC_CLASSDESC",
	tcObject:         "TC_OBJECT",
	tcString:         "TC_STRING",
	tcArray:          "TC_ARRAY",
	tcClass:          "TC_CLASS",
	tcBlockData:      "TC_BLOCKDATA",
	tcEndBlockData:   "TC_ENDBLOCKDATA",
	tcReset:          "TC_RESET",
	tcBlockDataLong:  "TC_BLOCKDATALONG",
	tcException:      "TC_EXCEPTION",
	tcLongString:     "TC_LONGSTRING",
	tcProxyClassDesc: "TC_PROXYCLASSDESC",
	tcEnum:           "TC_ENUM",
}

func (t typeCode) String() string {
	if name, ok := typeCodeNames[t]; ok {
		return name
	}
	return "TC_UNKNOWN"
}

// ClassDesc flag bits, spec.md §3.
const (
	scWriteMethod    uint8 = 0x01 // SC_WRITE_METHOD / presence of writer method
	scSerializable   uint8 = 0x02 // SC_SERIALIZABLE
	scExternalizable uint8 = 0x04 // SC_EXTERNALIZABLE
	scBlockData      uint8 = 0x08 // SC_BLOCK_DATA
	scEnum           uint8 = 0x10 // SC_ENUM
)

// Content is the closed sum of every variant the grammar driver can
// produce: String, ClassDesc, ClassObject, EnumObject, ArrayObject,
// Instance, BlockData, ExceptionState. Dispatch on the concrete variant
// uses a type switch, never open polymorphism (spec.md §9).
type Content interface {
	isContent()
}

// String is a parsed Java string: decoded Unicode text plus the
// byte-length of its modified-UTF-8 source encoding.
type String struct {
	Handle  Handle
	Value   string
	UTF8Len int
}

func (*String) isContent() {}

// ClassDescKind distinguishes a normal class descriptor from a dynamic
// proxy class descriptor.
type ClassDescKind int

const (
	ClassDescNormal ClassDescKind = iota
	ClassDescProxy
)

// FieldType is the wire type code of a single declared field.
type FieldType byte

const (
	FieldByte    FieldType = 'B'
	FieldChar    FieldType = 'C'
	FieldDouble  FieldType = 'D'
	FieldFloat   FieldType = 'F'
	FieldInt     FieldType = 'I'
	FieldLong    FieldType = 'J'
	FieldShort   FieldType = 'S'
	FieldBoolean FieldType = 'Z'
	FieldObject  FieldType = 'L'
	FieldArray   FieldType = '['
)

func (t FieldType) isPrimitive() bool {
	switch t {
	case FieldByte, FieldChar, FieldDouble, FieldFloat, FieldInt, FieldLong, FieldShort, FieldBoolean:
		return true
	}
	return false
}

// Field describes a single declared member of a class descriptor.
type Field struct {
	Type      FieldType
	Name      string
	ClassName *String // set only for FieldObject / FieldArray kinds

	// IsInnerClassReference is set by the reconnection pass when this
	// field is the synthetic this$N back-pointer to an enclosing class.
	IsInnerClassReference bool
}

// ClassDesc is a parsed class descriptor: either a normal class
// (fields, super-class chain, SUID, flags) or a dynamic proxy class
// (interface list only).
type ClassDesc struct {
	Handle Handle
	Kind   ClassDescKind

	Name             string
	SerialVersionUID int64
	Flags            uint8

	Fields      []*Field
	Annotations []Content
	Super       *ClassDesc

	Interfaces []string // proxy only

	InnerClasses  []*ClassDesc
	EnumConstants []string

	IsInnerClass        bool
	IsStaticMemberClass bool
	IsArrayClass        bool

	// Outer is set by the reconnection pass for classes linked into
	// InnerClasses of another ClassDesc.
	Outer *ClassDesc
}

func (*ClassDesc) isContent() {}

func (c *ClassDesc) isSerializable() bool  { return c.Flags&scSerializable != 0 }
func (c *ClassDesc) isExternalizable() bool { return c.Flags&scExternalizable != 0 }
func (c *ClassDesc) hasWriteMethod() bool  { return c.Flags&scWriteMethod != 0 }
func (c *ClassDesc) hasBlockData() bool    { return c.Flags&scBlockData != 0 }
func (c *ClassDesc) isEnum() bool          { return c.Flags&scEnum != 0 }

// ClassObject is a java.lang.Class literal written to the stream.
type ClassObject struct {
	Handle Handle
	Class  *ClassDesc
}

func (*ClassObject) isContent() {}

// EnumObject is a serialized enum constant.
type EnumObject struct {
	Handle   Handle
	Class    *ClassDesc
	Constant *String
}

func (*EnumObject) isContent() {}

// ArrayObject is a serialized Java array. Elements are typed by the
// element kind derived from the second character of Class.Name (e.g.
// "[I" -> int elements, "[Ljava.lang.String;" -> Object elements).
type ArrayObject struct {
	Handle   Handle
	Class    *ClassDesc
	Elements []interface{}
}

func (*ArrayObject) isContent() {}

// Instance is a serialized non-array, non-enum, non-Class object. Field
// values and annotations are keyed per ClassDesc in the inheritance
// chain, base class first.
type Instance struct {
	Handle      Handle
	Class       *ClassDesc
	FieldValues map[*ClassDesc]map[*Field]interface{}
	Annotations map[*ClassDesc][]Content

	// IsException marks an Instance parsed via the TC_EXCEPTION handler
	// (spec.md §4.11). Such instances are always wrapped in an
	// ExceptionState before Parse returns; the flag survives on the
	// Instance itself for callers inspecting ExceptionState.Exception.
	IsException bool
}

func (*Instance) isContent() {}

// BlockData is an opaque, unhandled data block. It carries no handle:
// per spec.md §3, only BlockData and raw string payloads are unhandled.
type BlockData struct {
	Data []byte
}

func (*BlockData) isContent() {}

// ExceptionState wraps a thrown/serialized exception object together
// with the raw bytes of the enclosing partial write that were consumed
// up to the point the embedded exception was recognized. It adopts the
// handle of the wrapped exception Instance.
type ExceptionState struct {
	Handle    Handle
	Exception *Instance
	Data      []byte
}

func (*ExceptionState) isContent() {}

// endBlockMarker is an internal-only pseudo-content value returned by
// the TC_ENDBLOCKDATA handler to terminate annotation list loops. It
// never appears in a Result's Items and does not implement Content.
type endBlockMarker struct{}
