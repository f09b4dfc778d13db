// Package jdeser implements a stateful decoder for the Java Object
// Serialization Stream Protocol (see the Java Object Serialization
// Specification, chapter 6). Given an opaque byte stream produced by a
// java.io.ObjectOutputStream, Parse reconstructs a faithful in-memory
// model of every content item written, then (optionally) runs a
// post-pass that reconnects inner/static-member classes the wire format
// itself does not carry.
package jdeser

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Option configures a Parse call.
type Option func(*config)

type config struct {
	reconnect    bool
	maxBlockSize int
	logger       *zap.Logger
}

const defaultMaxBlockSize = 64 << 20 // 64 MiB

func defaultConfig() *config {
	return &config{
		reconnect:    true,
		maxBlockSize: defaultMaxBlockSize,
		logger:       zap.NewNop(),
	}
}

// WithReconnect enables or disables the inner/static-member class
// reconnection pass. Default true.
func WithReconnect(enabled bool) Option {
	return func(c *config) { c.reconnect = enabled }
}

// WithMaxBlockSize caps the size of any single BLOCKDATA/BLOCKDATALONG
// or LONGSTRING payload the parser will allocate for, guarding against a
// maliciously- or corrupt-encoded huge length prefix.
func WithMaxBlockSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxBlockSize = n
		}
	}
}

// WithLogger attaches a zap logger the parser uses to emit a structured
// debug trace of each grammar-driver dispatch, plus warnings for
// tolerated-but-unusual input (e.g. a short LONGSTRING).
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Result is the outcome of a successful Parse.
type Result struct {
	// Items is the ordered list of top-level content items. An entry is
	// nil for a top-level TC_NULL.
	Items []Content

	// Epochs is the list of historical handle-table epochs, oldest first:
	// one for each non-empty table closed by a reset (a TC_RESET, or
	// either of the two resets around a TC_EXCEPTION), plus the final
	// table if it is non-empty.
	Epochs []map[Handle]Content
}

// Parser is a single-use, single-threaded stream decoder. Most callers
// should use the package-level Parse function instead.
type Parser struct {
	r       *reader
	handles *handleTable
	cfg     *config
}

// Parse decodes a complete Java Object Serialization stream from r.
func Parse(r io.Reader, opts ...Option) (*Result, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}

	p := &Parser{
		r:       newReader(r),
		handles: newHandleTable(),
		cfg:     cfg,
	}

	if err := p.readMagic(); err != nil {
		return nil, err
	}
	if err := p.readVersion(); err != nil {
		return nil, err
	}

	var items []Content
	for !p.r.AtEOF() {
		p.r.Mark()

		item, err := p.content(nil, true)
		if err != nil {
			if sig, ok := asEmbeddedException(err); ok {
				items = append(items, &ExceptionState{
					Handle:    sig.instance.Handle,
					Exception: sig.instance,
					Data:      p.r.Snapshot(),
				})
				continue
			}
			return nil, err
		}

		items = append(items, item)
	}

	final := p.handles.table
	epochs := p.handles.finalize()

	if cfg.reconnect {
		if err := reconnect(final); err != nil {
			return nil, err
		}
	}

	return &Result{Items: items, Epochs: epochs}, nil
}

func (r *reader) AtEOF() bool {
	if r.br.Buffered() == 0 {
		_, err := r.br.Peek(1)
		return err != nil
	}
	return false
}

func (p *Parser) readMagic() error {
	v, err := p.r.ReadU16()
	if err != nil {
		return err
	}
	if v != streamMagic {
		return validityErrorf("magic number not found: wanted %#04x, got %#04x", streamMagic, v)
	}
	return nil
}

func (p *Parser) readVersion() error {
	v, err := p.r.ReadU16()
	if err != nil {
		return err
	}
	if v != streamVersion {
		return validityErrorf("protocol version not recognized: wanted %d, got %d", streamVersion, v)
	}
	return nil
}

// readTypeCode reads and validates the next type-code byte without
// dispatching it, pushing the byte back if it is not a recognized code
// (needed so content boundaries can report "unknown type" without
// consuming the offending byte).
func (p *Parser) readTypeCode() (typeCode, error) {
	b, err := p.r.ReadU8()
	if err != nil {
		return 0, err
	}
	if b < typeCodeBase {
		p.r.UnreadU8()
		return 0, validityErrorf("unknown type code %#x", b)
	}
	tc := typeCode(b - typeCodeBase)
	if tc > maxTypeCode {
		p.r.UnreadU8()
		return 0, validityErrorf("unknown type code %#x", b)
	}
	return tc, nil
}

// readTagged reads one type-code byte and dispatches it. The result may
// be nil (TC_NULL), a Content, or an endBlockMarker{} (TC_ENDBLOCKDATA);
// callers that cannot accept TC_ENDBLOCKDATA in their position should
// use content instead.
func (p *Parser) readTagged(allowed map[typeCode]bool, allowBlockData bool) (interface{}, error) {
	tc, err := p.readTypeCode()
	if err != nil {
		return nil, err
	}

	if allowed != nil && !allowed[tc] {
		return nil, validityErrorf("%s not allowed here", tc)
	}
	if !allowBlockData && (tc == tcBlockData || tc == tcBlockDataLong) {
		return nil, validityErrorf("%s not allowed in this context", tc)
	}

	if tc == tcReset {
		p.handles.reset()
		return p.readTagged(allowed, allowBlockData)
	}

	return p.dispatch(tc)
}

func (p *Parser) dispatch(tc typeCode) (interface{}, error) {
	if ce := p.cfg.logger.Check(zap.DebugLevel, "dispatch"); ce != nil {
		ce.Write(zap.String("type", tc.String()))
	}

	switch tc {
	case tcNull:
		return nil, nil
	case tcReference:
		return p.parseReference()
	case tcClassDesc:
		return p.parseClassDesc()
	case tcProxyClassDesc:
		return p.parseProxyClassDesc()
	case tcObject:
		return p.parseObject()
	case tcArray:
		return p.parseArray()
	case tcClass:
		return p.parseClassObject()
	case tcString:
		return p.parseString()
	case tcLongString:
		return p.parseLongString()
	case tcEnum:
		return p.parseEnum()
	case tcBlockData:
		return p.parseBlockData()
	case tcBlockDataLong:
		return p.parseBlockDataLong()
	case tcEndBlockData:
		return endBlockMarker{}, nil
	case tcException:
		return p.parseException()
	default:
		return nil, validityErrorf("parsing %s is not supported here", tc)
	}
}

// content reads one content item, enforcing that TC_ENDBLOCKDATA cannot
// appear at this position (only annotations loops accept it).
func (p *Parser) content(allowed map[typeCode]bool, allowBlockData bool) (Content, error) {
	v, err := p.readTagged(allowed, allowBlockData)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	if _, isEnd := v.(endBlockMarker); isEnd {
		return nil, validityErrorf("%s not allowed here", tcEndBlockData)
	}
	c, ok := v.(Content)
	if !ok {
		return nil, errors.Errorf("internal: dispatch produced non-content value %T", v)
	}
	return c, nil
}

// propagate forwards an embedded-exception control signal unwrapped, or
// wraps any other error with additional context, matching the teacher's
// errors.Wrap idiom everywhere except the one signal that must reach
// the top-level read loop intact.
func propagate(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := asEmbeddedException(err); ok {
		return err
	}
	return errors.Wrap(err, msg)
}

var classDescAllowed = map[typeCode]bool{
	tcClassDesc:      true,
	tcProxyClassDesc: true,
	tcNull:           true,
	tcReference:      true,
}

// classDesc reads a class descriptor at a position restricted to
// TC_CLASSDESC / TC_PROXYCLASSDESC / TC_NULL / TC_REFERENCE (spec.md
// §4.5's classDesc entry rule).
func (p *Parser) classDesc() (*ClassDesc, error) {
	v, err := p.content(classDescAllowed, false)
	if err != nil {
		return nil, propagate(err, "error reading class description")
	}
	if v == nil {
		return nil, nil
	}
	cd, ok := v.(*ClassDesc)
	if !ok {
		return nil, validityErrorf("expected class descriptor, found %T", v)
	}
	return cd, nil
}

// annotations reads a zero-or-more sequence of content items terminated
// by TC_ENDBLOCKDATA (spec.md §4.13). TC_RESET mid-list resets the
// handle table and continues, per the Open Question preserved verbatim
// in spec.md §9.
func (p *Parser) annotations(allowed map[typeCode]bool) ([]Content, error) {
	var anns []Content
	for {
		v, err := p.readTagged(allowed, true)
		if err != nil {
			return nil, propagate(err, "error reading class annotation")
		}
		if _, isEnd := v.(endBlockMarker); isEnd {
			return anns, nil
		}
		if v == nil {
			anns = append(anns, nil)
			continue
		}
		c, ok := v.(Content)
		if !ok {
			return nil, errors.Errorf("internal: annotation dispatch produced non-content value %T", v)
		}
		anns = append(anns, c)
	}
}

func (p *Parser) parseReference() (Content, error) {
	v, err := p.r.ReadI32()
	if err != nil {
		return nil, err
	}
	c, err := p.handles.lookup(Handle(v))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (p *Parser) fieldDesc() (*Field, error) {
	tb, err := p.r.ReadU8()
	if err != nil {
		return nil, errors.Wrap(err, "error reading field type")
	}
	ft := FieldType(tb)

	name, _, err := p.r.ReadModifiedUTF()
	if err != nil {
		return nil, errors.Wrap(err, "error reading field name")
	}

	f := &Field{Type: ft, Name: name}

	switch {
	case ft == FieldObject || ft == FieldArray:
		v, err := p.content(nil, true)
		if err != nil {
			return nil, propagate(err, "error reading field class name")
		}
		str, ok := v.(*String)
		if !ok {
			return nil, validityErrorf("field %q class name must be a string, found %T", name, v)
		}
		f.ClassName = str

		if ft == FieldObject {
			if !strings.HasPrefix(str.Value, "L") || !strings.HasSuffix(str.Value, ";") {
				return nil, validityErrorf("object field %q descriptor %q must begin with 'L' and end with ';'", name, str.Value)
			}
		}

	case ft.isPrimitive():
		// nothing further to read

	default:
		return nil, validityErrorf("field %q has unknown type code %q", name, rune(tb))
	}

	return f, nil
}

func (p *Parser) parseClassDesc() (Content, error) {
	name, _, err := p.r.ReadModifiedUTF()
	if err != nil {
		return nil, errors.Wrap(err, "error reading class name")
	}
	if len(name) == 0 {
		return nil, validityErrorf("invalid class name %q: too short", name)
	}

	suid, err := p.r.ReadI64()
	if err != nil {
		return nil, errors.Wrap(err, "error reading class serialVersionUID")
	}

	cd := &ClassDesc{
		Kind:             ClassDescNormal,
		Name:             name,
		SerialVersionUID: suid,
		IsArrayClass:     strings.HasPrefix(name, "["),
	}

	hd := p.handles.allocate()
	if err := p.handles.bind(hd, cd); err != nil {
		return nil, err
	}
	cd.Handle = hd

	flags, err := p.r.ReadU8()
	if err != nil {
		return nil, errors.Wrap(err, "error reading class flags")
	}
	cd.Flags = flags

	fieldCount, err := p.r.ReadI16()
	if err != nil {
		return nil, errors.Wrap(err, "error reading class field count")
	}
	if fieldCount < 0 {
		return nil, validityErrorf("class %q field count must be >= 0, got %d", name, fieldCount)
	}

	for i := 0; i < int(fieldCount); i++ {
		f, err := p.fieldDesc()
		if err != nil {
			return nil, propagate(err, "error reading class field")
		}
		cd.Fields = append(cd.Fields, f)
	}

	anns, err := p.annotations(nil)
	if err != nil {
		return nil, propagate(err, "error reading class annotations")
	}
	cd.Annotations = anns

	super, err := p.classDesc()
	if err != nil {
		return nil, propagate(err, "error reading class super")
	}
	cd.Super = super

	return cd, nil
}

const proxyClassNamePlaceholder = "$Proxy"

func (p *Parser) parseProxyClassDesc() (Content, error) {
	cd := &ClassDesc{Kind: ClassDescProxy, Name: proxyClassNamePlaceholder}

	hd := p.handles.allocate()
	if err := p.handles.bind(hd, cd); err != nil {
		return nil, err
	}
	cd.Handle = hd

	count, err := p.r.ReadI32()
	if err != nil {
		return nil, errors.Wrap(err, "error reading proxy interface count")
	}
	if count < 0 {
		return nil, validityErrorf("proxy interface count must be >= 0, got %d", count)
	}

	for i := int32(0); i < count; i++ {
		name, _, err := p.r.ReadModifiedUTF()
		if err != nil {
			return nil, errors.Wrap(err, "error reading proxy interface name")
		}
		cd.Interfaces = append(cd.Interfaces, name)
	}

	anns, err := p.annotations(nil)
	if err != nil {
		return nil, propagate(err, "error reading proxy annotations")
	}
	cd.Annotations = anns

	super, err := p.classDesc()
	if err != nil {
		return nil, propagate(err, "error reading proxy super")
	}
	cd.Super = super

	return cd, nil
}

func (p *Parser) parseObject() (Content, error) {
	cls, err := p.classDesc()
	if err != nil {
		return nil, propagate(err, "error reading object class")
	}
	if cls == nil {
		return nil, validityErrorf("object class descriptor must not be null")
	}

	hd := p.handles.allocate()
	inst := &Instance{
		Handle:      hd,
		Class:       cls,
		FieldValues: make(map[*ClassDesc]map[*Field]interface{}),
		Annotations: make(map[*ClassDesc][]Content),
	}
	if err := p.handles.bind(hd, inst); err != nil {
		return nil, err
	}

	if err := p.readClassData(cls, inst, make(map[*ClassDesc]bool)); err != nil {
		return nil, propagate(err, "error reading class data")
	}

	return inst, nil
}

func (p *Parser) parseClassObject() (Content, error) {
	cls, err := p.classDesc()
	if err != nil {
		return nil, propagate(err, "error parsing class object")
	}

	hd := p.handles.allocate()
	co := &ClassObject{Handle: hd, Class: cls}
	if err := p.handles.bind(hd, co); err != nil {
		return nil, err
	}
	return co, nil
}

func (p *Parser) parseArray() (Content, error) {
	cls, err := p.classDesc()
	if err != nil {
		return nil, propagate(err, "error parsing array class")
	}
	if cls == nil || !strings.HasPrefix(cls.Name, "[") {
		return nil, validityErrorf("array class descriptor name must start with '[', got %q", classNameOrNull(cls))
	}
	if len(cls.Name) < 2 {
		return nil, validityErrorf("array class name too short: %q", cls.Name)
	}

	hd := p.handles.allocate()
	arr := &ArrayObject{Handle: hd, Class: cls}
	if err := p.handles.bind(hd, arr); err != nil {
		return nil, err
	}

	size, err := p.r.ReadI32()
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, validityErrorf("array size must be >= 0, got %d", size)
	}

	elemKind := FieldType(cls.Name[1])
	elems := make([]interface{}, size)
	for i := int32(0); i < size; i++ {
		v, err := p.readFieldValue(elemKind)
		if err != nil {
			return nil, propagate(err, "error reading array element")
		}
		elems[i] = v
	}
	arr.Elements = elems

	return arr, nil
}

func (p *Parser) parseEnum() (Content, error) {
	cls, err := p.classDesc()
	if err != nil {
		return nil, propagate(err, "error parsing enum class")
	}
	if cls == nil {
		return nil, validityErrorf("enum class descriptor must not be null")
	}
	if !cls.isEnum() {
		return nil, validityErrorf("class %q used as an enum constant but its descriptor lacks SC_ENUM", cls.Name)
	}

	hd := p.handles.allocate()

	v, err := p.content(nil, true)
	if err != nil {
		return nil, propagate(err, "error parsing enum constant")
	}
	str, ok := v.(*String)
	if !ok {
		return nil, validityErrorf("enum constant must be a string, found %T", v)
	}
	cls.EnumConstants = append(cls.EnumConstants, str.Value)

	e := &EnumObject{Handle: hd, Class: cls, Constant: str}
	if err := p.handles.bind(hd, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (p *Parser) parseString() (Content, error) {
	s, n, err := p.r.ReadModifiedUTF()
	if err != nil {
		return nil, errors.Wrap(err, "error parsing string")
	}
	hd := p.handles.allocate()
	str := &String{Handle: hd, Value: s, UTF8Len: n}
	if err := p.handles.bind(hd, str); err != nil {
		return nil, err
	}
	return str, nil
}

const maxModifiedUTFLen = 1<<31 - 1 // int32 max, per spec.md §4.9

func (p *Parser) parseLongString() (Content, error) {
	n, err := p.r.ReadI64()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, validityErrorf("long string length must be >= 0, got %d", n)
	}
	if n > maxModifiedUTFLen {
		return nil, validityErrorf("long string length %d exceeds int32 range", n)
	}
	if n < 65536 {
		p.cfg.logger.Warn("TC_LONGSTRING encodes a string short enough for TC_STRING; accepting",
			zap.Int64("length", n))
	}
	if int(n) > p.cfg.maxBlockSize {
		return nil, validityErrorf("long string length %d exceeds configured maximum %d", n, p.cfg.maxBlockSize)
	}

	s, err := p.r.ReadModifiedUTFLong(uint32(n))
	if err != nil {
		return nil, propagate(err, "error parsing long string")
	}

	hd := p.handles.allocate()
	str := &String{Handle: hd, Value: s, UTF8Len: int(n)}
	if err := p.handles.bind(hd, str); err != nil {
		return nil, err
	}
	return str, nil
}

func (p *Parser) parseBlockData() (Content, error) {
	size, err := p.r.ReadU8()
	if err != nil {
		return nil, err
	}
	if int(size) > p.cfg.maxBlockSize {
		return nil, validityErrorf("block data size %d exceeds configured maximum %d", size, p.cfg.maxBlockSize)
	}
	data, err := p.r.readBytes(int(size))
	if err != nil {
		return nil, propagate(err, "error reading block data")
	}
	return &BlockData{Data: data}, nil
}

func (p *Parser) parseBlockDataLong() (Content, error) {
	size, err := p.r.ReadI32()
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, validityErrorf("block data long size must be >= 0, got %d", size)
	}
	if int(size) > p.cfg.maxBlockSize {
		return nil, validityErrorf("block data size %d exceeds configured maximum %d", size, p.cfg.maxBlockSize)
	}
	data, err := p.r.readBytes(int(size))
	if err != nil {
		return nil, propagate(err, "error reading long block data")
	}
	return &BlockData{Data: data}, nil
}

// parseException implements spec.md §4.11: reset, read the thrown
// object (which must not itself begin with TC_RESET), mark it as an
// exception, reset again, and raise the embeddedException control
// signal rather than returning normally.
func (p *Parser) parseException() (Content, error) {
	// Recording stops at the TC_EXCEPTION marker, so the ExceptionState's
	// Data ends with that marker byte and excludes the exception object.
	p.r.recording = false
	p.handles.reset()

	tc, err := p.readTypeCode()
	if err != nil {
		return nil, err
	}
	if tc == tcReset {
		return nil, validityErrorf("%s not valid immediately after %s", tcReset, tcException)
	}

	v, err := p.dispatch(tc)
	if err != nil {
		return nil, propagate(err, "error reading exception object")
	}

	inst, ok := v.(*Instance)
	if !ok {
		return nil, validityErrorf("exception content must be an object instance, found %T", v)
	}
	inst.IsException = true

	p.handles.reset()

	return nil, &embeddedException{instance: inst}
}

func classNameOrNull(c *ClassDesc) string {
	if c == nil {
		return "<null>"
	}
	return c.Name
}
