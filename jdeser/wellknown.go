package jdeser

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// wellKnownInterp converts a *Instance matched by signature into a
// plain Go value. Adapted from the teacher's knownPostProcs table,
// keyed the same way (className + "@" + hex serialVersionUID) but
// operating over the typed Instance/Annotations model instead of the
// teacher's map[string]interface{} tree.
type wellKnownInterp func(inst *Instance) (interface{}, error)

var wellKnownSignatures = map[string]wellKnownInterp{
	"java.lang.Byte@9c4e6084ee50f51c":                            interpretPrimWrapper,
	"java.lang.Character@348b47d96b1a2678":                       interpretPrimWrapper,
	"java.lang.Double@80b3c24a296bfb04":                          interpretPrimWrapper,
	"java.lang.Float@daedc9a2db3cf0ec":                           interpretPrimWrapper,
	"java.lang.Integer@12e2a0a4f7818738":                         interpretPrimWrapper,
	"java.lang.Long@3b8be490cc8f23df":                            interpretPrimWrapper,
	"java.lang.Short@684d37133460da52":                           interpretPrimWrapper,
	"java.lang.Boolean@cd207280d59cfaee":                         interpretPrimWrapper,
	"java.util.ArrayList@7881d21d99c7619d":                       interpretList,
	"java.util.ArrayDeque@207cda2e240da08b":                      interpretList,
	"java.util.concurrent.CopyOnWriteArrayList@785d9fd546ab90c3": interpretList,
	"java.util.CollSer@578eabb63a1ba811":                         interpretList,
	"java.util.Hashtable@13bb0f25214ae4b8":                       interpretMap,
	"java.util.HashMap@0507dac1c31660d1":                         interpretMap,
	"java.util.EnumMap@065d7df7be907ca1":                         interpretEnumMap,
	"java.util.HashSet@ba44859596b8b734":                         interpretHashSet,
	"java.util.Date@686a81014b597419":                            interpretDate,
	"java.util.Calendar@e6ea4d1ec8dc5b8e":                        interpretCalendar,
	"java.util.Arrays$ArrayList@d9a43cbecd8806d2":                interpretArraysArrayList,
}

// Interpret attempts to resolve c to a plain Go value using the fixed
// signature table above. It never loads or reflects over arbitrary user
// classes: for anything but an Instance whose most-derived class matches
// one of these exact name+serialVersionUID pairs, or when interpreting
// a matched Instance fails, it returns (nil, false) and leaves c
// unchanged. This is an optional convenience layer over the typed model,
// never a substitute for it.
func Interpret(c Content) (value interface{}, ok bool) {
	inst, isInst := c.(*Instance)
	if !isInst || inst.Class == nil {
		return nil, false
	}

	sig := inst.Class.Name + "@" + suidHex(inst.Class.SerialVersionUID)
	fn, known := wellKnownSignatures[sig]
	if !known {
		return nil, false
	}

	v, err := fn(inst)
	if err != nil {
		return nil, false
	}
	return v, true
}

func suidHex(v int64) string {
	return fmt.Sprintf("%016x", uint64(v))
}

func fieldNamed(cls *ClassDesc, name string) *Field {
	for _, f := range cls.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func interpretPrimWrapper(inst *Instance) (interface{}, error) {
	f := fieldNamed(inst.Class, "value")
	if f == nil {
		return nil, errors.New("wrapper instance has no value field")
	}
	return inst.FieldValues[inst.Class][f], nil
}

// blockInt reads a big-endian int32 from the first BlockData annotation
// entry at the given byte offset, mirroring the teacher's
// postProcSize helper.
func blockInt(anns []Content, offset int) (int, error) {
	if len(anns) < 1 {
		return 0, errors.New("expected at least one annotation entry")
	}
	bd, ok := anns[0].(*BlockData)
	if !ok {
		return 0, errors.Errorf("expected block data at annotation position 0, found %T", anns[0])
	}
	if len(bd.Data) < offset+4 {
		return 0, errors.Errorf("block data too short: wanted at least %d bytes, got %d", offset+4, len(bd.Data))
	}
	return int(int32(binary.BigEndian.Uint32(bd.Data[offset:]))), nil
}

func interpretList(inst *Instance) (interface{}, error) {
	anns := inst.Annotations[inst.Class]
	size, err := blockInt(anns, 0)
	if err != nil {
		return nil, err
	}
	if len(anns) != size+1 {
		return nil, errors.Errorf("incorrect number of elements: want %d got %d", size, len(anns)-1)
	}
	out := make([]interface{}, size)
	copy(out, anns[1:])
	return out, nil
}

func interpretMap(inst *Instance) (interface{}, error) {
	anns := inst.Annotations[inst.Class]
	size, err := blockInt(anns, 4)
	if err != nil {
		return nil, err
	}
	if size*2+1 > len(anns) {
		return nil, errors.Errorf("incorrect number of elements: want %d got %d", size, (len(anns)-1)/2)
	}
	m := make(map[string]interface{}, size)
	for i := 0; i < size; i++ {
		m[mapKeyString(anns[2*i+1])] = anns[2*i+2]
	}
	return m, nil
}

func interpretEnumMap(inst *Instance) (interface{}, error) {
	anns := inst.Annotations[inst.Class]
	size, err := blockInt(anns, 0)
	if err != nil {
		return nil, err
	}
	if size*2+1 > len(anns) {
		return nil, errors.Errorf("incorrect number of elements: want %d got %d", size, (len(anns)-1)/2)
	}
	m := make(map[string]interface{}, size)
	for i := 0; i < size; i++ {
		m[mapKeyString(anns[2*i+1])] = anns[2*i+2]
	}
	return m, nil
}

// mapKeyString renders a map-entry key content item as a Go string map
// key: a *String's decoded value, an *EnumObject's constant name, or
// (for any other content) its Go %v rendering.
func mapKeyString(c Content) string {
	switch v := c.(type) {
	case *String:
		return v.Value
	case *EnumObject:
		if v.Constant != nil {
			return v.Constant.Value
		}
		return v.Class.Name
	default:
		return fmt.Sprint(c)
	}
}

func interpretHashSet(inst *Instance) (interface{}, error) {
	anns := inst.Annotations[inst.Class]
	size, err := blockInt(anns, 8)
	if err != nil {
		return nil, err
	}
	if len(anns) != size+1 {
		return nil, errors.Errorf("incorrect number of elements: want %d got %d", size, len(anns)-1)
	}
	out := make([]interface{}, size)
	copy(out, anns[1:])
	return out, nil
}

func interpretDate(inst *Instance) (interface{}, error) {
	anns := inst.Annotations[inst.Class]
	if len(anns) < 1 {
		return nil, errors.New("date instance missing block data")
	}
	bd, ok := anns[0].(*BlockData)
	if !ok || len(bd.Data) < 8 {
		return nil, errors.New("date block data too short")
	}
	ms := int64(binary.BigEndian.Uint64(bd.Data[:8]))
	return time.Unix(0, ms*int64(time.Millisecond)).UTC(), nil
}

func interpretCalendar(inst *Instance) (interface{}, error) {
	f := fieldNamed(inst.Class, "time")
	if f == nil {
		return nil, errors.New("calendar instance has no time field")
	}
	ms, ok := inst.FieldValues[inst.Class][f].(int64)
	if !ok {
		return nil, errors.New("calendar time field is not a long")
	}
	return time.Unix(0, ms*int64(time.Millisecond)).UTC(), nil
}

func interpretArraysArrayList(inst *Instance) (interface{}, error) {
	f := fieldNamed(inst.Class, "a")
	if f == nil {
		return nil, errors.New("Arrays$ArrayList instance has no 'a' field")
	}
	arr, ok := inst.FieldValues[inst.Class][f].(*ArrayObject)
	if !ok {
		return nil, errors.Errorf("Arrays$ArrayList field 'a' is not an array, found %T", inst.FieldValues[inst.Class][f])
	}
	return arr.Elements, nil
}
