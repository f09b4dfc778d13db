package jdeser

import "github.com/pkg/errors"

// readClassData walks an instance's class hierarchy base-class first,
// reading each level's field values and/or annotation block per the
// SC_* flag combination declared on that level's ClassDesc (spec.md
// §4.14). seen guards against a corrupt stream declaring a class as its
// own ancestor.
func (p *Parser) readClassData(cls *ClassDesc, inst *Instance, seen map[*ClassDesc]bool) error {
	if cls == nil {
		return nil
	}
	if seen[cls] {
		return validityErrorf("class %q appears more than once in its own super chain", cls.Name)
	}
	seen[cls] = true

	if cls.Super != nil {
		if err := p.readClassData(cls.Super, inst, seen); err != nil {
			return err
		}
	}

	if cls.isSerializable() && cls.isExternalizable() {
		return validityErrorf("class %q flags carry both SERIALIZABLE and EXTERNALIZABLE", cls.Name)
	}

	switch {
	case cls.isSerializable():
		vals, err := p.readFieldValues(cls)
		if err != nil {
			return propagate(err, "error reading field values for "+cls.Name)
		}
		inst.FieldValues[cls] = vals

		if cls.hasWriteMethod() {
			anns, err := p.annotations(nil)
			if err != nil {
				return propagate(err, "error reading class annotations for "+cls.Name)
			}
			inst.Annotations[cls] = anns
		}

	case cls.isExternalizable():
		if !cls.hasBlockData() {
			return validityErrorf("class %q is EXTERNALIZABLE without BLOCK_DATA: opaque protocol form, unrecoverable", cls.Name)
		}
		anns, err := p.annotations(nil)
		if err != nil {
			return propagate(err, "error reading externalizable data for "+cls.Name)
		}
		inst.Annotations[cls] = anns

	default:
		// Neither flag set: this level of the hierarchy wrote nothing.
	}

	return nil
}

func (p *Parser) readFieldValues(cls *ClassDesc) (map[*Field]interface{}, error) {
	vals := make(map[*Field]interface{}, len(cls.Fields))
	for _, f := range cls.Fields {
		v, err := p.readFieldValue(f.Type)
		if err != nil {
			return nil, propagate(err, "error reading field "+f.Name)
		}
		vals[f] = v
	}
	return vals, nil
}

// arrayFieldAllowed restricts an ARRAY-kind field/element value to
// TC_ARRAY, TC_NULL, or TC_REFERENCE (spec.md §4.14).
var arrayFieldAllowed = map[typeCode]bool{
	tcArray:     true,
	tcNull:      true,
	tcReference: true,
}

// readFieldValue reads one value of the given field/element kind,
// shared between per-object field reading and array element reading
// (both reduce to the same table, spec.md §4.14).
func (p *Parser) readFieldValue(ft FieldType) (interface{}, error) {
	switch ft {
	case FieldByte:
		return p.r.ReadI8()
	case FieldChar:
		u, err := p.r.ReadU16()
		if err != nil {
			return nil, err
		}
		return rune(u), nil
	case FieldDouble:
		return p.r.ReadF64()
	case FieldFloat:
		return p.r.ReadF32()
	case FieldInt:
		return p.r.ReadI32()
	case FieldLong:
		return p.r.ReadI64()
	case FieldShort:
		return p.r.ReadI16()
	case FieldBoolean:
		v, err := p.r.ReadI8()
		if err != nil {
			return nil, err
		}
		return v != 0, nil
	case FieldObject:
		// Object-kind field values recurse through the full content rule,
		// block data included (spec.md §4.14).
		return p.content(nil, true)
	case FieldArray:
		return p.content(arrayFieldAllowed, false)
	default:
		return nil, errors.Errorf("unknown field/element type %q", rune(ft))
	}
}
