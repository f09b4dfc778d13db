package jdeser

import (
	"regexp"
	"sort"
	"strings"
)

var thisFieldPattern = regexp.MustCompile(`^this\$(\d+)$`)

// reconnect runs the inner/static-member class reconnection pass
// (spec.md §4.15) over the ClassDescs reachable through the final
// handle table only — historical epochs archived by an earlier
// TC_RESET are left untouched.
//
// Pattern A (non-static inner classes): a ClassDesc C with a this$N
// OBJECT field whose resolved type names another ClassDesc O, and whose
// own name is exactly O's name plus "$" plus a suffix, is linked as an
// inner class of O and renamed to that suffix.
//
// Pattern B (static member classes): any remaining ClassDesc whose name
// is Outer$Inner for some other known ClassDesc Outer, with no this$N
// field, is linked as a static member class of Outer and renamed the
// same way.
//
// All renames are computed before any are committed; a collision
// between two target names, or with a name already in use, aborts the
// entire pass with no partial rename applied.
func reconnect(finalEpoch map[Handle]Content) error {
	classes, byName := collectClassDescs(finalEpoch)

	renames := make(map[string]string)
	linked := make(map[*ClassDesc]bool)

	for _, c := range classes {
		if c.Kind == ClassDescProxy {
			continue
		}

		var thisField *Field
		for _, f := range c.Fields {
			if f.Type == FieldObject && thisFieldPattern.MatchString(f.Name) {
				thisField = f
				break
			}
		}
		if thisField == nil {
			continue
		}

		idx := strings.LastIndex(c.Name, "$")
		if idx <= 0 || idx == len(c.Name)-1 {
			return validityErrorf("class %q has a this$N field but its name is not Outer$Inner", c.Name)
		}
		outerName, innerName := c.Name[:idx], c.Name[idx+1:]

		outer, ok := byName[outerName]
		if !ok {
			return validityErrorf("class %q implies outer class %q, which was not found", c.Name, outerName)
		}

		// The comparison is exact, with no dot/slash translation: it
		// matches only when the class name uses the same
		// slash-separated form as the field descriptor. A dotted class
		// name such as "pkg.Outer" never matches "Lpkg/Outer;".
		wantType := "L" + outerName + ";"
		if thisField.ClassName == nil || thisField.ClassName.Value != wantType {
			return validityErrorf("class %q field %q does not resolve to outer class %q", c.Name, thisField.Name, outerName)
		}

		outer.InnerClasses = append(outer.InnerClasses, c)
		c.Outer = outer
		c.IsInnerClass = true
		thisField.IsInnerClassReference = true
		linked[c] = true
		renames[c.Name] = innerName
	}

	for _, c := range classes {
		if c.Kind == ClassDescProxy || linked[c] {
			continue
		}

		idx := strings.LastIndex(c.Name, "$")
		if idx <= 0 || idx == len(c.Name)-1 {
			continue
		}
		outerName, innerName := c.Name[:idx], c.Name[idx+1:]

		outer, ok := byName[outerName]
		if !ok {
			continue
		}

		outer.InnerClasses = append(outer.InnerClasses, c)
		c.Outer = outer
		c.IsStaticMemberClass = true
		renames[c.Name] = innerName
	}

	return commitRenames(classes, byName, renames)
}

func collectClassDescs(finalEpoch map[Handle]Content) ([]*ClassDesc, map[string]*ClassDesc) {
	handles := make([]Handle, 0, len(finalEpoch))
	for h := range finalEpoch {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	var classes []*ClassDesc
	byName := make(map[string]*ClassDesc)
	for _, h := range handles {
		if cd, ok := finalEpoch[h].(*ClassDesc); ok {
			classes = append(classes, cd)
			byName[cd.Name] = cd
		}
	}
	return classes, byName
}

// commitRenames validates that every computed rename lands on a name
// not already in use by anything other than itself, then applies every
// rename atomically: first every field-type reference to a renamed
// class, then the ClassDesc.Name fields themselves.
func commitRenames(classes []*ClassDesc, byName map[string]*ClassDesc, renames map[string]string) error {
	if len(renames) == 0 {
		return nil
	}

	oldNames := make(map[string]bool, len(renames))
	for old := range renames {
		oldNames[old] = true
	}

	targetCount := make(map[string]int, len(renames))
	for _, newName := range renames {
		targetCount[newName]++
	}

	for old, newName := range renames {
		if targetCount[newName] > 1 {
			return validityErrorf("cannot rename class %q to %q: another class also renames to %q", old, newName, newName)
		}
		if existing, ok := byName[newName]; ok && !oldNames[existing.Name] {
			return validityErrorf("cannot rename class %q to %q: name already in use", old, newName)
		}
	}

	for _, c := range classes {
		for _, f := range c.Fields {
			if f.ClassName == nil {
				continue
			}
			for old, newName := range renames {
				if f.ClassName.Value == "L"+old+";" {
					f.ClassName.Value = "L" + newName + ";"
				}
			}
		}
	}

	for old, newName := range renames {
		c := byName[old]
		delete(byName, old)
		c.Name = newName
		byName[newName] = c
	}

	return nil
}
