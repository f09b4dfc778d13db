// Package printer is a thin, read-only consumer of jdeser's content
// model: it emits Java-like class declarations and instance dumps. It
// never mutates anything it's handed -- per-call option flags only
// control what gets written and how names are rendered.
package printer

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/kbinani/jdeser/jdeser"
)

// Options controls what the printer emits.
type Options struct {
	NoContent   bool
	NoClasses   bool
	NoInstances bool
	ShowArrays  bool
	FixNames    bool
	Filter      *regexp.Regexp // class names matching are excluded from class output
}

// Printer writes a textual rendering of a jdeser.Result to an io.Writer.
type Printer struct {
	w    io.Writer
	opts Options
}

func New(w io.Writer, opts Options) *Printer {
	return &Printer{w: w, opts: opts}
}

// Print renders everything requested by Options for a single parse
// result.
func (p *Printer) Print(result *jdeser.Result) error {
	if !p.opts.NoClasses {
		if err := p.printClasses(result); err != nil {
			return fmt.Errorf("printing class declarations: %w", err)
		}
	}
	if !p.opts.NoContent {
		if err := p.printContentList(result); err != nil {
			return fmt.Errorf("printing content list: %w", err)
		}
	}
	if !p.opts.NoInstances {
		if err := p.printInstances(result); err != nil {
			return fmt.Errorf("printing instance dumps: %w", err)
		}
	}
	return nil
}

func (p *Printer) printClasses(result *jdeser.Result) error {
	classes := collectClasses(result)
	for _, cls := range classes {
		if cls.IsArrayClass && !p.opts.ShowArrays {
			continue
		}
		if p.opts.Filter != nil && p.opts.Filter.MatchString(cls.Name) {
			continue
		}
		if err := p.printClassDecl(cls); err != nil {
			return err
		}
	}
	return nil
}

func (p *Printer) printClassDecl(cls *jdeser.ClassDesc) error {
	kind := "class"
	if cls.Kind == jdeser.ClassDescProxy {
		kind = "proxy"
	}

	name := p.displayName(cls.Name)
	if _, err := fmt.Fprintf(p.w, "%s %s", kind, name); err != nil {
		return err
	}
	if cls.Super != nil {
		if _, err := fmt.Fprintf(p.w, " extends %s", p.displayName(cls.Super.Name)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(p.w, " {"); err != nil {
		return err
	}

	for _, iface := range cls.Interfaces {
		if _, err := fmt.Fprintf(p.w, "    implements %s;\n", iface); err != nil {
			return err
		}
	}

	for _, f := range cls.Fields {
		if f.IsInnerClassReference {
			continue
		}
		typeName := fieldTypeName(f)
		if _, err := fmt.Fprintf(p.w, "    %s %s;\n", typeName, f.Name); err != nil {
			return err
		}
	}

	for _, ec := range cls.EnumConstants {
		if _, err := fmt.Fprintf(p.w, "    enum constant %s;\n", ec); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(p.w, "}")
	return err
}

func fieldTypeName(f *jdeser.Field) string {
	switch f.Type {
	case jdeser.FieldObject, jdeser.FieldArray:
		if f.ClassName != nil {
			return f.ClassName.Value
		}
		return string(rune(f.Type))
	default:
		return string(rune(f.Type))
	}
}

func (p *Printer) printContentList(result *jdeser.Result) error {
	for i, item := range result.Items {
		line := describeContent(item)
		if _, err := fmt.Fprintf(p.w, "[%d] %s\n", i, line); err != nil {
			return err
		}
	}
	return nil
}

func (p *Printer) printInstances(result *jdeser.Result) error {
	for _, item := range result.Items {
		inst, ok := item.(*jdeser.Instance)
		if !ok {
			continue
		}
		if err := p.printInstance(inst); err != nil {
			return err
		}
	}
	return nil
}

func (p *Printer) printInstance(inst *jdeser.Instance) error {
	if _, err := fmt.Fprintf(p.w, "instance %#x %s\n", inst.Handle, p.displayName(inst.Class.Name)); err != nil {
		return err
	}

	for cls := inst.Class; cls != nil; cls = cls.Super {
		vals, ok := inst.FieldValues[cls]
		if !ok {
			continue
		}
		for _, f := range cls.Fields {
			if f.IsInnerClassReference {
				continue
			}
			if v, hasInterp := interpretField(vals[f]); hasInterp {
				if _, err := fmt.Fprintf(p.w, "    %s.%s = %v\n", p.displayName(cls.Name), f.Name, v); err != nil {
					return err
				}
				continue
			}
			if _, err := fmt.Fprintf(p.w, "    %s.%s = %v\n", p.displayName(cls.Name), f.Name, vals[f]); err != nil {
				return err
			}
		}
	}

	if interp, ok := jdeser.Interpret(inst); ok {
		if _, err := fmt.Fprintf(p.w, "    = %v\n", interp); err != nil {
			return err
		}
	}

	return nil
}

func interpretField(v interface{}) (interface{}, bool) {
	c, ok := v.(jdeser.Content)
	if !ok {
		return nil, false
	}
	return jdeser.Interpret(c)
}

func describeContent(c jdeser.Content) string {
	switch v := c.(type) {
	case nil:
		return "null"
	case *jdeser.String:
		return fmt.Sprintf("string %#x %q", v.Handle, v.Value)
	case *jdeser.ClassDesc:
		return fmt.Sprintf("classdesc %#x %s", v.Handle, v.Name)
	case *jdeser.ClassObject:
		name := "<null>"
		if v.Class != nil {
			name = v.Class.Name
		}
		return fmt.Sprintf("class %#x %s", v.Handle, name)
	case *jdeser.EnumObject:
		constant := "<null>"
		if v.Constant != nil {
			constant = v.Constant.Value
		}
		return fmt.Sprintf("enum %#x %s.%s", v.Handle, v.Class.Name, constant)
	case *jdeser.ArrayObject:
		return fmt.Sprintf("array %#x %s[%d]", v.Handle, v.Class.Name, len(v.Elements))
	case *jdeser.Instance:
		return fmt.Sprintf("object %#x %s", v.Handle, v.Class.Name)
	case *jdeser.BlockData:
		return fmt.Sprintf("blockdata %d bytes", len(v.Data))
	case *jdeser.ExceptionState:
		return fmt.Sprintf("exception %#x %s (%d raw bytes)", v.Handle, v.Exception.Class.Name, len(v.Data))
	default:
		return fmt.Sprintf("unknown %T", v)
	}
}

func collectClasses(result *jdeser.Result) []*jdeser.ClassDesc {
	seen := make(map[*jdeser.ClassDesc]bool)
	var ordered []*jdeser.ClassDesc

	var walk func(cls *jdeser.ClassDesc)
	walk = func(cls *jdeser.ClassDesc) {
		if cls == nil || seen[cls] {
			return
		}
		seen[cls] = true
		ordered = append(ordered, cls)
		walk(cls.Super)
		for _, inner := range cls.InnerClasses {
			walk(inner)
		}
	}

	var visit func(c jdeser.Content)
	visit = func(c jdeser.Content) {
		switch v := c.(type) {
		case *jdeser.ClassDesc:
			walk(v)
		case *jdeser.ClassObject:
			walk(v.Class)
		case *jdeser.EnumObject:
			walk(v.Class)
		case *jdeser.ArrayObject:
			walk(v.Class)
		case *jdeser.Instance:
			walk(v.Class)
		case *jdeser.ExceptionState:
			if v.Exception != nil {
				walk(v.Exception.Class)
			}
		}
	}

	for _, item := range result.Items {
		visit(item)
	}

	return ordered
}

var illegalNameChars = regexp.MustCompile(`[^A-Za-z0-9_.$\[\];/]`)

// displayName rewrites a JVM internal class name for presentation only,
// when -fixnames is set: '$' becomes '.', and stray bytes that survived
// modified-UTF-8 decoding but aren't legal identifier characters are
// dropped. It never affects ClassDesc.Name used for handle resolution
// or reconnection -- this function is applied purely at print time.
func (p *Printer) displayName(name string) string {
	if !p.opts.FixNames {
		return name
	}
	name = strings.ReplaceAll(name, "$", ".")
	return illegalNameChars.ReplaceAllString(name, "")
}
