package printer

import (
	"strings"
	"testing"

	"github.com/kbinani/jdeser/jdeser"
	"github.com/stretchr/testify/require"
)

func TestPrintContentList(t *testing.T) {
	result := &jdeser.Result{
		Items: []jdeser.Content{
			&jdeser.String{Handle: jdeser.BaseWireHandle, Value: "hello"},
			nil,
		},
	}

	var buf strings.Builder
	p := New(&buf, Options{NoClasses: true, NoInstances: true})
	require.NoError(t, p.Print(result))

	out := buf.String()
	require.Contains(t, out, `"hello"`)
	require.Contains(t, out, "null")
}

func TestPrintClassDeclSkipsInnerClassReference(t *testing.T) {
	outer := &jdeser.ClassDesc{Name: "a/Outer"}
	inner := &jdeser.ClassDesc{
		Name: "Inner",
		Fields: []*jdeser.Field{
			{Type: jdeser.FieldObject, Name: "this$0", ClassName: &jdeser.String{Value: "La/Outer;"}, IsInnerClassReference: true},
			{Type: jdeser.FieldInt, Name: "x"},
		},
		Outer:        outer,
		IsInnerClass: true,
	}

	result := &jdeser.Result{Items: []jdeser.Content{inner}}

	var buf strings.Builder
	p := New(&buf, Options{NoContent: true, NoInstances: true})
	require.NoError(t, p.Print(result))

	out := buf.String()
	require.Contains(t, out, "class Inner")
	require.NotContains(t, out, "this$0")
	require.Contains(t, out, "I x;")
}

func TestPrintClassesHidesArraysByDefault(t *testing.T) {
	arr := &jdeser.ClassDesc{Name: "[I", IsArrayClass: true}
	result := &jdeser.Result{Items: []jdeser.Content{arr}}

	var buf strings.Builder
	p := New(&buf, Options{NoContent: true, NoInstances: true})
	require.NoError(t, p.Print(result))
	require.Empty(t, buf.String())

	buf.Reset()
	p = New(&buf, Options{NoContent: true, NoInstances: true, ShowArrays: true})
	require.NoError(t, p.Print(result))
	require.Contains(t, buf.String(), "[I")
}

func TestPrintClassDeclShowsInterfacesAndEnumConstants(t *testing.T) {
	proxy := &jdeser.ClassDesc{
		Kind:       jdeser.ClassDescProxy,
		Name:       "$Proxy0",
		Interfaces: []string{"java.lang.Runnable"},
	}
	enumCls := &jdeser.ClassDesc{
		Name:          "pkg/Color",
		EnumConstants: []string{"RED", "GREEN"},
	}

	result := &jdeser.Result{Items: []jdeser.Content{proxy, enumCls}}

	var buf strings.Builder
	p := New(&buf, Options{NoContent: true, NoInstances: true})
	require.NoError(t, p.Print(result))

	out := buf.String()
	require.Contains(t, out, "implements java.lang.Runnable;")
	require.Contains(t, out, "enum constant RED;")
	require.Contains(t, out, "enum constant GREEN;")
}

func TestDisplayNameFixNames(t *testing.T) {
	p := New(nil, Options{FixNames: true})
	require.Equal(t, "Outer.Inner", p.displayName("Outer$Inner"))
}
