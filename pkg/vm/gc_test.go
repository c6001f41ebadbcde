package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGCSweepsUnreachableStrings(t *testing.T) {
	v := New()
	v.push(ObjValue(v.InternString("reachable")))

	unreachable := v.InternString("garbage")
	unreachable.setMarked(false)

	v.collect()

	require.Nil(t, v.strings.FindString("garbage", fnv1a32("garbage")))
	require.NotNil(t, v.strings.FindString("reachable", fnv1a32("reachable")))
}

func TestGCMarksStackAndClearsMarkAfterSweep(t *testing.T) {
	v := New()
	s := v.InternString("kept")
	v.push(ObjValue(s))

	v.collect()

	require.False(t, s.marked())
	require.NotNil(t, v.strings.FindString("kept", fnv1a32("kept")))
}

func TestGCKeepsGlobalsReachable(t *testing.T) {
	v := New()
	name := v.InternString("g")
	v.globals.Set(name, ObjValue(v.InternString("value")))

	v.collect()

	val, ok := v.globals.Get(name)
	require.True(t, ok)
	require.True(t, val.IsString())
	require.Equal(t, "value", val.AsString().Chars)
}

func TestGCClosesOverInstanceFieldsAsRoots(t *testing.T) {
	v := New()
	class := v.newClass(v.InternString("A"))
	instance := v.newInstance(class)
	fieldVal := v.InternString("field-value")
	instance.Fields.Set(v.InternString("f"), ObjValue(fieldVal))

	v.push(ObjValue(instance))
	v.collect()

	require.False(t, instance.marked())
	val, ok := instance.Fields.Get(v.InternString("f"))
	require.True(t, ok)
	require.Same(t, fieldVal, val.Obj)
}
