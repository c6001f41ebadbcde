package vm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func key(s string) *ObjString {
	return &ObjString{ObjHeader: ObjHeader{kind: KindString}, Chars: s, Hash: fnv1a32(s)}
}

func TestTableSetAndGet(t *testing.T) {
	tbl := NewTable()
	k := key("x")
	require.True(t, tbl.Set(k, NumberValue(1)))

	v, ok := tbl.Get(k)
	require.True(t, ok)
	require.Equal(t, 1.0, v.Number)
}

func TestTableSetExistingKeyOverwrites(t *testing.T) {
	tbl := NewTable()
	k := key("x")
	tbl.Set(k, NumberValue(1))
	isNew := tbl.Set(k, NumberValue(2))
	require.False(t, isNew)

	v, ok := tbl.Get(k)
	require.True(t, ok)
	require.Equal(t, 2.0, v.Number)
}

func TestTableGetMissing(t *testing.T) {
	tbl := NewTable()
	_, ok := tbl.Get(key("missing"))
	require.False(t, ok)
}

func TestTableDeleteLeavesTombstoneReusableOnInsert(t *testing.T) {
	tbl := NewTable()
	a, b := key("a"), key("b")
	tbl.Set(a, NumberValue(1))
	tbl.Set(b, NumberValue(2))

	require.True(t, tbl.Delete(a))
	_, ok := tbl.Get(a)
	require.False(t, ok)

	// b must still be reachable: deleting a must not break the probe
	// sequence for keys that hashed past it (spec.md §4.3).
	v, ok := tbl.Get(b)
	require.True(t, ok)
	require.Equal(t, 2.0, v.Number)

	require.True(t, tbl.Set(a, NumberValue(3)))
	v, ok = tbl.Get(a)
	require.True(t, ok)
	require.Equal(t, 3.0, v.Number)
}

func TestTableDeleteMissingReturnsFalse(t *testing.T) {
	tbl := NewTable()
	require.False(t, tbl.Delete(key("nope")))
}

func TestTableGrowsAndKeepsAllEntries(t *testing.T) {
	tbl := NewTable()
	var keys []*ObjString
	for i := 0; i < 100; i++ {
		k := key(fmt.Sprintf("key%d", i))
		keys = append(keys, k)
		tbl.Set(k, NumberValue(float64(i)))
	}
	for i, k := range keys {
		v, ok := tbl.Get(k)
		require.True(t, ok)
		require.Equal(t, float64(i), v.Number)
	}
}

func TestTableAddAll(t *testing.T) {
	src := NewTable()
	dst := NewTable()
	src.Set(key("a"), NumberValue(1))
	src.Set(key("b"), NumberValue(2))

	src.AddAll(dst)

	v, ok := dst.Get(key("a"))
	require.True(t, ok)
	require.Equal(t, 1.0, v.Number)
	v, ok = dst.Get(key("b"))
	require.True(t, ok)
	require.Equal(t, 2.0, v.Number)
}

func TestTableFindStringByContent(t *testing.T) {
	tbl := NewTable()
	s := key("hello")
	tbl.Set(s, NilValue)

	found := tbl.FindString("hello", fnv1a32("hello"))
	require.Same(t, s, found)

	require.Nil(t, tbl.FindString("goodbye", fnv1a32("goodbye")))
}
