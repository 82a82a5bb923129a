package propagation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlang/classflow/internal/config"
	"github.com/emberlang/classflow/internal/image"
)

func newScaffoldTemplate(t *testing.T) *MethodTemplate {
	t.Helper()
	p := image.NewMutableProgram(8)
	p.SetWellKnownClasses(0, 1, 2, 3, 4, 5, 6, 7, 7, 0, 0, 0)
	p.SetInstanceFields(p.TaskClass(), 0)

	prop := NewPropagator(p, config.Default(), Options{})
	method := image.Method{Arity: 1, MaxHeight: 4, SelectorOffset: -1}
	return prop.instantiate(method, ConcreteTypeTuple{ClassType(p.SmiClass())})
}

func TestWorklistNextPopsLIFO(t *testing.T) {
	tmpl := newScaffoldTemplate(t)
	scope := NewMethodScope(tmpl)
	w := NewWorklist(100, scope)

	require.True(t, w.HasNext())
	item := w.Next()
	require.Equal(t, 100, item.BCP)
	require.False(t, w.HasNext())

	w.Add(200, scope.Copy())
	w.Add(300, scope.Copy())
	require.Equal(t, 300, w.Next().BCP)
	require.Equal(t, 200, w.Next().BCP)
	require.False(t, w.HasNext())
}

func TestWorklistAddFirstVisitQueuesPosition(t *testing.T) {
	tmpl := newScaffoldTemplate(t)
	scope := NewMethodScope(tmpl)
	w := NewWorklist(1, scope)
	w.Next()
	require.False(t, w.HasNext())

	w.Add(2, scope.Copy())
	require.True(t, w.HasNext())
	item := w.Next()
	require.Equal(t, 2, item.BCP)
}

func TestWorklistAddRequeuesOnlyWhenMergeGrows(t *testing.T) {
	tmpl := newScaffoldTemplate(t)
	base := NewMethodScope(tmpl)
	w := NewWorklist(1, base)
	w.Next()
	require.False(t, w.HasNext())

	// Re-adding the exact same scope contributes nothing new.
	w.Add(1, base.Copy())
	require.False(t, w.HasNext())

	// Adding a scope whose stack carries a class the stored one lacks
	// grows the merge target and requeues position 1.
	grown := base.Copy()
	slot := grown.Top().Local(0)
	slot.AddString(tmpl.propagator.program)
	w.Add(1, grown)
	require.True(t, w.HasNext())
}

func TestWorklistNextReturnsLazyCopyNotAliasingStoredScope(t *testing.T) {
	tmpl := newScaffoldTemplate(t)
	base := NewMethodScope(tmpl)
	w := NewWorklist(1, base)

	item := w.Next()
	top := item.Scope.Top().Local(0)
	top.AddString(tmpl.propagator.program)

	// Mutating the handed-out scope must not retroactively change what a
	// later Add merges against.
	w.Add(1, base.Copy())
	require.False(t, w.HasNext())
}
