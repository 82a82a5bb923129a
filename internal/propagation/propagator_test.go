package propagation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberlang/classflow/internal/config"
	"github.com/emberlang/classflow/internal/image"
)

// buildTwoMethodProgram assembles: a helper method that ignores its
// single argument and always returns a String literal, and an entry
// method that pushes a Smi, calls the helper via INVOKE_STATIC, and
// returns whatever the helper returned.
func buildTwoMethodProgram(t *testing.T) (*image.MutableProgram, int) {
	t.Helper()
	b := image.NewBuilder(12)
	p := b.Program
	p.SetWellKnownClasses(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11)
	p.SetInstanceFields(p.TaskClass(), 2)
	p.SetInstanceFields(p.ExceptionClass(), 2)

	stringLiteral := p.AddLiteral(image.Value{Class: p.StringClass()})

	helper := b.BeginMethod(1, 4, -1, false)
	helper.Op1(image.LoadLiteral, byte(stringLiteral))
	helper.Op(image.Return)

	const dispatchIndex = 0
	p.SetDispatch(dispatchIndex, helper.HeaderBCP)

	entry := b.BeginMethod(1, 4, -1, false)
	entry.Op(image.LoadSmi0)
	invokeSite := entry.OpU16(image.InvokeStatic, dispatchIndex)
	entry.Op(image.Return)
	p.SetEntryMethod(entry.HeaderBCP)

	return p, invokeSite
}

func TestRunPropagatesStaticCallResultType(t *testing.T) {
	p, invokeSite := buildTwoMethodProgram(t)

	propagator := NewPropagator(p, config.Default(), Options{})
	db := propagator.Run()

	require.Empty(t, propagator.Diagnostics())
	require.Len(t, db.Methods(), 2)

	usage := db.Usage(p.AbsoluteBCI(invokeSite))
	require.True(t, usage.Contains(p.StringClass()))
	require.False(t, usage.IsEmpty(p))

	body, err := db.AsJSON()
	require.NoError(t, err)
	require.Contains(t, string(body), `"position"`)
}

func TestRunSeedsEntryArgumentAsTaskClass(t *testing.T) {
	p, _ := buildTwoMethodProgram(t)

	propagator := NewPropagator(p, config.Default(), Options{})
	db := propagator.Run()

	methods := db.Methods()
	entry := methods[len(methods)-1]
	require.Equal(t, p.EntryMethod(), entry.HeaderBCP)

	args := db.Arguments(entry)
	require.Len(t, args, 1)
	require.True(t, args[0].Contains(p.TaskClass()))
}

func TestRunIsIdempotentAcrossSeparateRuns(t *testing.T) {
	p, _ := buildTwoMethodProgram(t)

	first := NewPropagator(p, config.Default(), Options{}).Run()
	second := NewPropagator(p, config.Default(), Options{}).Run()

	firstJSON, err := first.AsJSON()
	require.NoError(t, err)
	secondJSON, err := second.AsJSON()
	require.NoError(t, err)
	require.JSONEq(t, string(firstJSON), string(secondJSON))
}

func TestRunRecordsUnsupportedOpcodeDiagnostic(t *testing.T) {
	b := image.NewBuilder(12)
	p := b.Program
	p.SetWellKnownClasses(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11)
	p.SetInstanceFields(p.TaskClass(), 2)
	p.SetInstanceFields(p.ExceptionClass(), 2)

	entry := b.BeginMethod(1, 1, -1, false)
	entry.Op(image.NonLocalBranch)
	p.SetEntryMethod(entry.HeaderBCP)

	propagator := NewPropagator(p, config.Default(), Options{})
	propagator.Run()

	diagnostics := propagator.Diagnostics()
	require.Len(t, diagnostics, 1)
	require.Contains(t, diagnostics[0], (&UnsupportedOpcodeError{
		Op:       image.NonLocalBranch,
		Position: p.EntryMethod() + image.MethodHeaderSize,
	}).Error())
}

func TestRunStampsDistinctRunIDs(t *testing.T) {
	p, _ := buildTwoMethodProgram(t)

	a := NewPropagator(p, config.Default(), Options{})
	b := NewPropagator(p, config.Default(), Options{})
	require.NotEqual(t, a.RunID(), b.RunID())
}
