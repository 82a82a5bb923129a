package image

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func wellKnownJSON() string {
	return `"wellKnownClasses": {
		"null":0,"true":1,"false":2,"smi":3,"largeInteger":4,"float":5,
		"string":6,"array":7,"byteArray":8,"task":9,"exception":10,"lambdaBox":11
	}`
}

func TestLoadFixtureStraightLineMethod(t *testing.T) {
	body := `{
		"classCount": 12,
		` + wellKnownJSON() + `,
		"instanceFields": {"9": 2, "10": 2},
		"methods": [
			{"arity": 1, "maxHeight": 4, "selectorOffset": -1, "isBlock": false,
			 "instructions": [{"op": "LOAD_NULL"}, {"op": "RETURN"}]}
		],
		"entryMethod": 0
	}`

	p, err := LoadFixture([]byte(body))
	require.NoError(t, err)
	require.Equal(t, 12, p.ClassCount())
	require.Equal(t, ClassID(9), p.TaskClass())

	inst := Decode(p.Bytecodes(), p.EntryMethod()+MethodHeaderSize)
	require.Equal(t, LoadNull, inst.Op)
}

func TestLoadFixtureResolvesForwardBlockMethodReference(t *testing.T) {
	body := `{
		"classCount": 12,
		` + wellKnownJSON() + `,
		"instanceFields": {"9": 2, "10": 2},
		"methods": [
			{"arity": 1, "maxHeight": 4, "selectorOffset": -1, "isBlock": false,
			 "instructions": [
				{"op": "LOAD_BLOCK_METHOD", "method": 1},
				{"op": "POP_1"},
				{"op": "RETURN_NULL"}
			 ]},
			{"arity": 1, "maxHeight": 2, "selectorOffset": -1, "isBlock": true,
			 "instructions": [{"op": "RETURN_NULL"}]}
		],
		"entryMethod": 0
	}`

	p, err := LoadFixture([]byte(body))
	require.NoError(t, err)

	entry := DecodeMethod(p, p.EntryMethod())
	inst := Decode(p.Bytecodes(), entry.Body())
	require.Equal(t, LoadBlockMethod, inst.Op)

	block := DecodeMethod(p, inst.A)
	require.True(t, block.IsBlock)
}

func TestLoadFixtureRejectsUnknownOpcode(t *testing.T) {
	body := `{
		"classCount": 12,
		` + wellKnownJSON() + `,
		"methods": [
			{"arity": 0, "maxHeight": 1, "selectorOffset": -1, "isBlock": false,
			 "instructions": [{"op": "NOT_A_REAL_OPCODE"}]}
		],
		"entryMethod": 0
	}`

	_, err := LoadFixture([]byte(body))
	require.Error(t, err)
}

func TestLoadFixtureRejectsOutOfRangeEntry(t *testing.T) {
	body := `{
		"classCount": 12,
		` + wellKnownJSON() + `,
		"methods": [
			{"arity": 0, "maxHeight": 1, "selectorOffset": -1, "isBlock": false,
			 "instructions": [{"op": "RETURN_NULL"}]}
		],
		"entryMethod": 5
	}`

	_, err := LoadFixture([]byte(body))
	require.Error(t, err)
}

func TestLoadFixtureDispatchTableBindsSelector(t *testing.T) {
	body := `{
		"classCount": 12,
		` + wellKnownJSON() + `,
		"methods": [
			{"arity": 1, "maxHeight": 1, "selectorOffset": 4, "isBlock": false,
			 "instructions": [{"op": "RETURN_NULL"}]}
		],
		"dispatch": {"4": 0},
		"entryMethod": 0
	}`

	p, err := LoadFixture([]byte(body))
	require.NoError(t, err)
	require.Equal(t, p.EntryMethod(), p.DispatchEntry(4))
}
