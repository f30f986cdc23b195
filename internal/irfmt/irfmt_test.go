package irfmt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ripplecc/internal/ir"
)

const sampleModule = `{
  "name": "sample",
  "globals": [
    {
      "name": "counter",
      "type": {"size_words": 1, "signed": true, "is_pointer": false, "name": "int"},
      "initializer": {"kind": "constant", "constant": 5},
      "has_init": true,
      "linkage": "internal"
    }
  ],
  "functions": [
    {
      "name": "main",
      "params": [],
      "return_type": {"size_words": 1, "signed": true, "is_pointer": false, "name": "int"},
      "void": false,
      "blocks": [
        {
          "id": 0,
          "insts": [
            {
              "op": "binary",
              "result": 1,
              "type": {"size_words": 1, "signed": true, "is_pointer": false, "name": "int"},
              "binop": "add",
              "lhs": {"kind": "constant", "constant": 1},
              "rhs": {"kind": "constant", "constant": 2}
            },
            {
              "op": "return",
              "ret_val": {"kind": "temp", "temp": 1}
            }
          ]
        }
      ]
    }
  ]
}`

func TestDecodeFullModule(t *testing.T) {
	mod, err := Decode(strings.NewReader(sampleModule))
	require.NoError(t, err)

	require.Len(t, mod.Globals, 1)
	g := mod.Globals[0]
	assert.Equal(t, "counter", g.Name)
	assert.True(t, g.HasInit)
	assert.Equal(t, ir.LinkageInternal, g.Linkage)
	assert.Equal(t, ir.ConstantValue(5), g.Initializer)

	require.Len(t, mod.Functions, 1)
	fn := mod.Functions[0]
	assert.Equal(t, "main", fn.Name)
	require.Len(t, fn.Blocks, 1)
	require.Len(t, fn.Blocks[0].Insts, 2)

	binInst := fn.Blocks[0].Insts[0]
	assert.Equal(t, ir.OpBinary, binInst.Op)
	assert.Equal(t, ir.Add, binInst.BinOp)
	assert.True(t, binInst.HasResult)
	assert.Equal(t, ir.TempID(1), binInst.Result)
	assert.Equal(t, ir.ConstantValue(1), binInst.Lhs)
	assert.Equal(t, ir.ConstantValue(2), binInst.Rhs)

	retInst := fn.Blocks[0].Insts[1]
	assert.Equal(t, ir.OpReturn, retInst.Op)
	assert.True(t, retInst.HasRetVal)
	assert.Equal(t, ir.TempValue(ir.TempID(1)), retInst.RetVal)
}

func TestDecodeRejectsUnknownInstructionOp(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"functions":[{"name":"f","blocks":[{"id":0,"insts":[{"op":"frobnicate"}]}]}]}`))
	assert.Error(t, err)
}

func TestDecodeRejectsUnknownBankTag(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"globals":[{"name":"g","initializer":{"kind":"fatptr","fatptr":{"addr":{"kind":"constant","constant":0},"bank":"nonsense"}},"has_init":true}]}`))
	assert.Error(t, err)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode(strings.NewReader(`{not json`))
	assert.Error(t, err)
}

func TestDecodeFusedCompareOnBranchCond(t *testing.T) {
	const doc = `{"functions":[{"name":"f","blocks":[{"id":0,"insts":[
		{"op":"branch_cond","true_target":1,"false_target":2,
		 "fused_compare":{"op":"lt","lhs":{"kind":"temp","temp":1},"rhs":{"kind":"temp","temp":2}}}
	]}]}]}`
	mod, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)

	inst := mod.Functions[0].Blocks[0].Insts[0]
	require.NotNil(t, inst.FusedCompare)
	assert.Equal(t, ir.Lt, inst.FusedCompare.Op)
	assert.Equal(t, ir.TempID(1), inst.FusedCompare.Lhs.Temp)
	assert.Equal(t, 1, inst.TrueTarget)
	assert.Equal(t, 2, inst.FalseTarget)
}

func TestDecodeEmptyValueKindDefaultsToUndef(t *testing.T) {
	v, err := convertValue(wireValue{})
	require.NoError(t, err)
	assert.Equal(t, ir.Undef, v)
}
