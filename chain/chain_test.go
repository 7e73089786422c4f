package chain_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowloom/actions/chain"
	"github.com/flowloom/actions/core"
	"github.com/flowloom/actions/examples/actions"
	"github.com/flowloom/actions/exec"
)

func newExec() *exec.Exec {
	return exec.New(core.DefaultConfig(), nil)
}

// scenario 2: Chain.chain([Add, {Multiply, {amount: 3}}, Subtract], {value: 5}) ⇒ ok({value: 15, amount: 3})
func TestRun_ThreadsResultsThroughSteps(t *testing.T) {
	e := newExec()
	items := []interface{}{
		actions.Add{},
		core.ActionParams{Action: actions.Multiply{}, Params: core.Params{"amount": 3}},
		actions.Subtract{},
	}

	out := chain.Run(context.Background(), e, items, core.Params{"value": 5}, chain.Options{})
	require.True(t, out.OK)
	assert.Equal(t, 15, out.Result["value"])
	assert.Equal(t, 3, out.Result["amount"])
}

// scenario 5: interrupt_check halts the chain, returning the partial params.
func TestRun_InterruptCheckHaltsChain(t *testing.T) {
	e := newExec()
	items := []interface{}{actions.Add{}, actions.Multiply{}}

	out := chain.Run(context.Background(), e, items, core.Params{"value": 5, "amount": 1}, chain.Options{
		InterruptCheck: func() bool { return true },
	})

	require.True(t, out.OK)
	assert.True(t, chain.IsInterrupted(out))
	assert.Equal(t, 5, out.Result["value"])
	assert.Equal(t, 1, out.Result["amount"])
}

func TestRun_FirstFailureHaltsChain(t *testing.T) {
	e := newExec()
	items := []interface{}{
		actions.Multiply{}, // missing required "amount" -> ValidationError
		actions.Add{},
	}

	out := chain.Run(context.Background(), e, items, core.Params{"value": 5}, chain.Options{})
	require.False(t, out.OK)
	assert.Equal(t, core.ValidationError, out.Err.Kind)
}

func TestRun_NilParamsIsInvalidInput(t *testing.T) {
	e := newExec()
	out := chain.Run(context.Background(), e, []interface{}{actions.Add{}}, nil, chain.Options{})
	require.False(t, out.OK)
	assert.Equal(t, core.InvalidInput, out.Err.Kind)
}

func TestRunAsync_AwaitReturnsFinalResult(t *testing.T) {
	e := newExec()
	items := []interface{}{actions.Add{}}

	ref, owner, err := chain.RunAsync(context.Background(), e, items, core.Params{"value": 1, "amount": 2}, chain.Options{})
	require.Nil(t, err)

	out := chain.Await(context.Background(), ref, owner, 0, e.Config)
	require.True(t, out.OK)
	assert.Equal(t, 3, out.Result["value"])
}
