package asyncref_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowloom/actions/asyncref"
	"github.com/flowloom/actions/core"
)

func TestStartAwait_Success(t *testing.T) {
	ref, owner := asyncref.Start(context.Background(), func(ctx context.Context) core.Outcome {
		time.Sleep(5 * time.Millisecond)
		return core.Success(core.Params{"done": true})
	}, asyncref.Options{})

	out := ref.Await(owner, context.Background(), time.Second)
	assert.True(t, out.OK)
	assert.Equal(t, true, out.Result["done"])
}

func TestAwait_WrongOwnerFails(t *testing.T) {
	ref, _ := asyncref.Start(context.Background(), func(ctx context.Context) core.Outcome {
		return core.Success(nil)
	}, asyncref.Options{})

	_, impostor := asyncref.Start(context.Background(), func(ctx context.Context) core.Outcome {
		return core.Success(nil)
	}, asyncref.Options{})

	out := ref.Await(impostor, context.Background(), time.Second)
	require.False(t, out.OK)
	assert.Equal(t, core.InvalidInput, out.Err.Kind)
}

func TestAwait_TimesOut(t *testing.T) {
	ref, owner := asyncref.Start(context.Background(), func(ctx context.Context) core.Outcome {
		<-ctx.Done()
		return core.Failure(core.NewError(core.ExecutionFailure, "cancelled", nil))
	}, asyncref.Options{})

	out := ref.Await(owner, context.Background(), 10*time.Millisecond)
	require.False(t, out.OK)
	assert.Equal(t, core.TimeoutError, out.Err.Kind)
}

func TestAwait_TimesOut_CancelsChildContext(t *testing.T) {
	childCancelled := make(chan struct{})
	ref, owner := asyncref.Start(context.Background(), func(ctx context.Context) core.Outcome {
		<-ctx.Done()
		close(childCancelled)
		return core.Failure(core.NewError(core.ExecutionFailure, "cancelled", nil))
	}, asyncref.Options{})

	out := ref.Await(owner, context.Background(), 10*time.Millisecond)
	require.False(t, out.OK)
	assert.Equal(t, core.TimeoutError, out.Err.Kind)

	select {
	case <-childCancelled:
	case <-time.After(time.Second):
		t.Fatal("timed-out Await did not cancel the task's context; goroutine leaked")
	}
}

func TestCancel_SignalsRunningTask(t *testing.T) {
	ref, owner := asyncref.Start(context.Background(), func(ctx context.Context) core.Outcome {
		<-ctx.Done()
		return core.Failure(core.NewError(core.ExecutionFailure, "cancelled", nil))
	}, asyncref.Options{})

	err := ref.Cancel(owner)
	require.NoError(t, err)

	out := ref.Await(owner, context.Background(), time.Second)
	assert.False(t, out.OK)
}

func TestCoerce_PlainMapping(t *testing.T) {
	ref, _ := asyncref.Start(context.Background(), func(ctx context.Context) core.Outcome {
		return core.Success(nil)
	}, asyncref.Options{})

	mapping := map[string]interface{}{"ref": ref}
	got, err := asyncref.Coerce(mapping)
	require.Nil(t, err)
	assert.Same(t, ref, got)
}

func TestCoerce_RejectsUnknownShape(t *testing.T) {
	_, err := asyncref.Coerce(42)
	require.NotNil(t, err)
	assert.Equal(t, core.InvalidInput, err.Kind)
}
