package entities_test

import (
	"errors"
	"strconv"
	"testing"

	"github.com/parac-dev/parac-runtime/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y int
}

func TestSuccess_KeepsValue(t *testing.T) {
	t.Run("int32", func(t *testing.T) {
		for _, v := range []int32{0, 1, -1, 1 << 30} {
			r := entities.Success(v)
			assert.False(t, r.Base.IsException)
			assert.False(t, r.Base.IsNull)
			assert.Equal(t, v, r.ActualValue)
			assert.True(t, r.IsOk())
		}
	})

	t.Run("string", func(t *testing.T) {
		r := entities.Success("hello")
		assert.False(t, r.Base.IsException)
		assert.Equal(t, "hello", r.ActualValue)
	})

	t.Run("struct", func(t *testing.T) {
		r := entities.Success(point{X: 1, Y: 2})
		assert.False(t, r.Base.IsException)
		assert.Equal(t, point{X: 1, Y: 2}, r.ActualValue)
		assert.Empty(t, r.Base.Exception)
		assert.Empty(t, r.Base.Traceback)
	})
}

func TestFailure_KeepsMessage(t *testing.T) {
	for _, msg := range []string{"division by zero", "io error", "x"} {
		r := entities.Failure[int32](msg)
		assert.True(t, r.Base.IsException)
		assert.Equal(t, msg, r.Base.Exception)
		assert.Empty(t, r.Base.Traceback)
		assert.False(t, r.IsOk())
		assert.False(t, r.IsNull())
		assert.Equal(t, entities.StatePropagate, r.State())
	}

	r := entities.Failure[string]("boom", "main:3", "helper:10")
	assert.Equal(t, "main:3\nhelper:10", r.Base.Traceback)
}

func TestFailure_EmptyMessageGetsDefault(t *testing.T) {
	r := entities.Failure[int32]("")
	assert.True(t, r.Base.IsException)
	assert.Equal(t, entities.DefaultExceptionMessage, r.Base.Exception)
}

func TestNullSuccess_IndependentOfType(t *testing.T) {
	checks := []entities.BaseReturn{
		entities.NullSuccess[int32]().Base,
		entities.NullSuccess[string]().Base,
		entities.NullSuccess[point]().Base,
		entities.NullSuccess[[]byte]().Base,
	}
	for _, b := range checks {
		assert.False(t, b.IsException)
		assert.True(t, b.IsNull)
		assert.Equal(t, entities.StateNull, b.State())
	}
}

func TestUnwrap(t *testing.T) {
	v, err := entities.Success(int32(7)).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)

	_, err = entities.NullSuccess[int32]().Unwrap()
	assert.ErrorIs(t, err, entities.ErrNullValue)

	_, err = entities.Failure[int32]("bad input", "parse:4").Unwrap()
	require.Error(t, err)
	var exc *entities.Exception
	require.True(t, errors.As(err, &exc))
	assert.Equal(t, "bad input", exc.Message)
	assert.Equal(t, []string{"parse:4"}, exc.Frames())
}

func TestPropagate(t *testing.T) {
	failed := entities.Failure[int32]("io error", "read:1")

	forwarded := entities.Propagate[string](failed)
	assert.True(t, forwarded.Base.IsException)
	assert.Equal(t, "io error", forwarded.Base.Exception)
	assert.Equal(t, "read:1", forwarded.Base.Traceback)

	misuse := entities.Propagate[string](entities.Success(int32(1)))
	assert.True(t, misuse.Base.IsException)
	assert.Contains(t, misuse.Base.Exception, "did not raise")
}

func TestReraise_AppendsFrameOnly(t *testing.T) {
	r := entities.Reraise[int64](entities.Failure[int32]("io error", "read:1"), "load:9")
	assert.Equal(t, "io error", r.Base.Exception)
	assert.Equal(t, "read:1\nload:9", r.Base.Traceback)

	r = entities.Reraise[int64](entities.Failure[int32]("io error"), "load:9")
	assert.Equal(t, "load:9", r.Base.Traceback)
}

func TestMap(t *testing.T) {
	itoa := func(v int32) string { return strconv.Itoa(int(v)) }

	assert.Equal(t, "42", entities.Map(entities.Success(int32(42)), itoa).ActualValue)
	assert.True(t, entities.Map(entities.NullSuccess[int32](), itoa).IsNull())

	failed := entities.Map(entities.Failure[int32]("nope"), itoa)
	assert.True(t, failed.IsException())
	assert.Equal(t, "nope", failed.Base.Exception)
}

func TestFromError(t *testing.T) {
	r := entities.FromError[int32](errors.New("disk full"))
	assert.True(t, r.IsException())
	assert.Equal(t, "disk full", r.Base.Exception)

	wrapped := entities.FromError[int32](
		&entities.Exception{Message: "io error", Traceback: "read:1"},
	)
	assert.Equal(t, "io error", wrapped.Base.Exception)
	assert.Equal(t, "read:1", wrapped.Base.Traceback)

	assert.True(t, entities.FromError[int32](nil).IsNull())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "value", entities.StateValue.String())
	assert.Equal(t, "null", entities.StateNull.String())
	assert.Equal(t, "propagate", entities.StatePropagate.String())
	assert.Equal(t, "invalid", entities.State(9).String())
}
