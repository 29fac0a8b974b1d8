package fault

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	sentinel := New(Conflict, "product is sold out")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "plain error is internal", err: errors.New("boom"), want: Internal},
		{name: "sentinel", err: sentinel, want: Conflict},
		{name: "wrapped sentinel", err: fmt.Errorf("place order: %w", sentinel), want: Conflict},
		{name: "deadline exceeded", err: errors.Wrap(context.DeadlineExceeded, "query"), want: Unavailable},
		{name: "unavailable wrapper", err: Unavailablef(errors.New("dial tcp"), "connect"), want: Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError_Is(t *testing.T) {
	sentinel := New(InvalidInput, "invalid or expired promo code")

	require.ErrorIs(t, New(InvalidInput, "invalid or expired promo code"), sentinel)
	require.NotErrorIs(t, New(Conflict, "invalid or expired promo code"), sentinel)
	require.ErrorIs(t, fmt.Errorf("validate: %w", sentinel), sentinel)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "order not found", Message(New(NotFound, "order not found")))
	assert.Equal(t, "internal error", Message(errors.New("pq: relation does not exist")))
	assert.Equal(t, ErrUnavailable.Message, Message(context.DeadlineExceeded))

	cause := errors.New("connection reset")
	err := Unavailablef(cause, "fetch product")
	assert.Equal(t, "fetch product", Message(err))
	assert.ErrorIs(t, err, cause)
}

func TestBounded(t *testing.T) {
	v, err := Bounded(context.Background(), time.Second, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = Bounded(context.Background(), time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, Unavailable, KindOf(err))

	_, err = Bounded(context.Background(), 0, func(context.Context) (string, error) {
		return "", New(NotFound, "order not found")
	})
	assert.Equal(t, NotFound, KindOf(err))
}
