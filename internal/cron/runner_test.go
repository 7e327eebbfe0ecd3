package cronrunner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sweeperFunc func(context.Context) (int, error)

func (f sweeperFunc) SweepExpired(ctx context.Context) (int, error) { return f(ctx) }

func TestAdd_RejectsBadSchedule(t *testing.T) {
	r := New(zap.NewNop(), context.Background())
	_, err := r.Add("every tuesday", func(context.Context) {})
	assert.Error(t, err)

	_, err = r.Add("0 */5 * * * *", func(context.Context) {})
	require.NoError(t, err)
}

func TestSweepOverrides_CallsSweeper(t *testing.T) {
	calls := 0
	job := SweepOverrides(sweeperFunc(func(context.Context) (int, error) {
		calls++
		if calls == 2 {
			return 0, errors.New("db down")
		}
		return 3, nil
	}), zap.NewNop())

	job(context.Background())
	job(context.Background())
	assert.Equal(t, 2, calls)
}
