package async_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tracedesk/pkg/utils/async"
)

func TestGroup(t *testing.T) {
	var g async.Group
	var count atomic.Int32

	for i := 0; i < 5; i++ {
		g.Go(context.Background(), func(ctx context.Context) error {
			count.Add(1)
			return nil
		})
	}
	g.Go(context.Background(), func(ctx context.Context) error {
		count.Add(1)
		return errors.New("ignored")
	})
	g.Go(context.Background(), func(ctx context.Context) error {
		count.Add(1)
		panic("recovered")
	})

	g.Wait()
	gt.Value(t, count.Load()).Equal(int32(7))
}
