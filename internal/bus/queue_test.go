package bus

import (
	"context"
	"testing"

	"github.com/rxtech-lab/tickerwatch/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type QueueTestSuite struct {
	suite.Suite
}

func TestQueueSuite(t *testing.T) {
	suite.Run(t, new(QueueTestSuite))
}

func (suite *QueueTestSuite) TestDefaults() {
	q := NewQueue[int]()

	suite.Equal(DefaultQueueCapacity, cap(q.ch))
	suite.Equal(OverflowBlock, q.policy)
}

func (suite *QueueTestSuite) TestInvalidOptionsAreIgnored() {
	q := NewQueue[int](WithCapacity(0), WithPolicy("sideways"))

	suite.Equal(DefaultQueueCapacity, cap(q.ch))
	suite.Equal(OverflowBlock, q.policy)
}

func (suite *QueueTestSuite) TestRejectWhenFull() {
	q := NewQueue[int](WithCapacity(2), WithPolicy(OverflowReject))

	suite.NoError(q.Push(context.Background(), 1))
	suite.NoError(q.Push(context.Background(), 2))

	err := q.Push(context.Background(), 3)
	suite.ErrorIs(err, ErrQueueFull)
	suite.Equal(2, q.Len())
}

func (suite *QueueTestSuite) TestDropOldestKeepsNewest() {
	drops := 0
	q := NewQueue[int](WithCapacity(2), WithPolicy(OverflowDropOldest), WithOnDrop(func() { drops++ }))

	for i := 1; i <= 5; i++ {
		suite.NoError(q.Push(context.Background(), i))
	}

	suite.Equal(uint64(3), q.Dropped())
	suite.Equal(3, drops)
	suite.Equal(4, <-q.C())
	suite.Equal(5, <-q.C())
}

func (suite *QueueTestSuite) TestCloseDrainsThenEnds() {
	q := NewQueue[string](WithCapacity(4))

	suite.NoError(q.Push(context.Background(), "a"))
	suite.NoError(q.Push(context.Background(), "b"))
	q.Close()
	q.Close()

	suite.True(errors.HasCode(q.Push(context.Background(), "c"), errors.ErrCodeQueueClosed))

	var got []string
	for v := range q.C() {
		got = append(got, v)
	}
	suite.Equal([]string{"a", "b"}, got)
}

func (suite *QueueTestSuite) TestPolicyValidity() {
	suite.True(OverflowBlock.IsValid())
	suite.True(OverflowDropOldest.IsValid())
	suite.True(OverflowReject.IsValid())
	suite.False(OverflowPolicy("").IsValid())
}
