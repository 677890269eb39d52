package ledger

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type RedisStoreTestSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	store  Store
}

func (s *RedisStoreTestSuite) SetupTest() {
	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.mr = mr

	s.client = redis.NewClient(&redis.Options{
		Addr: s.mr.Addr(),
	})

	store, err := NewRedisStore(&RedisStoreConfig{
		RedisClient: s.client,
	})
	s.Require().NoError(err)
	s.store = store
}

func (s *RedisStoreTestSuite) TearDownTest() {
	s.client.Close()
	s.mr.Close()
}

func TestRedisStoreTestSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreTestSuite))
}

func (s *RedisStoreTestSuite) TestSaveAndLoadBalance() {
	err := s.store.SaveBalance(context.Background(), "user-1", 1000)
	s.Require().NoError(err)

	balance, err := s.store.LoadBalance(context.Background(), "user-1")
	s.Require().NoError(err)
	s.Equal(1000, balance)

	err = s.store.SaveBalance(context.Background(), "user-1", 900)
	s.Require().NoError(err)

	balance, err = s.store.LoadBalance(context.Background(), "user-1")
	s.Require().NoError(err)
	s.Equal(900, balance)
}

func (s *RedisStoreTestSuite) TestLoadBalanceUnknownUser() {
	balance, err := s.store.LoadBalance(context.Background(), "never-seen")
	s.Require().NoError(err)
	s.Equal(0, balance)
}

func (s *RedisStoreTestSuite) TestLoadBalanceServerGone() {
	s.mr.Close()

	_, err := s.store.LoadBalance(context.Background(), "user-1")
	s.Error(err)
}

func (s *RedisStoreTestSuite) TestNewRedisStoreValidation() {
	_, err := NewRedisStore(nil)
	s.Error(err)

	_, err = NewRedisStore(&RedisStoreConfig{})
	s.Error(err)
}
