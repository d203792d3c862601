package servicex_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/centraunit/servicex"
	"github.com/centraunit/servicex/mock"
)

type ConcurrentTestSuite struct {
	suite.Suite
	c *servicex.Container
}

func (s *ConcurrentTestSuite) SetupTest() {
	s.c = servicex.New(servicex.WithLogger(quietLogger()))
}

func (s *ConcurrentTestSuite) TearDownTest() {
	s.NoError(s.c.Shutdown(true))
}

func (s *ConcurrentTestSuite) TestConcurrentSingletonResolution() {
	s.Require().NoError(servicex.Bind(s.c, mock.NewCounter))

	const workers = 32
	var wg sync.WaitGroup
	results := make(chan *mock.Counter, workers)
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counter, err := servicex.Resolve[*mock.Counter](s.c)
			if err != nil {
				errs <- err
				return
			}
			results <- counter
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		s.NoError(err)
	}
	var first *mock.Counter
	for counter := range results {
		if first == nil {
			first = counter
		}
		s.Same(first, counter)
		s.False(counter.Destroyed())
	}
}

func (s *ConcurrentTestSuite) TestConcurrentChainsDoNotCollide() {
	s.Require().NoError(servicex.Bind(s.c, mock.NewEngine, servicex.Transient))
	s.Require().NoError(servicex.Bind(s.c, mock.NewCar, servicex.Transient))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := servicex.Resolve[*mock.Car](s.c); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err, "a chain on one goroutine must not look circular to another")
	}
}

func (s *ConcurrentTestSuite) TestConcurrentDispatch() {
	s.Require().NoError(servicex.Bind(s.c, mock.NewCounter))
	counter, err := servicex.Resolve[*mock.Counter](s.c)
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				s.NoError(counter.Dispatch("increase", 1))
			}
		}()
	}
	wg.Wait()

	s.Equal(100, counter.State().Count)
}

func TestConcurrentSuite(t *testing.T) {
	suite.Run(t, new(ConcurrentTestSuite))
}
