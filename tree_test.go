package servicex_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/centraunit/servicex"
	"github.com/centraunit/servicex/mock"
)

type TreeTestSuite struct {
	suite.Suite
	c    *servicex.Container
	tree *servicex.Tree
}

func (s *TreeTestSuite) SetupTest() {
	s.c = servicex.New(servicex.WithLogger(quietLogger()))
	s.Require().NoError(servicex.Bind(s.c, mock.NewCounter, servicex.Transient))
	s.Require().NoError(servicex.Bind(s.c, mock.NewEngine))
	s.tree = servicex.NewTree(s.c)
}

func (s *TreeTestSuite) TearDownTest() {
	s.NoError(s.c.Shutdown(true))
}

func (s *TreeTestSuite) child(parent servicex.NodeID) servicex.NodeID {
	id, err := s.tree.NewChild(parent)
	s.Require().NoError(err)
	return id
}

func (s *TreeTestSuite) TestInheritance() {
	root := s.tree.NewRoot()
	child := s.child(root)
	grand := s.child(child)

	s.Run("DescendantsShareAncestorInstance", func() {
		fromRoot, err := servicex.ResolveWithInheritance[*mock.Counter](s.tree, root)
		s.Require().NoError(err)
		fromGrand, err := servicex.ResolveWithInheritance[*mock.Counter](s.tree, grand)
		s.Require().NoError(err)
		s.Same(fromRoot, fromGrand)

		found, ok := servicex.Lookup[*mock.Counter](s.tree, child)
		s.True(ok)
		s.Same(fromRoot, found)
	})

	s.Run("WithoutInheritance", func() {
		fromRoot, err := servicex.ResolveWithInheritance[*mock.Counter](s.tree, root)
		s.Require().NoError(err)
		own, err := servicex.ResolveWithInheritance[*mock.Counter](s.tree, child, servicex.WithInherit(false))
		s.Require().NoError(err)
		s.NotSame(fromRoot, own)

		again, err := servicex.ResolveWithInheritance[*mock.Counter](s.tree, child, servicex.WithInherit(false))
		s.Require().NoError(err)
		s.Same(own, again)

		fromGrand, err := servicex.ResolveWithInheritance[*mock.Counter](s.tree, grand)
		s.Require().NoError(err)
		s.Same(own, fromGrand, "the nearest ancestor wins")
	})

	s.Run("DeadInstanceIsReplaced", func() {
		own, err := servicex.ResolveWithInheritance[*mock.Counter](s.tree, child)
		s.Require().NoError(err)
		own.Destroy()

		fresh, err := servicex.ResolveWithInheritance[*mock.Counter](s.tree, child, servicex.WithInherit(false))
		s.Require().NoError(err)
		s.NotSame(own, fresh)
		s.False(fresh.Destroyed())
	})
}

func (s *TreeTestSuite) TestSingletonIsNotRegistered() {
	root := s.tree.NewRoot()

	engine, err := servicex.ResolveWithInheritance[*mock.Engine](s.tree, root, servicex.WithScope(servicex.Singleton))
	s.Require().NoError(err)
	singleton, err := servicex.Resolve[*mock.Engine](s.c)
	s.Require().NoError(err)
	s.Same(singleton, engine)

	_, ok := servicex.Lookup[*mock.Engine](s.tree, root)
	s.False(ok)
}

func (s *TreeTestSuite) TestRegisterAndLookup() {
	root := s.tree.NewRoot()
	child := s.child(root)

	counter, err := servicex.ResolveInScope[*mock.Counter](s.c, servicex.CustomScope("shared"))
	s.Require().NoError(err)
	s.Require().NoError(servicex.Register(s.tree, root, counter))

	found, ok := servicex.Lookup[*mock.Counter](s.tree, child)
	s.True(ok)
	s.Same(counter, found)

	var notFound *servicex.NodeNotFoundError
	s.True(errors.As(servicex.Register(s.tree, 999, counter), &notFound))
	_, ok = servicex.Lookup[*mock.Counter](s.tree, 999)
	s.False(ok)
}

func (s *TreeTestSuite) TestDestroyDetachesNode() {
	root := s.tree.NewRoot()
	child := s.child(root)
	grand := s.child(child)

	fromRoot, err := servicex.ResolveWithInheritance[*mock.Counter](s.tree, root)
	s.Require().NoError(err)

	s.Require().NoError(s.tree.Destroy(child))
	s.False(s.tree.Exists(child))
	s.Empty(s.tree.Children(root))
	_, hasParent := s.tree.Parent(grand)
	s.False(hasParent, "children of a destroyed node become roots")
	s.True(s.tree.Exists(grand))

	_, err = servicex.ResolveWithInheritance[*mock.Counter](s.tree, child)
	var notFound *servicex.NodeNotFoundError
	s.True(errors.As(err, &notFound))
	s.True(errors.As(s.tree.Destroy(child), &notFound))

	fromGrand, err := servicex.ResolveWithInheritance[*mock.Counter](s.tree, grand)
	s.Require().NoError(err)
	s.NotSame(fromRoot, fromGrand)
	s.False(fromRoot.Destroyed(), "destroying a node does not shut its instances down")
}

func (s *TreeTestSuite) TestLinking() {
	a := s.tree.NewRoot()
	b := s.child(a)
	c := s.tree.NewRoot()

	var invalid *servicex.InvalidTreeError
	s.True(errors.As(s.tree.AddChild(c, b), &invalid), "b already has a parent")
	s.True(errors.As(s.tree.AddChild(b, a), &invalid), "a cycle")

	var notFound *servicex.NodeNotFoundError
	s.True(errors.As(s.tree.AddChild(999, c), &notFound))
	s.True(errors.As(s.tree.RemoveChild(c, b), &notFound), "b is not under c")

	s.Require().NoError(s.tree.RemoveChild(a, b))
	s.Require().NoError(s.tree.AddChild(c, b))
	parent, ok := s.tree.Parent(b)
	s.True(ok)
	s.Equal(c, parent)
	s.Equal([]servicex.NodeID{b}, s.tree.Children(c))
	s.Empty(s.tree.Children(a))
}

func (s *TreeTestSuite) TestWatchNotifiesOneLevel() {
	root := s.tree.NewRoot()
	calls := 0
	stop, err := s.tree.Watch(root, func() { calls++ })
	s.Require().NoError(err)

	child := s.child(root)
	s.Equal(1, calls)

	grand := s.child(child)
	s.Equal(1, calls, "grandchildren are not watched")

	_, err = servicex.ResolveWithInheritance[*mock.Counter](s.tree, child)
	s.Require().NoError(err)
	s.Equal(2, calls)

	_, err = servicex.ResolveWithInheritance[*mock.Counter](s.tree, grand, servicex.WithInherit(false))
	s.Require().NoError(err)
	s.Equal(2, calls)

	stop()
	s.Require().NoError(s.tree.Destroy(child))
	s.Equal(2, calls)

	_, err = s.tree.Watch(child, func() {})
	var notFound *servicex.NodeNotFoundError
	s.True(errors.As(err, &notFound))
}

func (s *TreeTestSuite) TestQueryList() {
	root := s.tree.NewRoot()
	_, err := servicex.ResolveWithInheritance[*mock.Counter](s.tree, root)
	s.Require().NoError(err)

	q, err := servicex.Query[*mock.Counter](s.tree, root)
	s.Require().NoError(err)
	defer q.Close()
	s.Empty(q.Items(), "the root's own instance is not a descendant")

	var published [][]*mock.Counter
	q.Subscribe(func(items []*mock.Counter) { published = append(published, items) })

	left := s.child(root)
	s.Empty(published, "an empty node changes nothing")

	a, err := servicex.ResolveWithInheritance[*mock.Counter](s.tree, left, servicex.WithInherit(false))
	s.Require().NoError(err)
	s.Equal([]*mock.Counter{a}, q.Items())

	deep := s.child(left)
	b, err := servicex.ResolveWithInheritance[*mock.Counter](s.tree, deep, servicex.WithInherit(false))
	s.Require().NoError(err)
	s.Equal([]*mock.Counter{a, b}, q.Items())
	s.Len(published, 2)

	s.Require().NoError(s.tree.Destroy(left))
	s.Empty(q.Items())
	s.Len(published, 3)

	q.Close()
	other := s.child(root)
	_, err = servicex.ResolveWithInheritance[*mock.Counter](s.tree, other, servicex.WithInherit(false))
	s.Require().NoError(err)
	s.Len(published, 3)

	_, err = servicex.Query[*mock.Counter](s.tree, 999)
	var notFound *servicex.NodeNotFoundError
	s.True(errors.As(err, &notFound))
}

func TestTreeSuite(t *testing.T) {
	suite.Run(t, new(TreeTestSuite))
}
