package agent

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"lineage/internal/hierarchy/models"
	id "lineage/pkg/domain"
	"lineage/pkg/platform/sentinel"
)

type AgentStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *AgentStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestAgentStoreSuite(t *testing.T) {
	suite.Run(t, new(AgentStoreSuite))
}

func (s *AgentStoreSuite) newRoot(name string) *models.AgentAccount {
	root, err := models.NewRootAgent(id.WalletID(uuid.New()), name, "coordination", time.Now().UTC())
	s.Require().NoError(err)
	return root
}

func (s *AgentStoreSuite) newChild(parent *models.AgentAccount, name string) *models.AgentAccount {
	child, err := models.NewChildAgent(id.WalletID(uuid.New()), parent, name, "research", 2500, time.Now().UTC())
	s.Require().NoError(err)
	return child
}

func (s *AgentStoreSuite) TestCreateAndFind() {
	s.Run("creates and finds an agent by address", func() {
		root := s.newRoot("root")
		s.Require().NoError(s.store.Create(s.ctx, root))

		found, err := s.store.FindByAddress(s.ctx, root.Address)
		s.Require().NoError(err)
		s.Equal(root.Wallet, found.Wallet)
		s.Equal(root.Name, found.Name)
	})

	s.Run("returns ErrNotFound for unknown address", func() {
		_, err := s.store.FindByAddress(s.ctx, id.AgentAddress(id.WalletID(uuid.New())))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects a duplicate address", func() {
		root := s.newRoot("first")
		s.Require().NoError(s.store.Create(s.ctx, root))

		dup := *root
		dup.Name = "second"
		err := s.store.Create(s.ctx, &dup)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("locked read behaves like a plain read", func() {
		root := s.newRoot("locked")
		s.Require().NoError(s.store.Create(s.ctx, root))

		found, err := s.store.FindByAddressForUpdate(s.ctx, root.Address)
		s.Require().NoError(err)
		s.Equal(root.Address, found.Address)
	})
}

func (s *AgentStoreSuite) TestUpdate() {
	s.Run("persists counter and status changes", func() {
		root := s.newRoot("root")
		s.Require().NoError(s.store.Create(s.ctx, root))

		root.TotalEarned = 1000
		root.ChildrenCount = 2
		root.IsActive = false
		s.Require().NoError(s.store.Update(s.ctx, root))

		found, err := s.store.FindByAddress(s.ctx, root.Address)
		s.Require().NoError(err)
		s.Equal(uint64(1000), found.TotalEarned)
		s.Equal(uint64(2), found.ChildrenCount)
		s.False(found.IsActive)
	})

	s.Run("returns ErrNotFound for unknown agent", func() {
		err := s.store.Update(s.ctx, s.newRoot("ghost"))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *AgentStoreSuite) TestListChildren() {
	s.Run("lists only direct children in creation order", func() {
		root := s.newRoot("root")
		s.Require().NoError(s.store.Create(s.ctx, root))

		c1 := s.newChild(root, "alpha")
		c1.CreatedAt = time.Now().UTC()
		s.Require().NoError(s.store.Create(s.ctx, c1))

		c2 := s.newChild(root, "beta")
		c2.CreatedAt = c1.CreatedAt.Add(time.Second)
		s.Require().NoError(s.store.Create(s.ctx, c2))

		grandchild := s.newChild(c1, "gamma")
		s.Require().NoError(s.store.Create(s.ctx, grandchild))

		children, err := s.store.ListChildren(s.ctx, root.Address)
		s.Require().NoError(err)
		s.Require().Len(children, 2)
		s.Equal("alpha", children[0].Name)
		s.Equal("beta", children[1].Name)
	})

	s.Run("returns empty for a childless agent", func() {
		leaf := s.newRoot("leaf")
		s.Require().NoError(s.store.Create(s.ctx, leaf))

		children, err := s.store.ListChildren(s.ctx, leaf.Address)
		s.Require().NoError(err)
		s.Empty(children)
	})
}

func (s *AgentStoreSuite) TestCopySemantics() {
	root := s.newRoot("root")
	s.Require().NoError(s.store.Create(s.ctx, root))

	// Mutating the loaded copy must not leak into the store.
	found, err := s.store.FindByAddress(s.ctx, root.Address)
	s.Require().NoError(err)
	found.TotalEarned = 99

	again, err := s.store.FindByAddress(s.ctx, root.Address)
	s.Require().NoError(err)
	s.Zero(again.TotalEarned)
}
