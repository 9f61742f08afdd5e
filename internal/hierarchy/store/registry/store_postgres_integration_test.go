//go:build integration

package registry_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"lineage/internal/hierarchy/models"
	"lineage/internal/hierarchy/store/registry"
	id "lineage/pkg/domain"
	"lineage/pkg/platform/sentinel"
	"lineage/pkg/platform/tx"
	"lineage/pkg/testutil/containers"
)

type RegistryPostgresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *registry.Postgres
	runner   *tx.SQLRunner
}

func TestRegistryPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RegistryPostgresSuite))
}

func (s *RegistryPostgresSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = registry.NewPostgres(s.postgres.DB)
	s.runner = tx.NewSQLRunner(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *RegistryPostgresSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "registry"))
}

func (s *RegistryPostgresSuite) TestCreateAndGetRoundTrip() {
	ctx := context.Background()

	authority := id.NewWalletID()
	reg := models.NewRegistry(authority, time.Now().UTC())
	s.Require().NoError(s.store.Create(ctx, reg))

	found, err := s.store.Get(ctx)
	s.Require().NoError(err)
	s.Equal(id.RegistryAddress(), found.Address)
	s.Equal(authority, found.Authority)
	s.Zero(found.TotalAgents)
	s.Zero(found.TotalEarnings)
	s.Zero(found.TotalSpawns)
	s.WithinDuration(reg.CreatedAt, found.CreatedAt, time.Second)
}

func (s *RegistryPostgresSuite) TestGetBeforeInit() {
	_, err := s.store.Get(context.Background())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentInit verifies the singleton: many racing initializations
// leave exactly one registry row and one winner.
func (s *RegistryPostgresSuite) TestConcurrentInit() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			reg := models.NewRegistry(id.NewWalletID(), time.Now().UTC())
			err := s.store.Create(ctx, reg)
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}()
	}

	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one init should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should conflict")
}

func (s *RegistryPostgresSuite) TestUpdatePersistsCounters() {
	ctx := context.Background()

	reg := models.NewRegistry(id.NewWalletID(), time.Now().UTC())
	s.Require().NoError(s.store.Create(ctx, reg))

	s.Require().NoError(reg.ApplyAgentRegistered())
	s.Require().NoError(reg.ApplySpawn())
	s.Require().NoError(reg.ApplyEarning(1234))
	s.Require().NoError(s.store.Update(ctx, reg))

	found, err := s.store.Get(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(2), found.TotalAgents)
	s.Equal(uint64(1), found.TotalSpawns)
	s.Equal(uint64(1234), found.TotalEarnings)
}

// TestGetForUpdateSerializesEarnings runs racing earnings increments
// through the row lock. The final counter must account for every one.
func (s *RegistryPostgresSuite) TestGetForUpdateSerializesEarnings() {
	ctx := context.Background()

	reg := models.NewRegistry(id.NewWalletID(), time.Now().UTC())
	s.Require().NoError(s.store.Create(ctx, reg))

	const goroutines = 50
	var wg sync.WaitGroup
	var failures atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
				locked, err := s.store.GetForUpdate(txCtx)
				if err != nil {
					return err
				}
				if err := locked.ApplyEarning(1); err != nil {
					return err
				}
				return s.store.Update(txCtx, locked)
			})
			if err != nil {
				failures.Add(1)
			}
		}()
	}

	wg.Wait()

	s.Equal(int32(0), failures.Load(), "no transaction should fail")

	final, err := s.store.Get(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(goroutines), final.TotalEarnings)
}
