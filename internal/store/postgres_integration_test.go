// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/host"
	"github.com/holomush/holoauth/internal/store"
	"github.com/holomush/holoauth/pkg/errutil"
)

var (
	container *postgres.PostgresContainer
	connStr   string
	pool      *pgxpool.Pool
)

var _ = BeforeSuite(func() {
	ctx := context.Background()

	var err error
	container, err = postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("holoauth_test"),
		postgres.WithUsername("holoauth"),
		postgres.WithPassword("holoauth"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err = container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	pool, err = store.Connect(ctx, connStr, store.ConnectOptions{})
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if pool != nil {
		pool.Close()
	}
	if container != nil {
		_ = container.Terminate(context.Background())
	}
})

func migrateTo(up bool) {
	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = migrator.Close() }()
	if up {
		Expect(migrator.Up()).To(Succeed())
	} else {
		Expect(migrator.Down()).To(Succeed())
	}
}

var _ = Describe("Migrator", func() {
	It("walks the full migration cycle", func() {
		migrateTo(false)

		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = migrator.Close() }()

		version, dirty, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
		Expect(dirty).To(BeFalse())

		Expect(migrator.Up()).To(Succeed())
		latest, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(latest).To(BeNumerically(">", 0))

		pending, err := migrator.PendingMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())

		Expect(migrator.Steps(-1)).To(Succeed())
		version, _, err = migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(latest - 1))

		Expect(migrator.Steps(1)).To(Succeed())
		Expect(migrator.Down()).To(Succeed())
		version, _, err = migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
	})
})

var _ = Describe("PostgresStateStore", func() {
	var ps *store.PostgresStateStore

	BeforeEach(func() {
		migrateTo(false)
		migrateTo(true)
		ps = store.NewPostgresStateStore(pool)
	})

	It("reports absent state on a fresh schema", func() {
		_, err := ps.Load(context.Background())
		Expect(err).To(MatchError(store.ErrStateAbsent))
	})

	It("reports a missing schema", func() {
		migrateTo(false)
		_, err := ps.Load(context.Background())
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("does not exist"))
		Expect(errutil.Code(err)).To(Equal("STATE_SCHEMA_MISSING"))
	})

	It("round-trips a live service snapshot", func() {
		ctx := context.Background()
		state, err := store.Open(ctx, ps)
		Expect(err).NotTo(HaveOccurred())

		dir := host.NewDirectory()
		clock := host.NewManualClock(100)
		svc, err := auth.NewService(state, dir, clock)
		Expect(err).NotTo(HaveOccurred())
		intake, err := host.NewIntake(dir, svc)
		Expect(err).NotTo(HaveOccurred())

		for _, id := range []string{"alice", "bob"} {
			_, err := intake.Join(ctx, id)
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(svc.SetPassword(ctx, "alice", "secret", "")).To(BeTrue())
		token := svc.Authenticate(ctx, "alice", "secret").Token
		Expect(ps.Save(ctx, svc.Snapshot())).To(Succeed())

		By("saving again after a relogin, which moves alice's token value")
		clock.Advance(1)
		Expect(svc.Authenticate(ctx, "alice", "secret").OK()).To(BeTrue())
		Expect(ps.Save(ctx, svc.Snapshot())).To(Succeed())

		loaded, err := ps.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Check()).To(Succeed())
		Expect(loaded.Accounts).To(HaveLen(2))
		Expect(loaded.Accounts["alice"].Role).To(Equal(auth.RoleAdmin))
		Expect(loaded.Settings.Bootstrapped).To(BeTrue())
		Expect(loaded.Settings.LastTick).To(Equal(auth.Tick(101)))
		Expect(loaded.Tokens).NotTo(HaveKey(token))
	})

	It("deletes accounts missing from the snapshot", func() {
		ctx := context.Background()
		two, err := auth.Restore([]*auth.Account{
			{Identity: "alice", Role: auth.RoleAdmin},
			{Identity: "bob", Role: auth.RolePlayer},
		}, auth.Settings{})
		Expect(err).NotTo(HaveOccurred())
		Expect(ps.Save(ctx, two)).To(Succeed())

		one, err := auth.Restore([]*auth.Account{{Identity: "alice", Role: auth.RoleAdmin}}, auth.Settings{})
		Expect(err).NotTo(HaveOccurred())
		Expect(ps.Save(ctx, one)).To(Succeed())

		loaded, err := ps.Load(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Accounts).To(HaveLen(1))
		Expect(loaded.Accounts).To(HaveKey("alice"))
	})
})
