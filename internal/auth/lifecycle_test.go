// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/host"
)

var _ = Describe("Account lifecycle", func() {
	var (
		ctx   context.Context
		dir   *host.Directory
		clock *host.ManualClock
		svc   *auth.Service
	)

	seen := func(identity string) *auth.Account {
		dir.Seed(identity)
		acct, err := svc.HandleIdentitySeen(ctx, identity)
		Expect(err).NotTo(HaveOccurred())
		return acct
	}

	BeforeEach(func() {
		ctx = context.Background()
		dir = host.NewDirectory()
		clock = host.NewManualClock(1)

		var err error
		svc, err = auth.NewService(auth.NewState(), dir, clock)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("first administrator", func() {
		It("walks from bootstrap to a role grant", func() {
			alice := seen("alice")
			Expect(alice.Role).To(Equal(auth.RoleAdmin))

			By("reporting the unset credential with the sentinel")
			Expect(svc.Authenticate(ctx, "alice", "secret").Wire()).To(Equal(auth.NoCredentialSentinel))

			By("setting the first password with any old password")
			Expect(svc.SetPassword(ctx, "alice", "secret", "anything")).To(BeTrue())

			By("authenticating")
			res := svc.Authenticate(ctx, "alice", "secret")
			Expect(res.Outcome).To(Equal(auth.OutcomeToken))
			t1 := res.Token
			Expect(svc.Validate(ctx, t1)).To(BeTrue())

			By("rejecting a wrong password without touching the live token")
			Expect(svc.Authenticate(ctx, "alice", "wrong").Outcome).To(Equal(auth.OutcomeFailed))
			Expect(svc.Validate(ctx, t1)).To(BeTrue())

			By("refusing a grant to an identity with no account")
			ok, err := svc.SetRole(ctx, t1, "bob", auth.RoleAdmin)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			By("granting once the target exists")
			bob := seen("bob")
			Expect(bob.Role).To(Equal(auth.RolePlayer))
			ok, err = svc.SetRole(ctx, t1, "bob", auth.RoleAdmin)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			admin, err := svc.IsAdmin(ctx, "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(admin).To(BeTrue())
		})
	})

	Describe("token expiry", func() {
		It("expires exactly at the TTL boundary", func() {
			seen("alice")
			Expect(svc.SetPassword(ctx, "alice", "pw", "")).To(BeTrue())
			token := svc.Authenticate(ctx, "alice", "pw").Token

			clock.Advance(auth.TokenTTL - 1)
			Expect(svc.Validate(ctx, token)).To(BeTrue())

			clock.Advance(1)
			Expect(svc.Validate(ctx, token)).To(BeFalse())
		})
	})

	Describe("round trip", func() {
		DescribeTable("a successful authenticate yields a token that validates",
			func(identity, password string) {
				seen(identity)
				Expect(svc.SetPassword(ctx, identity, password, "")).To(BeTrue())

				res := svc.Authenticate(ctx, identity, password)
				Expect(res.OK()).To(BeTrue())
				Expect(svc.Validate(ctx, res.Token)).To(BeTrue())
			},
			Entry("simple", "alice", "secret"),
			Entry("empty password", "bob", ""),
			Entry("colon in password", "carol", "a:b:c"),
			Entry("unicode identity", "zoë", "pässwörd"),
		)
	})

	Describe("contract violations", func() {
		It("rejects missing required arguments", func() {
			_, err := svc.SetRole(ctx, "", "bob", auth.RoleAdmin)
			Expect(errors.Is(err, auth.ErrContractViolation)).To(BeTrue())

			_, err = svc.IsAdmin(ctx, "")
			Expect(errors.Is(err, auth.ErrContractViolation)).To(BeTrue())
		})
	})
})
