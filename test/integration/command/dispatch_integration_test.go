// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

//go:build integration

package command_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/samber/oops"

	"github.com/novamush/novamush/internal/access"
	"github.com/novamush/novamush/internal/account"
	"github.com/novamush/novamush/internal/attr"
	"github.com/novamush/novamush/internal/channel"
	"github.com/novamush/novamush/internal/command"
	"github.com/novamush/novamush/internal/session"
	"github.com/novamush/novamush/internal/world"
)

// newBoundSession registers a session bound to a fresh account. Output
// is discarded; the specs assert on dispatch errors.
func newBoundSession(registry *session.Registry, key string) (*session.Session, *account.Account) {
	acct, err := account.NewAccount(key, "integration-hash")
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	sess := session.New("test:0")
	sess.SendFunc = func(session.Payload) {}
	registry.Add(sess)
	ExpectWithOffset(1, registry.Bind(sess, acct)).To(Succeed())
	return sess, acct
}

// testServices builds real in-memory services for the dispatcher.
func testServices(registry *session.Registry) *command.Services {
	return &command.Services{
		World:      world.NewService(),
		Sessions:   registry,
		Accounts:   account.NewMemoryRepository(),
		Characters: account.NewMemoryCharacterRepository(),
		Attrs:      attr.NewMemory(),
		Locks:      access.NewEngine(),
		Events:     channel.NewBroadcaster(),
	}
}

// countingCommand registers an account-scope command that counts its
// executions.
func countingCommand(set *command.CmdSet, key string, counter *int) {
	err := set.Add(command.Descriptor{
		Key:        key,
		ArgPattern: command.WordBoundary(),
		Scope:      command.ScopeAccount,
		Category:   "Test",
		Run: func(_ context.Context, _ *command.Invocation) error {
			(*counter)++
			return nil
		},
		Help:  "Counting command",
		Usage: key,
	})
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
}

var _ = Describe("Rate limited dispatch", func() {
	var (
		registry   *session.Registry
		catalog    *command.Catalog
		limiter    *command.RateLimiter
		dispatcher *command.Dispatcher
		executed   int
	)

	BeforeEach(func() {
		executed = 0
		registry = session.NewRegistry()

		set := command.NewCmdSet("test-core", 0)
		countingCommand(set, "ping", &executed)
		catalog = command.NewCatalog()
		catalog.AddAccountSet(set)

		// Small burst, fast refill, so exhaustion and recovery both
		// happen inside the spec timeout.
		limiter = command.NewRateLimiter(command.RateLimitConfig{
			Burst:     3,
			PerSecond: 50,
		})
		dispatcher = command.NewDispatcher(catalog, testServices(registry),
			command.WithRateLimiter(limiter))
	})

	AfterEach(func() {
		limiter.Close()
	})

	It("allows commands up to the burst capacity", func() {
		sess, _ := newBoundSession(registry, "Burster")
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			Expect(dispatcher.Dispatch(ctx, sess, "ping")).To(Succeed())
		}
		Expect(executed).To(Equal(3))
	})

	It("rejects the command after the burst with a cooldown", func() {
		sess, _ := newBoundSession(registry, "Spammer")
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			Expect(dispatcher.Dispatch(ctx, sess, "ping")).To(Succeed())
		}

		err := dispatcher.Dispatch(ctx, sess, "ping")
		Expect(err).To(HaveOccurred())

		oopsErr, ok := oops.AsOops(err)
		Expect(ok).To(BeTrue())
		Expect(oopsErr.Code()).To(Equal(command.CodeRateLimited))
		cooldown, ok := oopsErr.Context()["cooldown_ms"].(int64)
		Expect(ok).To(BeTrue())
		Expect(cooldown).To(BeNumerically(">", 0))

		Expect(command.PlayerMessage(err)).To(ContainSubstring("slow down"))
		Expect(executed).To(Equal(3), "the rejected command must not run")
	})

	It("lets the session resume once tokens refill", func() {
		sess, _ := newBoundSession(registry, "Patient")
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			Expect(dispatcher.Dispatch(ctx, sess, "ping")).To(Succeed())
		}
		Expect(dispatcher.Dispatch(ctx, sess, "ping")).NotTo(Succeed())

		// At 50 tokens per second a new one arrives within 20ms.
		Eventually(func() error {
			return dispatcher.Dispatch(ctx, sess, "ping")
		}, time.Second, 5*time.Millisecond).Should(Succeed())
	})

	It("limits sessions independently", func() {
		first, _ := newBoundSession(registry, "FirstAcct")
		second, _ := newBoundSession(registry, "SecondAcct")
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			Expect(dispatcher.Dispatch(ctx, first, "ping")).To(Succeed())
		}
		Expect(dispatcher.Dispatch(ctx, first, "ping")).NotTo(Succeed())

		// The second session's bucket is untouched.
		Expect(dispatcher.Dispatch(ctx, second, "ping")).To(Succeed())
	})

	It("exempts superusers from the limiter", func() {
		sess, acct := newBoundSession(registry, "Root")
		acct.Superuser = true
		ctx := context.Background()

		for i := 0; i < 10; i++ {
			Expect(dispatcher.Dispatch(ctx, sess, "ping")).To(Succeed())
		}
		Expect(executed).To(Equal(10))
	})

	It("starts fresh after the bucket is forgotten", func() {
		sess, _ := newBoundSession(registry, "Comeback")
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			Expect(dispatcher.Dispatch(ctx, sess, "ping")).To(Succeed())
		}
		Expect(dispatcher.Dispatch(ctx, sess, "ping")).NotTo(Succeed())

		limiter.Forget(sess.ID)
		Expect(dispatcher.Dispatch(ctx, sess, "ping")).To(Succeed())
	})
})

var _ = Describe("Attached command sets", func() {
	var (
		registry   *session.Registry
		catalog    *command.Catalog
		dispatcher *command.Dispatcher
	)

	BeforeEach(func() {
		registry = session.NewRegistry()
		catalog = command.NewCatalog()
		dispatcher = command.NewDispatcher(catalog, testServices(registry))
	})

	// puppet binds a fresh character to the session so character-scope
	// sets become active.
	puppet := func(sess *session.Session, acct *account.Account, key string) *account.Character {
		char, err := account.NewCharacter(&acct.ID, key)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		_, err = registry.Puppet(sess, char)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return char
	}

	It("routes commands from a set attached to the puppeted character", func() {
		sess, acct := newBoundSession(registry, "Setsmith")
		char := puppet(sess, acct, "Tinker")
		ctx := context.Background()

		var waved int
		gadgets := command.NewCmdSet("gadgets", 5)
		Expect(gadgets.Add(command.Descriptor{
			Key:        "wave",
			ArgPattern: command.WordBoundary(),
			Category:   "Test",
			Run: func(_ context.Context, _ *command.Invocation) error {
				waved++
				return nil
			},
			Help:  "Wave a gadget",
			Usage: "wave",
		})).To(Succeed())

		// Unknown before the set is attached.
		err := dispatcher.Dispatch(ctx, sess, "wave")
		oopsErr, ok := oops.AsOops(err)
		Expect(ok).To(BeTrue())
		Expect(oopsErr.Code()).To(Equal(command.CodeUnknownCommand))

		catalog.Attach(char.ID, gadgets)
		Expect(dispatcher.Dispatch(ctx, sess, "wave")).To(Succeed())
		Expect(waved).To(Equal(1))

		// Detaching removes the command surface again.
		Expect(catalog.Detach(char.ID, "gadgets")).To(BeTrue())
		err = dispatcher.Dispatch(ctx, sess, "wave")
		oopsErr, ok = oops.AsOops(err)
		Expect(ok).To(BeTrue())
		Expect(oopsErr.Code()).To(Equal(command.CodeUnknownCommand))
	})

	It("resolves name collisions by set priority", func() {
		sess, acct := newBoundSession(registry, "Collider")
		char := puppet(sess, acct, "Echo")
		ctx := context.Background()

		var winner string
		lowSet := command.NewCmdSet("low", 0)
		Expect(lowSet.Add(command.Descriptor{
			Key:        "speak",
			ArgPattern: command.WordBoundary(),
			Scope:      command.ScopeAccount,
			Category:   "Test",
			Run: func(_ context.Context, _ *command.Invocation) error {
				winner = "low"
				return nil
			},
			Help:  "Low priority speak",
			Usage: "speak",
		})).To(Succeed())

		highSet := command.NewCmdSet("high", 10)
		Expect(highSet.Add(command.Descriptor{
			Key:        "speak",
			ArgPattern: command.WordBoundary(),
			Category:   "Test",
			Run: func(_ context.Context, _ *command.Invocation) error {
				winner = "high"
				return nil
			},
			Help:  "High priority speak",
			Usage: "speak",
		})).To(Succeed())

		catalog.AddAccountSet(lowSet)
		catalog.Attach(char.ID, highSet)

		Expect(dispatcher.Dispatch(ctx, sess, "speak")).To(Succeed())
		Expect(winner).To(Equal("high"))
	})

	It("honors descriptor locks on attached commands", func() {
		sess, acct := newBoundSession(registry, "Locksmith")
		char, err := account.NewCharacter(&acct.ID, "Warden")
		Expect(err).NotTo(HaveOccurred())
		ctx := context.Background()

		var opened int
		vault := command.NewCmdSet("vault", 5)
		Expect(vault.Add(command.Descriptor{
			Key:        "unseal",
			ArgPattern: command.WordBoundary(),
			Lock:       "cmd:perm(builder)",
			Category:   "Test",
			Run: func(_ context.Context, _ *command.Invocation) error {
				opened++
				return nil
			},
			Help:  "Open the vault",
			Usage: "unseal",
		})).To(Succeed())
		catalog.Attach(char.ID, vault)

		_, err = registry.Puppet(sess, char)
		Expect(err).NotTo(HaveOccurred())

		// Without the permission the lock denies.
		err = dispatcher.Dispatch(ctx, sess, "unseal")
		oopsErr, ok := oops.AsOops(err)
		Expect(ok).To(BeTrue())
		Expect(oopsErr.Code()).To(Equal(command.CodePermissionDenied))
		Expect(command.PlayerMessage(err)).To(Equal("You don't have permission to do that."))
		Expect(opened).To(BeZero())

		// Granting the permission on the character passes the lock.
		char.Perms = []string{"builder"}
		Expect(dispatcher.Dispatch(ctx, sess, "unseal")).To(Succeed())
		Expect(opened).To(Equal(1))
	})
})
