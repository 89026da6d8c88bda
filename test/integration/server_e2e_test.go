// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

//go:build integration

package integration

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/novamush/novamush/internal/access"
	"github.com/novamush/novamush/internal/account"
	accountpg "github.com/novamush/novamush/internal/account/postgres"
	"github.com/novamush/novamush/internal/attr"
	"github.com/novamush/novamush/internal/channel"
	"github.com/novamush/novamush/internal/command"
	"github.com/novamush/novamush/internal/command/handlers"
	"github.com/novamush/novamush/internal/seed"
	"github.com/novamush/novamush/internal/session"
	"github.com/novamush/novamush/internal/telnet"
	"github.com/novamush/novamush/internal/world"
)

// atriumID pins the seeded room so character locations survive server
// restarts, which rebuild the in-memory world from the manifest.
const atriumID = "01JDNVA4000000000000000000"

// testManifest returns the built-in world plus a seeded account whose
// single character lets specs enter the game immediately.
func testManifest() *seed.Manifest {
	m := seed.DefaultManifest()
	m.Accounts = []seed.Account{{
		Key:        "Overseer",
		Password:   "aurora-gate-9",
		Lockstring: "examine:all()",
		Characters: []seed.Character{{
			Key:      "Vex",
			Location: "The Atrium",
		}},
	}}
	return m
}

// gameServer is one in-process server boot over the suite's database.
type gameServer struct {
	srv    *telnet.Server
	cancel context.CancelFunc
	done   chan error
}

// bootGameServer assembles the stack the way the serve command does:
// seed the world, then wire repositories, dispatcher, lifecycle, and
// the telnet listener on an ephemeral port.
func bootGameServer(attrs attr.Store, manifest *seed.Manifest) *gameServer {
	ctx := context.Background()

	rooms := world.NewService()
	engine := access.NewEngine()
	accountsRepo := accountpg.NewAccountRepository(env.pool)
	charsRepo := accountpg.NewCharacterRepository(env.pool)
	hasher := account.NewArgon2idHasher()

	loader := seed.NewLoader(accountsRepo, charsRepo, hasher, rooms, engine)
	_, err := loader.Apply(ctx, manifest)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	start, err := rooms.DefaultRoom(ctx)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	svc := account.NewService(accountsRepo, charsRepo, hasher,
		account.WithStartingLocation(start.ID))

	registry := session.NewRegistry()
	events := channel.NewBroadcaster()
	catalog := command.NewCatalog()
	handlers.RegisterAll(catalog)
	dispatcher := command.NewDispatcher(catalog, &command.Services{
		World:      rooms,
		Sessions:   registry,
		Accounts:   accountsRepo,
		Characters: charsRepo,
		Attrs:      attrs,
		Locks:      engine,
		Events:     events,
	})
	lifecycle := session.NewLifecycle(registry, accountsRepo, attrs, events,
		session.WithGuestReaper(svc))

	srv, err := telnet.NewServer("127.0.0.1:0", telnet.Deps{
		Dispatcher: dispatcher,
		Registry:   registry,
		Lifecycle:  lifecycle,
		Accounts:   svc,
		Events:     events,
	})
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	serverCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(serverCtx) }()

	EventuallyWithOffset(1, srv.Addr, 5*time.Second).ShouldNot(BeEmpty())
	return &gameServer{srv: srv, cancel: cancel, done: done}
}

func (g *gameServer) stop() {
	g.cancel()
	EventuallyWithOffset(1, g.done, 10*time.Second).Should(Receive(BeNil()))
}

// gameClient drives one telnet connection line by line.
type gameClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func dialGame(addr string) *gameClient {
	conn, err := net.Dial("tcp", addr)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return &gameClient{conn: conn, r: bufio.NewReader(conn)}
}

func (c *gameClient) send(line string) {
	_, err := c.conn.Write([]byte(line + "\n"))
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
}

// expect reads until the wanted substring arrives. The accumulated
// transcript goes into the failure message so a miss shows what the
// server actually said.
func (c *gameClient) expect(want string) {
	deadline := time.Now().Add(5 * time.Second)
	ExpectWithOffset(1, c.conn.SetReadDeadline(deadline)).To(Succeed())

	var transcript strings.Builder
	for {
		line, err := c.r.ReadString('\n')
		transcript.WriteString(line)
		if strings.Contains(transcript.String(), want) {
			return
		}
		if err != nil {
			Fail("expected "+want+" in transcript:\n"+transcript.String(), 1)
		}
	}
}

func (c *gameClient) close() {
	_ = c.conn.Close()
}

var _ = Describe("Server round trip", func() {
	var (
		attrs    *attr.Bolt
		attrsDir string
	)

	BeforeEach(func() {
		cleanupDatabase(env.ctx, env.pool)

		var err error
		attrsDir, err = os.MkdirTemp("", "novamush-e2e-*")
		Expect(err).NotTo(HaveOccurred())
		attrs, err = attr.OpenBolt(filepath.Join(attrsDir, "attrs.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(attrs.Close()).To(Succeed())
		Expect(os.RemoveAll(attrsDir)).To(Succeed())
	})

	It("walks a new player from the connect screen to a bound account", func() {
		game := bootGameServer(attrs, testManifest())
		defer game.stop()

		client := dialGame(game.srv.Addr())
		defer client.close()

		client.expect("Welcome to NovaMUSH!")
		client.expect("connect <name> <password>")

		client.send("create Brand hunter-two-2")
		client.expect("Account created. Use connect <name> <password> to log in.")

		// The name is taken now, in any casing.
		client.send("create brand other-pass-3")
		client.expect("That name is already taken.")

		client.send("connect Brand wrong-pass")
		client.expect("Invalid name or password.")

		client.send("connect Brand hunter-two-2")
		client.expect("Successful login. Welcome, Brand!")
		client.expect("You have no characters yet.")

		client.send("who")
		client.expect("1 player connected.")

		client.send("quit")
		client.expect("Goodbye! Disconnecting...")

		// The account row is durable.
		var count int
		err := env.pool.QueryRow(env.ctx,
			"SELECT COUNT(*) FROM accounts WHERE LOWER(key) = 'brand'").Scan(&count)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(1))
	})

	It("lands a seeded character in the starting room", func() {
		game := bootGameServer(attrs, testManifest())
		defer game.stop()

		client := dialGame(game.srv.Addr())
		defer client.close()

		client.expect("Welcome to NovaMUSH!")
		client.send("connect Overseer aurora-gate-9")
		client.expect("Successful login. Welcome, Overseer!")
		// The account's only character is puppeted automatically.
		client.expect("You become Vex.")
		client.expect("The Atrium")

		client.send("look")
		client.expect("A vaulted hall of pale stone")

		client.send("say The lights are on.")
		client.expect(`You say, "The lights are on."`)

		client.send("quit")
		client.expect("Goodbye! Disconnecting...")
	})

	It("carries speech and poses between sessions in the same room", func() {
		game := bootGameServer(attrs, testManifest())
		defer game.stop()

		vex := dialGame(game.srv.Addr())
		defer vex.close()
		vex.expect("Welcome to NovaMUSH!")
		vex.send("connect Overseer aurora-gate-9")
		vex.expect("You become Vex.")

		guest := dialGame(game.srv.Addr())
		defer guest.close()
		guest.expect("Welcome to NovaMUSH!")
		guest.send("guest")
		guest.expect("You become Guest1.")
		guest.expect("The Atrium")

		// Guest arrival reaches the seated character.
		vex.expect("Guest1 has entered the game.")

		vex.send("say Hello, traveler.")
		vex.expect(`You say, "Hello, traveler."`)
		guest.expect(`Vex says, "Hello, traveler."`)

		guest.send(":waves back")
		vex.expect("Guest1 waves back")

		guest.send("who")
		guest.expect("2 players connected.")

		vex.send("quit")
		vex.expect("Goodbye! Disconnecting...")
		guest.send("quit")
		guest.expect("Goodbye! Disconnecting...")
	})

	It("denies admin commands to unprivileged players", func() {
		game := bootGameServer(attrs, testManifest())
		defer game.stop()

		client := dialGame(game.srv.Addr())
		defer client.close()
		client.expect("Welcome to NovaMUSH!")
		client.send("connect Overseer aurora-gate-9")
		client.expect("You become Vex.")

		client.send("@wall All hands report in")
		client.expect("You don't have permission to do that.")
	})

	It("keeps accounts and puppets across a server restart", func() {
		first := bootGameServer(attrs, testManifest())

		client := dialGame(first.srv.Addr())
		client.expect("Welcome to NovaMUSH!")
		client.send("connect Overseer aurora-gate-9")
		client.expect("You become Vex.")
		client.send("quit")
		client.expect("Goodbye! Disconnecting...")
		client.close()

		first.stop()

		// A second boot reuses the database and attribute store. The
		// seeded entities are verified, not recreated, and the saved
		// puppet is restored on login.
		second := bootGameServer(attrs, testManifest())
		defer second.stop()

		client = dialGame(second.srv.Addr())
		defer client.close()
		client.expect("Welcome to NovaMUSH!")
		client.send("connect Overseer aurora-gate-9")
		client.expect("You become Vex.")
		client.expect("The Atrium")

		var accounts int
		err := env.pool.QueryRow(env.ctx, "SELECT COUNT(*) FROM accounts").Scan(&accounts)
		Expect(err).NotTo(HaveOccurred())
		Expect(accounts).To(Equal(1), "restart must not duplicate seeded accounts")
	})

	It("destroys guest accounts after their final disconnect", func() {
		game := bootGameServer(attrs, testManifest())
		defer game.stop()

		guest := dialGame(game.srv.Addr())
		guest.expect("Welcome to NovaMUSH!")
		guest.send("guest")
		guest.expect("You become Guest1.")
		guest.send("quit")
		guest.expect("Goodbye! Disconnecting...")
		guest.close()

		guestRows := func() (int, error) {
			var n int
			err := env.pool.QueryRow(env.ctx,
				"SELECT COUNT(*) FROM accounts WHERE key LIKE 'Guest%'").Scan(&n)
			return n, err
		}
		Eventually(guestRows, 10*time.Second).Should(Equal(0))

		// The freed slot is handed out again.
		next := dialGame(game.srv.Addr())
		defer next.close()
		next.expect("Welcome to NovaMUSH!")
		next.send("guest")
		next.expect("You become Guest1.")
	})
})

var _ = Describe("Seed loader against the database", func() {
	BeforeEach(func() {
		cleanupDatabase(env.ctx, env.pool)
	})

	It("creates on first apply and verifies on the second", func() {
		ctx := context.Background()
		rooms := world.NewService()
		loader := seed.NewLoader(
			accountpg.NewAccountRepository(env.pool),
			accountpg.NewCharacterRepository(env.pool),
			account.NewArgon2idHasher(),
			rooms,
			access.NewEngine(),
		)

		res, err := loader.Apply(ctx, testManifest())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.RoomsCreated).To(Equal(1))
		Expect(res.AccountsCreated).To(Equal(1))
		Expect(res.CharactersCreated).To(Equal(1))

		res, err = loader.Apply(ctx, testManifest())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.RoomsCreated).To(BeZero())
		Expect(res.AccountsCreated).To(BeZero())
		Expect(res.CharactersCreated).To(BeZero())
		Expect(res.AccountsSkipped).To(Equal(1))
		Expect(res.CharactersSkipped).To(Equal(1))

		var count int
		err = env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count)
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(1))
	})

	It("resolves character locations to the manifest room", func() {
		ctx := context.Background()
		loader := seed.NewLoader(
			accountpg.NewAccountRepository(env.pool),
			accountpg.NewCharacterRepository(env.pool),
			account.NewArgon2idHasher(),
			world.NewService(),
			access.NewEngine(),
		)
		_, err := loader.Apply(ctx, testManifest())
		Expect(err).NotTo(HaveOccurred())

		var locationID string
		err = env.pool.QueryRow(ctx,
			"SELECT location_id FROM characters WHERE key = 'Vex'").Scan(&locationID)
		Expect(err).NotTo(HaveOccurred())
		Expect(locationID).To(Equal(atriumID))
	})

	It("hashes manifest passwords at load time", func() {
		ctx := context.Background()
		loader := seed.NewLoader(
			accountpg.NewAccountRepository(env.pool),
			accountpg.NewCharacterRepository(env.pool),
			account.NewArgon2idHasher(),
			world.NewService(),
			access.NewEngine(),
		)
		_, err := loader.Apply(ctx, testManifest())
		Expect(err).NotTo(HaveOccurred())

		var hash string
		err = env.pool.QueryRow(ctx,
			"SELECT password_hash FROM accounts WHERE key = 'Overseer'").Scan(&hash)
		Expect(err).NotTo(HaveOccurred())
		Expect(hash).To(HavePrefix("$argon2id$"))
		Expect(hash).NotTo(ContainSubstring("aurora-gate-9"))
	})
})
