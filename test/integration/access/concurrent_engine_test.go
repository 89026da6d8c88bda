// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

//go:build integration

package access_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/novamush/novamush/internal/access"
)

func adminSubject(name string) access.Subject {
	return access.Subject{
		Ref:   access.RefAccount + "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		Name:  name,
		Perms: []string{access.PermAdmin},
	}
}

func playerSubject(name string) access.Subject {
	return access.Subject{
		Ref:   access.RefAccount + "01BX5ZZKBKACTAV9WEVGEMMVRZ",
		Name:  name,
		Perms: []string{access.PermPlayer},
	}
}

var _ = Describe("Concurrent lock evaluation", func() {
	var (
		engine *access.Engine
		ctx    context.Context
	)

	BeforeEach(func() {
		engine = access.NewEngine()
		ctx = context.Background()
	})

	It("returns consistent decisions from many goroutines", func() {
		const (
			workers    = 32
			iterations = 200
			lockstring = "cmd:perm(admin)"
		)

		var allowed, denied atomic.Int64
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < iterations; i++ {
					if w%2 == 0 {
						if engine.Check(ctx, adminSubject("staff"), lockstring, access.TypeCommand) {
							allowed.Add(1)
						}
					} else {
						if !engine.Check(ctx, playerSubject("player"), lockstring, access.TypeCommand) {
							denied.Add(1)
						}
					}
				}
			}(w)
		}
		wg.Wait()

		// Every admin check passes and every player check fails, with
		// no flips under contention on the compile cache.
		Expect(allowed.Load()).To(Equal(int64(workers / 2 * iterations)))
		Expect(denied.Load()).To(Equal(int64(workers / 2 * iterations)))
	})

	It("survives cache pressure past the eviction threshold", func() {
		// More distinct lockstrings than the compile cache holds, so
		// the wholesale reset happens mid-flight.
		const distinct = 1500

		locks := make([]string, distinct)
		for i := range locks {
			locks[i] = fmt.Sprintf("cmd:perm(clearance%d)", i)
		}

		var mismatches atomic.Int64
		var wg sync.WaitGroup
		const workers = 16
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(offset int) {
				defer wg.Done()
				for i := offset; i < distinct; i += workers {
					subject := access.Subject{
						Ref:   access.RefCharacter + "01ARZ3NDEKTSV4RRFFQ69G5FAV",
						Name:  "bearer",
						Perms: []string{fmt.Sprintf("clearance%d", i)},
					}
					if !engine.Check(ctx, subject, locks[i], access.TypeCommand) {
						mismatches.Add(1)
					}
					// The wrong clearance never passes, cached or not.
					if engine.Check(ctx, subject, locks[(i+1)%distinct], access.TypeCommand) {
						mismatches.Add(1)
					}
				}
			}(w)
		}
		wg.Wait()
		Expect(mismatches.Load()).To(BeZero())

		// Entries evicted by the reset recompile on next use.
		early := access.Subject{Ref: access.RefCharacter + "01BX5ZZKBKACTAV9WEVGEMMVRZ", Name: "bearer", Perms: []string{"clearance0"}}
		Expect(engine.Check(ctx, early, locks[0], access.TypeCommand)).To(BeTrue())
	})

	It("invokes custom functions once per evaluation", func() {
		var calls atomic.Int64
		err := engine.Register("tally", func(_ context.Context, _ access.Subject, _ []string) (bool, error) {
			calls.Add(1)
			return true, nil
		})
		Expect(err).NotTo(HaveOccurred())

		const (
			workers    = 16
			iterations = 100
		)
		var wg sync.WaitGroup
		var passes atomic.Int64
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < iterations; i++ {
					if engine.Check(ctx, playerSubject("caller"), "cmd:tally()", access.TypeCommand) {
						passes.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		// Compiled lock expressions are cached; function results are
		// not.
		Expect(passes.Load()).To(Equal(int64(workers * iterations)))
		Expect(calls.Load()).To(Equal(int64(workers * iterations)))
	})

	It("applies a replaced function to subsequent checks", func() {
		Expect(engine.Register("gate", func(_ context.Context, _ access.Subject, _ []string) (bool, error) {
			return false, nil
		})).To(Succeed())
		Expect(engine.Check(ctx, playerSubject("visitor"), "cmd:gate()", access.TypeCommand)).To(BeFalse())

		Expect(engine.Register("gate", func(_ context.Context, _ access.Subject, _ []string) (bool, error) {
			return true, nil
		})).To(Succeed())
		Expect(engine.Check(ctx, playerSubject("visitor"), "cmd:gate()", access.TypeCommand)).To(BeTrue())
	})

	It("lets superusers bypass failing locks under load", func() {
		root := access.Subject{
			Ref:       access.RefAccount + "01ARZ3NDEKTSV4RRFFQ69G5FAV",
			Name:      "root",
			Superuser: true,
		}

		var wg sync.WaitGroup
		var refused atomic.Int64
		for w := 0; w < 16; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if !engine.Check(ctx, root, "cmd:none()", access.TypeCommand) {
						refused.Add(1)
					}
				}
			}()
		}
		wg.Wait()
		Expect(refused.Load()).To(BeZero())
	})

	It("validates lockstrings while evaluation runs", func() {
		var wg sync.WaitGroup
		var validateErrs, falsePasses atomic.Int64

		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if err := engine.ValidateLockstring("examine:perm(helper)|id(account:01ARZ3NDEKTSV4RRFFQ69G5FAV)"); err != nil {
					validateErrs.Add(1)
				}
				// A malformed lockstring always reports.
				if err := engine.ValidateLockstring("examine:perm("); err == nil {
					validateErrs.Add(1)
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				// Malformed lockstrings deny rather than error out.
				if engine.Check(ctx, playerSubject("prober"), "examine:perm(", access.TypeExamine) {
					falsePasses.Add(1)
				}
			}
		}()
		wg.Wait()

		Expect(validateErrs.Load()).To(BeZero())
		Expect(falsePasses.Load()).To(BeZero())
	})
})
