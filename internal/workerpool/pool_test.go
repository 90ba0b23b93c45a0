package workerpool_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/textrelay/internal/workerpool"
)

var _ = Describe("Pool", func() {
	var pool *workerpool.Pool

	AfterEach(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})

	It("never runs more tasks than its size", func() {
		pool = workerpool.New(workerpool.Config{Size: 3})

		var running, peak atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 12; i++ {
			wg.Add(1)
			Expect(pool.Submit(context.Background(), func(context.Context) {
				defer wg.Done()
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
			})).To(Succeed())
		}
		wg.Wait()

		Expect(peak.Load()).To(BeEquivalentTo(3))
	})

	It("queues excess work instead of blocking or rejecting", func() {
		pool = workerpool.New(workerpool.Config{Size: 1})
		release := make(chan struct{})

		start := time.Now()
		for i := 0; i < 5; i++ {
			Expect(pool.Submit(context.Background(), func(context.Context) { <-release })).To(Succeed())
		}
		Expect(time.Since(start)).To(BeNumerically("<", 100*time.Millisecond))

		Eventually(pool.Stats).Should(Equal(workerpool.Stats{Size: 1, Running: 1, Queued: 4}))
		close(release)
		Eventually(pool.Stats).Should(Equal(workerpool.Stats{Size: 1, Running: 0, Queued: 0}))
	})

	It("runs queued tasks in submission order", func() {
		pool = workerpool.New(workerpool.Config{Size: 1})
		gate := make(chan struct{})
		Expect(pool.Submit(context.Background(), func(context.Context) { <-gate })).To(Succeed())

		var mu sync.Mutex
		var order []int
		for i := 0; i < 10; i++ {
			i := i
			Expect(pool.Submit(context.Background(), func(context.Context) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
			})).To(Succeed())
		}
		close(gate)

		Eventually(func() []int {
			mu.Lock()
			defer mu.Unlock()
			return append([]int(nil), order...)
		}).Should(Equal([]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}))
	})

	It("passes the submitted context to the task", func() {
		pool = workerpool.New(workerpool.Config{Size: 1})
		type key struct{}
		ctx := context.WithValue(context.Background(), key{}, "v")

		got := make(chan any, 1)
		Expect(pool.Submit(ctx, func(ctx context.Context) { got <- ctx.Value(key{}) })).To(Succeed())
		Eventually(got).Should(Receive(Equal("v")))
	})

	It("keeps working after a task panics", func() {
		pool = workerpool.New(workerpool.Config{Size: 1})
		Expect(pool.Submit(context.Background(), func(context.Context) { panic("boom") })).To(Succeed())

		ran := make(chan struct{})
		Expect(pool.Submit(context.Background(), func(context.Context) { close(ran) })).To(Succeed())
		Eventually(ran).Should(BeClosed())
	})

	It("treats a non-positive size as one worker", func() {
		pool = workerpool.New(workerpool.Config{Size: 0})
		Expect(pool.Stats().Size).To(Equal(1))
	})

	Describe("Shutdown", func() {
		It("drains queued tasks before returning", func() {
			pool = workerpool.New(workerpool.Config{Size: 1})
			var done atomic.Int32
			for i := 0; i < 5; i++ {
				Expect(pool.Submit(context.Background(), func(context.Context) {
					time.Sleep(5 * time.Millisecond)
					done.Add(1)
				})).To(Succeed())
			}

			Expect(pool.Shutdown(context.Background())).To(Succeed())
			Expect(done.Load()).To(BeEquivalentTo(5))
		})

		It("rejects submissions after shutdown", func() {
			pool = workerpool.New(workerpool.Config{Size: 1})
			Expect(pool.Shutdown(context.Background())).To(Succeed())

			err := pool.Submit(context.Background(), func(context.Context) {})
			Expect(err).To(MatchError(workerpool.ErrPoolClosed))
		})

		It("gives up when the context ends first", func() {
			pool = workerpool.New(workerpool.Config{Size: 1})
			release := make(chan struct{})
			Expect(pool.Submit(context.Background(), func(context.Context) { <-release })).To(Succeed())

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			err := pool.Shutdown(ctx)
			Expect(err).To(MatchError(context.DeadlineExceeded))

			close(release)
		})
	})
})
