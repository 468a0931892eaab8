package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/frahmantamala/hse-inspection/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Store Suite")
}

type counter struct {
	N int `json:"n"`
}

var _ = Describe("Store", func() {
	var (
		ctx context.Context
		s   *store.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		s = store.New(store.NewMemory())
	})

	It("returns the default for a missing collection", func() {
		got, err := store.Read(ctx, s, store.CollectionUsers, []string{"fallback"})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]string{"fallback"}))
	})

	It("does not persist when the update fails", func() {
		boom := errors.New("boom")
		_, err := store.Update(ctx, s, "c", counter{}, func(c counter) (counter, error) {
			c.N = 99
			return c, boom
		})
		Expect(err).To(MatchError(boom))

		got, err := store.Read(ctx, s, "c", counter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(got.N).To(Equal(0))
	})

	It("serializes concurrent updates without losing writes", func() {
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := store.Update(ctx, s, "c", counter{}, func(c counter) (counter, error) {
					c.N++
					return c, nil
				})
				Expect(err).NotTo(HaveOccurred())
			}()
		}
		wg.Wait()

		got, err := store.Read(ctx, s, "c", counter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(got.N).To(Equal(100))
	})

	It("removes collections and tolerates missing ones", func() {
		Expect(store.Write(ctx, s, "c", counter{N: 1})).To(Succeed())
		Expect(s.Remove(ctx, "c")).To(Succeed())
		Expect(s.Remove(ctx, "c")).To(Succeed())

		got, err := store.Read(ctx, s, "c", counter{N: -1})
		Expect(err).NotTo(HaveOccurred())
		Expect(got.N).To(Equal(-1))
	})

	It("surfaces corrupt payloads", func() {
		mem := store.NewMemory()
		Expect(mem.Save(ctx, "c", []byte("{not json"))).To(Succeed())
		_, err := store.Read(ctx, store.New(mem), "c", counter{})
		Expect(err).To(HaveOccurred())
	})
})
