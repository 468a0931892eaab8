package pin_test

import (
	"fmt"
	"testing"

	"github.com/frahmantamala/hse-inspection/internal"
	"github.com/frahmantamala/hse-inspection/internal/pin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestPIN(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "PIN Suite")
}

var _ = Describe("PIN", func() {
	Describe("Generate", func() {
		It("never returns a weak pin across 10,000 draws", func() {
			for i := 0; i < 10000; i++ {
				p, err := pin.Generate()
				Expect(err).NotTo(HaveOccurred())
				Expect(pin.WellFormed(p)).To(BeTrue(), p)
				Expect(pin.Denylisted(p)).To(BeFalse(), p)
				Expect(pin.Sequential(p)).To(BeFalse(), p)

				distinct := map[rune]bool{}
				for _, r := range p {
					distinct[r] = true
				}
				Expect(len(distinct)).To(BeNumerically(">=", 3), p)
			}
		})
	})

	Describe("Sequential", func() {
		It("detects ascending and descending runs", func() {
			Expect(pin.Sequential("6789")).To(BeTrue())
			Expect(pin.Sequential("9876")).To(BeTrue())
			Expect(pin.Sequential("1243")).To(BeFalse())
			Expect(pin.Sequential("8901")).To(BeFalse())
		})
	})

	Describe("Validate", func() {
		DescribeTable("rejects bad input with a reason",
			func(candidate, reason string) {
				err := pin.Validate(candidate)
				Expect(err).To(HaveOccurred())
				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.StatusCode).To(Equal(400))
				Expect(appErr.Error()).To(ContainSubstring(reason))
			},
			Entry("empty", "", "required"),
			Entry("too short", "123", "exactly 4"),
			Entry("too long", "12345", "exactly 4"),
			Entry("letters", "12a4", "only digits"),
			Entry("denylisted repeat", "7777", "too common"),
			Entry("denylisted run", "1234", "too common"),
		)

		It("accepts a well formed pin", func() {
			Expect(pin.Validate("5821")).To(Succeed())
		})

		It("lets CheckFormat pass denylisted values", func() {
			Expect(pin.CheckFormat("1234")).To(Succeed())
		})
	})

	Describe("Digest", func() {
		It("is deterministic", func() {
			Expect(pin.Digest("5821")).To(Equal(pin.Digest("5821")))
			Expect(pin.Digest("5821")).To(HaveLen(16))
		})

		It("has no collisions across the four digit space", func() {
			seen := make(map[string]string, 10000)
			for i := 0; i < 10000; i++ {
				p := fmt.Sprintf("%04d", i)
				d := pin.Digest(p)
				other, dup := seen[d]
				Expect(dup).To(BeFalse(), "%s collides with %s", p, other)
				seen[d] = p
			}
		})
	})

	Describe("Hasher", func() {
		It("verifies bcrypt hashes", func() {
			h, err := pin.NewHasher(internal.PINHashBcrypt, bcrypt.MinCost)
			Expect(err).NotTo(HaveOccurred())

			stored, err := h.Hash("5821")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).NotTo(ContainSubstring("5821"))
			Expect(h.Verify(stored, "5821")).To(BeTrue())
			Expect(h.Verify(stored, "5822")).To(BeFalse())
			Expect(h.Verify("", "5821")).To(BeFalse())
		})

		It("verifies digest hashes", func() {
			h, err := pin.NewHasher(internal.PINHashDigest, 0)
			Expect(err).NotTo(HaveOccurred())

			stored, err := h.Hash("5821")
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Verify(stored, "5821")).To(BeTrue())
			Expect(h.Verify(stored, "5822")).To(BeFalse())
			Expect(h.Verify(pin.Digest("5821"), "5821")).To(BeFalse())
		})

		It("rejects unknown schemes", func() {
			_, err := pin.NewHasher("md5", 0)
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("Index", func() {
	It("is disabled without a key", func() {
		idx := pin.NewIndex(nil)
		Expect(idx).To(BeNil())
		Expect(idx.Lookup("4821")).To(BeEmpty())
		_, indexed := idx.Match("anything", "4821")
		Expect(indexed).To(BeFalse())
	})

	It("matches only the PIN it was derived from", func() {
		idx := pin.NewIndex([]byte("lookup-key"))
		lookup := idx.Lookup("4821")
		Expect(lookup).NotTo(ContainSubstring("4821"))

		matched, indexed := idx.Match(lookup, "4821")
		Expect(indexed).To(BeTrue())
		Expect(matched).To(BeTrue())

		matched, indexed = idx.Match(lookup, "4822")
		Expect(indexed).To(BeTrue())
		Expect(matched).To(BeFalse())
	})

	It("does not claim lookups written under another key", func() {
		lookup := pin.NewIndex([]byte("old-key")).Lookup("4821")
		_, indexed := pin.NewIndex([]byte("new-key")).Match(lookup, "4821")
		Expect(indexed).To(BeFalse())
	})
})
