package postgres_test

import (
	"context"
	"testing"

	collectionDatamodel "github.com/frahmantamala/hse-inspection/internal/core/datamodel/collection"
	"github.com/frahmantamala/hse-inspection/internal/store"
	storePostgres "github.com/frahmantamala/hse-inspection/internal/store/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestStorePostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Store Postgres Suite")
}

var _ = Describe("Collection Repository", func() {
	var (
		ctx     context.Context
		backend store.Backend
	)

	BeforeEach(func() {
		ctx = context.Background()
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(db.AutoMigrate(&collectionDatamodel.Document{})).To(Succeed())

		backend = storePostgres.NewCollectionRepository(db)
	})

	It("reports a missing collection", func() {
		_, err := backend.Load(ctx, "users")
		Expect(err).To(MatchError(store.ErrCollectionMissing))
	})

	It("upserts on save", func() {
		Expect(backend.Save(ctx, "users", []byte(`[1]`))).To(Succeed())
		Expect(backend.Save(ctx, "users", []byte(`[1,2]`))).To(Succeed())

		raw, err := backend.Load(ctx, "users")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(Equal(`[1,2]`))
	})

	It("removes collections", func() {
		Expect(backend.Save(ctx, "auditLogs", []byte(`[]`))).To(Succeed())
		Expect(backend.Remove(ctx, "auditLogs")).To(Succeed())
		Expect(backend.Remove(ctx, "auditLogs")).To(MatchError(store.ErrCollectionMissing))
	})

	It("pings the underlying connection", func() {
		Expect(backend.Ping(ctx)).To(Succeed())
	})

	It("backs a store end to end", func() {
		s := store.New(backend)
		_, err := store.Update(ctx, s, "inspections", []string{}, func(cur []string) ([]string, error) {
			return append(cur, "a"), nil
		})
		Expect(err).NotTo(HaveOccurred())

		got, err := store.Read(ctx, s, "inspections", []string{})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]string{"a"}))
	})
})
