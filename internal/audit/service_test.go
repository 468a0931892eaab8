package audit_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/frahmantamala/hse-inspection/internal/audit"
	"github.com/frahmantamala/hse-inspection/internal/store"
	"github.com/frahmantamala/hse-inspection/internal/transport"
	"github.com/frahmantamala/hse-inspection/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
)

func TestAudit(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Audit Suite")
}

func counterValue(reg *prometheus.Registry, name string) float64 {
	families, err := reg.Gather()
	Expect(err).NotTo(HaveOccurred())
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

var _ = Describe("Audit Service", func() {
	var (
		ctx     context.Context
		st      *store.Store
		service *audit.Service
		reg     *prometheus.Registry
		clock   time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = store.New(store.NewMemory())
		reg = prometheus.NewRegistry()
		clock = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		service = audit.NewService(audit.NewStoreRepository(st), logger.Discard(),
			audit.WithRegisterer(reg),
			audit.WithClock(func() time.Time { return clock }),
		)
	})

	It("stamps missing ids and timestamps but keeps given values", func() {
		given := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		Expect(service.LogEvent(ctx, audit.Entry{Action: "A"})).To(Succeed())
		Expect(service.LogEvent(ctx, audit.Entry{ID: "fixed", Action: "B", Timestamp: given})).To(Succeed())

		entries, err := service.ListEvents(ctx, audit.Filter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].Action).To(Equal("A"))
		Expect(entries[0].ID).To(HaveLen(26))
		Expect(entries[0].Timestamp).To(BeTemporally("==", clock))
		Expect(entries[1].ID).To(Equal("fixed"))
		Expect(entries[1].Timestamp).To(BeTemporally("==", given))
	})

	It("does not deduplicate", func() {
		e := audit.Entry{ID: "same", Action: "A", Timestamp: clock}
		Expect(service.LogEvent(ctx, e)).To(Succeed())
		Expect(service.LogEvent(ctx, e)).To(Succeed())

		entries, err := service.ListEvents(ctx, audit.Filter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))
	})

	It("keeps only the 50,000 most recent entries", func() {
		batch := make([]audit.Entry, 50001)
		for i := range batch {
			batch[i] = audit.Entry{
				Action:    "BULK",
				Details:   map[string]interface{}{"seq": i},
				Timestamp: clock.Add(time.Duration(i) * time.Millisecond),
			}
		}
		Expect(service.LogEvents(ctx, batch)).To(Succeed())

		entries, err := service.ListEvents(ctx, audit.Filter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(50000))
		Expect(entries[0].Details["seq"]).To(BeNumerically("==", 50000))
		Expect(entries[len(entries)-1].Details["seq"]).To(BeNumerically("==", 1))
		Expect(counterValue(reg, "hse_audit_records_trimmed_total")).To(BeNumerically("==", 1))
	})

	It("drops the oldest entry when a single append exceeds the cap", func() {
		small := audit.NewService(audit.NewStoreRepository(st), logger.Discard(),
			audit.WithCaps(audit.Caps{Entries: 3}))
		for i := 0; i < 4; i++ {
			Expect(small.LogEvent(ctx, audit.Entry{
				Action:    fmt.Sprintf("E%d", i),
				Timestamp: clock.Add(time.Duration(i) * time.Second),
			})).To(Succeed())
		}
		entries, err := small.ListEvents(ctx, audit.Filter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(3))
		Expect(entries[0].Action).To(Equal("E3"))
		Expect(entries[2].Action).To(Equal("E1"))
	})

	It("filters by action, user, time and limit", func() {
		Expect(service.LogEvents(ctx, []audit.Entry{
			{Action: audit.ActionLoginSuccess, PerformedBy: "u1", Timestamp: clock.Add(-2 * time.Hour)},
			{Action: audit.ActionLoginSuccess, PerformedBy: "u2", Timestamp: clock.Add(-time.Hour)},
			{Action: audit.ActionUserCreated, PerformedBy: "u1", TargetID: "u3", Timestamp: clock},
		})).To(Succeed())

		byAction, _ := service.ListEvents(ctx, audit.Filter{Action: audit.ActionLoginSuccess})
		Expect(byAction).To(HaveLen(2))
		Expect(byAction[0].PerformedBy).To(Equal("u2"))

		byTarget, _ := service.ListEvents(ctx, audit.Filter{UserID: "u3"})
		Expect(byTarget).To(HaveLen(1))

		recent, _ := service.ListEvents(ctx, audit.Filter{Since: clock.Add(-90 * time.Minute)})
		Expect(recent).To(HaveLen(2))

		limited, _ := service.ListEvents(ctx, audit.Filter{Limit: 1})
		Expect(limited).To(HaveLen(1))
		Expect(limited[0].Action).To(Equal(audit.ActionUserCreated))
	})

	It("caps access logs and security events independently", func() {
		small := audit.NewService(audit.NewStoreRepository(st), logger.Discard(),
			audit.WithCaps(audit.Caps{AccessEntries: 2, SecurityEvents: 1}))
		for i := 0; i < 3; i++ {
			Expect(small.LogAccess(ctx, audit.AccessEntry{UserID: "u", Path: fmt.Sprintf("/p%d", i)})).To(Succeed())
			Expect(small.LogSecurityEvent(ctx, audit.SecurityEvent{Type: audit.SecurityAccessDenied})).To(Succeed())
		}
		access, _ := small.ListAccess(ctx, audit.Filter{})
		Expect(access).To(HaveLen(2))
		events, _ := small.ListSecurityEvents(ctx, audit.Filter{})
		Expect(events).To(HaveLen(1))
		Expect(events[0].Severity).To(Equal(audit.SeverityMedium))
	})

	It("re-applies caps on Trim", func() {
		Expect(service.LogEvents(ctx, []audit.Entry{{Action: "A"}, {Action: "B"}, {Action: "C"}})).To(Succeed())

		trimmer := audit.NewService(audit.NewStoreRepository(st), logger.Discard(),
			audit.WithCaps(audit.Caps{Entries: 1}))
		res, err := trimmer.Trim(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Entries).To(Equal(2))

		entries, _ := service.ListEvents(ctx, audit.Filter{})
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Action).To(Equal("C"))
	})

	It("summarizes the trailing window", func() {
		Expect(service.LogEvent(ctx, audit.Entry{Action: audit.ActionLoginFailed})).To(Succeed())
		Expect(service.LogEvent(ctx, audit.Entry{Action: audit.ActionLoginFailed, Timestamp: clock.Add(-48 * time.Hour)})).To(Succeed())
		Expect(service.LogAccess(ctx, audit.AccessEntry{UserID: "u1"})).To(Succeed())
		Expect(service.LogAccess(ctx, audit.AccessEntry{UserID: "u1"})).To(Succeed())
		Expect(service.LogSecurityEvent(ctx, audit.SecurityEvent{Type: audit.SecurityAccessDenied, Severity: audit.SeverityHigh})).To(Succeed())

		sum, err := service.Summary(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Window).To(Equal("24h0m0s"))
		Expect(sum.TotalAuditEntries).To(Equal(2))
		Expect(sum.FailedLogins).To(Equal(1))
		Expect(sum.ActiveUsers).To(Equal(1))
		Expect(sum.AccessDenied).To(Equal(1))
		Expect(sum.BySeverity[audit.SeverityHigh]).To(Equal(1))
		Expect(sum.RecentEvents).To(HaveLen(1))
	})

	Describe("Handler", func() {
		var handler *audit.Handler

		BeforeEach(func() {
			handler = audit.NewHandler(transport.NewBaseHandler(logger.Discard()), service)
			Expect(service.LogEvents(ctx, []audit.Entry{
				{Action: "A", Timestamp: clock.Add(-time.Minute)},
				{Action: "B", Timestamp: clock},
			})).To(Succeed())
		})

		It("lists audit logs newest first", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/audit-logs?limit=10", nil)
			w := httptest.NewRecorder()
			handler.ListAuditLogs(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp audit.EntriesResponse
			Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
			Expect(resp.Entries).To(HaveLen(2))
			Expect(resp.Entries[0].Action).To(Equal("B"))
		})

		It("rejects a malformed since parameter", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/audit-logs?since=yesterday", nil)
			w := httptest.NewRecorder()
			handler.ListAuditLogs(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).To(ContainSubstring("since"))
		})
	})
})
