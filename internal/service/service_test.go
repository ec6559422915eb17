package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nurpe/procurement-ipc/internal/config"
	"github.com/nurpe/procurement-ipc/internal/model"
	"github.com/nurpe/procurement-ipc/internal/notify"
	"github.com/nurpe/procurement-ipc/internal/repository"
)

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type memoryCache struct {
	mu          sync.Mutex
	items       map[uuid.UUID]model.ContractSummary
	generations map[uuid.UUID]int64
	invalidated int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		items:       make(map[uuid.UUID]model.ContractSummary),
		generations: make(map[uuid.UUID]int64),
	}
}

func (c *memoryCache) GetSummary(_ context.Context, id uuid.UUID) (*model.ContractSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	summary, ok := c.items[id]
	if !ok {
		return nil, false
	}
	return &summary, true
}

func (c *memoryCache) Generation(_ context.Context, id uuid.UUID) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[id]
}

func (c *memoryCache) SetSummary(_ context.Context, summary model.ContractSummary, generation int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[summary.ContractID] != generation {
		return
	}
	c.items[summary.ContractID] = summary
}

func (c *memoryCache) Invalidate(_ context.Context, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[id]++
	delete(c.items, id)
	c.invalidated++
}

// interleavingCache runs beforeSet once, between the ledger read and the
// cache write, to stand in for a request that lands in that window.
type interleavingCache struct {
	*memoryCache
	beforeSet func()
}

func (c *interleavingCache) SetSummary(ctx context.Context, summary model.ContractSummary, generation int64) {
	if c.beforeSet != nil {
		hook := c.beforeSet
		c.beforeSet = nil
		hook()
	}
	c.memoryCache.SetSummary(ctx, summary, generation)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(event notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) kinds() []notify.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]notify.EventKind, 0, len(n.events))
	for _, event := range n.events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

type fakePDF struct {
	last model.IPCDocument
}

func (f *fakePDF) Generate(doc model.IPCDocument) ([]byte, error) {
	f.last = doc
	return []byte("%PDF-fake"), nil
}

type fakeExcel struct {
	last model.SpendReport
}

func (f *fakeExcel) Generate(report model.SpendReport) ([]byte, error) {
	f.last = report
	return []byte("xlsx"), nil
}

type testEnv struct {
	db        *gorm.DB
	contracts *ContractService
	ipcs      *IPCService
	reports   *ReportService
	cache     *memoryCache
	notifier  *recordingNotifier
	pdf       *fakePDF
	excel     *fakeExcel
	clock     *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig(policy string) *config.Config {
	return &config.Config{
		Environment: "test",
		DB:          config.DBConfig{MaxOpenConns: 4},
		Ledger: config.LedgerConfig{
			OnTimePaymentDays:   14,
			OverClaimPolicy:     policy,
			ReviewReminderHours: 72,
		},
	}
}

func newTestEnv(t *testing.T, policy string) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&model.Vendor{},
		&model.RFQ{},
		&model.Contract{},
		&model.IPC{},
		&model.TimelineEntry{},
		&model.VariationOrder{},
	))

	contractRepo := repository.NewContractRepository(db)
	ipcRepo := repository.NewIPCRepository(db)
	vendorRepo := repository.NewVendorRepository(db)

	cfg := testConfig(policy)
	env := &testEnv{
		db:       db,
		cache:    newMemoryCache(),
		notifier: &recordingNotifier{},
		pdf:      &fakePDF{},
		excel:    &fakeExcel{},
		clock:    &testClock{now: baseTime},
	}
	log := zerolog.Nop()
	env.contracts = NewContractService(contractRepo, vendorRepo, env.cache, log)
	env.contracts.now = env.clock.Now
	env.ipcs = NewIPCService(contractRepo, ipcRepo, vendorRepo, env.cache, env.notifier, env.pdf, cfg, log).
		WithClock(env.clock.Now)
	env.reports = NewReportService(contractRepo, ipcRepo, vendorRepo, env.cache, env.excel, cfg, log).
		WithClock(env.clock.Now)
	return env
}

func procurementActor() model.Principal {
	return model.Principal{UserID: uuid.New(), Name: "Pat Procurement", Role: model.RoleProcurementReviewer}
}

func actor(role model.Role) model.Principal {
	return model.Principal{UserID: uuid.New(), Name: string(role), Role: role}
}

func vendorActor(vendorID uuid.UUID) model.Principal {
	id := vendorID
	return model.Principal{UserID: uuid.New(), Name: "Vera Vendor", Role: model.RoleVendor, VendorID: &id}
}

func (e *testEnv) seedVendor(t *testing.T, name string) *model.Vendor {
	t.Helper()
	vendor, err := e.contracts.CreateVendor(context.Background(), CreateVendorInput{
		CompanyName: name,
		Principal:   procurementActor(),
	})
	require.NoError(t, err)
	return vendor
}

func (e *testEnv) seedActiveContract(t *testing.T, vendorID uuid.UUID, project string, value int64) *model.Contract {
	t.Helper()
	ctx := context.Background()
	contract, err := e.contracts.CreateContract(ctx, CreateContractInput{
		ContractNumber: "CN-" + uuid.NewString()[:8],
		VendorID:       vendorID,
		Project:        project,
		Title:          "Works",
		Currency:       "usd",
		ContractValue:  decimal.NewFromInt(value),
		StartDate:      baseTime.AddDate(0, -1, 0),
		EndDate:        baseTime.AddDate(1, 0, 0),
		Principal:      procurementActor(),
	})
	require.NoError(t, err)
	contract, err = e.contracts.ChangeContractStatus(ctx, contract.ID, model.ContractStatusActive, procurementActor())
	require.NoError(t, err)
	return contract
}

func (e *testEnv) submit(t *testing.T, contract *model.Contract, current, deductions int64) *model.IPC {
	t.Helper()
	ipc, err := e.ipcs.SubmitIPC(context.Background(), SubmitIPCInput{
		ContractID: contract.ID,
		Draft: model.IPCDraft{
			CurrentValue: decimal.NewFromInt(current),
			Deductions:   decimal.NewFromInt(deductions),
			Description:  "progress claim",
		},
		Principal: vendorActor(contract.VendorID),
	})
	require.NoError(t, err)
	return ipc
}

func (e *testEnv) move(t *testing.T, ipcID uuid.UUID, steps ...model.IPCStatus) *model.IPC {
	t.Helper()
	var ipc *model.IPC
	for _, target := range steps {
		var role model.Role
		switch target {
		case model.IPCStatusProcurementReview, model.IPCStatusFinanceReview:
			role = model.RoleProcurementReviewer
		case model.IPCStatusTechnicalApproved:
			role = model.RoleTechnicalReviewer
		case model.IPCStatusApproved:
			role = model.RoleFinanceReviewer
		case model.IPCStatusPaid:
			role = model.RoleTreasury
		}
		e.clock.Advance(time.Hour)
		var err error
		ipc, err = e.ipcs.TransitionIPC(context.Background(), TransitionIPCInput{
			IPCID:     ipcID,
			Target:    target,
			Principal: actor(role),
		})
		require.NoError(t, err)
	}
	return ipc
}

var pathToPaid = []model.IPCStatus{
	model.IPCStatusProcurementReview,
	model.IPCStatusTechnicalApproved,
	model.IPCStatusFinanceReview,
	model.IPCStatusApproved,
	model.IPCStatusPaid,
}
