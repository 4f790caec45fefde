package service_test

import (
	"context"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/tripflow/internal/application/port"
	"github.com/garyjia/tripflow/internal/application/service"
	"github.com/garyjia/tripflow/internal/domain/entity"
	"github.com/garyjia/tripflow/internal/domain/event"
	"github.com/garyjia/tripflow/internal/domain/workflow"
	"github.com/garyjia/tripflow/internal/infrastructure/export"
	"github.com/garyjia/tripflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/tripflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/tripflow/migrations"
	"github.com/garyjia/tripflow/pkg/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

// fakeDistance resolves every route to a fixed distance
type fakeDistance struct {
	km decimal.Decimal
}

func (f fakeDistance) DistanceKm(ctx context.Context, origin, destination string) (decimal.Decimal, error) {
	return f.km, nil
}

// testClock is a settable clock shared by every service of one harness
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

// recordingPublisher keeps every published event in order
type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) DispatchAsync(ctx context.Context, evt *event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) ofType(t event.Type) []*event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*event.Event
	for _, evt := range p.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	clock  *testClock
	events *recordingPublisher
	repos  service.TripRepositories

	audit    service.AuditService
	ledger   service.LedgerService
	trips    service.TripService
	approval service.ApprovalService
	admin    service.AdminRequestService
	org      service.OrgService

	adminRequests port.AdminRequestRepository
	budgetHistory port.BudgetHistoryRepository

	// seeded organization
	adminUser  entity.Actor
	manager    entity.Actor
	manager2   entity.Actor
	projectMgr entity.Actor
	finance    entity.Actor
	employee   entity.Actor
	reviewer   entity.Actor
	dept       *entity.Department
	project    *entity.Project
}

type harnessOptions struct {
	workflow workflow.GeneratorOptions
	distance port.DistanceResolver
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, harnessOptions{})
}

func newHarnessWith(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "tripflow.db"),
		MaxOpenConns: 4,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(migrations.FS))

	clock := &testClock{now: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
	tx := sqlite.NewDB(db.DB, logger)
	events := &recordingPublisher{}

	repos := service.TripRepositories{
		Users:       repository.NewUserRepository(db.DB, logger),
		Departments: repository.NewDepartmentRepository(db.DB, logger),
		Projects:    repository.NewProjectRepository(db.DB, logger),
		Trips:       repository.NewTripRepository(db.DB, logger),
		Steps:       repository.NewWorkflowStepRepository(db.DB, logger),
		Statuses:    repository.NewStatusHistoryRepository(db.DB, logger),
		Rates:       repository.NewRateRepository(db.DB, logger),
		Delegations: repository.NewDelegationRepository(db.DB, logger),
		Events:      events,
	}
	adminRepo := repository.NewAdminRequestRepository(db.DB, logger)
	historyRepo := repository.NewBudgetHistoryRepository(db.DB, logger)

	log := nopLogger{}
	audit := service.NewAuditService(repository.NewAuditRepository(db.DB, logger), clock.Now, log)
	ledger := service.NewLedgerService(
		repos.Departments, repos.Projects, repos.Trips, historyRepo,
		audit, export.NewLedgerExcel(2, logger), tx, clock.Now, log,
	)

	h := &harness{
		t:             t,
		ctx:           context.Background(),
		clock:         clock,
		events:        events,
		repos:         repos,
		audit:         audit,
		ledger:        ledger,
		trips:         service.NewTripService(repos, ledger, audit, opts.distance, tx, opts.workflow, clock.Now, log),
		approval:      service.NewApprovalService(repos, ledger, audit, tx, clock.Now, log),
		admin:         service.NewAdminRequestService(repos, adminRepo, ledger, audit, tx, clock.Now, log),
		org:           service.NewOrgService(repos, ledger, audit, tx, clock.Now, log),
		adminRequests: adminRepo,
		budgetHistory: historyRepo,
	}
	h.seed()
	return h
}

func (h *harness) user(name string, roles ...entity.Role) entity.Actor {
	h.t.Helper()
	u, err := h.org.CreateUser(h.ctx, service.NewUserInput{
		Name:  name,
		Email: name + "@example.com",
		Roles: roles,
	})
	require.NoError(h.t, err)
	return entity.Actor{UserID: u.ID, Role: roles[0]}
}

// seed creates a department with a 1000.00 budget and an active project with 500.00
func (h *harness) seed() {
	h.adminUser = h.user("admin", entity.RoleAdmin)
	h.manager = h.user("manager", entity.RoleManager)
	h.manager2 = h.user("deputy", entity.RoleManager)
	h.projectMgr = h.user("pm", entity.RoleManager)
	h.finance = h.user("finance", entity.RoleFinance)
	h.employee = h.user("employee", entity.RoleEmployee)
	h.reviewer = h.user("reviewer", entity.RoleAdmin)

	var err error
	h.dept, err = h.org.CreateDepartment(h.ctx, h.adminUser, service.NewDepartmentInput{
		Name:      "Engineering",
		ManagerID: &h.manager.UserID,
		Budget:    dec("1000"),
	})
	require.NoError(h.t, err)

	h.project, err = h.org.CreateProject(h.ctx, h.adminUser, service.NewProjectInput{
		Name:         "Apollo",
		DepartmentID: h.dept.ID,
		ManagerID:    &h.projectMgr.UserID,
		Budget:       dec("500"),
	})
	require.NoError(h.t, err)

	h.project, err = h.org.ActivateProject(h.ctx, h.adminUser, h.project.ID)
	require.NoError(h.t, err)
}

func (h *harness) departmentTrip(requester entity.Actor, amount string, urgent bool) *entity.TripRequest {
	h.t.Helper()
	trip, err := h.trips.CreateTripRequest(h.ctx, requester, service.CreateTripInput{
		DepartmentID: &h.dept.ID,
		TripDate:     h.clock.now,
		Origin:       "Berlin",
		Destination:  "Hamburg",
		Purpose:      "customer visit",
		CostMethod:   entity.CostDirect,
		Amount:       dec(amount),
		IsUrgent:     urgent,
	})
	require.NoError(h.t, err)
	return trip
}

func (h *harness) projectTrip(requester entity.Actor, amount string, urgent bool) *entity.TripRequest {
	h.t.Helper()
	trip, err := h.trips.CreateTripRequest(h.ctx, requester, service.CreateTripInput{
		ProjectID:   &h.project.ID,
		TripDate:    h.clock.now,
		Origin:      "Munich",
		Destination: "Vienna",
		Purpose:     "site acceptance",
		CostMethod:  entity.CostDirect,
		Amount:      dec(amount),
		IsUrgent:    urgent,
	})
	require.NoError(h.t, err)
	return trip
}

func (h *harness) decide(actor entity.Actor, tripID int64, approve bool) (*entity.TripRequest, error) {
	return h.approval.Decide(h.ctx, actor, service.DecisionInput{TripID: tripID, Approve: approve})
}

func (h *harness) mustDecide(actor entity.Actor, tripID int64, approve bool) *entity.TripRequest {
	h.t.Helper()
	trip, err := h.decide(actor, tripID, approve)
	require.NoError(h.t, err)
	return trip
}

func (h *harness) available(kind entity.OwnerKind, id int64) decimal.Decimal {
	h.t.Helper()
	res, err := h.ledger.CheckBudget(h.ctx, kind, id, decimal.Zero)
	require.NoError(h.t, err)
	return res.Info.Available
}

func (h *harness) ledgerRows(kind entity.OwnerKind, id int64) []*entity.BudgetHistoryEntry {
	h.t.Helper()
	rows, err := h.ledger.History(h.ctx, kind, id)
	require.NoError(h.t, err)
	return rows
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (h *harness) newDepartment(budget string) *entity.Department {
	h.t.Helper()
	dept, err := h.org.CreateDepartment(h.ctx, h.adminUser, service.NewDepartmentInput{
		Name:      "Dept " + budget,
		ManagerID: &h.manager.UserID,
		Budget:    dec(budget),
	})
	require.NoError(h.t, err)
	return dept
}

func (h *harness) newProject(budget string) *entity.Project {
	h.t.Helper()
	project, err := h.org.CreateProject(h.ctx, h.adminUser, service.NewProjectInput{
		Name:         "Project " + budget,
		DepartmentID: h.dept.ID,
		ManagerID:    &h.projectMgr.UserID,
		Budget:       dec(budget),
	})
	require.NoError(h.t, err)
	project, err = h.org.ActivateProject(h.ctx, h.adminUser, project.ID)
	require.NoError(h.t, err)
	return project
}

// concurrently runs fn n times, releasing all goroutines at once, and returns each call's error
func concurrently(n int, fn func(i int) error) []error {
	errs := make([]error, n)
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func succeeded(errs []error) int {
	n := 0
	for _, err := range errs {
		if err == nil {
			n++
		}
	}
	return n
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
