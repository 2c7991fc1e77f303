package usecase

import (
	"context"
	"net/http"
	"testing"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	repo "app/internal/repository"
	"app/internal/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// Mocks（衝突回避の命名）
// =====================

type RunZoneRepoMock struct{ mock.Mock }

func (m *RunZoneRepoMock) FindByID(ctx context.Context, zoneID int64) (*model.Zone, error) {
	args := m.Called(ctx, zoneID)
	z, _ := args.Get(0).(*model.Zone)
	return z, args.Error(1)
}

func (m *RunZoneRepoMock) FindByIDForUpdate(ctx context.Context, zoneID int64) (*model.Zone, error) {
	args := m.Called(ctx, zoneID)
	z, _ := args.Get(0).(*model.Zone)
	return z, args.Error(1)
}

func (m *RunZoneRepoMock) ListByShop(ctx context.Context, shopID int64) ([]model.Zone, error) {
	panic("not used in RunUsecase tests")
}

type RunUserRepoMock struct{ mock.Mock }

func (m *RunUserRepoMock) Create(ctx context.Context, user *model.User) error {
	panic("not used in RunUsecase tests")
}

func (m *RunUserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *RunUserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	panic("not used in RunUsecase tests")
}

func (m *RunUserRepoMock) Update(ctx context.Context, user *model.User) error {
	panic("not used in RunUsecase tests")
}

func (m *RunUserRepoMock) IncrementTokenVersion(ctx context.Context, userID int64) error {
	panic("not used in RunUsecase tests")
}

type RunProductRepoMock struct{ mock.Mock }

func (m *RunProductRepoMock) FindByShopAndSKU(ctx context.Context, shopID int64, sku string) (*model.Product, error) {
	args := m.Called(ctx, shopID, sku)
	p, _ := args.Get(0).(*model.Product)
	return p, args.Error(1)
}

func (m *RunProductRepoMock) FindByShopAndEAN(ctx context.Context, shopID int64, ean string) (*model.Product, error) {
	args := m.Called(ctx, shopID, ean)
	p, _ := args.Get(0).(*model.Product)
	return p, args.Error(1)
}

type RunSessionRepoMock struct{ mock.Mock }

func (m *RunSessionRepoMock) FindByID(ctx context.Context, sessionID int64) (*model.InventorySession, error) {
	panic("not used in RunUsecase tests")
}

func (m *RunSessionRepoMock) FindOpenByShop(ctx context.Context, shopID int64) (*model.InventorySession, error) {
	args := m.Called(ctx, shopID)
	s, _ := args.Get(0).(*model.InventorySession)
	return s, args.Error(1)
}

func (m *RunSessionRepoMock) Create(ctx context.Context, session model.InventorySession) (int64, error) {
	args := m.Called(ctx, session)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RunSessionRepoMock) DeleteByShop(ctx context.Context, shopID int64) (int64, error) {
	panic("not used in RunUsecase tests")
}

type RunRunRepoMock struct{ mock.Mock }

func (m *RunRunRepoMock) FindByID(ctx context.Context, runID int64) (*model.CountingRun, error) {
	args := m.Called(ctx, runID)
	r, _ := args.Get(0).(*model.CountingRun)
	return r, args.Error(1)
}

func (m *RunRunRepoMock) FindOpenByZoneAndType(ctx context.Context, zoneID int64, countType int) (*model.CountingRun, error) {
	args := m.Called(ctx, zoneID, countType)
	r, _ := args.Get(0).(*model.CountingRun)
	return r, args.Error(1)
}

func (m *RunRunRepoMock) Create(ctx context.Context, run model.CountingRun) (int64, error) {
	args := m.Called(ctx, run)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RunRunRepoMock) MarkCompleted(ctx context.Context, runID int64, completedAt time.Time) (bool, error) {
	args := m.Called(ctx, runID, completedAt)
	return args.Bool(0), args.Error(1)
}

func (m *RunRunRepoMock) MarkReleased(ctx context.Context, runID int64, releasedAt time.Time) (bool, error) {
	args := m.Called(ctx, runID, releasedAt)
	return args.Bool(0), args.Error(1)
}

func (m *RunRunRepoMock) CloseOpenByZoneAndType(ctx context.Context, zoneID int64, countType int, closedAt time.Time) (int64, error) {
	args := m.Called(ctx, zoneID, countType, closedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *RunRunRepoMock) HasCompletedByZoneAndType(ctx context.Context, zoneID int64, countType int) (bool, error) {
	args := m.Called(ctx, zoneID, countType)
	return args.Bool(0), args.Error(1)
}

func (m *RunRunRepoMock) ListCompletedBySession(ctx context.Context, sessionID int64) ([]model.CountingRun, error) {
	panic("not used in RunUsecase tests")
}

func (m *RunRunRepoMock) ListCompletedByZoneIDs(ctx context.Context, zoneIDs []int64) ([]model.CountingRun, error) {
	panic("not used in RunUsecase tests")
}

func (m *RunRunRepoMock) ListIDsByZoneIDs(ctx context.Context, zoneIDs []int64) ([]int64, error) {
	panic("not used in RunUsecase tests")
}

func (m *RunRunRepoMock) DeleteByZoneIDs(ctx context.Context, zoneIDs []int64) (int64, error) {
	panic("not used in RunUsecase tests")
}

type RunCountLineRepoMock struct{ mock.Mock }

func (m *RunCountLineRepoMock) CreateBulk(ctx context.Context, lines []model.CountLine) error {
	args := m.Called(ctx, lines)
	return args.Error(0)
}

func (m *RunCountLineRepoMock) ListByRunIDs(ctx context.Context, runIDs []int64) ([]model.CountLine, error) {
	panic("not used in RunUsecase tests")
}

func (m *RunCountLineRepoMock) DeleteByRunIDs(ctx context.Context, runIDs []int64) (int64, error) {
	panic("not used in RunUsecase tests")
}

type RunAuditRepoMock struct{ mock.Mock }

func (m *RunAuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *RunAuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	panic("not used in RunUsecase tests")
}

// トランザクションをそのまま実行するスタブ
type runTxRepos struct {
	zones    *RunZoneRepoMock
	users    *RunUserRepoMock
	products *RunProductRepoMock
	sessions *RunSessionRepoMock
	runs     *RunRunRepoMock
	lines    *RunCountLineRepoMock
	audit    *RunAuditRepoMock
}

func (r *runTxRepos) Shops() repo.ShopRepository           { panic("not used in RunUsecase tests") }
func (r *runTxRepos) Zones() repo.ZoneRepository           { return r.zones }
func (r *runTxRepos) Users() repo.UserRepository           { return r.users }
func (r *runTxRepos) Products() repo.ProductRepository     { return r.products }
func (r *runTxRepos) Sessions() repo.SessionRepository     { return r.sessions }
func (r *runTxRepos) Runs() repo.RunRepository             { return r.runs }
func (r *runTxRepos) CountLines() repo.CountLineRepository { return r.lines }
func (r *runTxRepos) AuditLogs() repo.AuditLogRepository   { return r.audit }

type runTxManagerStub struct{ repos *runTxRepos }

func (m *runTxManagerStub) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return fn(m.repos)
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

// =====================
// fixture
// =====================

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newRunFixture() (*RunUsecase, *runTxRepos, *RunAuditRepoMock) {
	repos := &runTxRepos{
		zones:    new(RunZoneRepoMock),
		users:    new(RunUserRepoMock),
		products: new(RunProductRepoMock),
		sessions: new(RunSessionRepoMock),
		runs:     new(RunRunRepoMock),
		lines:    new(RunCountLineRepoMock),
		audit:    new(RunAuditRepoMock),
	}
	audit := new(RunAuditRepoMock)
	uc := NewRunUsecase(&runTxManagerStub{repos: repos}, audit, &fixedClock{t: testNow}, config.Config{
		OwnerTrackingEnabled: true,
	})
	return uc, repos, audit
}

func activeOperator(id, shopID int64, name string) *model.User {
	return &model.User{ID: id, ShopID: shopID, DisplayName: name, Role: model.RoleOperator, IsActive: true}
}

func assertHTTPErr(t *testing.T, err error, status int, code string) {
	t.Helper()
	he, ok := AsHTTPError(err)
	if assert.True(t, ok, "expected *HTTPError, got %v", err) {
		assert.Equal(t, status, he.Status)
		assert.Equal(t, code, he.Code)
	}
}

// =====================
// Start
// =====================

func TestRunUsecase_Start_CreatesRunAndSession(t *testing.T) {
	ctx := context.Background()
	uc, repos, audit := newRunFixture()

	zone := &model.Zone{ID: 10, ShopID: 1, Code: "Z01"}
	repos.zones.On("FindByIDForUpdate", mock.Anything, int64(10)).Return(zone, nil)
	repos.users.On("FindByID", mock.Anything, int64(7)).Return(activeOperator(7, 1, "tanaka"), nil)
	repos.runs.On("FindOpenByZoneAndType", mock.Anything, int64(10), 1).Return(nil, nil)
	repos.sessions.On("FindOpenByShop", mock.Anything, int64(1)).Return(nil, nil)
	repos.sessions.On("Create", mock.Anything, mock.Anything).Return(int64(100), nil)
	repos.runs.On("Create", mock.Anything, mock.MatchedBy(func(run model.CountingRun) bool {
		return run.SessionID == 100 && run.ZoneID == 10 && run.CountType == 1 &&
			run.OwnerID == 7 && run.OwnerLabel == "tanaka" && run.StartedAt.Equal(testNow)
	})).Return(int64(55), nil)
	audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	out, err := uc.Start(ctx, 7, StartRunInput{ZoneID: 10, ShopID: 1, CountType: 1})
	assert.NoError(t, err)
	assert.Equal(t, int64(55), out.RunID)
	assert.Equal(t, int64(100), out.SessionID)
	assert.False(t, out.Resumed)

	repos.runs.AssertExpectations(t)
	repos.sessions.AssertExpectations(t)
}

func TestRunUsecase_Start_ReusesOpenSession(t *testing.T) {
	ctx := context.Background()
	uc, repos, audit := newRunFixture()

	zone := &model.Zone{ID: 10, ShopID: 1}
	repos.zones.On("FindByIDForUpdate", mock.Anything, int64(10)).Return(zone, nil)
	repos.users.On("FindByID", mock.Anything, int64(7)).Return(activeOperator(7, 1, "tanaka"), nil)
	repos.runs.On("FindOpenByZoneAndType", mock.Anything, int64(10), 1).Return(nil, nil)
	repos.sessions.On("FindOpenByShop", mock.Anything, int64(1)).Return(&model.InventorySession{ID: 42, ShopID: 1, StartedAt: testNow}, nil)
	repos.runs.On("Create", mock.Anything, mock.Anything).Return(int64(56), nil)
	audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	out, err := uc.Start(ctx, 7, StartRunInput{ZoneID: 10, ShopID: 1, CountType: 1})
	assert.NoError(t, err)
	assert.Equal(t, int64(42), out.SessionID)

	repos.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRunUsecase_Start_AdoptsSessionCreatedByConcurrentStart(t *testing.T) {
	//別ゾーンの同時Startはゾーンロックで直列化されないので、
	//セッション作成は部分ユニークインデックスで競合し得る。
	//負けた側は読み直して勝った側のセッションに相乗りする。
	ctx := context.Background()
	uc, repos, audit := newRunFixture()

	zone := &model.Zone{ID: 11, ShopID: 1}
	repos.zones.On("FindByIDForUpdate", mock.Anything, int64(11)).Return(zone, nil)
	repos.users.On("FindByID", mock.Anything, int64(7)).Return(activeOperator(7, 1, "tanaka"), nil)
	repos.runs.On("FindOpenByZoneAndType", mock.Anything, int64(11), 1).Return(nil, nil)

	//1回目の読みでは開いているセッションが見えない
	repos.sessions.On("FindOpenByShop", mock.Anything, int64(1)).Return(nil, nil).Once()
	//作ろうとしたら先を越されている
	repos.sessions.On("Create", mock.Anything, mock.Anything).Return(int64(0), repo.ErrOpenSessionExists).Once()
	//読み直すと相手が作ったセッションが見える
	repos.sessions.On("FindOpenByShop", mock.Anything, int64(1)).Return(&model.InventorySession{ID: 100, ShopID: 1, StartedAt: testNow}, nil).Once()

	repos.runs.On("Create", mock.Anything, mock.MatchedBy(func(run model.CountingRun) bool {
		return run.SessionID == 100 && run.ZoneID == 11
	})).Return(int64(56), nil)
	audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	out, err := uc.Start(ctx, 7, StartRunInput{ZoneID: 11, ShopID: 1, CountType: 1})
	assert.NoError(t, err)
	//同じ店舗のランは同じセッションに集まる
	assert.Equal(t, int64(100), out.SessionID)

	repos.sessions.AssertExpectations(t)
	repos.runs.AssertExpectations(t)
}

func TestRunUsecase_Start_ResumeSameOwnerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	uc, repos, audit := newRunFixture()

	zone := &model.Zone{ID: 10, ShopID: 1}
	open := &model.CountingRun{ID: 55, SessionID: 100, ZoneID: 10, CountType: 1, OwnerID: 7, OwnerLabel: "tanaka", StartedAt: testNow}
	repos.zones.On("FindByIDForUpdate", mock.Anything, int64(10)).Return(zone, nil)
	repos.users.On("FindByID", mock.Anything, int64(7)).Return(activeOperator(7, 1, "tanaka"), nil)
	repos.runs.On("FindOpenByZoneAndType", mock.Anything, int64(10), 1).Return(open, nil)

	out, err := uc.Start(ctx, 7, StartRunInput{ZoneID: 10, ShopID: 1, CountType: 1})
	assert.NoError(t, err)
	assert.True(t, out.Resumed)
	assert.Equal(t, int64(55), out.RunID)

	//新規行は作らない・監査も書かない
	repos.runs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRunUsecase_Start_ConflictOtherOwner(t *testing.T) {
	ctx := context.Background()
	uc, repos, _ := newRunFixture()

	zone := &model.Zone{ID: 10, ShopID: 1}
	open := &model.CountingRun{ID: 55, ZoneID: 10, CountType: 1, OwnerID: 9, OwnerLabel: "suzuki", StartedAt: testNow}
	repos.zones.On("FindByIDForUpdate", mock.Anything, int64(10)).Return(zone, nil)
	repos.users.On("FindByID", mock.Anything, int64(7)).Return(activeOperator(7, 1, "tanaka"), nil)
	repos.runs.On("FindOpenByZoneAndType", mock.Anything, int64(10), 1).Return(open, nil)
	repos.users.On("FindByID", mock.Anything, int64(9)).Return(activeOperator(9, 1, "suzuki"), nil)

	_, err := uc.Start(ctx, 7, StartRunInput{ZoneID: 10, ShopID: 1, CountType: 1})
	assertHTTPErr(t, err, http.StatusConflict, CodeConflictOtherOwner)

	he, _ := AsHTTPError(err)
	assert.Equal(t, "suzuki", he.Details["owner_label"])
}

func TestRunUsecase_Start_LocationNotFound(t *testing.T) {
	ctx := context.Background()
	uc, repos, _ := newRunFixture()

	repos.zones.On("FindByIDForUpdate", mock.Anything, int64(10)).Return(nil, nil)

	_, err := uc.Start(ctx, 7, StartRunInput{ZoneID: 10, ShopID: 1, CountType: 1})
	assertHTTPErr(t, err, http.StatusNotFound, CodeLocationNotFound)
}

func TestRunUsecase_Start_OtherShopZoneIsNotFound(t *testing.T) {
	ctx := context.Background()
	uc, repos, _ := newRunFixture()

	//別店舗のゾーンは存在しない扱い
	repos.zones.On("FindByIDForUpdate", mock.Anything, int64(10)).Return(&model.Zone{ID: 10, ShopID: 2}, nil)

	_, err := uc.Start(ctx, 7, StartRunInput{ZoneID: 10, ShopID: 1, CountType: 1})
	assertHTTPErr(t, err, http.StatusNotFound, CodeLocationNotFound)
}

func TestRunUsecase_Start_LocationDisabled(t *testing.T) {
	ctx := context.Background()
	uc, repos, _ := newRunFixture()

	repos.zones.On("FindByIDForUpdate", mock.Anything, int64(10)).Return(&model.Zone{ID: 10, ShopID: 1, Disabled: true}, nil)

	_, err := uc.Start(ctx, 7, StartRunInput{ZoneID: 10, ShopID: 1, CountType: 1})
	assertHTTPErr(t, err, http.StatusBadRequest, CodeLocationDisabled)
}

func TestRunUsecase_Start_OwnerInvalidWhenInactive(t *testing.T) {
	ctx := context.Background()
	uc, repos, _ := newRunFixture()

	repos.zones.On("FindByIDForUpdate", mock.Anything, int64(10)).Return(&model.Zone{ID: 10, ShopID: 1}, nil)
	inactive := activeOperator(7, 1, "tanaka")
	inactive.IsActive = false
	repos.users.On("FindByID", mock.Anything, int64(7)).Return(inactive, nil)

	_, err := uc.Start(ctx, 7, StartRunInput{ZoneID: 10, ShopID: 1, CountType: 1})
	assertHTTPErr(t, err, http.StatusForbidden, CodeOwnerInvalid)
}

func TestRunUsecase_Start_SecondRequiresCompletedFirst(t *testing.T) {
	ctx := context.Background()
	uc, repos, _ := newRunFixture()

	repos.zones.On("FindByIDForUpdate", mock.Anything, int64(10)).Return(&model.Zone{ID: 10, ShopID: 1}, nil)
	repos.users.On("FindByID", mock.Anything, int64(7)).Return(activeOperator(7, 1, "tanaka"), nil)
	repos.runs.On("HasCompletedByZoneAndType", mock.Anything, int64(10), model.CountTypeFirst).Return(false, nil)

	_, err := uc.Start(ctx, 7, StartRunInput{ZoneID: 10, ShopID: 1, CountType: model.CountTypeSecond})
	assertHTTPErr(t, err, http.StatusBadRequest, CodeSequentialPrerequisiteMissing)
}

func TestRunUsecase_Start_SecondAllowedAfterFirstCompleted(t *testing.T) {
	ctx := context.Background()
	uc, repos, audit := newRunFixture()

	repos.zones.On("FindByIDForUpdate", mock.Anything, int64(10)).Return(&model.Zone{ID: 10, ShopID: 1}, nil)
	repos.users.On("FindByID", mock.Anything, int64(7)).Return(activeOperator(7, 1, "tanaka"), nil)
	repos.runs.On("HasCompletedByZoneAndType", mock.Anything, int64(10), model.CountTypeFirst).Return(true, nil)
	repos.runs.On("FindOpenByZoneAndType", mock.Anything, int64(10), model.CountTypeSecond).Return(nil, nil)
	repos.sessions.On("FindOpenByShop", mock.Anything, int64(1)).Return(&model.InventorySession{ID: 42}, nil)
	repos.runs.On("Create", mock.Anything, mock.Anything).Return(int64(60), nil)
	audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	out, err := uc.Start(ctx, 7, StartRunInput{ZoneID: 10, ShopID: 1, CountType: model.CountTypeSecond})
	assert.NoError(t, err)
	assert.Equal(t, int64(60), out.RunID)
}

func TestRunUsecase_Start_InvalidCountType(t *testing.T) {
	uc, _, _ := newRunFixture()

	_, err := uc.Start(context.Background(), 7, StartRunInput{ZoneID: 10, ShopID: 1, CountType: 4})
	assertHTTPErr(t, err, http.StatusBadRequest, CodeValidationFailed)
}

// =====================
// Complete
// =====================

func TestRunUsecase_Complete_AggregatesDuplicateScans(t *testing.T) {
	ctx := context.Background()
	uc, repos, audit := newRunFixture()

	zone := &model.Zone{ID: 10, ShopID: 1}
	open := &model.CountingRun{ID: 55, SessionID: 100, ZoneID: 10, CountType: 1, OwnerID: 7, OwnerLabel: "tanaka", StartedAt: testNow}

	repos.zones.On("FindByID", mock.Anything, int64(10)).Return(zone, nil)
	repos.users.On("FindByID", mock.Anything, int64(7)).Return(activeOperator(7, 1, "tanaka"), nil)
	repos.runs.On("FindOpenByZoneAndType", mock.Anything, int64(10), 1).Return(open, nil)

	//カタログ未登録コード
	repos.products.On("FindByShopAndSKU", mock.Anything, int64(1), mock.Anything).Return(nil, nil)
	repos.products.On("FindByShopAndEAN", mock.Anything, int64(1), mock.Anything).Return(nil, nil)

	repos.lines.On("CreateBulk", mock.Anything, mock.MatchedBy(func(lines []model.CountLine) bool {
		if len(lines) != 2 {
			return false
		}
		//コード順で安定。重複スキャンは合算、manualはOR。
		a, b := lines[0], lines[1]
		return a.ProductCode == "SKU_A" && a.Quantity == 5 && a.Manual &&
			b.ProductCode == "SKU_B" && b.Quantity == 1 && !b.Manual
	})).Return(nil)
	repos.runs.On("MarkCompleted", mock.Anything, int64(55), testNow).Return(true, nil)
	audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	out, err := uc.Complete(ctx, 7, CompleteRunInput{
		ZoneID:    10,
		CountType: 1,
		Lines: []validator.ScanLine{
			{Code: "sku_a", Quantity: 2},
			{Code: "SKU_B", Quantity: 1},
			{Code: "SKU_A", Quantity: 3, Manual: true},
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(55), out.RunID)
	assert.Equal(t, 2, out.ItemCount)
	assert.Equal(t, 6.0, out.TotalQuantity)
	assert.Equal(t, testNow, out.CompletedAt)

	repos.lines.AssertExpectations(t)
}

func TestRunUsecase_Complete_ResolvesProductBySKUThenEAN(t *testing.T) {
	ctx := context.Background()
	uc, repos, audit := newRunFixture()

	zone := &model.Zone{ID: 10, ShopID: 1}
	open := &model.CountingRun{ID: 55, SessionID: 100, ZoneID: 10, CountType: 1, OwnerID: 7, OwnerLabel: "tanaka"}

	repos.zones.On("FindByID", mock.Anything, int64(10)).Return(zone, nil)
	repos.users.On("FindByID", mock.Anything, int64(7)).Return(activeOperator(7, 1, "tanaka"), nil)
	repos.runs.On("FindOpenByZoneAndType", mock.Anything, int64(10), 1).Return(open, nil)

	// SKUでは見つからずEANで解決
	repos.products.On("FindByShopAndSKU", mock.Anything, int64(1), "4901234567890").Return(nil, nil)
	repos.products.On("FindByShopAndEAN", mock.Anything, int64(1), "4901234567890").
		Return(&model.Product{ID: 3, ShopID: 1, SKU: "SKU_C", Name: "coffee", EAN: "4901234567890"}, nil)

	repos.lines.On("CreateBulk", mock.Anything, mock.MatchedBy(func(lines []model.CountLine) bool {
		return len(lines) == 1 && lines[0].ProductID != nil && *lines[0].ProductID == 3 &&
			lines[0].ProductName == "coffee"
	})).Return(nil)
	repos.runs.On("MarkCompleted", mock.Anything, int64(55), testNow).Return(true, nil)
	audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	_, err := uc.Complete(ctx, 7, CompleteRunInput{
		ZoneID:    10,
		CountType: 1,
		Lines:     []validator.ScanLine{{Code: "4901234567890", Quantity: 12}},
	})
	assert.NoError(t, err)

	repos.products.AssertExpectations(t)
}

func TestRunUsecase_Complete_InvalidLinesReturnLineErrors(t *testing.T) {
	uc, _, _ := newRunFixture()

	_, err := uc.Complete(context.Background(), 7, CompleteRunInput{
		ZoneID:    10,
		CountType: 1,
		Lines: []validator.ScanLine{
			{Code: "ok_code_1", Quantity: 1},
			{Code: "bad", Quantity: -2}, //短すぎ＆負数
		},
	})
	assertHTTPErr(t, err, http.StatusBadRequest, CodeValidationFailed)

	he, _ := AsHTTPError(err)
	lineErrs, ok := he.Details["lines"].([]validator.LineError)
	assert.True(t, ok)
	assert.NotEmpty(t, lineErrs)
	for _, le := range lineErrs {
		assert.Equal(t, 1, le.Index)
	}
}

func TestRunUsecase_Complete_RunOfOtherOwnerIsNotFound(t *testing.T) {
	ctx := context.Background()
	uc, repos, _ := newRunFixture()

	zone := &model.Zone{ID: 10, ShopID: 1}
	open := &model.CountingRun{ID: 55, ZoneID: 10, CountType: 1, OwnerID: 9, OwnerLabel: "suzuki"}

	repos.zones.On("FindByID", mock.Anything, int64(10)).Return(zone, nil)
	repos.users.On("FindByID", mock.Anything, int64(7)).Return(activeOperator(7, 1, "tanaka"), nil)
	repos.runs.On("FindOpenByZoneAndType", mock.Anything, int64(10), 1).Return(open, nil)

	_, err := uc.Complete(ctx, 7, CompleteRunInput{
		ZoneID:    10,
		CountType: 1,
		Lines:     []validator.ScanLine{{Code: "SKU_A", Quantity: 1}},
	})
	assertHTTPErr(t, err, http.StatusNotFound, CodeRunNotFound)
}

func TestRunUsecase_Complete_ExplicitRunIDMustMatch(t *testing.T) {
	ctx := context.Background()
	uc, repos, _ := newRunFixture()

	zone := &model.Zone{ID: 10, ShopID: 1}
	//別ゾーンのラン
	other := &model.CountingRun{ID: 77, ZoneID: 11, CountType: 1, OwnerID: 7, OwnerLabel: "tanaka"}

	repos.zones.On("FindByID", mock.Anything, int64(10)).Return(zone, nil)
	repos.users.On("FindByID", mock.Anything, int64(7)).Return(activeOperator(7, 1, "tanaka"), nil)
	repos.runs.On("FindByID", mock.Anything, int64(77)).Return(other, nil)

	runID := int64(77)
	_, err := uc.Complete(ctx, 7, CompleteRunInput{
		ZoneID:    10,
		CountType: 1,
		RunID:     &runID,
		Lines:     []validator.ScanLine{{Code: "SKU_A", Quantity: 1}},
	})
	assertHTTPErr(t, err, http.StatusNotFound, CodeRunNotFound)
}

func TestRunUsecase_Complete_NoLines(t *testing.T) {
	uc, _, _ := newRunFixture()

	_, err := uc.Complete(context.Background(), 7, CompleteRunInput{ZoneID: 10, CountType: 1})
	assertHTTPErr(t, err, http.StatusBadRequest, CodeValidationFailed)
}

// =====================
// Restart
// =====================

func TestRunUsecase_Restart_ClosesOpenRun(t *testing.T) {
	ctx := context.Background()
	uc, repos, audit := newRunFixture()

	repos.zones.On("FindByIDForUpdate", mock.Anything, int64(10)).Return(&model.Zone{ID: 10, ShopID: 1}, nil)
	repos.runs.On("CloseOpenByZoneAndType", mock.Anything, int64(10), 1, testNow).Return(int64(1), nil)
	audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	out, err := uc.Restart(ctx, 7, RestartRunInput{ZoneID: 10, CountType: 1})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), out.ClosedRuns)
	assert.True(t, out.Restarted)
}

func TestRunUsecase_Restart_NothingOpenIsNotAnError(t *testing.T) {
	ctx := context.Background()
	uc, repos, audit := newRunFixture()

	repos.zones.On("FindByIDForUpdate", mock.Anything, int64(10)).Return(&model.Zone{ID: 10, ShopID: 1}, nil)
	repos.runs.On("CloseOpenByZoneAndType", mock.Anything, int64(10), 1, testNow).Return(int64(0), nil)
	audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	out, err := uc.Restart(ctx, 7, RestartRunInput{ZoneID: 10, CountType: 1})
	assert.NoError(t, err)
	assert.Equal(t, int64(0), out.ClosedRuns)
	assert.False(t, out.Restarted)
}

// =====================
// Release
// =====================

func TestRunUsecase_Release_OwnRun(t *testing.T) {
	ctx := context.Background()
	uc, repos, audit := newRunFixture()

	open := &model.CountingRun{ID: 55, ZoneID: 10, CountType: 1, OwnerID: 7, OwnerLabel: "tanaka"}
	repos.runs.On("FindByID", mock.Anything, int64(55)).Return(open, nil)
	repos.users.On("FindByID", mock.Anything, int64(7)).Return(activeOperator(7, 1, "tanaka"), nil)
	repos.runs.On("MarkReleased", mock.Anything, int64(55), testNow).Return(true, nil)
	audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	err := uc.Release(ctx, 7, ReleaseRunInput{ZoneID: 10, RunID: 55})
	assert.NoError(t, err)

	repos.runs.AssertExpectations(t)
}

func TestRunUsecase_Release_OtherOwnerForbidden(t *testing.T) {
	ctx := context.Background()
	uc, repos, _ := newRunFixture()

	open := &model.CountingRun{ID: 55, ZoneID: 10, CountType: 1, OwnerID: 9, OwnerLabel: "suzuki"}
	repos.runs.On("FindByID", mock.Anything, int64(55)).Return(open, nil)
	repos.users.On("FindByID", mock.Anything, int64(7)).Return(activeOperator(7, 1, "tanaka"), nil)

	err := uc.Release(ctx, 7, ReleaseRunInput{ZoneID: 10, RunID: 55})
	assertHTTPErr(t, err, http.StatusForbidden, CodeNotOwner)

	repos.runs.AssertNotCalled(t, "MarkReleased", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunUsecase_Release_CompletedRunIsNotFound(t *testing.T) {
	ctx := context.Background()
	uc, repos, _ := newRunFixture()

	done := testNow
	completed := &model.CountingRun{ID: 55, ZoneID: 10, CountType: 1, OwnerID: 7, CompletedAt: &done}
	repos.runs.On("FindByID", mock.Anything, int64(55)).Return(completed, nil)

	err := uc.Release(ctx, 7, ReleaseRunInput{ZoneID: 10, RunID: 55})
	assertHTTPErr(t, err, http.StatusNotFound, CodeRunNotFound)
}

// =====================
// 旧スキーマ互換（owner追跡なし）
// =====================

func TestRunUsecase_Start_LegacyOwnerMatchByLabel(t *testing.T) {
	ctx := context.Background()

	repos := &runTxRepos{
		zones:    new(RunZoneRepoMock),
		users:    new(RunUserRepoMock),
		products: new(RunProductRepoMock),
		sessions: new(RunSessionRepoMock),
		runs:     new(RunRunRepoMock),
		lines:    new(RunCountLineRepoMock),
		audit:    new(RunAuditRepoMock),
	}
	audit := new(RunAuditRepoMock)
	uc := NewRunUsecase(&runTxManagerStub{repos: repos}, audit, &fixedClock{t: testNow}, config.Config{
		OwnerTrackingEnabled: false,
	})

	// owner_idは別だが表示名が同じなら本人扱い
	open := &model.CountingRun{ID: 55, SessionID: 100, ZoneID: 10, CountType: 1, OwnerID: 0, OwnerLabel: "tanaka", StartedAt: testNow}
	repos.zones.On("FindByIDForUpdate", mock.Anything, int64(10)).Return(&model.Zone{ID: 10, ShopID: 1}, nil)
	repos.users.On("FindByID", mock.Anything, int64(7)).Return(activeOperator(7, 1, "tanaka"), nil)
	repos.runs.On("FindOpenByZoneAndType", mock.Anything, int64(10), 1).Return(open, nil)

	out, err := uc.Start(ctx, 7, StartRunInput{ZoneID: 10, ShopID: 1, CountType: 1})
	assert.NoError(t, err)
	assert.True(t, out.Resumed)
}

// =====================
// aggregateScanLines
// =====================

func TestAggregateScanLines_SumsAndNormalizes(t *testing.T) {
	agg := aggregateScanLines([]validator.ScanLine{
		{Code: " sku_a ", Quantity: 2},
		{Code: "SKU_B", Quantity: 1},
		{Code: "SKU_A", Quantity: 3, Manual: true},
		{Code: "   ", Quantity: 9}, //空コードは落ちる
	})

	assert.Equal(t, 2, len(agg))
	assert.Equal(t, "SKU_A", agg[0].Code)
	assert.Equal(t, 5.0, agg[0].Quantity)
	assert.True(t, agg[0].Manual)
	assert.Equal(t, "SKU_B", agg[1].Code)
	assert.Equal(t, 1.0, agg[1].Quantity)
	assert.False(t, agg[1].Manual)
}
