package purchase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"backend/internal/budget"
	"backend/internal/cart"
	"backend/internal/common"
	"backend/internal/product"
	"backend/internal/tenant"
	"backend/internal/tenantdb"
	"backend/internal/user"
)

type notifierCall struct {
	ReceiverID string
	Content    string
	TargetType string
	TargetID   string
	Broadcast  bool
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifierCall
}

func (f *fakeNotifier) CreateAndPush(ctx context.Context, receiverID, content, targetType, targetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifierCall{ReceiverID: receiverID, Content: content, TargetType: targetType, TargetID: targetID})
	return nil
}

func (f *fakeNotifier) NotifyCompanyManagers(ctx context.Context, content, targetType, targetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifierCall{Content: content, TargetType: targetType, TargetID: targetID, Broadcast: true})
	return nil
}

type purchaseFixture struct {
	db       *tenantdb.DB
	svc      *Service
	budgets  *budget.Service
	notifier *fakeNotifier
}

func setupPurchaseTest(t *testing.T) *purchaseFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:purchase_%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&product.Category{}, &product.Product{}, &cart.CartItem{},
		&budget.Budget{}, &budget.BudgetCriteria{}, &user.User{},
		&PurchaseRequest{}, &PurchaseItem{},
	))
	db := tenantdb.New(gdb)
	budgets := budget.NewService(db, nil)
	notifier := &fakeNotifier{}
	return &purchaseFixture{
		db:       db,
		svc:      NewService(db, budgets, notifier),
		budgets:  budgets,
		notifier: notifier,
	}
}

func purchaseCtx(companyID, userID string) context.Context {
	return tenant.WithTenantContext(context.Background(), tenant.TenantContext{
		CompanyID: companyID,
		UserID:    userID,
	})
}

func (f *purchaseFixture) seedProduct(t *testing.T, companyID, name string, price int64) *product.Product {
	t.Helper()
	p := &product.Product{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		Name:      name,
		Price:     price,
		IsActive:  true,
	}
	require.NoError(t, f.db.Gorm().Create(p).Error)
	return p
}

func (f *purchaseFixture) seedCart(t *testing.T, companyID, userID, productID string, qty int) {
	t.Helper()
	item := &cart.CartItem{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
	}
	require.NoError(t, f.db.Gorm().Create(item).Error)
}

func (f *purchaseFixture) seedBudget(t *testing.T, ctx context.Context, companyID string, amount int64) {
	t.Helper()
	now := time.Now()
	_, err := f.budgets.UpsertMonth(ctx, companyID, &budget.UpsertMonthRequest{
		Year: now.Year(), Month: int(now.Month()), Amount: amount,
	})
	require.NoError(t, err)
}

func requireBizCode(t *testing.T, err error, code string) {
	t.Helper()
	var bizErr *common.BusinessError
	require.ErrorAs(t, err, &bizErr)
	require.Equal(t, code, bizErr.Code)
}

func TestCreateFromCart_MismatchRejected(t *testing.T) {
	f := setupPurchaseTest(t)
	ctx := purchaseCtx("company-a", "user-1")
	p := f.seedProduct(t, "company-a", "可乐", 150)
	f.seedCart(t, "company-a", "user-1", p.ID, 2)
	f.seedBudget(t, ctx, "company-a", 100000)

	// 数量与购物车不符
	_, err := f.svc.CreateFromCart(ctx, "user-1", &CreateRequest{
		Items: []ItemInput{{ProductID: p.ID, Quantity: 3}},
	})
	requireBizCode(t, err, common.CodeInvalidInput)

	// 购物车未被动过，也没有残留的申请
	var cartCount, reqCount int64
	require.NoError(t, f.db.Gorm().Model(&cart.CartItem{}).Count(&cartCount).Error)
	require.NoError(t, f.db.Gorm().Model(&PurchaseRequest{}).Count(&reqCount).Error)
	require.Equal(t, int64(1), cartCount)
	require.Equal(t, int64(0), reqCount)
}

func TestCreateFromCart_Success(t *testing.T) {
	f := setupPurchaseTest(t)
	ctx := purchaseCtx("company-a", "user-1")
	cola := f.seedProduct(t, "company-a", "可乐", 150)
	chips := f.seedProduct(t, "company-a", "薯片", 200)
	f.seedCart(t, "company-a", "user-1", cola.ID, 2)
	f.seedCart(t, "company-a", "user-1", chips.ID, 1)
	f.seedBudget(t, ctx, "company-a", 100000)

	req, err := f.svc.CreateFromCart(ctx, "user-1", &CreateRequest{
		Items: []ItemInput{
			{ProductID: cola.ID, Quantity: 2},
			{ProductID: chips.ID, Quantity: 1},
		},
		ShippingFee: 300,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, req.Status)
	require.Equal(t, "company-a", req.CompanyID)
	require.Equal(t, int64(150*2+200+300), req.TotalPrice)
	require.Len(t, req.Items, 2)
	for _, item := range req.Items {
		if item.ProductID == cola.ID {
			require.Equal(t, int64(150), item.PriceSnapshot)
		}
	}

	// 购物车随提交清空
	var cartCount int64
	require.NoError(t, f.db.Gorm().Model(&cart.CartItem{}).Count(&cartCount).Error)
	require.Equal(t, int64(0), cartCount)

	// 管理层收到待审批通知
	require.Len(t, f.notifier.calls, 1)
	require.True(t, f.notifier.calls[0].Broadcast)
	require.Equal(t, req.ID, f.notifier.calls[0].TargetID)
}

func TestCreateFromCart_KeepsItemsAddedAfterValidation(t *testing.T) {
	f := setupPurchaseTest(t)
	ctx := purchaseCtx("company-a", "user-1")
	cola := f.seedProduct(t, "company-a", "可乐", 150)
	late := f.seedProduct(t, "company-a", "薯片", 200)
	f.seedCart(t, "company-a", "user-1", cola.ID, 1)
	f.seedBudget(t, ctx, "company-a", 10000)

	// 校验通过之后、事务提交之前，用户又往购物车加了一件商品
	injected := false
	err := f.db.Gorm().Callback().Create().After("gorm:create").
		Register("late_cart_insert", func(tx *gorm.DB) {
			if injected || tx.Error != nil {
				return
			}
			if _, ok := tx.Statement.Dest.(*PurchaseRequest); !ok {
				return
			}
			injected = true
			item := &cart.CartItem{
				ID:        uuid.New().String(),
				CompanyID: "company-a",
				UserID:    "user-1",
				ProductID: late.ID,
				Quantity:  3,
			}
			if err := tx.Session(&gorm.Session{NewDB: true}).Create(item).Error; err != nil {
				tx.AddError(err)
			}
		})
	require.NoError(t, err)

	_, err = f.svc.CreateFromCart(ctx, "user-1", &CreateRequest{
		Items: []ItemInput{{ProductID: cola.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.True(t, injected)

	// 已提交的条目被清掉，迟到的条目留在购物车里
	var remaining []cart.CartItem
	require.NoError(t, f.db.Gorm().Where("user_id = ?", "user-1").Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, late.ID, remaining[0].ProductID)
	require.Equal(t, 3, remaining[0].Quantity)
}

func TestApprove_DebitsBudget(t *testing.T) {
	f := setupPurchaseTest(t)
	ctx := purchaseCtx("company-a", "user-1")
	p := f.seedProduct(t, "company-a", "可乐", 500)
	f.seedCart(t, "company-a", "user-1", p.ID, 2)
	f.seedBudget(t, ctx, "company-a", 10000)

	req, err := f.svc.CreateFromCart(ctx, "user-1", &CreateRequest{
		Items: []ItemInput{{ProductID: p.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	mgrCtx := purchaseCtx("company-a", "manager-1")
	approved, err := f.svc.Approve(mgrCtx, "manager-1", req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.ApproverID)
	require.Equal(t, "manager-1", *approved.ApproverID)
	require.NotNil(t, approved.DecidedAt)

	now := time.Now()
	available, err := f.budgets.GetAvailable(context.Background(), "company-a", now.Year(), int(now.Month()))
	require.NoError(t, err)
	require.Equal(t, int64(9000), available)

	// 申请人收到审批结果
	last := f.notifier.calls[len(f.notifier.calls)-1]
	require.Equal(t, "user-1", last.ReceiverID)
	require.Equal(t, req.ID, last.TargetID)
}

func TestApprove_SecondDecisionConflicts(t *testing.T) {
	f := setupPurchaseTest(t)
	ctx := purchaseCtx("company-a", "user-1")
	p := f.seedProduct(t, "company-a", "可乐", 500)
	f.seedCart(t, "company-a", "user-1", p.ID, 1)
	f.seedBudget(t, ctx, "company-a", 10000)

	req, err := f.svc.CreateFromCart(ctx, "user-1", &CreateRequest{
		Items: []ItemInput{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	mgrCtx := purchaseCtx("company-a", "manager-1")
	_, err = f.svc.Approve(mgrCtx, "manager-1", req.ID)
	require.NoError(t, err)

	_, err = f.svc.Reject(mgrCtx, "manager-2", req.ID, "重复处理")
	requireBizCode(t, err, common.CodeConflict)

	// 预算只被扣了一次
	now := time.Now()
	available, err := f.budgets.GetAvailable(context.Background(), "company-a", now.Year(), int(now.Month()))
	require.NoError(t, err)
	require.Equal(t, int64(9500), available)
}

func TestApprove_ConcurrentDecisionsSingleWinner(t *testing.T) {
	f := setupPurchaseTest(t)
	// sqlite 单连接串行化写入，竞争的裁决靠条件 UPDATE 分出胜负
	sqlDB, err := f.db.Gorm().DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	ctx := purchaseCtx("company-a", "user-1")
	p := f.seedProduct(t, "company-a", "可乐", 500)
	f.seedCart(t, "company-a", "user-1", p.ID, 1)
	f.seedBudget(t, ctx, "company-a", 10000)

	req, err := f.svc.CreateFromCart(ctx, "user-1", &CreateRequest{
		Items: []ItemInput{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	const deciders = 6
	results := make(chan error, deciders)
	var wg sync.WaitGroup
	for i := 0; i < deciders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			approverID := fmt.Sprintf("manager-%d", n)
			mgrCtx := purchaseCtx("company-a", approverID)
			if n%2 == 0 {
				_, err := f.svc.Approve(mgrCtx, approverID, req.ID)
				results <- err
			} else {
				_, err := f.svc.Reject(mgrCtx, approverID, req.ID, "已有人处理")
				results <- err
			}
		}(i)
	}
	wg.Wait()
	close(results)

	var winners, conflicts int
	for err := range results {
		if err == nil {
			winners++
			continue
		}
		requireBizCode(t, err, common.CodeConflict)
		conflicts++
	}
	require.Equal(t, 1, winners)
	require.Equal(t, deciders-1, conflicts)

	// 预算至多扣一次，按最终落定的状态核对余额
	stored, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	now := time.Now()
	available, err := f.budgets.GetAvailable(context.Background(), "company-a", now.Year(), int(now.Month()))
	require.NoError(t, err)
	switch stored.Status {
	case StatusApproved:
		require.Equal(t, int64(9500), available)
	case StatusRejected:
		require.Equal(t, int64(10000), available)
	default:
		t.Fatalf("决议后状态异常: %s", stored.Status)
	}
}

func TestApprove_InsufficientBudgetRollsBack(t *testing.T) {
	f := setupPurchaseTest(t)
	ctx := purchaseCtx("company-a", "user-1")
	p := f.seedProduct(t, "company-a", "高级零食", 8000)
	f.seedCart(t, "company-a", "user-1", p.ID, 1)
	f.seedBudget(t, ctx, "company-a", 10000)

	req, err := f.svc.CreateFromCart(ctx, "user-1", &CreateRequest{
		Items: []ItemInput{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	// 审批前预算被其他支出压缩
	f.seedBudget(t, ctx, "company-a", 100)

	mgrCtx := purchaseCtx("company-a", "manager-1")
	_, err = f.svc.Approve(mgrCtx, "manager-1", req.ID)
	requireBizCode(t, err, common.CodeInsufficientBudget)

	// 状态翻转随事务回滚，申请保持待审批，可改期再批
	stored, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)
	require.Nil(t, stored.ApproverID)

	now := time.Now()
	available, err := f.budgets.GetAvailable(context.Background(), "company-a", now.Year(), int(now.Month()))
	require.NoError(t, err)
	require.Equal(t, int64(100), available)
}

func TestPriceSnapshotSurvivesRepricing(t *testing.T) {
	f := setupPurchaseTest(t)
	ctx := purchaseCtx("company-a", "user-1")
	p := f.seedProduct(t, "company-a", "可乐", 150)
	f.seedCart(t, "company-a", "user-1", p.ID, 2)
	f.seedBudget(t, ctx, "company-a", 10000)

	req, err := f.svc.CreateFromCart(ctx, "user-1", &CreateRequest{
		Items: []ItemInput{{ProductID: p.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	// 商品涨价不影响已提交的申请
	require.NoError(t, f.db.Gorm().Model(&product.Product{}).
		Where("id = ?", p.ID).Update("price", 999).Error)

	mgrCtx := purchaseCtx("company-a", "manager-1")
	approved, err := f.svc.Approve(mgrCtx, "manager-1", req.ID)
	require.NoError(t, err)
	require.Equal(t, int64(300), approved.TotalPrice)
	require.Equal(t, int64(150), approved.Items[0].PriceSnapshot)

	now := time.Now()
	available, err := f.budgets.GetAvailable(context.Background(), "company-a", now.Year(), int(now.Month()))
	require.NoError(t, err)
	require.Equal(t, int64(9700), available)
}

func TestReject_RequiresReason(t *testing.T) {
	f := setupPurchaseTest(t)
	ctx := purchaseCtx("company-a", "user-1")
	p := f.seedProduct(t, "company-a", "可乐", 150)
	f.seedCart(t, "company-a", "user-1", p.ID, 1)
	f.seedBudget(t, ctx, "company-a", 10000)

	req, err := f.svc.CreateFromCart(ctx, "user-1", &CreateRequest{
		Items: []ItemInput{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	mgrCtx := purchaseCtx("company-a", "manager-1")
	_, err = f.svc.Reject(mgrCtx, "manager-1", req.ID, "")
	requireBizCode(t, err, common.CodeInvalidInput)

	rejected, err := f.svc.Reject(mgrCtx, "manager-1", req.ID, "超出必要范围")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Equal(t, "超出必要范围", rejected.RejectReason)

	// 驳回不动预算
	now := time.Now()
	available, err := f.budgets.GetAvailable(context.Background(), "company-a", now.Year(), int(now.Month()))
	require.NoError(t, err)
	require.Equal(t, int64(10000), available)
}

func TestCancel_OnlyRequester(t *testing.T) {
	f := setupPurchaseTest(t)
	ctx := purchaseCtx("company-a", "user-1")
	p := f.seedProduct(t, "company-a", "可乐", 150)
	f.seedCart(t, "company-a", "user-1", p.ID, 1)
	f.seedBudget(t, ctx, "company-a", 10000)

	req, err := f.svc.CreateFromCart(ctx, "user-1", &CreateRequest{
		Items: []ItemInput{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	otherCtx := purchaseCtx("company-a", "user-2")
	_, err = f.svc.Cancel(otherCtx, "user-2", req.ID)
	requireBizCode(t, err, common.CodeForbidden)

	cancelled, err := f.svc.Cancel(ctx, "user-1", req.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
}

func TestCreateImmediate_DebitsAtomically(t *testing.T) {
	f := setupPurchaseTest(t)
	ctx := purchaseCtx("company-a", "user-1")
	p := f.seedProduct(t, "company-a", "可乐", 400)
	f.seedBudget(t, ctx, "company-a", 1000)

	req, err := f.svc.CreateImmediate(ctx, "user-1", &CreateRequest{
		Items: []ItemInput{{ProductID: p.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, req.Status)
	require.NotNil(t, req.ApproverID)
	require.Equal(t, "user-1", *req.ApproverID)

	now := time.Now()
	available, err := f.budgets.GetAvailable(context.Background(), "company-a", now.Year(), int(now.Month()))
	require.NoError(t, err)
	require.Equal(t, int64(200), available)
}

func TestCreateImmediate_InsufficientLeavesNoTrace(t *testing.T) {
	f := setupPurchaseTest(t)
	ctx := purchaseCtx("company-a", "user-1")
	p := f.seedProduct(t, "company-a", "可乐", 400)
	f.seedBudget(t, ctx, "company-a", 500)

	_, err := f.svc.CreateImmediate(ctx, "user-1", &CreateRequest{
		Items: []ItemInput{{ProductID: p.ID, Quantity: 2}},
	})
	requireBizCode(t, err, common.CodeInsufficientBudget)

	// 创建随扣减失败一起回滚
	var reqCount, itemCount int64
	require.NoError(t, f.db.Gorm().Model(&PurchaseRequest{}).Count(&reqCount).Error)
	require.NoError(t, f.db.Gorm().Model(&PurchaseItem{}).Count(&itemCount).Error)
	require.Equal(t, int64(0), reqCount)
	require.Equal(t, int64(0), itemCount)

	now := time.Now()
	available, err := f.budgets.GetAvailable(context.Background(), "company-a", now.Year(), int(now.Month()))
	require.NoError(t, err)
	require.Equal(t, int64(500), available)
}

func TestGet_CrossTenantLooksAbsent(t *testing.T) {
	f := setupPurchaseTest(t)
	ctx := purchaseCtx("company-a", "user-1")
	p := f.seedProduct(t, "company-a", "可乐", 150)
	f.seedCart(t, "company-a", "user-1", p.ID, 1)
	f.seedBudget(t, ctx, "company-a", 10000)

	req, err := f.svc.CreateFromCart(ctx, "user-1", &CreateRequest{
		Items: []ItemInput{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = f.svc.Get(purchaseCtx("company-b", "user-9"), req.ID)
	requireBizCode(t, err, common.CodeNotFound)
}

func TestList_FiltersByStatusAndRequester(t *testing.T) {
	f := setupPurchaseTest(t)
	ctx := purchaseCtx("company-a", "user-1")
	p := f.seedProduct(t, "company-a", "可乐", 150)
	f.seedBudget(t, ctx, "company-a", 10000)

	f.seedCart(t, "company-a", "user-1", p.ID, 1)
	first, err := f.svc.CreateFromCart(ctx, "user-1", &CreateRequest{
		Items: []ItemInput{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	ctx2 := purchaseCtx("company-a", "user-2")
	f.seedCart(t, "company-a", "user-2", p.ID, 2)
	_, err = f.svc.CreateFromCart(ctx2, "user-2", &CreateRequest{
		Items: []ItemInput{{ProductID: p.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	mgrCtx := purchaseCtx("company-a", "manager-1")
	_, err = f.svc.Approve(mgrCtx, "manager-1", first.ID)
	require.NoError(t, err)

	pending, meta, err := f.svc.List(ctx, &ListRequest{Status: StatusPending})
	require.NoError(t, err)
	require.Equal(t, int64(1), meta.Total)
	require.Len(t, pending, 1)

	mine, meta, err := f.svc.List(ctx, &ListRequest{RequesterID: "user-1"})
	require.NoError(t, err)
	require.Equal(t, int64(1), meta.Total)
	require.Equal(t, first.ID, mine[0].ID)
}
