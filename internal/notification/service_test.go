package notification

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"backend/internal/auth"
	"backend/internal/common"
	"backend/internal/tenant"
	"backend/internal/tenantdb"
	"backend/internal/user"
)

func setupNotificationTest(t *testing.T) (*Service, *tenantdb.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:notification_%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&Notification{}, &user.User{}))
	db := tenantdb.New(gdb)
	return NewService(db, nil), db
}

func notifCtx(companyID, userID string) context.Context {
	return tenant.WithTenantContext(context.Background(), tenant.TenantContext{
		CompanyID: companyID,
		UserID:    userID,
	})
}

func TestCreateAndPush_PersistsFirst(t *testing.T) {
	svc, db := setupNotificationTest(t)
	ctx := notifCtx("company-a", "sender-1")

	// hub 为空表示无人在线，通知仍然落库
	n, err := svc.CreateAndPush(ctx, "user-1", "您的采购申请已通过", TargetPurchaseRequest, "req-1")
	require.NoError(t, err)
	require.Equal(t, "company-a", n.CompanyID)
	require.False(t, n.IsRead)

	var stored Notification
	require.NoError(t, db.Gorm().First(&stored, "id = ?", n.ID).Error)
	require.Equal(t, "user-1", stored.ReceiverID)
	require.Equal(t, TargetPurchaseRequest, stored.TargetType)
}

func TestNotifyCompanyManagers(t *testing.T) {
	svc, db := setupNotificationTest(t)
	ctx := notifCtx("company-a", "user-1")

	users := []user.User{
		{ID: "u-admin", CompanyID: "company-a", Email: "admin@a.test", Role: auth.RoleAdmin, IsActive: true},
		{ID: "u-mgr", CompanyID: "company-a", Email: "mgr@a.test", Role: auth.RoleManager, IsActive: true},
		{ID: "u-mgr-off", CompanyID: "company-a", Email: "off@a.test", Role: auth.RoleManager, IsActive: false},
		{ID: "u-user", CompanyID: "company-a", Email: "user@a.test", Role: auth.RoleUser, IsActive: true},
		{ID: "u-other", CompanyID: "company-b", Email: "mgr@b.test", Role: auth.RoleManager, IsActive: true},
	}
	for i := range users {
		require.NoError(t, db.Gorm().Create(&users[i]).Error)
	}

	require.NoError(t, svc.NotifyCompanyManagers(ctx, "新的采购申请待审批", TargetPurchaseRequest, "req-1"))

	// 只有本公司在职的管理层收到
	var receivers []string
	require.NoError(t, db.Gorm().Model(&Notification{}).
		Order("receiver_id").Pluck("receiver_id", &receivers).Error)
	require.Equal(t, []string{"u-admin", "u-mgr"}, receivers)
}

func TestListAndMarkRead(t *testing.T) {
	svc, _ := setupNotificationTest(t)
	ctx := notifCtx("company-a", "user-1")

	first, err := svc.CreateAndPush(ctx, "user-1", "通知一", TargetSystem, "")
	require.NoError(t, err)
	_, err = svc.CreateAndPush(ctx, "user-1", "通知二", TargetSystem, "")
	require.NoError(t, err)
	_, err = svc.CreateAndPush(ctx, "user-2", "别人的通知", TargetSystem, "")
	require.NoError(t, err)

	items, meta, err := svc.List(ctx, "user-1", &ListRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(2), meta.Total)
	require.Len(t, items, 2)

	count, err := svc.UnreadCount(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	require.NoError(t, svc.MarkRead(ctx, "user-1", first.ID))

	unread, meta, err := svc.List(ctx, "user-1", &ListRequest{UnreadOnly: true})
	require.NoError(t, err)
	require.Equal(t, int64(1), meta.Total)
	require.Len(t, unread, 1)

	// 不能替别人标记已读
	err = svc.MarkRead(ctx, "user-2", first.ID)
	var bizErr *common.BusinessError
	require.ErrorAs(t, err, &bizErr)
	require.Equal(t, common.CodeNotFound, bizErr.Code)

	marked, err := svc.MarkAllRead(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), marked)

	count, err = svc.UnreadCount(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
}

func TestCleanup_OnlyOldReadNotifications(t *testing.T) {
	svc, db := setupNotificationTest(t)

	old := time.Now().AddDate(0, 0, -60)
	rows := []Notification{
		{ID: uuid.New().String(), CompanyID: "company-a", ReceiverID: "u1", Content: "老的已读", TargetType: TargetSystem, IsRead: true},
		{ID: uuid.New().String(), CompanyID: "company-a", ReceiverID: "u1", Content: "老的未读", TargetType: TargetSystem, IsRead: false},
		{ID: uuid.New().String(), CompanyID: "company-b", ReceiverID: "u2", Content: "新的已读", TargetType: TargetSystem, IsRead: true},
	}
	for i := range rows {
		require.NoError(t, db.Gorm().Create(&rows[i]).Error)
	}
	// 前两条改成超过保留期
	require.NoError(t, db.Gorm().Model(&Notification{}).
		Where("id IN ?", []string{rows[0].ID, rows[1].ID}).
		Update("created_at", old).Error)

	deleted, err := svc.Cleanup(context.Background(), 30)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	// 未读的不清理，保留期内的不清理
	var remaining int64
	require.NoError(t, db.Gorm().Model(&Notification{}).Count(&remaining).Error)
	require.Equal(t, int64(2), remaining)
}
