package product

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"backend/internal/common"
	"backend/internal/storage"
	"backend/internal/tenant"
	"backend/internal/tenantdb"
)

func setupProductTest(t *testing.T) (*Service, *tenantdb.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:product_%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&Category{}, &Product{}))
	db := tenantdb.New(gdb)
	store, err := storage.NewLocalStorage(t.TempDir(), 1<<20, "test-secret", "/files")
	require.NoError(t, err)
	return NewService(db, store, time.Minute), db
}

func productCtx(companyID string) context.Context {
	return tenant.WithTenantContext(context.Background(), tenant.TenantContext{
		CompanyID: companyID,
		UserID:    "user-1",
	})
}

func requireProductBizCode(t *testing.T, err error, code string) {
	t.Helper()
	var bizErr *common.BusinessError
	require.ErrorAs(t, err, &bizErr)
	require.Equal(t, code, bizErr.Code)
}

func TestProductCRUD(t *testing.T) {
	svc, _ := setupProductTest(t)
	ctx := productCtx("company-a")

	created, err := svc.Create(ctx, &CreateRequest{Name: " 可乐 ", Price: 150})
	require.NoError(t, err)
	require.Equal(t, "可乐", created.Name)
	require.Equal(t, "company-a", created.CompanyID)
	require.True(t, created.IsActive)

	// nil 字段不变更
	newPrice := int64(180)
	updated, err := svc.Update(ctx, created.ID, &UpdateRequest{Price: &newPrice})
	require.NoError(t, err)
	require.Equal(t, int64(180), updated.Price)
	require.Equal(t, "可乐", updated.Name)

	require.NoError(t, svc.Deactivate(ctx, created.ID))

	// 下架是软删除，按 ID 仍可查到
	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}

func TestList_HidesInactiveByDefault(t *testing.T) {
	svc, _ := setupProductTest(t)
	ctx := productCtx("company-a")

	active, err := svc.Create(ctx, &CreateRequest{Name: "可乐", Price: 150})
	require.NoError(t, err)
	retired, err := svc.Create(ctx, &CreateRequest{Name: "绝版零食", Price: 500})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, retired.ID))

	visible, meta, err := svc.List(ctx, &ListRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(1), meta.Total)
	require.Equal(t, active.ID, visible[0].ID)

	all, meta, err := svc.List(ctx, &ListRequest{IncludeInactive: true})
	require.NoError(t, err)
	require.Equal(t, int64(2), meta.Total)
	require.Len(t, all, 2)
}

func TestList_ScopedToTenant(t *testing.T) {
	svc, _ := setupProductTest(t)

	_, err := svc.Create(productCtx("company-a"), &CreateRequest{Name: "可乐", Price: 150})
	require.NoError(t, err)
	_, err = svc.Create(productCtx("company-b"), &CreateRequest{Name: "薯片", Price: 200})
	require.NoError(t, err)

	items, meta, err := svc.List(productCtx("company-a"), &ListRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(1), meta.Total)
	require.Equal(t, "可乐", items[0].Name)
}

func TestDeleteCategory_OrphansProducts(t *testing.T) {
	svc, db := setupProductTest(t)
	ctx := productCtx("company-a")

	category, err := svc.CreateCategory(ctx, &CategoryRequest{Name: "饮料"})
	require.NoError(t, err)
	p, err := svc.Create(ctx, &CreateRequest{Name: "可乐", Price: 150, CategoryID: &category.ID})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCategory(ctx, category.ID))

	var stored Product
	require.NoError(t, db.Gorm().First(&stored, "id = ?", p.ID).Error)
	require.Nil(t, stored.CategoryID)

	// 跨公司的分类不可删
	err = svc.DeleteCategory(productCtx("company-b"), category.ID)
	requireProductBizCode(t, err, common.CodeNotFound)
}

func TestCreate_UnknownCategoryRejected(t *testing.T) {
	svc, _ := setupProductTest(t)
	ctx := productCtx("company-a")

	ghost := "00000000-0000-0000-0000-000000000000"
	_, err := svc.Create(ctx, &CreateRequest{Name: "可乐", Price: 150, CategoryID: &ghost})
	requireProductBizCode(t, err, common.CodeNotFound)

	// 别家公司的分类同样不可见
	other, err := svc.CreateCategory(productCtx("company-b"), &CategoryRequest{Name: "饮料"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &CreateRequest{Name: "可乐", Price: 150, CategoryID: &other.ID})
	requireProductBizCode(t, err, common.CodeNotFound)
}

func TestUploadImage(t *testing.T) {
	svc, _ := setupProductTest(t)
	ctx := productCtx("company-a")

	p, err := svc.Create(ctx, &CreateRequest{Name: "可乐", Price: 150})
	require.NoError(t, err)

	t.Run("格式白名单", func(t *testing.T) {
		_, err := svc.UploadImage(ctx, p.ID, "evil.exe", strings.NewReader("x"), 1, "application/octet-stream")
		requireProductBizCode(t, err, common.CodeInvalidInput)
	})

	t.Run("上传并生成签名地址", func(t *testing.T) {
		content := "fake-png"
		updated, err := svc.UploadImage(ctx, p.ID, "cola.png", strings.NewReader(content), int64(len(content)), "image/png")
		require.NoError(t, err)
		require.NotEmpty(t, updated.ImageKey)
		require.Contains(t, updated.ImageKey, "products/company-a/")
		require.Contains(t, updated.ImageURL, "sig=")
	})
}
