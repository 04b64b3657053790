package company

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"backend/internal/auth"
	"backend/internal/common"
	"backend/internal/tenantdb"
	"backend/internal/user"
)

func setupCompanyTest(t *testing.T) (*Service, *tenantdb.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:company_%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&Company{}, &user.User{}))
	db := tenantdb.New(gdb)
	return NewService(db), db
}

func requireCompanyBizCode(t *testing.T, err error, code string) {
	t.Helper()
	var bizErr *common.BusinessError
	require.ErrorAs(t, err, &bizErr)
	require.Equal(t, code, bizErr.Code)
}

func validRegister() *RegisterRequest {
	return &RegisterRequest{
		CompanyName:    "株式会社テスト",
		BusinessNumber: "1234567890123",
		AdminEmail:     "Admin@Test.co.jp",
		AdminName:      "管理 太郎",
		AdminPassword:  "password1234",
	}
}

func TestRegister(t *testing.T) {
	svc, db := setupCompanyTest(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, validRegister())
	require.NoError(t, err)
	require.Equal(t, "株式会社テスト", result.Company.Name)
	require.Equal(t, auth.RoleAdmin, result.Admin.Role)
	require.Equal(t, result.Company.ID, result.Admin.CompanyID)
	require.Equal(t, "admin@test.co.jp", result.Admin.Email)
	require.True(t, auth.CheckPassword(result.Admin.PasswordHash, "password1234"))

	t.Run("事业者番号重复", func(t *testing.T) {
		dup := validRegister()
		dup.AdminEmail = "other@test.co.jp"
		_, err := svc.Register(ctx, dup)
		requireCompanyBizCode(t, err, common.CodeConflict)

		// 冲突时公司和管理员都不会残留
		var companies, users int64
		require.NoError(t, db.Gorm().Model(&Company{}).Count(&companies).Error)
		require.NoError(t, db.Gorm().Model(&user.User{}).Count(&users).Error)
		require.Equal(t, int64(1), companies)
		require.Equal(t, int64(1), users)
	})

	t.Run("管理员邮箱重复", func(t *testing.T) {
		dup := validRegister()
		dup.BusinessNumber = "9999999999999"
		_, err := svc.Register(ctx, dup)
		requireCompanyBizCode(t, err, common.CodeConflict)
	})
}

func TestRename(t *testing.T) {
	svc, _ := setupCompanyTest(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, validRegister())
	require.NoError(t, err)

	renamed, err := svc.Rename(ctx, result.Company.ID, "  新商号株式会社  ")
	require.NoError(t, err)
	require.Equal(t, "新商号株式会社", renamed.Name)

	_, err = svc.Rename(ctx, result.Company.ID, "   ")
	requireCompanyBizCode(t, err, common.CodeInvalidInput)

	_, err = svc.Rename(ctx, "missing-id", "x")
	requireCompanyBizCode(t, err, common.CodeNotFound)
}

func TestUpdateProfile_AtomicAcrossCompanyAndPassword(t *testing.T) {
	svc, db := setupCompanyTest(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, validRegister())
	require.NoError(t, err)

	t.Run("当前密码错误整体回滚", func(t *testing.T) {
		err := svc.UpdateProfile(ctx, result.Company.ID, result.Admin.ID, &UpdateProfileRequest{
			CompanyName:     "改名失败株式会社",
			CurrentPassword: "wrong-password",
			NewPassword:     "newpassword99",
		})
		requireCompanyBizCode(t, err, common.CodeInvalidInput)

		company, err := svc.Get(ctx, result.Company.ID)
		require.NoError(t, err)
		require.Equal(t, "株式会社テスト", company.Name)
	})

	t.Run("成功时两者同时生效", func(t *testing.T) {
		err := svc.UpdateProfile(ctx, result.Company.ID, result.Admin.ID, &UpdateProfileRequest{
			CompanyName:     "新体制株式会社",
			CurrentPassword: "password1234",
			NewPassword:     "newpassword99",
		})
		require.NoError(t, err)

		company, err := svc.Get(ctx, result.Company.ID)
		require.NoError(t, err)
		require.Equal(t, "新体制株式会社", company.Name)

		var admin user.User
		require.NoError(t, db.Gorm().First(&admin, "id = ?", result.Admin.ID).Error)
		require.True(t, auth.CheckPassword(admin.PasswordHash, "newpassword99"))
	})
}
