package tenantdb_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"backend/internal/tenant"
	"backend/internal/tenantdb"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type scopedItem struct {
	ID        string `gorm:"primaryKey"`
	CompanyID string
	Name      string
}

func (i *scopedItem) GetCompanyID() string   { return i.CompanyID }
func (i *scopedItem) SetCompanyID(id string) { i.CompanyID = id }

// scopedOrder references scopedItem; both tables carry a company_id column.
type scopedOrder struct {
	ID        string `gorm:"primaryKey"`
	CompanyID string
	ItemID    string
}

func (o *scopedOrder) GetCompanyID() string   { return o.CompanyID }
func (o *scopedOrder) SetCompanyID(id string) { o.CompanyID = id }

// unscopedRecord does not implement TenantOwned and must pass through.
type unscopedRecord struct {
	ID   string `gorm:"primaryKey"`
	Note string
}

func setupTestDB(t *testing.T) *tenantdb.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:tenantdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("init sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&scopedItem{}, &scopedOrder{}, &unscopedRecord{}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return tenantdb.New(db)
}

func ctxFor(companyID string) context.Context {
	return tenant.WithTenantContext(context.Background(), tenant.TenantContext{CompanyID: companyID, UserID: "u1"})
}

func seedItems(t *testing.T, db *tenantdb.DB) {
	t.Helper()
	rows := []scopedItem{
		{ID: "a1", CompanyID: "company-a", Name: "cola"},
		{ID: "a2", CompanyID: "company-a", Name: "chips"},
		{ID: "b1", CompanyID: "company-b", Name: "cookie"},
	}
	for i := range rows {
		if err := db.Gorm().Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
}

func TestScoped_FiltersByTenant(t *testing.T) {
	db := setupTestDB(t)
	seedItems(t, db)

	var items []scopedItem
	if err := db.Scoped(ctxFor("company-a"), &scopedItem{}).Find(&items).Error; err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 rows for company-a, got %d", len(items))
	}
	for _, item := range items {
		if item.CompanyID != "company-a" {
			t.Fatalf("cross-tenant row leaked: %+v", item)
		}
	}
}

func TestScoped_JoinWithSharedColumnName(t *testing.T) {
	db := setupTestDB(t)
	seedItems(t, db)
	orders := []scopedOrder{
		{ID: "o1", CompanyID: "company-a", ItemID: "a1"},
		{ID: "o2", CompanyID: "company-a", ItemID: "a2"},
		{ID: "o3", CompanyID: "company-b", ItemID: "b1"},
	}
	for i := range orders {
		if err := db.Gorm().Create(&orders[i]).Error; err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	// 两张表都有 company_id 列，过滤条件必须限定到主表，否则 JOIN 报列名歧义
	var rows []scopedOrder
	err := db.Scoped(ctxFor("company-a"), &scopedOrder{}).
		Joins("JOIN scoped_items ON scoped_items.id = scoped_orders.item_id").
		Find(&rows).Error
	if err != nil {
		t.Fatalf("joined find failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 joined rows for company-a, got %d", len(rows))
	}
	for _, row := range rows {
		if row.CompanyID != "company-a" {
			t.Fatalf("cross-tenant row leaked through join: %+v", row)
		}
	}
}

func TestScoped_ForgedFilterCannotWiden(t *testing.T) {
	db := setupTestDB(t)
	seedItems(t, db)

	// 即使调用方显式指定其他公司的过滤条件，也不能读到对方的数据
	var items []scopedItem
	err := db.Scoped(ctxFor("company-a"), &scopedItem{}).
		Where("company_id = ?", "company-b").
		Find(&items).Error
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("forged filter observed another tenant's rows: %+v", items)
	}
}

func TestScoped_GuessedPrimaryKeyCannotMutate(t *testing.T) {
	db := setupTestDB(t)
	seedItems(t, db)

	res := db.Scoped(ctxFor("company-a"), &scopedItem{}).
		Where("id = ?", "b1").
		Update("name", "hacked")
	if res.Error != nil {
		t.Fatalf("update failed: %v", res.Error)
	}
	if res.RowsAffected != 0 {
		t.Fatalf("update crossed tenant boundary, affected %d rows", res.RowsAffected)
	}

	var row scopedItem
	if err := db.Gorm().First(&row, "id = ?", "b1").Error; err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if row.Name != "cookie" {
		t.Fatalf("row was mutated across tenants: %+v", row)
	}
}

func TestScoped_AbsentContextPassesThrough(t *testing.T) {
	db := setupTestDB(t)
	seedItems(t, db)

	// 无租户上下文时（定时任务场景）查询不加过滤
	var count int64
	if err := db.Scoped(context.Background(), &scopedItem{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected unfiltered count 3, got %d", count)
	}
}

func TestScoped_UnscopedModelUntouched(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Gorm().Create(&unscopedRecord{ID: "r1", Note: "audit"}).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	var count int64
	if err := db.Scoped(ctxFor("company-a"), &unscopedRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("non-tenant model should not be filtered, got %d", count)
	}
}

func TestCreate_StampsCompanyFromContext(t *testing.T) {
	db := setupTestDB(t)

	item := &scopedItem{ID: "n1", Name: "juice"}
	if err := db.Create(ctxFor("company-a"), item); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if item.CompanyID != "company-a" {
		t.Fatalf("expected company stamped from context, got %q", item.CompanyID)
	}
}

func TestCreate_KeepsExplicitCompanyWhenUnscoped(t *testing.T) {
	db := setupTestDB(t)

	// 系统代码（无上下文）可以显式指定公司
	item := &scopedItem{ID: "n2", CompanyID: "company-b", Name: "water"}
	if err := db.Create(context.Background(), item); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if item.CompanyID != "company-b" {
		t.Fatalf("explicit company was overwritten: %q", item.CompanyID)
	}
}

func TestTransaction_ScopedInside(t *testing.T) {
	db := setupTestDB(t)
	seedItems(t, db)

	err := db.Transaction(ctxFor("company-a"), func(tx *tenantdb.DB) error {
		var count int64
		if err := tx.Scoped(ctxFor("company-a"), &scopedItem{}).Count(&count).Error; err != nil {
			return err
		}
		if count != 2 {
			t.Fatalf("expected scoped count inside tx, got %d", count)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}
