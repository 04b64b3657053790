package purchase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"backend/internal/user"
)

// ExportMonthly 导出指定月份已通过的采购明细为 Excel。
// 逐行流式写出，明细量大时不会把整张表攒在内存里。
func (s *Service) ExportMonthly(ctx context.Context, year, month int, w io.Writer) error {
	from, to := monthRange(year, month)

	var requests []PurchaseRequest
	err := s.db.Scoped(ctx, &PurchaseRequest{}).
		Where("status = ? AND created_at >= ? AND created_at < ?", StatusApproved, from, to).
		Preload("Items").Preload("Items.Product").
		Order("created_at ASC").
		Find(&requests).Error
	if err != nil {
		return err
	}

	requesterNames, err := s.requesterNames(ctx, requests)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := fmt.Sprintf("%d-%02d", year, month)
	f.SetSheetName("Sheet1", sheet)
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	header := []interface{}{"申请日", "申请人", "商品", "单价", "数量", "小计", "运费", "申请合计", "状态"}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	row := 2
	for _, req := range requests {
		name := requesterNames[req.RequesterID]
		for i, item := range req.Items {
			productName := item.ProductID
			if item.Product != nil {
				productName = item.Product.Name
			}
			cells := []interface{}{
				req.CreatedAt.Format("2006-01-02"),
				name,
				productName,
				item.PriceSnapshot,
				item.Quantity,
				item.PriceSnapshot * int64(item.Quantity),
			}
			// 运费和合计只在每个申请的首行出现
			if i == 0 {
				cells = append(cells, req.ShippingFee, req.TotalPrice, req.Status)
			}
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			if err := sw.SetRow(cell, cells); err != nil {
				return err
			}
			row++
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

func (s *Service) requesterNames(ctx context.Context, requests []PurchaseRequest) (map[string]string, error) {
	ids := make([]string, 0, len(requests))
	seen := make(map[string]struct{}, len(requests))
	for _, req := range requests {
		if _, ok := seen[req.RequesterID]; ok {
			continue
		}
		seen[req.RequesterID] = struct{}{}
		ids = append(ids, req.RequesterID)
	}
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var users []user.User
	err := s.db.Scoped(ctx, &user.User{}).
		Select("id", "name").Where("id IN ?", ids).Find(&users).Error
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}

// ExportFilename 导出文件名
func ExportFilename(year, month int) string {
	return fmt.Sprintf("purchases_%d%02d_%s.xlsx", year, month, time.Now().Format("20060102"))
}
