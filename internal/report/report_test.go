package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaloga/internal/model"
)

var now = time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func items() []model.Item {
	return []model.Item{
		{ID: "1", Name: "Basmati Rice", Category: "Rice", Quantity: 500, UnitPrice: dec("75"), Threshold: 100},
		{ID: "3", Name: "Sunflower Oil", Category: "Oil", Quantity: 20, UnitPrice: dec("120"), Threshold: 50},
		{ID: "5", Name: "Olive Oil", Category: "Oil", Quantity: 40, UnitPrice: dec("350"), Threshold: 50},
	}
}

func sale(id, product, name string, qty int, price string, at time.Time) model.Sale {
	p := dec(price)
	return model.Sale{
		ID: id, ProductID: product, ProductName: name, Quantity: qty,
		UnitPrice: p, TotalAmount: p.Mul(decimal.NewFromInt(int64(qty))), Date: at,
	}
}

// Newest first.
func sales() []model.Sale {
	return []model.Sale{
		sale("s1", "1", "Basmati Rice", 50, "75", now.AddDate(0, 0, -1)),
		sale("s2", "3", "Sunflower Oil", 20, "120", now.AddDate(0, 0, -2)),
		sale("s3", "2", "Whole Wheat", 100, "45", now.AddDate(0, 0, -3)),
		sale("s4", "1", "Basmati Rice", 10, "75", now.AddDate(0, 0, -20)),
	}
}

func TestParseRange(t *testing.T) {
	for in, want := range map[string]Range{"": Last7Days, "7days": Last7Days, "30days": Last30Days, "90days": Last90Days} {
		got, err := ParseRange(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseRange("year")
	assert.ErrorIs(t, err, ErrUnknownRange)
}

func TestDashboard(t *testing.T) {
	d := BuildDashboard(items(), sales(), now)

	assert.Equal(t, 3, d.TotalProducts)
	// 500*75 + 20*120 + 40*350
	assert.True(t, d.InventoryValue.Equal(dec("53900")), "value = %s", d.InventoryValue)
	assert.Equal(t, 2, d.LowStockCount)
	assert.Equal(t, 4, d.TotalSales)
	require.Len(t, d.RecentSales, 4)
	assert.Equal(t, "s1", d.RecentSales[0].ID)

	assert.Equal(t, []CategoryQuantity{{"Oil", 60}, {"Rice", 500}}, d.StockByCategory)

	require.Len(t, d.RevenueByDay, 7)
	assert.Equal(t, "2024-03-04", d.RevenueByDay[0].Date)
	assert.Equal(t, "2024-03-10", d.RevenueByDay[6].Date)
	assert.True(t, d.RevenueByDay[5].Revenue.Equal(dec("3750")))
	assert.True(t, d.RevenueByDay[6].Revenue.IsZero())
}

func TestDashboardCapsRecentSales(t *testing.T) {
	var many []model.Sale
	for i := 0; i < 8; i++ {
		many = append(many, sale("x", "1", "Rice", 1, "1", now))
	}
	assert.Len(t, BuildDashboard(nil, many, now).RecentSales, RecentSalesShown)
}

func TestSalesReportLastWeek(t *testing.T) {
	rep := BuildSalesReport(items(), sales(), Last7Days, now)

	assert.Equal(t, 3, rep.Orders, "the 20-day-old sale is out of range")
	assert.Equal(t, 170, rep.ItemsSold)
	assert.True(t, rep.TotalRevenue.Equal(dec("10650")))
	assert.True(t, rep.AverageOrderValue.Equal(dec("3550")))

	require.Len(t, rep.TopProducts, 3)
	assert.Equal(t, "Whole Wheat", rep.TopProducts[0].Name)
	assert.Equal(t, 100, rep.TopProducts[0].Quantity)

	cats := map[string]string{}
	for _, c := range rep.RevenueByCategory {
		cats[c.Category] = c.Revenue.String()
	}
	assert.Equal(t, map[string]string{"Unknown": "4500", "Rice": "3750", "Oil": "2400"}, cats)
	assert.Equal(t, UnknownCategory, rep.RevenueByCategory[0].Category)
	assert.Len(t, rep.Trend, 7)
}

func TestSalesReportLongerRange(t *testing.T) {
	rep := BuildSalesReport(items(), sales(), Last30Days, now)
	assert.Equal(t, 4, rep.Orders)
	assert.Equal(t, 60, rep.TopProducts[1].Quantity)
	assert.Len(t, rep.Trend, 30)
}

func TestSalesReportEmpty(t *testing.T) {
	rep := BuildSalesReport(nil, nil, Last7Days, now)
	assert.Zero(t, rep.Orders)
	assert.True(t, rep.AverageOrderValue.IsZero())
	assert.Empty(t, rep.TopProducts)
}

func TestReceipt(t *testing.T) {
	r := BuildReceipt(sale("s1", "1", "Basmati Rice", 50, "75", now))
	assert.True(t, r.Subtotal.Equal(dec("3750")))
	assert.True(t, r.GST.Equal(dec("675")))
	assert.True(t, r.Total.Equal(dec("4425")))

	odd := BuildReceipt(sale("s2", "1", "Rice", 1, "0.99", now))
	assert.True(t, odd.GST.Equal(dec("0.18")), "gst = %s", odd.GST)
	assert.True(t, odd.Total.Equal(dec("1.17")))
}
