// Package report derives dashboard figures, sales reports and receipts from
// the current items and sales. Everything here is a pure function of its
// inputs.
package report

import (
	"cmp"
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/zaloga/internal/model"
)

// UnknownCategory labels revenue from sales whose item no longer exists.
const UnknownCategory = "Unknown"

const dayLayout = "2006-01-02"

// RecentSalesShown and TopProductsShown cap the lists in reports.
const (
	RecentSalesShown = 5
	TopProductsShown = 5
)

// ErrUnknownRange is returned by ParseRange.
var ErrUnknownRange = errors.New("unknown report range")

// Range is a trailing window of whole days.
type Range int

// Supported ranges.
const (
	Last7Days  Range = 7
	Last30Days Range = 30
	Last90Days Range = 90
)

// ParseRange accepts "7days", "30days" and "90days". Empty means 7 days.
func ParseRange(s string) (Range, error) {
	switch s {
	case "", "7days":
		return Last7Days, nil
	case "30days":
		return Last30Days, nil
	case "90days":
		return Last90Days, nil
	}
	return 0, ErrUnknownRange
}

type CategoryQuantity struct {
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
}

type CategoryRevenue struct {
	Category string          `json:"category"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type DayRevenue struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

type ProductSales struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Dashboard is the overview shown on the landing page.
type Dashboard struct {
	TotalProducts   int                `json:"total_products"`
	InventoryValue  decimal.Decimal    `json:"inventory_value"`
	LowStockCount   int                `json:"low_stock_count"`
	TotalSales      int                `json:"total_sales"`
	RecentSales     []model.Sale       `json:"recent_sales"`
	StockByCategory []CategoryQuantity `json:"stock_by_category"`
	RevenueByDay    []DayRevenue       `json:"revenue_by_day"`
}

// BuildDashboard summarizes items and sales as of now. sales must be newest
// first, as the sales repository lists them.
func BuildDashboard(items []model.Item, sales []model.Sale, now time.Time) Dashboard {
	d := Dashboard{
		TotalProducts:  len(items),
		InventoryValue: decimal.Zero,
		TotalSales:     len(sales),
		RecentSales:    slices.Clone(sales[:min(len(sales), RecentSalesShown)]),
	}

	byCategory := map[string]int{}
	for _, it := range items {
		d.InventoryValue = d.InventoryValue.Add(it.Value())
		if it.LowStock() {
			d.LowStockCount++
		}
		byCategory[it.Category] += it.Quantity
	}
	for cat, qty := range byCategory {
		d.StockByCategory = append(d.StockByCategory, CategoryQuantity{Category: cat, Quantity: qty})
	}
	slices.SortFunc(d.StockByCategory, func(a, b CategoryQuantity) int {
		return cmp.Compare(a.Category, b.Category)
	})

	d.RevenueByDay = dailyRevenue(sales, now, 7)
	return d
}

// SalesReport covers the sales of one range.
type SalesReport struct {
	Range             int               `json:"range_days"`
	TotalRevenue      decimal.Decimal   `json:"total_revenue"`
	ItemsSold         int               `json:"items_sold"`
	Orders            int               `json:"orders"`
	AverageOrderValue decimal.Decimal   `json:"average_order_value"`
	TopProducts       []ProductSales    `json:"top_products"`
	Trend             []DayRevenue      `json:"trend"`
	RevenueByCategory []CategoryRevenue `json:"revenue_by_category"`
}

// BuildSalesReport reports on the sales of the last r days. Categories come
// from the current items; a sale whose item is gone counts as UnknownCategory.
func BuildSalesReport(items []model.Item, sales []model.Sale, r Range, now time.Time) SalesReport {
	start := startOfDay(now).AddDate(0, 0, -int(r)+1)

	category := make(map[string]string, len(items))
	for _, it := range items {
		category[it.ID] = it.Category
	}

	rep := SalesReport{
		Range:             int(r),
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
	}
	products := map[string]*ProductSales{}
	revenue := map[string]decimal.Decimal{}
	var inRange []model.Sale

	for _, s := range sales {
		if s.Date.Before(start) {
			continue
		}
		inRange = append(inRange, s)
		rep.Orders++
		rep.ItemsSold += s.Quantity
		rep.TotalRevenue = rep.TotalRevenue.Add(s.TotalAmount)

		p, ok := products[s.ProductID]
		if !ok {
			p = &ProductSales{ProductID: s.ProductID, Name: s.ProductName, Revenue: decimal.Zero}
			products[s.ProductID] = p
		}
		p.Quantity += s.Quantity
		p.Revenue = p.Revenue.Add(s.TotalAmount)

		cat, ok := category[s.ProductID]
		if !ok {
			cat = UnknownCategory
		}
		revenue[cat] = revenue[cat].Add(s.TotalAmount)
	}

	if rep.Orders > 0 {
		rep.AverageOrderValue = rep.TotalRevenue.Div(decimal.NewFromInt(int64(rep.Orders))).Round(2)
	}

	for _, p := range products {
		rep.TopProducts = append(rep.TopProducts, *p)
	}
	slices.SortFunc(rep.TopProducts, func(a, b ProductSales) int {
		if c := cmp.Compare(b.Quantity, a.Quantity); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	rep.TopProducts = rep.TopProducts[:min(len(rep.TopProducts), TopProductsShown)]

	for cat, rev := range revenue {
		rep.RevenueByCategory = append(rep.RevenueByCategory, CategoryRevenue{Category: cat, Revenue: rev})
	}
	slices.SortFunc(rep.RevenueByCategory, func(a, b CategoryRevenue) int {
		if c := b.Revenue.Cmp(a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})

	rep.Trend = dailyRevenue(inRange, now, int(r))
	return rep
}

// dailyRevenue sums sales per calendar day for the days days ending today,
// oldest first. Days without sales are present with zero revenue.
func dailyRevenue(sales []model.Sale, now time.Time, days int) []DayRevenue {
	today := startOfDay(now)
	out := make([]DayRevenue, days)
	index := make(map[string]int, days)
	for i := range days {
		day := today.AddDate(0, 0, i-days+1).Format(dayLayout)
		out[i] = DayRevenue{Date: day, Revenue: decimal.Zero}
		index[day] = i
	}
	for _, s := range sales {
		if i, ok := index[s.Date.In(now.Location()).Format(dayLayout)]; ok {
			out[i].Revenue = out[i].Revenue.Add(s.TotalAmount)
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
