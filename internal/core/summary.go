package core

import "github.com/shopspring/decimal"

// ProductRevenue is revenue aggregated by product name.
type ProductRevenue struct {
	Product string
	Revenue decimal.Decimal
}

// TotalRevenue sums revenue over records. Zero for an empty slice.
func TotalRevenue(records []SaleRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Revenue)
	}
	return total
}

// GroupByProduct sums revenue per product, ordered by first appearance.
func GroupByProduct(records []SaleRecord) []ProductRevenue {
	index := make(map[string]int, len(records))
	var out []ProductRevenue
	for _, r := range records {
		i, ok := index[r.Product]
		if !ok {
			index[r.Product] = len(out)
			out = append(out, ProductRevenue{Product: r.Product, Revenue: r.Revenue})
			continue
		}
		out[i].Revenue = out[i].Revenue.Add(r.Revenue)
	}
	return out
}
