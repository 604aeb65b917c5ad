// Package chart renders the revenue-by-product bar chart as a standalone HTML page.
package chart

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"dailysales/internal/core"
)

const (
	Title        = "Revenue by Product"
	SeriesName   = "Revenue"
	DefaultHost  = "https://go-echarts.github.io/go-echarts-assets/assets/"
	defaultWidth = "100%"
)

// palette gives each product its own colour, cycling when there are more products than entries.
var palette = []string{
	"#636efa", "#ef553b", "#00cc96", "#ab63fa", "#ffa15a",
	"#19d3f3", "#ff6692", "#b6e880", "#ff97ff", "#fecb52",
}

type Options struct {
	// AssetsHost serves echarts.min.js. Empty means DefaultHost.
	AssetsHost string
	Height     string
}

// go-echarts writes the options into an inline script without HTML escaping,
// so angle brackets in product names are swapped for their fullwidth forms.
var labelReplacer = strings.NewReplacer("<", "\uff1c", ">", "\uff1e")

func chartLabel(product string) string {
	return labelReplacer.Replace(product)
}

// RevenueBar builds the chart: x = product, y = revenue, one colour per product.
func RevenueBar(groups []core.ProductRevenue, o Options) *charts.Bar {
	host := o.AssetsHost
	if host == "" {
		host = DefaultHost
	}
	height := o.Height
	if height == "" {
		height = "360px"
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  Title,
			Width:      defaultWidth,
			Height:     height,
			AssetsHost: host,
		}),
		charts.WithTitleOpts(opts.Title{Title: Title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Product"}),
		charts.WithYAxisOpts(opts.YAxis{Name: fmt.Sprintf("Revenue (%s)", core.CurrencySymbol)}),
	)

	names := make([]string, 0, len(groups))
	data := make([]opts.BarData, 0, len(groups))
	for i, g := range groups {
		name := chartLabel(g.Product)
		names = append(names, name)
		data = append(data, opts.BarData{
			Name:      name,
			Value:     g.Revenue.Round(2).InexactFloat64(),
			ItemStyle: &opts.ItemStyle{Color: palette[i%len(palette)]},
		})
	}
	bar.SetXAxis(names).AddSeries(SeriesName, data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}

// Render writes the chart page for groups to w.
func Render(w io.Writer, groups []core.ProductRevenue, o Options) error {
	if err := RevenueBar(groups, o).Render(w); err != nil {
		return fmt.Errorf("render revenue chart: %w", err)
	}
	return nil
}
