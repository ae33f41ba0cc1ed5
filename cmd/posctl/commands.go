package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"simplepos/internal/amount"
	"simplepos/internal/catalog"
	"simplepos/internal/config"
	"simplepos/internal/domain"
	"simplepos/internal/logger"
	"simplepos/internal/stockstatus"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

type rootOptions struct {
	url     string
	timeout time.Duration
	verbose bool
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "posctl",
		Short:         "Inspect the simplepos product feed",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.url, "url", cfg.CatalogURL, "product feed CSV URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", time.Duration(cfg.CatalogTimeoutSeconds)*time.Second, "feed request timeout")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log feed requests to stderr")

	root.AddCommand(newCatalogCmd(opts), newStockCmd(opts), newVersionCmd())
	return root
}

func (o *rootOptions) loader(stderr io.Writer) *catalog.Loader {
	log := zerolog.Nop()
	if o.verbose {
		log = logger.New(logger.Config{Env: "development", Level: "debug", Output: stderr})
	}
	return catalog.NewLoader(o.url, o.timeout, catalog.WithLogger(log))
}

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	var (
		slot  int
		term  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the parsed product catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if slot < 0 || slot > 2 {
				return fmt.Errorf("--slot must be 0, 1 or 2")
			}
			products, err := opts.loader(cmd.ErrOrStderr()).Load(cmd.Context(), domain.StockSlot(slot))
			if err != nil {
				return err
			}
			return printCatalog(cmd.OutOrStdout(), catalog.Filter(products, term, limit))
		},
	}
	cmd.Flags().IntVar(&slot, "slot", 1, "stock column to use as working stock (0 for none)")
	cmd.Flags().StringVarP(&term, "query", "q", "", "only products whose name contains this text")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows to print (0 for all)")
	return cmd
}

func printCatalog(w io.Writer, products []domain.Product) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tPC\tDZ\tCT\tSTOCK\tSTORE 1\tSTORE 2")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Name,
			priceCell(p, domain.UnitPiece),
			priceCell(p, domain.UnitDozen),
			priceCell(p, domain.UnitCarton),
			p.Stock.String(),
			p.StockStore1,
			p.StockStore2,
		)
	}
	return tw.Flush()
}

func priceCell(p domain.Product, unit domain.Unit) string {
	price, ok := p.PriceFor(unit)
	if !ok {
		return "-"
	}
	return amount.Format(price)
}

func newStockCmd(opts *rootOptions) *cobra.Command {
	var (
		term     string
		csvPath  string
		xlsxPath string
	)
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Show per-store stock status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			products, err := opts.loader(cmd.ErrOrStderr()).Load(cmd.Context(), domain.StockSlotNone)
			if err != nil {
				return err
			}
			report := stockstatus.Build(products, term)

			if csvPath != "" {
				if err := writeFile(csvPath, func(w io.Writer) error { return stockstatus.WriteCSV(w, report) }); err != nil {
					return err
				}
			}
			if xlsxPath != "" {
				if err := writeFile(xlsxPath, func(w io.Writer) error { return stockstatus.WriteXLSX(w, report) }); err != nil {
					return err
				}
			}
			if csvPath == "" && xlsxPath == "" {
				return printStock(cmd.OutOrStdout(), report)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&term, "query", "q", "", "only products whose name contains this text")
	cmd.Flags().StringVar(&csvPath, "csv", "", "write the report as CSV to this path")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "write the report as an Excel workbook to this path")
	return cmd
}

func printStock(w io.Writer, report stockstatus.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tSTORE 1\tSTORE 2\tSTATUS")
	for _, row := range report.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.Name, row.Store1, row.Store2, row.StatusLabel)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d products, %d out of stock, %d low stock\n",
		report.Summary.TotalProducts, report.Summary.OutOfStock, report.Summary.LowStock)
	return err
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the posctl version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "posctl %s (%s)\n", Version, runtime.Version())
		},
	}
}
