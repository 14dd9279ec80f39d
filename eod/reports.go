/*
reports.go - Trial balance and balance sheet generation (EOD Job 7)

PURPOSE:
  Writes the day's two financial reports under <reportsDir>/<yyyymmdd>/:

    TrialBalance_<yyyymmdd>.csv
      GL_Code,GL_Name,Opening_Bal,DR_Summation,CR_Summation,Closing_Bal
      rows over every GL that moved on the date plus the configured GLs
      carried forward with zero movement, sorted by GL code, then a
      TOTAL row. Generation fails when total DR and total CR differ.

    BalanceSheet_<yyyymmdd>.xlsx
      Side-by-side layout: liabilities in columns A-D, assets in F-I,
      merged title, section rows, a totals row. Sides follow the GL's
      leading digit, so the interest payable/expenditure leaves (13*,
      14*) render under liabilities and the receivable/income leaves
      (23*, 24*) under assets.

  The same Reporter also serves report downloads, validating the
  requested date before touching the filesystem.
*/
package eod

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/warp/ledger-engine/ledger"
)

const balanceSheetSheet = "Balance Sheet"

// Content types served by the download endpoint.
const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Reporter writes and serves the EOD financial reports.
type Reporter struct {
	store   ledger.Store
	chart   *ledger.Chart
	baseDir string
	log     *logrus.Entry

	mu        sync.Mutex
	lastPaths []string
}

func NewReporter(store ledger.Store, baseDir string) *Reporter {
	return &Reporter{
		store:   store,
		chart:   ledger.NewChart(store),
		baseDir: baseDir,
		log:     logrus.WithField("component", "reports"),
	}
}

// Generate writes both reports for the date and returns their paths.
// The trial balance is written first; an imbalance fails the run before
// the balance sheet is attempted.
func (r *Reporter) Generate(ctx context.Context, date time.Time) ([]string, error) {
	dateStr := ledger.FormatCompactDate(date)
	dir := filepath.Join(r.baseDir, dateStr)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ledger.IOErrorf("creating report directory %s: %v", dir, err)
	}

	tbPath := filepath.Join(dir, "TrialBalance_"+dateStr+".csv")
	if err := r.writeTrialBalance(ctx, date, tbPath); err != nil {
		return nil, err
	}

	bsPath := filepath.Join(dir, "BalanceSheet_"+dateStr+".xlsx")
	if err := r.writeBalanceSheet(ctx, date, dateStr, bsPath); err != nil {
		return nil, err
	}

	paths := []string{tbPath, bsPath}
	r.mu.Lock()
	r.lastPaths = paths
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{"date": dateStr, "trialBalance": tbPath, "balanceSheet": bsPath}).
		Info("financial reports generated")
	return paths, nil
}

// LastPaths returns the paths written by the most recent Generate call.
func (r *Reporter) LastPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lastPaths...)
}

// ProbeWritable verifies the reports directory exists (creating it when
// absent) and accepts writes. Pre-EOD validation calls this so Job 7
// cannot be the first to discover a read-only volume.
func (r *Reporter) ProbeWritable() error {
	if err := os.MkdirAll(r.baseDir, 0o755); err != nil {
		return ledger.IOErrorf("reports directory %s is not writable: %v", r.baseDir, err)
	}
	probe, err := os.CreateTemp(r.baseDir, ".probe-*")
	if err != nil {
		return ledger.IOErrorf("reports directory %s is not writable: %v", r.baseDir, err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		return ledger.IOErrorf("cleaning probe file %s: %v", name, err)
	}
	return nil
}

// =============================================================================
// TRIAL BALANCE
// =============================================================================

func (r *Reporter) writeTrialBalance(ctx context.Context, date time.Time, path string) error {
	// Every GL that moved today keeps the DR/CR totals honest; office GLs
	// sit outside the sub-product closure but still move cash.
	balances, err := r.store.GLBalancesOn(ctx, date, nil)
	if err != nil {
		return err
	}
	glNums, err := r.chart.ActiveGLNums(ctx)
	if err != nil {
		return err
	}
	balances, err = appendCarriedForward(ctx, r.store, balances, glNums, date)
	if err != nil {
		return err
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].GLNum < balances[j].GLNum })

	file, err := os.Create(path)
	if err != nil {
		return ledger.IOErrorf("creating trial balance %s: %v", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"GL_Code", "GL_Name", "Opening_Bal", "DR_Summation", "CR_Summation", "Closing_Bal"}); err != nil {
		return ledger.IOErrorf("writing trial balance header: %v", err)
	}

	totalOpen, totalDr, totalCr, totalClose := ledger.Zero, ledger.Zero, ledger.Zero, ledger.Zero
	for _, b := range balances {
		record := []string{
			b.GLNum,
			r.chart.Name(ctx, b.GLNum),
			b.OpeningBal.StringFixed(2),
			b.DrSummation.StringFixed(2),
			b.CrSummation.StringFixed(2),
			b.ClosingBal.StringFixed(2),
		}
		if err := w.Write(record); err != nil {
			return ledger.IOErrorf("writing trial balance row: %v", err)
		}
		totalOpen = totalOpen.Add(b.OpeningBal)
		totalDr = totalDr.Add(b.DrSummation)
		totalCr = totalCr.Add(b.CrSummation)
		totalClose = totalClose.Add(b.ClosingBal)
	}

	footer := []string{"TOTAL", "",
		totalOpen.StringFixed(2), totalDr.StringFixed(2), totalCr.StringFixed(2), totalClose.StringFixed(2)}
	if err := w.Write(footer); err != nil {
		return ledger.IOErrorf("writing trial balance footer: %v", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return ledger.IOErrorf("flushing trial balance: %v", err)
	}

	if !totalDr.Equal(totalCr) {
		return fmt.Errorf("%w: total DR %s != total CR %s (difference %s)",
			ledger.ErrTrialBalanceImbalanced,
			totalDr.StringFixed(2), totalCr.StringFixed(2), totalDr.Sub(totalCr).StringFixed(2))
	}

	r.log.WithFields(logrus.Fields{
		"rows": len(balances), "totalDr": totalDr.StringFixed(2), "totalCr": totalCr.StringFixed(2),
	}).Info("trial balance written")
	return nil
}

// appendCarriedForward adds a zero-movement row for each configured GL
// absent from the day's rows, carrying its last closing balance so the
// standing position still prints.
func appendCarriedForward(ctx context.Context, store ledger.Store, rows []ledger.GLBalance, glNums []string, date time.Time) ([]ledger.GLBalance, error) {
	seen := make(map[string]bool, len(rows))
	for _, b := range rows {
		seen[b.GLNum] = true
	}
	for _, gl := range glNums {
		if seen[gl] {
			continue
		}
		prior, err := store.LatestGLBalanceBefore(ctx, gl, date)
		if err != nil {
			if ledger.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		rows = append(rows, ledger.GLBalance{
			GLNum:          gl,
			TranDate:       ledger.DateOnly(date),
			OpeningBal:     prior.ClosingBal,
			DrSummation:    ledger.Zero,
			CrSummation:    ledger.Zero,
			ClosingBal:     prior.ClosingBal,
			CurrentBalance: prior.ClosingBal,
		})
	}
	return rows, nil
}

// =============================================================================
// BALANCE SHEET
// =============================================================================

func (r *Reporter) writeBalanceSheet(ctx context.Context, date time.Time, dateStr, path string) error {
	balances, err := r.store.GLBalancesOn(ctx, date, nil)
	if err != nil {
		return err
	}
	glNums, err := r.chart.BalanceSheetGLNums(ctx)
	if err != nil {
		return err
	}
	balances, err = appendCarriedForward(ctx, r.store, balances, glNums, date)
	if err != nil {
		return err
	}
	if len(balances) == 0 {
		return r.writeEmptyBalanceSheet(path, dateStr)
	}

	var liabilities, assets []ledger.GLBalance
	for _, b := range balances {
		if ledger.OnBalanceSheetLiabilitySide(b.GLNum) {
			liabilities = append(liabilities, b)
		}
		if ledger.OnBalanceSheetAssetSide(b.GLNum) {
			assets = append(assets, b)
		}
	}
	sort.Slice(liabilities, func(i, j int) bool { return liabilities[i].GLNum < liabilities[j].GLNum })
	sort.Slice(assets, func(i, j int) bool { return assets[i].GLNum < assets[j].GLNum })

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", balanceSheetSheet); err != nil {
		return ledger.IOErrorf("naming balance sheet: %v", err)
	}

	styles, err := newSheetStyles(f)
	if err != nil {
		return ledger.IOErrorf("building balance sheet styles: %v", err)
	}

	setCell := func(col, row int, value interface{}, style int) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(balanceSheetSheet, cell, value); err != nil {
			return err
		}
		if style != 0 {
			return f.SetCellStyle(balanceSheetSheet, cell, cell, style)
		}
		return nil
	}

	// Title across the whole grid.
	if err := setCell(1, 1, "BALANCE SHEET - "+dateStr, styles.title); err != nil {
		return ledger.IOErrorf("writing balance sheet title: %v", err)
	}
	if err := f.MergeCell(balanceSheetSheet, "A1", "I1"); err != nil {
		return ledger.IOErrorf("merging balance sheet title: %v", err)
	}

	headers := []string{"Category", "GL_Code", "GL_Name", "Closing_Bal"}
	for i, h := range headers {
		if err := setCell(1+i, 3, h, styles.header); err != nil {
			return ledger.IOErrorf("writing balance sheet header: %v", err)
		}
		if err := setCell(6+i, 3, h, styles.header); err != nil {
			return ledger.IOErrorf("writing balance sheet header: %v", err)
		}
	}
	if err := setCell(1, 4, "=== LIABILITIES ===", styles.section); err != nil {
		return ledger.IOErrorf("writing balance sheet section: %v", err)
	}
	if err := setCell(6, 4, "=== ASSETS ===", styles.section); err != nil {
		return ledger.IOErrorf("writing balance sheet section: %v", err)
	}

	maxRows := len(liabilities)
	if len(assets) > maxRows {
		maxRows = len(assets)
	}
	totalLiabilities, totalAssets := ledger.Zero, ledger.Zero
	for i := 0; i < maxRows; i++ {
		row := 5 + i
		if i < len(liabilities) {
			b := liabilities[i]
			if err := writeSideCells(setCell, 1, row, "LIABILITY", b, r.chart.Name(ctx, b.GLNum), styles); err != nil {
				return err
			}
			totalLiabilities = totalLiabilities.Add(b.ClosingBal)
		}
		if i < len(assets) {
			b := assets[i]
			if err := writeSideCells(setCell, 6, row, "ASSET", b, r.chart.Name(ctx, b.GLNum), styles); err != nil {
				return err
			}
			totalAssets = totalAssets.Add(b.ClosingBal)
		}
	}

	totalRow := 5 + maxRows + 1
	if err := setCell(1, totalRow, "TOTAL LIABILITIES", styles.totalLabel); err != nil {
		return ledger.IOErrorf("writing balance sheet totals: %v", err)
	}
	if err := setCell(4, totalRow, totalLiabilities.InexactFloat64(), styles.totalNumber); err != nil {
		return ledger.IOErrorf("writing balance sheet totals: %v", err)
	}
	if err := setCell(6, totalRow, "TOTAL ASSETS", styles.totalLabel); err != nil {
		return ledger.IOErrorf("writing balance sheet totals: %v", err)
	}
	if err := setCell(9, totalRow, totalAssets.InexactFloat64(), styles.totalNumber); err != nil {
		return ledger.IOErrorf("writing balance sheet totals: %v", err)
	}

	for _, width := range []struct {
		col string
		w   float64
	}{{"A", 14}, {"B", 14}, {"C", 36}, {"D", 16}, {"E", 4}, {"F", 14}, {"G", 14}, {"H", 36}, {"I", 16}} {
		if err := f.SetColWidth(balanceSheetSheet, width.col, width.col, width.w); err != nil {
			return ledger.IOErrorf("sizing balance sheet columns: %v", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return ledger.IOErrorf("saving balance sheet %s: %v", path, err)
	}

	r.log.WithFields(logrus.Fields{
		"liabilities":      len(liabilities),
		"assets":           len(assets),
		"totalLiabilities": totalLiabilities.StringFixed(2),
		"totalAssets":      totalAssets.StringFixed(2),
	}).Info("balance sheet written")
	return nil
}

func writeSideCells(setCell func(int, int, interface{}, int) error, startCol, row int,
	category string, b ledger.GLBalance, glName string, styles *sheetStyles) error {

	if err := setCell(startCol, row, category, styles.data); err != nil {
		return ledger.IOErrorf("writing balance sheet row: %v", err)
	}
	if err := setCell(startCol+1, row, b.GLNum, styles.data); err != nil {
		return ledger.IOErrorf("writing balance sheet row: %v", err)
	}
	if err := setCell(startCol+2, row, glName, styles.data); err != nil {
		return ledger.IOErrorf("writing balance sheet row: %v", err)
	}
	if err := setCell(startCol+3, row, b.ClosingBal.InexactFloat64(), styles.number); err != nil {
		return ledger.IOErrorf("writing balance sheet row: %v", err)
	}
	return nil
}

func (r *Reporter) writeEmptyBalanceSheet(path, dateStr string) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", balanceSheetSheet); err != nil {
		return ledger.IOErrorf("naming balance sheet: %v", err)
	}
	if err := f.SetCellValue(balanceSheetSheet, "A1", "BALANCE SHEET - "+dateStr); err != nil {
		return ledger.IOErrorf("writing balance sheet title: %v", err)
	}
	if err := f.SetCellValue(balanceSheetSheet, "A3", "No Balance Sheet data available for this date."); err != nil {
		return ledger.IOErrorf("writing balance sheet message: %v", err)
	}
	if err := f.SaveAs(path); err != nil {
		return ledger.IOErrorf("saving balance sheet %s: %v", path, err)
	}
	r.log.WithField("path", path).Warn("no balance sheet data; wrote empty report")
	return nil
}

type sheetStyles struct {
	title       int
	header      int
	section     int
	data        int
	number      int
	totalLabel  int
	totalNumber int
}

func newSheetStyles(f *excelize.File) (*sheetStyles, error) {
	thinBorder := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	moneyFmt := "#,##0.00"

	title, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12},
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"D9D9D9"}, Pattern: 1},
		Border:    thinBorder,
	})
	if err != nil {
		return nil, err
	}
	section, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"F2F2F2"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}
	data, err := f.NewStyle(&excelize.Style{Border: thinBorder})
	if err != nil {
		return nil, err
	}
	number, err := f.NewStyle(&excelize.Style{Border: thinBorder, CustomNumFmt: &moneyFmt})
	if err != nil {
		return nil, err
	}
	totalLabel, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, Border: thinBorder})
	if err != nil {
		return nil, err
	}
	totalNumber, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true}, Border: thinBorder, CustomNumFmt: &moneyFmt,
	})
	if err != nil {
		return nil, err
	}
	return &sheetStyles{
		title: title, header: header, section: section,
		data: data, number: number, totalLabel: totalLabel, totalNumber: totalNumber,
	}, nil
}

// =============================================================================
// DOWNLOADS
// =============================================================================

// ReportFile resolves a validated report request to an on-disk path and
// content type. kind is "trial-balance" or "balance-sheet"; dateStr must
// be exactly yyyymmdd.
func (r *Reporter) ReportFile(kind, dateStr string) (path, contentType string, err error) {
	if err := validateReportDate(dateStr); err != nil {
		return "", "", err
	}

	var fileName string
	switch kind {
	case "trial-balance":
		fileName = "TrialBalance_" + dateStr + ".csv"
		contentType = ContentTypeCSV
	case "balance-sheet":
		fileName = "BalanceSheet_" + dateStr + ".xlsx"
		contentType = ContentTypeXLSX
	default:
		return "", "", ledger.BusinessRulef("unknown report kind %q", kind)
	}

	path = filepath.Join(r.baseDir, dateStr, fileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", "", ledger.NotFoundf("report %s for %s not found", kind, dateStr)
		}
		return "", "", ledger.IOErrorf("reading report %s: %v", path, err)
	}
	return path, contentType, nil
}

// validateReportDate accepts exactly eight digits forming a real date,
// which also rules out path separators and traversal.
func validateReportDate(dateStr string) error {
	if len(dateStr) != 8 {
		return ledger.BusinessRulef("report date must be 8 digits (yyyymmdd), got %q", dateStr)
	}
	for _, c := range dateStr {
		if c < '0' || c > '9' {
			return ledger.BusinessRulef("report date must be 8 digits (yyyymmdd), got %q", dateStr)
		}
	}
	if _, err := ledger.ParseCompactDate(dateStr); err != nil {
		return ledger.BusinessRulef("report date %q is not a valid date", dateStr)
	}
	return nil
}
