/*
seed.go - Demo book loader

PURPOSE:
  Populates an empty database with a small working book: a four-layer
  chart of accounts, deposit and loan products with interest wiring,
  rate master rows, customers with accounts, and office cash accounts.
  Gives a fresh install something to post against.

WHAT IT CREATES:
  - GL_Setup rows for layers 1-4 on both sides of the book
  - 2 products, 3 sub-products (savings, 6-month term deposit, overdraft)
  - Rate master rows effective one year before the system date
  - 3 customers, 4 customer accounts, 2 office cash accounts

IDEMPOTENCY:
  A book whose liability root GL exists is left untouched, so restarts
  with SEED_DEMO_DATA=true never duplicate master data.

SEE ALSO:
  - cmd/server/main.go: calls Seed when SEED_DEMO_DATA=true
  - ledger/chart.go: the prefix rules this chart follows
*/
package api

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/ledger-engine/ledger"
)

// demoChart is a minimal four-layer chart: deposits and interest
// expenditure/payable on the liability side, cash, overdrafts and
// interest income/receivable on the asset side. 110201000 is a Deal
// (term) leaf; 210201000 permits overdrafts.
func demoChart() []ledger.GLSetup {
	rows := []struct {
		num, name, parent string
		layer             int
	}{
		{"100000000", "LIABILITIES", "", 1},
		{"200000000", "ASSETS", "", 1},

		{"110000000", "Deposits", "100000000", 2},
		{"130000000", "Interest Payable", "100000000", 2},
		{"140000000", "Interest Expenditure", "100000000", 2},
		{"210000000", "Cash and Advances", "200000000", 2},
		{"230000000", "Interest Receivable", "200000000", 2},
		{"240000000", "Interest Income", "200000000", 2},

		{"110100000", "Savings Deposits", "110000000", 3},
		{"110200000", "Term Deposits", "110000000", 3},
		{"130100000", "Interest Payable on Deposits", "130000000", 3},
		{"140100000", "Interest Expenditure on Deposits", "140000000", 3},
		{"210100000", "Cash", "210000000", 3},
		{"210200000", "Overdrafts", "210000000", 3},
		{"230100000", "Interest Receivable on Advances", "230000000", 3},
		{"240100000", "Interest Income on Advances", "240000000", 3},

		{"110101000", "Savings Deposits - Regular", "110100000", 4},
		{"110201000", "Term Deposits - 6 Month", "110200000", 4},
		{"130101000", "Interest Payable - Savings", "130100000", 4},
		{"140101000", "Interest Expenditure - Savings", "140100000", 4},
		{"210101000", "Cash in Hand", "210100000", 4},
		{"210201000", "Overdraft Loans", "210200000", 4},
		{"230101000", "Interest Receivable - Overdrafts", "230100000", 4},
		{"240101000", "Interest Income - Overdrafts", "240100000", 4},
	}

	gls := make([]ledger.GLSetup, len(rows))
	for i, r := range rows {
		gls[i] = ledger.GLSetup{
			GLNum:       r.num,
			GLName:      r.name,
			LayerID:     r.layer,
			LayerGLNum:  r.num,
			ParentGLNum: r.parent,
		}
	}
	return gls
}

// Seed loads the demo book into an empty store. systemDate anchors
// account opening dates and rate effective dates; the business clock
// itself is seeded separately by the server bootstrap.
func Seed(ctx context.Context, store ledger.Store, systemDate time.Time) error {
	systemDate = ledger.DateOnly(systemDate)

	// Already seeded?
	if _, err := store.GL(ctx, "100000000"); err == nil {
		return nil
	} else if !ledger.IsNotFound(err) {
		return err
	}

	log := logrus.WithField("component", "seed")

	err := store.WithTx(ctx, func(s ledger.Store) error {
		for _, gl := range demoChart() {
			gl := gl
			if err := s.SaveGL(ctx, &gl); err != nil {
				return err
			}
		}

		// Products and interest wiring
		products := []ledger.Product{
			{ProdCode: "DEP", ProdName: "Deposit Products"},
			{ProdCode: "LON", ProdName: "Loan Products"},
		}
		for i := range products {
			if err := s.SaveProduct(ctx, &products[i]); err != nil {
				return err
			}
		}

		subProducts := []ledger.SubProduct{
			{
				SubProdCode:        "SB01",
				ProdCode:           "DEP",
				SubProdName:        "Regular Savings",
				CumGLNum:           "110101000",
				InttCode:           "SB",
				InttGLNumIncomeExp: "140101000",
				InttGLNumRecvPay:   "130101000",
			},
			{
				SubProdCode:        "TD06",
				ProdCode:           "DEP",
				SubProdName:        "Term Deposit 6 Month",
				CumGLNum:           "110201000",
				InttCode:           "TD",
				FixedInttRate:      decimal.RequireFromString("8.50"),
				InttGLNumIncomeExp: "140101000",
				InttGLNumRecvPay:   "130101000",
			},
			{
				SubProdCode:        "OD01",
				ProdCode:           "LON",
				SubProdName:        "Secured Overdraft",
				CumGLNum:           "210201000",
				InttCode:           "OD",
				InttIncrement:      decimal.RequireFromString("1.00"),
				InttGLNumIncomeExp: "240101000",
				InttGLNumRecvPay:   "230101000",
			},
		}
		for i := range subProducts {
			if err := s.SaveSubProduct(ctx, &subProducts[i]); err != nil {
				return err
			}
		}

		// Rates effective well before any accrual date
		effective := systemDate.AddDate(-1, 0, 0)
		rates := []ledger.RateRow{
			{InttCode: "SB", InttEffctvDate: effective, InttRate: decimal.RequireFromString("4.50")},
			{InttCode: "TD", InttEffctvDate: effective, InttRate: decimal.RequireFromString("8.00")},
			{InttCode: "OD", InttEffctvDate: effective, InttRate: decimal.RequireFromString("12.00")},
		}
		for i := range rates {
			if err := s.SaveRate(ctx, &rates[i]); err != nil {
				return err
			}
		}

		// Customers
		rahim := ledger.Customer{CustName: "Rahim Uddin"}
		salma := ledger.Customer{CustName: "Salma Khatun"}
		karim := ledger.Customer{CustName: "Karim Traders Ltd"}
		for _, c := range []*ledger.Customer{&rahim, &salma, &karim} {
			if err := s.SaveCustomer(ctx, c); err != nil {
				return err
			}
		}

		// Customer accounts: "1" + owning GL + 3-digit serial (13 chars)
		maturity := systemDate.AddDate(0, 6, 0)
		accounts := []ledger.CustomerAccount{
			{
				AccountNo:     "1110101000001",
				CustID:        rahim.CustID,
				SubProdCode:   "SB01",
				GLNum:         "110101000",
				AcctName:      "Rahim Uddin - Savings",
				DateOpening:   systemDate,
				BranchCode:    "001",
				AccountStatus: ledger.AccountActive,
			},
			{
				AccountNo:     "1110101000002",
				CustID:        salma.CustID,
				SubProdCode:   "SB01",
				GLNum:         "110101000",
				AcctName:      "Salma Khatun - Savings",
				DateOpening:   systemDate,
				BranchCode:    "001",
				AccountStatus: ledger.AccountActive,
			},
			{
				AccountNo:     "1110201000001",
				CustID:        karim.CustID,
				SubProdCode:   "TD06",
				GLNum:         "110201000",
				AcctName:      "Karim Traders - Term Deposit",
				DateOpening:   systemDate,
				Tenor:         180,
				DateMaturity:  &maturity,
				BranchCode:    "001",
				AccountStatus: ledger.AccountActive,
			},
			{
				AccountNo:     "1210201000001",
				CustID:        rahim.CustID,
				SubProdCode:   "OD01",
				GLNum:         "210201000",
				AcctName:      "Rahim Uddin - Overdraft",
				DateOpening:   systemDate,
				BranchCode:    "001",
				AccountStatus: ledger.AccountActive,
				LoanLimit:     decimal.RequireFromString("50000.00"),
			},
		}
		for i := range accounts {
			if err := s.SaveCustomerAccount(ctx, &accounts[i]); err != nil {
				return err
			}
		}

		// Office cash accounts, numbered through the per-GL sequence
		registry := ledger.NewRegistry(s)
		for _, name := range []string{"Teller Cash - Main Branch", "Vault Cash - Main Branch"} {
			accountNo, err := registry.NextOfficeAccountNo(ctx, "210101000")
			if err != nil {
				return err
			}
			office := ledger.OfficeAccount{
				AccountNo:     accountNo,
				GLNum:         "210101000",
				AcctName:      name,
				DateOpening:   systemDate,
				BranchCode:    "001",
				AccountStatus: ledger.AccountActive,
			}
			if err := s.SaveOfficeAccount(ctx, &office); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	log.WithField("systemDate", ledger.FormatDate(systemDate)).Info("demo book seeded")
	return nil
}
