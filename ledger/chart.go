/*
chart.go - Chart of accounts classification

PURPOSE:
  GL numbers encode their accounting class in the leading digits. This
  file holds the pure prefix rules plus the relational queries over the
  (sub-product, account, GL) closure that the reports consume.

PREFIX RULES:
  1    -> Liability        14  -> interest expenditure leaves
  2    -> Asset            24  -> interest income leaves
  13   -> interest payable 23  -> interest receivable
  1102 / 2102 -> Deal (term) products; everything else is Running

  Specific leaves (210201000, 140101000) permit overdrafts: accounts on
  them may go negative without a balance check.
*/
package ledger

import (
	"context"
	"strings"
)

// Overdraft leaves. Accounts owned by these GLs skip the insufficient
// balance check on debits.
var overdraftLeaves = map[string]bool{
	"210201000": true,
	"140101000": true,
}

// Deal-product prefixes; accounts under them carry a rate fixed at opening
// when on the liability side.
var dealPrefixes = []string{"1102", "2102"}

const leafLayer = 4

// Classify maps a GL number to its accounting class by leading digit.
func Classify(glNum string) GLClass {
	switch {
	case strings.HasPrefix(glNum, "1"):
		return ClassLiability
	case strings.HasPrefix(glNum, "2"):
		return ClassAsset
	default:
		return ClassUnknown
	}
}

// IsOverdraftLeaf reports whether accounts on this GL may run negative.
func IsOverdraftLeaf(glNum string) bool { return overdraftLeaves[glNum] }

// IsInterestExpenditureLeaf reports the 14* prefix.
func IsInterestExpenditureLeaf(glNum string) bool { return strings.HasPrefix(glNum, "14") }

// IsInterestIncomeLeaf reports the 24* prefix.
func IsInterestIncomeLeaf(glNum string) bool { return strings.HasPrefix(glNum, "24") }

// IsInterestPayableLeaf reports the 13* prefix.
func IsInterestPayableLeaf(glNum string) bool { return strings.HasPrefix(glNum, "13") }

// IsInterestReceivableLeaf reports the 23* prefix.
func IsInterestReceivableLeaf(glNum string) bool { return strings.HasPrefix(glNum, "23") }

// AccountKindOf distinguishes Deal from Running accounts by GL prefix.
func AccountKindOf(glNum string) AccountKind {
	for _, p := range dealPrefixes {
		if strings.HasPrefix(glNum, p) {
			return KindDeal
		}
	}
	return KindRunning
}

// OnBalanceSheetLiabilitySide reports whether a balance-sheet GL renders
// on the liabilities (credit) side. Sides follow the leading digit, so
// the 13* payable and 14* expenditure leaves stay with the other 1* GLs;
// their balances carry accrued interest not yet capitalized.
func OnBalanceSheetLiabilitySide(glNum string) bool {
	return Classify(glNum) == ClassLiability
}

// OnBalanceSheetAssetSide is the debit-side complement: 2* GLs, keeping
// the 23* receivable and 24* income leaves.
func OnBalanceSheetAssetSide(glNum string) bool {
	return Classify(glNum) == ClassAsset
}

// =============================================================================
// CHART SERVICE - relational queries, read-only during ledger operation
// =============================================================================

// Chart answers structural questions about the GL tree.
type Chart struct {
	store GLStore
}

func NewChart(store GLStore) *Chart {
	return &Chart{store: store}
}

// Leaf reports whether glNum exists at the leaf layer.
func (c *Chart) Leaf(ctx context.Context, glNum string) (bool, error) {
	gl, err := c.store.GL(ctx, glNum)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return gl.LayerID == leafLayer, nil
}

// Name returns the GL's display name, or the number itself when the GL
// row is missing (reports stay renderable on sparse charts).
func (c *Chart) Name(ctx context.Context, glNum string) string {
	gl, err := c.store.GL(ctx, glNum)
	if err != nil || gl == nil {
		return glNum
	}
	return gl.GLName
}

// ByLayer lists the GLs at one layer.
func (c *Chart) ByLayer(ctx context.Context, layerID int) ([]GLSetup, error) {
	return c.store.GLsByLayer(ctx, layerID)
}

// InterestRecvPayLeaves lists layer-4 GLs with prefix 13 or 23.
func (c *Chart) InterestRecvPayLeaves(ctx context.Context) ([]GLSetup, error) {
	return c.store.InterestRecvPayLeafGLs(ctx)
}

// InterestIncomeExpLeaves lists layer-4 GLs with prefix 14 or 24.
func (c *Chart) InterestIncomeExpLeaves(ctx context.Context) ([]GLSetup, error) {
	return c.store.InterestIncomeExpLeafGLs(ctx)
}

// ActiveGLNums returns the GLs that participate in the Trial Balance.
func (c *Chart) ActiveGLNums(ctx context.Context) ([]string, error) {
	return c.store.ActiveGLNums(ctx)
}

// BalanceSheetGLNums returns the GLs that participate in the Balance Sheet.
func (c *Chart) BalanceSheetGLNums(ctx context.Context) ([]string, error) {
	return c.store.BalanceSheetGLNums(ctx)
}
