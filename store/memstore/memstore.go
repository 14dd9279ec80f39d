/*
Package memstore provides the in-memory implementation of ledger.Store.

PURPOSE:
  Backs unit tests and local experiments without a database. Every
  table is a map or slice of value structs guarded by one RWMutex;
  auto-increment IDs come from counters.

TRANSACTIONS:
  WithTx simulates a unit of work with snapshot + rollback: it locks
  the store, deep-copies the tables, runs fn against an unlocked view,
  and restores the snapshot when fn fails. Calls made on the root
  store between units of work (the EOD audit log) write directly and
  are never rolled back, matching the relational store's contract.

SEE ALSO:
  - ledger/store.go: the interface contract
  - store/sqlstore: the GORM implementation this mirrors
*/
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/ledger-engine/ledger"
)

const maxOfficeSeq = 99

// Memory implements ledger.Store over in-process maps.
type Memory struct {
	mu sync.RWMutex
	// noLock marks the view WithTx yields; its methods run under the
	// root store's mutex already.
	noLock bool
	data   *tables
}

var _ ledger.Store = (*Memory)(nil)

type balKey struct {
	ID   string // account number or GL number
	Date string // compact yyyymmdd
}

type tables struct {
	params         map[string]ledger.Parameter
	gls            map[string]ledger.GLSetup
	customers      map[uint]ledger.Customer
	products       map[string]ledger.Product
	subProducts    map[string]ledger.SubProduct
	custAccounts   map[string]ledger.CustomerAccount
	officeAccounts map[string]ledger.OfficeAccount
	seqs           map[string]int
	acctBals       map[balKey]ledger.AcctBalance
	glBals         map[balKey]ledger.GLBalance
	accrualBals    map[balKey]ledger.AccrualBalance
	legs           map[string]ledger.TranLeg
	movements      []ledger.GLMovement
	history        []ledger.TxnHistory
	accrualLegs    map[string]ledger.AccrualLeg
	accrualMoves   []ledger.GLMovementAccrual
	rates          []ledger.RateRow
	eodLogs        []ledger.EODLog

	nextCustID     uint
	nextMovementID uint
	nextHistID     uint
	nextAccrMoveID uint
	nextRateID     uint
	nextLogID      uint
}

func New() *Memory {
	return &Memory{data: &tables{
		params:         make(map[string]ledger.Parameter),
		gls:            make(map[string]ledger.GLSetup),
		customers:      make(map[uint]ledger.Customer),
		products:       make(map[string]ledger.Product),
		subProducts:    make(map[string]ledger.SubProduct),
		custAccounts:   make(map[string]ledger.CustomerAccount),
		officeAccounts: make(map[string]ledger.OfficeAccount),
		seqs:           make(map[string]int),
		acctBals:       make(map[balKey]ledger.AcctBalance),
		glBals:         make(map[balKey]ledger.GLBalance),
		accrualBals:    make(map[balKey]ledger.AccrualBalance),
		legs:           make(map[string]ledger.TranLeg),
		accrualLegs:    make(map[string]ledger.AccrualLeg),
	}}
}

func dateKey(d time.Time) string { return ledger.FormatCompactDate(ledger.DateOnly(d)) }

// =============================================================================
// LOCKING & TRANSACTIONS
// =============================================================================

func (m *Memory) lock() {
	if !m.noLock {
		m.mu.Lock()
	}
}

func (m *Memory) unlock() {
	if !m.noLock {
		m.mu.Unlock()
	}
}

func (m *Memory) rlock() {
	if !m.noLock {
		m.mu.RLock()
	}
}

func (m *Memory) runlock() {
	if !m.noLock {
		m.mu.RUnlock()
	}
}

// WithTx executes fn against a snapshot-guarded view: all writes land
// in the live tables, and the snapshot is restored when fn fails.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	if m.noLock {
		// Nested call joins the enclosing unit of work.
		return fn(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	view := &Memory{noLock: true, data: m.data}
	if err := fn(view); err != nil {
		*m.data = *snapshot
		return err
	}
	return nil
}

func (t *tables) clone() *tables {
	c := &tables{
		params:         make(map[string]ledger.Parameter, len(t.params)),
		gls:            make(map[string]ledger.GLSetup, len(t.gls)),
		customers:      make(map[uint]ledger.Customer, len(t.customers)),
		products:       make(map[string]ledger.Product, len(t.products)),
		subProducts:    make(map[string]ledger.SubProduct, len(t.subProducts)),
		custAccounts:   make(map[string]ledger.CustomerAccount, len(t.custAccounts)),
		officeAccounts: make(map[string]ledger.OfficeAccount, len(t.officeAccounts)),
		seqs:           make(map[string]int, len(t.seqs)),
		acctBals:       make(map[balKey]ledger.AcctBalance, len(t.acctBals)),
		glBals:         make(map[balKey]ledger.GLBalance, len(t.glBals)),
		accrualBals:    make(map[balKey]ledger.AccrualBalance, len(t.accrualBals)),
		legs:           make(map[string]ledger.TranLeg, len(t.legs)),
		movements:      append([]ledger.GLMovement{}, t.movements...),
		history:        append([]ledger.TxnHistory{}, t.history...),
		accrualLegs:    make(map[string]ledger.AccrualLeg, len(t.accrualLegs)),
		accrualMoves:   append([]ledger.GLMovementAccrual{}, t.accrualMoves...),
		rates:          append([]ledger.RateRow{}, t.rates...),
		eodLogs:        append([]ledger.EODLog{}, t.eodLogs...),

		nextCustID:     t.nextCustID,
		nextMovementID: t.nextMovementID,
		nextHistID:     t.nextHistID,
		nextAccrMoveID: t.nextAccrMoveID,
		nextRateID:     t.nextRateID,
		nextLogID:      t.nextLogID,
	}
	for k, v := range t.params {
		c.params[k] = v
	}
	for k, v := range t.gls {
		c.gls[k] = v
	}
	for k, v := range t.customers {
		c.customers[k] = v
	}
	for k, v := range t.products {
		c.products[k] = v
	}
	for k, v := range t.subProducts {
		c.subProducts[k] = v
	}
	for k, v := range t.custAccounts {
		c.custAccounts[k] = v
	}
	for k, v := range t.officeAccounts {
		c.officeAccounts[k] = v
	}
	for k, v := range t.seqs {
		c.seqs[k] = v
	}
	for k, v := range t.acctBals {
		c.acctBals[k] = v
	}
	for k, v := range t.glBals {
		c.glBals[k] = v
	}
	for k, v := range t.accrualBals {
		c.accrualBals[k] = v
	}
	for k, v := range t.legs {
		c.legs[k] = v
	}
	for k, v := range t.accrualLegs {
		c.accrualLegs[k] = v
	}
	return c
}

// =============================================================================
// PARAMETERS
// =============================================================================

func (m *Memory) Parameter(_ context.Context, name string) (*ledger.Parameter, error) {
	m.rlock()
	defer m.runlock()

	p, ok := m.data.params[name]
	if !ok {
		return nil, ledger.NotFoundf("parameter %s not found", name)
	}
	return &p, nil
}

func (m *Memory) SetParameter(_ context.Context, name, value, updatedBy string, at time.Time) error {
	m.lock()
	defer m.unlock()

	m.data.params[name] = ledger.Parameter{
		ParameterName:  name,
		ParameterValue: value,
		UpdatedBy:      updatedBy,
		LastUpdated:    at,
	}
	return nil
}

// =============================================================================
// CHART OF ACCOUNTS
// =============================================================================

func (m *Memory) GL(_ context.Context, glNum string) (*ledger.GLSetup, error) {
	m.rlock()
	defer m.runlock()

	gl, ok := m.data.gls[glNum]
	if !ok {
		return nil, ledger.NotFoundf("GL %s not found", glNum)
	}
	return &gl, nil
}

func (m *Memory) SaveGL(_ context.Context, gl *ledger.GLSetup) error {
	m.lock()
	defer m.unlock()
	m.data.gls[gl.GLNum] = *gl
	return nil
}

func (m *Memory) GLsByLayer(_ context.Context, layerID int) ([]ledger.GLSetup, error) {
	m.rlock()
	defer m.runlock()

	var gls []ledger.GLSetup
	for _, gl := range m.data.gls {
		if gl.LayerID == layerID {
			gls = append(gls, gl)
		}
	}
	sort.Slice(gls, func(i, j int) bool { return gls[i].GLNum < gls[j].GLNum })
	return gls, nil
}

func (m *Memory) InterestRecvPayLeafGLs(_ context.Context) ([]ledger.GLSetup, error) {
	return m.leafGLsByPrefix("13", "23")
}

func (m *Memory) InterestIncomeExpLeafGLs(_ context.Context) ([]ledger.GLSetup, error) {
	return m.leafGLsByPrefix("14", "24")
}

func (m *Memory) leafGLsByPrefix(a, b string) ([]ledger.GLSetup, error) {
	m.rlock()
	defer m.runlock()

	var gls []ledger.GLSetup
	for _, gl := range m.data.gls {
		if gl.LayerID == 4 && (strings.HasPrefix(gl.GLNum, a) || strings.HasPrefix(gl.GLNum, b)) {
			gls = append(gls, gl)
		}
	}
	sort.Slice(gls, func(i, j int) bool { return gls[i].GLNum < gls[j].GLNum })
	return gls, nil
}

func (m *Memory) ActiveGLNums(_ context.Context) ([]string, error) {
	m.rlock()
	defer m.runlock()

	set := make(map[string]bool)
	for _, sp := range m.activeSubProductsLocked() {
		for _, gl := range []string{sp.CumGLNum, sp.InttGLNumIncomeExp, sp.InttGLNumRecvPay} {
			if strings.TrimSpace(gl) != "" {
				set[gl] = true
			}
		}
	}
	return sortedKeys(set), nil
}

func (m *Memory) BalanceSheetGLNums(_ context.Context) ([]string, error) {
	m.rlock()
	defer m.runlock()

	set := make(map[string]bool)
	for _, sp := range m.activeSubProductsLocked() {
		cum := strings.TrimSpace(sp.CumGLNum)
		if cum != "" &&
			(strings.HasPrefix(cum, "1") || strings.HasPrefix(cum, "2")) &&
			!strings.HasPrefix(cum, "14") && !strings.HasPrefix(cum, "24") {
			set[cum] = true
		}
		for _, gl := range []string{sp.InttGLNumIncomeExp, sp.InttGLNumRecvPay} {
			if strings.TrimSpace(gl) != "" {
				set[gl] = true
			}
		}
	}
	return sortedKeys(set), nil
}

func (m *Memory) activeSubProductsLocked() []ledger.SubProduct {
	referenced := make(map[string]bool)
	for _, a := range m.data.custAccounts {
		if a.AccountStatus != ledger.AccountClosed {
			referenced[a.SubProdCode] = true
		}
	}
	var subs []ledger.SubProduct
	for code, sp := range m.data.subProducts {
		if referenced[code] {
			subs = append(subs, sp)
		}
	}
	return subs
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// ACCOUNTS, SUB-PRODUCTS, RATES
// =============================================================================

func (m *Memory) CustomerAccount(_ context.Context, accountNo string) (*ledger.CustomerAccount, error) {
	m.rlock()
	defer m.runlock()

	a, ok := m.data.custAccounts[accountNo]
	if !ok {
		return nil, ledger.NotFoundf("customer account %s not found", accountNo)
	}
	return &a, nil
}

func (m *Memory) OfficeAccount(_ context.Context, accountNo string) (*ledger.OfficeAccount, error) {
	m.rlock()
	defer m.runlock()

	a, ok := m.data.officeAccounts[accountNo]
	if !ok {
		return nil, ledger.NotFoundf("office account %s not found", accountNo)
	}
	return &a, nil
}

func (m *Memory) SaveCustomer(_ context.Context, c *ledger.Customer) error {
	m.lock()
	defer m.unlock()

	if c.CustID == 0 {
		m.data.nextCustID++
		c.CustID = m.data.nextCustID
	} else if c.CustID > m.data.nextCustID {
		m.data.nextCustID = c.CustID
	}
	m.data.customers[c.CustID] = *c
	return nil
}

func (m *Memory) SaveProduct(_ context.Context, p *ledger.Product) error {
	m.lock()
	defer m.unlock()
	m.data.products[p.ProdCode] = *p
	return nil
}

func (m *Memory) SaveSubProduct(_ context.Context, sp *ledger.SubProduct) error {
	m.lock()
	defer m.unlock()
	m.data.subProducts[sp.SubProdCode] = *sp
	return nil
}

func (m *Memory) SaveCustomerAccount(_ context.Context, a *ledger.CustomerAccount) error {
	m.lock()
	defer m.unlock()
	m.data.custAccounts[a.AccountNo] = *a
	return nil
}

func (m *Memory) SaveOfficeAccount(_ context.Context, a *ledger.OfficeAccount) error {
	m.lock()
	defer m.unlock()
	m.data.officeAccounts[a.AccountNo] = *a
	return nil
}

func (m *Memory) ActiveCustomerAccounts(_ context.Context) ([]ledger.CustomerAccount, error) {
	m.rlock()
	defer m.runlock()

	var accounts []ledger.CustomerAccount
	for _, a := range m.data.custAccounts {
		if a.AccountStatus == ledger.AccountActive {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].AccountNo < accounts[j].AccountNo })
	return accounts, nil
}

func (m *Memory) ActiveOfficeAccounts(_ context.Context) ([]ledger.OfficeAccount, error) {
	m.rlock()
	defer m.runlock()

	var accounts []ledger.OfficeAccount
	for _, a := range m.data.officeAccounts {
		if a.AccountStatus == ledger.AccountActive {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].AccountNo < accounts[j].AccountNo })
	return accounts, nil
}

func (m *Memory) SubProduct(_ context.Context, code string) (*ledger.SubProduct, error) {
	m.rlock()
	defer m.runlock()

	sp, ok := m.data.subProducts[code]
	if !ok {
		return nil, ledger.NotFoundf("sub-product %s not found", code)
	}
	return &sp, nil
}

func (m *Memory) NextOfficeSeq(_ context.Context, glNum string) (int, error) {
	m.lock()
	defer m.unlock()

	if m.data.seqs[glNum] >= maxOfficeSeq {
		return 0, fmt.Errorf("%w: GL %s", ledger.ErrOfficeSeqExhausted, glNum)
	}
	m.data.seqs[glNum]++
	return m.data.seqs[glNum], nil
}

func (m *Memory) LatestRate(_ context.Context, inttCode string, asOf time.Time) (*ledger.RateRow, error) {
	m.rlock()
	defer m.runlock()

	cutoff := ledger.DateOnly(asOf)
	var best *ledger.RateRow
	for i := range m.data.rates {
		r := m.data.rates[i]
		if r.InttCode != inttCode || r.InttEffctvDate.After(cutoff) {
			continue
		}
		if best == nil || r.InttEffctvDate.After(best.InttEffctvDate) {
			row := r
			best = &row
		}
	}
	if best == nil {
		return nil, ledger.NotFoundf("no rate for code %s as of %s", inttCode, ledger.FormatDate(asOf))
	}
	return best, nil
}

func (m *Memory) SaveRate(_ context.Context, r *ledger.RateRow) error {
	m.lock()
	defer m.unlock()

	if r.RateID == 0 {
		m.data.nextRateID++
		r.RateID = m.data.nextRateID
	}
	for i := range m.data.rates {
		if m.data.rates[i].RateID == r.RateID {
			m.data.rates[i] = *r
			return nil
		}
	}
	m.data.rates = append(m.data.rates, *r)
	return nil
}

// =============================================================================
// ACCOUNT BALANCES
// =============================================================================

func (m *Memory) AcctBalanceAt(_ context.Context, accountNo string, date time.Time) (*ledger.AcctBalance, error) {
	m.rlock()
	defer m.runlock()

	b, ok := m.data.acctBals[balKey{accountNo, dateKey(date)}]
	if !ok {
		return nil, ledger.NotFoundf("no balance row for %s on %s", accountNo, ledger.FormatDate(date))
	}
	return &b, nil
}

func (m *Memory) LatestAcctBalance(_ context.Context, accountNo string, asOf time.Time) (*ledger.AcctBalance, error) {
	m.rlock()
	defer m.runlock()

	if b := m.latestAcctBalLocked(accountNo, dateKey(asOf), true); b != nil {
		return b, nil
	}
	return nil, ledger.NotFoundf("no balance row for %s up to %s", accountNo, ledger.FormatDate(asOf))
}

func (m *Memory) LatestAcctBalanceBefore(_ context.Context, accountNo string, date time.Time) (*ledger.AcctBalance, error) {
	m.rlock()
	defer m.runlock()

	if b := m.latestAcctBalLocked(accountNo, dateKey(date), false); b != nil {
		return b, nil
	}
	return nil, ledger.NotFoundf("no balance row for %s before %s", accountNo, ledger.FormatDate(date))
}

// latestAcctBalLocked scans for the row with the greatest date key below
// the cutoff. Compact yyyymmdd keys order lexically like dates.
func (m *Memory) latestAcctBalLocked(accountNo, cutoff string, inclusive bool) *ledger.AcctBalance {
	var best *ledger.AcctBalance
	bestKey := ""
	for k, b := range m.data.acctBals {
		if k.ID != accountNo {
			continue
		}
		if k.Date > cutoff || (!inclusive && k.Date == cutoff) {
			continue
		}
		if best == nil || k.Date > bestKey {
			row := b
			best = &row
			bestKey = k.Date
		}
	}
	return best
}

func (m *Memory) TodayAcctBalance(_ context.Context, accountNo string, date time.Time) (*ledger.AcctBalance, error) {
	m.lock()
	defer m.unlock()

	day := ledger.DateOnly(date)
	k := balKey{accountNo, dateKey(day)}
	if b, ok := m.data.acctBals[k]; ok {
		return &b, nil
	}

	opening := ledger.Zero
	if prior := m.latestAcctBalLocked(accountNo, k.Date, false); prior != nil {
		opening = prior.ClosingBal
	}
	b := ledger.AcctBalance{
		TranDate:         day,
		AccountNo:        accountNo,
		OpeningBal:       opening,
		DrSummation:      decimal.Zero,
		CrSummation:      decimal.Zero,
		ClosingBal:       opening,
		CurrentBalance:   opening,
		AvailableBalance: opening,
		LastUpdated:      day,
	}
	m.data.acctBals[k] = b
	return &b, nil
}

func (m *Memory) SaveAcctBalance(_ context.Context, b *ledger.AcctBalance) error {
	m.lock()
	defer m.unlock()

	b.TranDate = ledger.DateOnly(b.TranDate)
	m.data.acctBals[balKey{b.AccountNo, dateKey(b.TranDate)}] = *b
	return nil
}

// =============================================================================
// GL BALANCES
// =============================================================================

func (m *Memory) GLBalanceAt(_ context.Context, glNum string, date time.Time) (*ledger.GLBalance, error) {
	m.rlock()
	defer m.runlock()

	b, ok := m.data.glBals[balKey{glNum, dateKey(date)}]
	if !ok {
		return nil, ledger.NotFoundf("no GL balance row for %s on %s", glNum, ledger.FormatDate(date))
	}
	return &b, nil
}

func (m *Memory) LatestGLBalanceBefore(_ context.Context, glNum string, date time.Time) (*ledger.GLBalance, error) {
	m.rlock()
	defer m.runlock()

	if b := m.latestGLBalLocked(glNum, dateKey(date)); b != nil {
		return b, nil
	}
	return nil, ledger.NotFoundf("no GL balance row for %s before %s", glNum, ledger.FormatDate(date))
}

func (m *Memory) latestGLBalLocked(glNum, cutoff string) *ledger.GLBalance {
	var best *ledger.GLBalance
	bestKey := ""
	for k, b := range m.data.glBals {
		if k.ID != glNum || k.Date >= cutoff {
			continue
		}
		if best == nil || k.Date > bestKey {
			row := b
			best = &row
			bestKey = k.Date
		}
	}
	return best
}

func (m *Memory) TodayGLBalance(_ context.Context, glNum string, date time.Time) (*ledger.GLBalance, error) {
	m.lock()
	defer m.unlock()

	day := ledger.DateOnly(date)
	k := balKey{glNum, dateKey(day)}
	if b, ok := m.data.glBals[k]; ok {
		return &b, nil
	}

	opening := ledger.Zero
	if prior := m.latestGLBalLocked(glNum, k.Date); prior != nil {
		opening = prior.ClosingBal
	}
	b := ledger.GLBalance{
		GLNum:          glNum,
		TranDate:       day,
		OpeningBal:     opening,
		DrSummation:    decimal.Zero,
		CrSummation:    decimal.Zero,
		ClosingBal:     opening,
		CurrentBalance: opening,
		LastUpdated:    day,
	}
	m.data.glBals[k] = b
	return &b, nil
}

func (m *Memory) SaveGLBalance(_ context.Context, b *ledger.GLBalance) error {
	m.lock()
	defer m.unlock()

	b.TranDate = ledger.DateOnly(b.TranDate)
	m.data.glBals[balKey{b.GLNum, dateKey(b.TranDate)}] = *b
	return nil
}

func (m *Memory) GLBalancesOn(_ context.Context, date time.Time, glNums []string) ([]ledger.GLBalance, error) {
	m.rlock()
	defer m.runlock()

	want := make(map[string]bool, len(glNums))
	for _, gl := range glNums {
		want[gl] = true
	}

	day := dateKey(date)
	var balances []ledger.GLBalance
	for k, b := range m.data.glBals {
		if k.Date != day {
			continue
		}
		if len(glNums) > 0 && !want[k.ID] {
			continue
		}
		balances = append(balances, b)
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].GLNum < balances[j].GLNum })
	return balances, nil
}

// =============================================================================
// ACCRUAL BALANCES
// =============================================================================

func (m *Memory) LatestAccrualBalance(_ context.Context, accountNo string, asOf time.Time) (*ledger.AccrualBalance, error) {
	m.rlock()
	defer m.runlock()

	if b := m.latestAccrualBalLocked(accountNo, dateKey(asOf), true); b != nil {
		return b, nil
	}
	return nil, ledger.NotFoundf("no accrual balance row for %s up to %s", accountNo, ledger.FormatDate(asOf))
}

func (m *Memory) LatestAccrualBalanceBefore(_ context.Context, accountNo string, date time.Time) (*ledger.AccrualBalance, error) {
	m.rlock()
	defer m.runlock()

	if b := m.latestAccrualBalLocked(accountNo, dateKey(date), false); b != nil {
		return b, nil
	}
	return nil, ledger.NotFoundf("no accrual balance row for %s before %s", accountNo, ledger.FormatDate(date))
}

func (m *Memory) latestAccrualBalLocked(accountNo, cutoff string, inclusive bool) *ledger.AccrualBalance {
	var best *ledger.AccrualBalance
	bestKey := ""
	for k, b := range m.data.accrualBals {
		if k.ID != accountNo {
			continue
		}
		if k.Date > cutoff || (!inclusive && k.Date == cutoff) {
			continue
		}
		if best == nil || k.Date > bestKey {
			row := b
			best = &row
			bestKey = k.Date
		}
	}
	return best
}

func (m *Memory) SaveAccrualBalance(_ context.Context, b *ledger.AccrualBalance) error {
	m.lock()
	defer m.unlock()

	b.TranDate = ledger.DateOnly(b.TranDate)
	m.data.accrualBals[balKey{b.AccountNo, dateKey(b.TranDate)}] = *b
	return nil
}

// =============================================================================
// TRANSACTION LEGS
// =============================================================================

func (m *Memory) SaveLegs(_ context.Context, legs []ledger.TranLeg) error {
	m.lock()
	defer m.unlock()

	for _, leg := range legs {
		m.data.legs[leg.TranID] = leg
	}
	return nil
}

// SaveLeg persists a status transition; other fields stay as written.
func (m *Memory) SaveLeg(_ context.Context, leg *ledger.TranLeg) error {
	m.lock()
	defer m.unlock()

	if existing, ok := m.data.legs[leg.TranID]; ok {
		existing.TranStatus = leg.TranStatus
		m.data.legs[leg.TranID] = existing
	}
	return nil
}

func (m *Memory) LegsByBase(_ context.Context, baseID string) ([]ledger.TranLeg, error) {
	m.rlock()
	defer m.runlock()

	var legs []ledger.TranLeg
	for id, leg := range m.data.legs {
		if strings.HasPrefix(id, baseID+"-") {
			legs = append(legs, leg)
		}
	}
	sort.Slice(legs, func(i, j int) bool { return legs[i].TranID < legs[j].TranID })
	return legs, nil
}

func (m *Memory) BaseExists(_ context.Context, baseID string) (bool, error) {
	m.rlock()
	defer m.runlock()

	for id := range m.data.legs {
		if strings.HasPrefix(id, baseID+"-") {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) CountLegsOnDate(_ context.Context, date time.Time) (int64, error) {
	m.rlock()
	defer m.runlock()

	day := ledger.DateOnly(date)
	var count int64
	for _, leg := range m.data.legs {
		if ledger.SameDate(leg.TranDate, day) {
			count++
		}
	}
	return count, nil
}

func (m *Memory) LegsOnDate(_ context.Context, date time.Time, statuses []ledger.TranStatus) ([]ledger.TranLeg, error) {
	m.rlock()
	defer m.runlock()

	day := ledger.DateOnly(date)
	var legs []ledger.TranLeg
	for _, leg := range m.data.legs {
		if !ledger.SameDate(leg.TranDate, day) {
			continue
		}
		if len(statuses) > 0 && !statusIn(leg.TranStatus, statuses) {
			continue
		}
		legs = append(legs, leg)
	}
	sort.Slice(legs, func(i, j int) bool { return legs[i].TranID < legs[j].TranID })
	return legs, nil
}

func statusIn(s ledger.TranStatus, set []ledger.TranStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func (m *Memory) SumLegs(_ context.Context, accountNo string, flag ledger.DrCrFlag, date time.Time, statuses []ledger.TranStatus) (decimal.Decimal, error) {
	m.rlock()
	defer m.runlock()

	day := ledger.DateOnly(date)
	sum := ledger.Zero
	for _, leg := range m.data.legs {
		if leg.AccountNo != accountNo || leg.DrCrFlag != flag || !ledger.SameDate(leg.TranDate, day) {
			continue
		}
		if len(statuses) > 0 && !statusIn(leg.TranStatus, statuses) {
			continue
		}
		sum = sum.Add(leg.LcyAmt)
	}
	return sum, nil
}

func (m *Memory) ListLegs(_ context.Context) ([]ledger.TranLeg, error) {
	m.rlock()
	defer m.runlock()

	legs := make([]ledger.TranLeg, 0, len(m.data.legs))
	for _, leg := range m.data.legs {
		legs = append(legs, leg)
	}
	sort.Slice(legs, func(i, j int) bool {
		if !ledger.SameDate(legs[i].TranDate, legs[j].TranDate) {
			return legs[i].TranDate.After(legs[j].TranDate)
		}
		return legs[i].TranID < legs[j].TranID
	})
	return legs, nil
}

func (m *Memory) FutureLegsDue(_ context.Context, asOf time.Time) ([]ledger.TranLeg, error) {
	m.rlock()
	defer m.runlock()

	cutoff := ledger.DateOnly(asOf)
	var legs []ledger.TranLeg
	for _, leg := range m.data.legs {
		if leg.TranStatus == ledger.StatusFuture && !leg.ValueDate.After(cutoff) {
			legs = append(legs, leg)
		}
	}
	sort.Slice(legs, func(i, j int) bool { return legs[i].TranID < legs[j].TranID })
	return legs, nil
}

func (m *Memory) CountLegsByStatus(_ context.Context, status ledger.TranStatus) (int64, error) {
	m.rlock()
	defer m.runlock()

	var count int64
	for _, leg := range m.data.legs {
		if leg.TranStatus == status {
			count++
		}
	}
	return count, nil
}

// =============================================================================
// GL MOVEMENTS & HISTORY
// =============================================================================

func (m *Memory) SaveMovement(_ context.Context, mv *ledger.GLMovement) error {
	m.lock()
	defer m.unlock()

	m.data.nextMovementID++
	mv.MovementID = m.data.nextMovementID
	mv.TranDate = ledger.DateOnly(mv.TranDate)
	m.data.movements = append(m.data.movements, *mv)
	return nil
}

func (m *Memory) MovementsOnDate(_ context.Context, date time.Time) ([]ledger.GLMovement, error) {
	m.rlock()
	defer m.runlock()

	day := ledger.DateOnly(date)
	var moves []ledger.GLMovement
	for _, mv := range m.data.movements {
		if ledger.SameDate(mv.TranDate, day) {
			moves = append(moves, mv)
		}
	}
	return moves, nil
}

func (m *Memory) MovementsByTran(_ context.Context, baseID string) ([]ledger.GLMovement, error) {
	m.rlock()
	defer m.runlock()

	var moves []ledger.GLMovement
	for _, mv := range m.data.movements {
		if strings.HasPrefix(mv.TranID, baseID+"-") {
			moves = append(moves, mv)
		}
	}
	return moves, nil
}

func (m *Memory) DeleteAccrualMovements(_ context.Context, date time.Time) error {
	m.lock()
	defer m.unlock()

	day := ledger.DateOnly(date)
	kept := m.data.movements[:0]
	for _, mv := range m.data.movements {
		if ledger.SameDate(mv.TranDate, day) && strings.HasPrefix(mv.TranID, "S") {
			continue
		}
		kept = append(kept, mv)
	}
	m.data.movements = kept
	return nil
}

func (m *Memory) SaveHistory(_ context.Context, rows []ledger.TxnHistory) error {
	m.lock()
	defer m.unlock()

	for _, row := range rows {
		m.data.nextHistID++
		row.HistID = m.data.nextHistID
		m.data.history = append(m.data.history, row)
	}
	return nil
}

func (m *Memory) HistoryForAccount(_ context.Context, accountNo string) ([]ledger.TxnHistory, error) {
	m.rlock()
	defer m.runlock()

	var rows []ledger.TxnHistory
	for _, row := range m.data.history {
		if row.AccountNo == accountNo {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].HistID > rows[j].HistID })
	return rows, nil
}

// =============================================================================
// INTEREST ACCRUAL
// =============================================================================

func (m *Memory) SaveAccrualLegs(_ context.Context, legs []ledger.AccrualLeg) error {
	m.lock()
	defer m.unlock()

	for _, leg := range legs {
		m.data.accrualLegs[leg.AccrTranID] = leg
	}
	return nil
}

func (m *Memory) SaveAccrualLeg(_ context.Context, leg *ledger.AccrualLeg) error {
	m.lock()
	defer m.unlock()
	m.data.accrualLegs[leg.AccrTranID] = *leg
	return nil
}

func (m *Memory) AccrualLegsOnDate(_ context.Context, date time.Time) ([]ledger.AccrualLeg, error) {
	m.rlock()
	defer m.runlock()
	return m.accrualLegsLocked(date, ""), nil
}

func (m *Memory) PendingAccrualLegs(_ context.Context, date time.Time) ([]ledger.AccrualLeg, error) {
	m.rlock()
	defer m.runlock()
	return m.accrualLegsLocked(date, ledger.AccrualPending), nil
}

func (m *Memory) accrualLegsLocked(date time.Time, status ledger.AccrualStatus) []ledger.AccrualLeg {
	day := ledger.DateOnly(date)
	var legs []ledger.AccrualLeg
	for _, leg := range m.data.accrualLegs {
		if !ledger.SameDate(leg.AccrualDate, day) {
			continue
		}
		if status != "" && leg.Status != status {
			continue
		}
		legs = append(legs, leg)
	}
	sort.Slice(legs, func(i, j int) bool { return legs[i].AccrTranID < legs[j].AccrTranID })
	return legs
}

func (m *Memory) DeleteAccrualLegsOnDate(_ context.Context, date time.Time) error {
	m.lock()
	defer m.unlock()

	day := ledger.DateOnly(date)
	for id, leg := range m.data.accrualLegs {
		if ledger.SameDate(leg.AccrualDate, day) {
			delete(m.data.accrualLegs, id)
		}
	}
	return nil
}

func (m *Memory) MaxAccrualSeq(_ context.Context, date time.Time) (int64, error) {
	m.rlock()
	defer m.runlock()

	prefix := "S" + ledger.FormatCompactDate(date)
	var max int64
	for id := range m.data.accrualLegs {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		_, seq, _, err := ledger.ParseAccrTranID(id)
		if err != nil {
			continue
		}
		if seq > max {
			max = seq
		}
	}
	return max, nil
}

func (m *Memory) SaveAccrualMovement(_ context.Context, mv *ledger.GLMovementAccrual) error {
	m.lock()
	defer m.unlock()

	m.data.nextAccrMoveID++
	mv.MovementID = m.data.nextAccrMoveID
	mv.TranDate = ledger.DateOnly(mv.TranDate)
	m.data.accrualMoves = append(m.data.accrualMoves, *mv)
	return nil
}

func (m *Memory) AccrualMovementsOnDate(_ context.Context, date time.Time) ([]ledger.GLMovementAccrual, error) {
	m.rlock()
	defer m.runlock()

	day := ledger.DateOnly(date)
	var moves []ledger.GLMovementAccrual
	for _, mv := range m.data.accrualMoves {
		if ledger.SameDate(mv.TranDate, day) {
			moves = append(moves, mv)
		}
	}
	return moves, nil
}

// =============================================================================
// EOD LOG
// =============================================================================

func (m *Memory) AppendEODLog(_ context.Context, row *ledger.EODLog) error {
	m.lock()
	defer m.unlock()

	m.data.nextLogID++
	row.LogID = m.data.nextLogID
	row.EODDate = ledger.DateOnly(row.EODDate)
	m.data.eodLogs = append(m.data.eodLogs, *row)
	return nil
}

func (m *Memory) HasJobSuccess(_ context.Context, eodDate time.Time, jobName string) (bool, error) {
	m.rlock()
	defer m.runlock()

	day := ledger.DateOnly(eodDate)
	for _, row := range m.data.eodLogs {
		if ledger.SameDate(row.EODDate, day) && row.JobName == jobName && row.Status == ledger.EODSuccess {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) EODLogsOn(_ context.Context, eodDate time.Time) ([]ledger.EODLog, error) {
	m.rlock()
	defer m.runlock()

	day := ledger.DateOnly(eodDate)
	var rows []ledger.EODLog
	for _, row := range m.data.eodLogs {
		if ledger.SameDate(row.EODDate, day) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].LogID < rows[j].LogID })
	return rows, nil
}
