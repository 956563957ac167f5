package engine

import (
	"time"

	"htsim/internal/market"
	"htsim/internal/strategy"
)

const tradeLogCapacity = 100

// TradeLogEntry records one open or close action of a cycle lane.
type TradeLogEntry struct {
	Timestamp string  `json:"timestamp"`
	Side      string  `json:"side"`
	Action    string  `json:"action"`
	Price     float64 `json:"price"`
	Qty       float64 `json:"qty"`
	PnL       float64 `json:"pnl"`
	ReturnPct float64 `json:"return_pct"`
}

// LaneSnapshot is the published state of one cycle lane.
type LaneSnapshot struct {
	Name                string   `json:"name"`
	Side                string   `json:"side"`
	EntryPrice          *float64 `json:"entry_price"`
	EntryTime           *string  `json:"entry_time"`
	Size                float64  `json:"size"`
	Notional            float64  `json:"notional"`
	CurrentReturnPct    float64  `json:"current_return_pct"`
	CurrentPnL          float64  `json:"current_pnl"`
	LastPnL             float64  `json:"last_pnl"`
	LastReturnPct       float64  `json:"last_return_pct"`
	PrevCycleReturnPct  float64  `json:"prev_cycle_return_pct"`
	PrevCyclePnL        float64  `json:"prev_cycle_pnl"`
	CumulativePnL       float64  `json:"cumulative_pnl"`
	CumulativeReturnPct float64  `json:"cumulative_return_pct"`
	TradeCount          int      `json:"trade_count"`
}

// PositionState is the dual-cycle portion of the engine snapshot.
type PositionState struct {
	Strategies   []LaneSnapshot  `json:"strategies"`
	RecentTrades []TradeLogEntry `json:"recent_trades"`
}

type laneState struct {
	side          strategy.Side
	entryPrice    float64
	entryQty      float64
	entryTime     int64
	lastPnL       float64
	prevCyclePnL  float64
	cumulativePnL float64
	tradeCount    int
}

// CycleManager runs two always-in-market lanes, one long and one short.
// Both open at the start of every fixed-duration cycle and close at the
// boundary against the last candle observed before it. Round-trip fees
// (both sides) are charged against the realized PnL at close. Not safe for
// concurrent use; the engine guards it.
type CycleManager struct {
	notional     float64
	feeRate      float64
	cycleSeconds int64

	haveCycle  bool
	lastCycle  int64
	haveCandle bool
	lastCandle market.Candle

	long  laneState
	short laneState

	trades []TradeLogEntry // newest first, bounded
}

func NewCycleManager(notional, feeRate float64, cycleSeconds int) *CycleManager {
	if cycleSeconds <= 0 {
		cycleSeconds = 600
	}
	return &CycleManager{
		notional:     notional,
		feeRate:      feeRate,
		cycleSeconds: int64(cycleSeconds),
		long:         laneState{side: strategy.SideLong},
		short:        laneState{side: strategy.SideShort},
	}
}

// Update advances both lanes with one candle. The first candle ever seen
// seeds the cycle id and opens both lanes; a candle in a new cycle first
// closes both lanes against the last candle of the previous cycle, then
// reopens them at the new candle's close.
func (m *CycleManager) Update(c market.Candle) {
	cycle := c.Time / m.cycleSeconds
	if !m.haveCycle {
		m.haveCycle = true
		m.lastCycle = cycle
		m.open(&m.long, c)
		m.open(&m.short, c)
		m.lastCandle = c
		m.haveCandle = true
		return
	}
	if cycle != m.lastCycle {
		closing := c
		if m.haveCandle {
			closing = m.lastCandle
		}
		m.close(&m.long, closing)
		m.close(&m.short, closing)
		m.lastCycle = cycle
		m.open(&m.long, c)
		m.open(&m.short, c)
	}
	m.lastCandle = c
	m.haveCandle = true
}

func (m *CycleManager) open(lane *laneState, c market.Candle) {
	price := c.Close
	qty := 0.0
	if price != 0 {
		qty = m.notional / price
	}
	lane.entryPrice = price
	lane.entryQty = qty
	lane.entryTime = c.Time
	m.recordTrade(lane, "open", c.Time, price, qty, 0)
}

func (m *CycleManager) close(lane *laneState, c market.Candle) {
	if lane.entryPrice == 0 || lane.entryQty == 0 {
		return
	}
	price := c.Close
	var pnl float64
	if lane.side == strategy.SideLong {
		pnl = (price - lane.entryPrice) * lane.entryQty
	} else {
		pnl = (lane.entryPrice - price) * lane.entryQty
	}
	pnl -= 2 * m.notional * m.feeRate // entry and exit fees realized together
	lane.lastPnL = pnl
	lane.prevCyclePnL = pnl
	lane.cumulativePnL += pnl
	lane.tradeCount++
	m.recordTrade(lane, "close", c.Time, price, lane.entryQty, pnl)
	lane.entryPrice = 0
	lane.entryQty = 0
	lane.entryTime = 0
}

func (m *CycleManager) recordTrade(lane *laneState, action string, ts int64, price, qty, pnl float64) {
	retPct := 0.0
	if m.notional != 0 {
		retPct = pnl / m.notional * 100
	}
	entry := TradeLogEntry{
		Timestamp: time.Unix(ts, 0).UTC().Format("15:04:05"),
		Side:      string(lane.side),
		Action:    action,
		Price:     round2(price),
		Qty:       round6(qty),
		PnL:       round2(pnl),
		ReturnPct: round2(retPct),
	}
	m.trades = append([]TradeLogEntry{entry}, m.trades...)
	if len(m.trades) > tradeLogCapacity {
		m.trades = m.trades[:tradeLogCapacity]
	}
}

// Snapshot publishes both lanes and the recent trade log. It has no side
// effects; repeated calls without an intervening Update return equal values.
func (m *CycleManager) Snapshot() PositionState {
	latestClose := 0.0
	if m.haveCandle {
		latestClose = m.lastCandle.Close
	}
	state := PositionState{
		Strategies:   []LaneSnapshot{m.laneSnapshot(&m.long, latestClose), m.laneSnapshot(&m.short, latestClose)},
		RecentTrades: append([]TradeLogEntry(nil), m.trades...),
	}
	return state
}

func (m *CycleManager) laneSnapshot(lane *laneState, latestClose float64) LaneSnapshot {
	cumRet := 0.0
	if lane.tradeCount > 0 {
		cumRet = lane.cumulativePnL / (m.notional * float64(lane.tradeCount)) * 100
	}
	lastRet := 0.0
	if m.notional != 0 {
		lastRet = lane.lastPnL / m.notional * 100
	}
	unrealized := 0.0
	if lane.entryPrice != 0 && lane.entryQty != 0 && latestClose != 0 {
		if lane.side == strategy.SideLong {
			unrealized = (latestClose - lane.entryPrice) * lane.entryQty
		} else {
			unrealized = (lane.entryPrice - latestClose) * lane.entryQty
		}
	}
	currentRet := 0.0
	prevRet := 0.0
	if m.notional != 0 {
		currentRet = unrealized / m.notional * 100
		prevRet = lane.prevCyclePnL / m.notional * 100
	}
	snap := LaneSnapshot{
		Name:                laneName(lane.side),
		Side:                string(lane.side),
		Size:                round6(lane.entryQty),
		Notional:            m.notional,
		CurrentReturnPct:    round2(currentRet),
		CurrentPnL:          round2(unrealized),
		LastPnL:             round2(lane.lastPnL),
		LastReturnPct:       round2(lastRet),
		PrevCycleReturnPct:  round2(prevRet),
		PrevCyclePnL:        round2(lane.prevCyclePnL),
		CumulativePnL:       round2(lane.cumulativePnL),
		CumulativeReturnPct: round2(cumRet),
		TradeCount:          lane.tradeCount,
	}
	if lane.entryPrice != 0 {
		price := round2(lane.entryPrice)
		snap.EntryPrice = &price
	}
	if lane.entryTime != 0 {
		ts := time.Unix(lane.entryTime, 0).UTC().Format(time.RFC3339)
		snap.EntryTime = &ts
	}
	return snap
}

func laneName(side strategy.Side) string {
	if side == strategy.SideLong {
		return "Long Cycle"
	}
	return "Short Cycle"
}
