// Package orderflow reconstructs per-order lifecycles from a filtered
// stream of parsed messages. Only New Order Single, Execution Report and
// Order Cancel Reject messages participate; identity is resolved by a
// selectable tracking policy and amendment chains are merged through
// OrigClOrdID linkage.
package orderflow

import (
	"sort"
	"strconv"
	"time"

	"github.com/fixtools/fix-log-analyzer/internal/fix"
)

// TrackingMode selects which identifier groups messages into one order
// lifecycle.
type TrackingMode string

const (
	// TrackOrderID groups by the counterparty-assigned order id (tag 37).
	TrackOrderID TrackingMode = "OrderId"

	// TrackClOrdID groups by the client order id (tag 11), falling back
	// to tag 37 for execution reports that lack one.
	TrackClOrdID TrackingMode = "ClOrdId"
)

// OrderState is one lifecycle event.
type OrderState struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

// OrderFlow is a reconstructed order lifecycle.
type OrderFlow struct {
	OrderID   string       `json:"orderId"`
	Symbol    string       `json:"symbol"`
	Side      string       `json:"side"`
	Quantity  float64      `json:"quantity"`
	Price     float64      `json:"price"`
	CreatedAt time.Time    `json:"createdAt"`
	States    []OrderState `json:"states"`
}

// Reconstruct folds a message batch into order lifecycles. Messages are
// processed in ascending timestamp order regardless of input order; the
// returned flows are sorted descending by creation time with each flow's
// states ascending by timestamp. Pagination is the caller's concern.
func Reconstruct(messages []*fix.Message, mode TrackingMode) []*OrderFlow {
	sorted := make([]*fix.Message, 0, len(messages))
	for _, m := range messages {
		if participates(m.MsgType) {
			sorted = append(sorted, m)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	flows := make(map[string]*OrderFlow)

	for _, m := range sorted {
		trackingID := trackingID(m, mode)
		if trackingID == "" {
			continue
		}

		// Amendment chains: a message carrying OrigClOrdID re-targets to
		// the original lifecycle when one is already open.
		if origID := m.Fields[fix.TagOrigClOrdID]; origID != "" {
			if _, ok := flows[origID]; ok {
				trackingID = origID
			}
		}

		if _, ok := flows[trackingID]; !ok {
			if flow := seedFlow(m); flow != nil {
				flows[trackingID] = flow
			}
		}

		if flow, ok := flows[trackingID]; ok {
			flow.States = append(flow.States, stateFrom(m))
		}
	}

	result := make([]*OrderFlow, 0, len(flows))
	for _, flow := range flows {
		sort.SliceStable(flow.States, func(i, j int) bool {
			return flow.States[i].Timestamp.Before(flow.States[j].Timestamp)
		})
		result = append(result, flow)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result
}

func participates(msgType string) bool {
	switch msgType {
	case fix.MsgTypeNewOrderSingle, fix.MsgTypeExecutionReport, fix.MsgTypeOrderCancelReject:
		return true
	default:
		return false
	}
}

func trackingID(m *fix.Message, mode TrackingMode) string {
	switch mode {
	case TrackOrderID:
		return m.Fields[fix.TagOrderID]
	default: // TrackClOrdID
		if id := m.Fields[fix.TagClOrdID]; id != "" {
			return id
		}
		// Executions often carry only the exchange-assigned order id.
		if m.MsgType == fix.MsgTypeExecutionReport {
			return m.Fields[fix.TagOrderID]
		}
		return ""
	}
}

// seedFlow creates a lifecycle from a message's required fields. A
// message missing any of them cannot seed a lifecycle and is skipped.
func seedFlow(m *fix.Message) *OrderFlow {
	orderID := m.Fields[fix.TagOrderID]
	symbol := m.Fields[fix.TagSymbol]
	side := m.Fields[fix.TagSide]
	qtyStr := m.Fields[fix.TagOrderQty]
	priceStr := m.Fields[fix.TagPrice]

	if orderID == "" || symbol == "" || side == "" || qtyStr == "" || priceStr == "" {
		return nil
	}

	qty, err := strconv.ParseFloat(qtyStr, 64)
	if err != nil {
		return nil
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return nil
	}

	return &OrderFlow{
		OrderID:   orderID,
		Symbol:    symbol,
		Side:      fix.SideName(side),
		Quantity:  qty,
		Price:     price,
		CreatedAt: m.Timestamp,
	}
}

func stateFrom(m *fix.Message) OrderState {
	return OrderState{
		Status:    statusFor(m),
		Timestamp: m.Timestamp,
		Details:   detailsFor(m),
	}
}

func statusFor(m *fix.Message) string {
	switch m.MsgType {
	case fix.MsgTypeNewOrderSingle:
		return "New"
	case fix.MsgTypeExecutionReport:
		switch m.Fields[fix.TagOrdStatus] {
		case fix.OrdStatusNew:
			return "New"
		case fix.OrdStatusPartiallyFilled:
			return "Partial"
		case fix.OrdStatusFilled:
			return "Filled"
		case fix.OrdStatusCanceled:
			return "Cancelled"
		case fix.OrdStatusRejected:
			return "Rejected"
		default:
			return "Unknown"
		}
	case fix.MsgTypeOrderCancelReject:
		return "Rejected"
	default:
		return "Unknown"
	}
}

func detailsFor(m *fix.Message) string {
	switch m.MsgType {
	case fix.MsgTypeExecutionReport:
		switch m.Fields[fix.TagOrdStatus] {
		case fix.OrdStatusPartiallyFilled, fix.OrdStatusFilled:
			lastQty := m.Fields[fix.TagLastQty]
			lastPx := m.Fields[fix.TagLastPx]
			if lastQty != "" && lastPx != "" {
				return lastQty + "@" + lastPx
			}
		case fix.OrdStatusRejected:
			return m.Fields[fix.TagText]
		}
	case fix.MsgTypeOrderCancelReject:
		return m.Fields[fix.TagText]
	}
	return ""
}
