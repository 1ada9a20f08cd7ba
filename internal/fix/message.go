// Package fix defines the structured message model shared by the parser,
// validator, store and downstream analyzers, plus the FIX tag and message
// type vocabulary used throughout the repository.
package fix

import "time"

// Message is one parsed FIX message recovered from a log line.
//
// Every Message is structurally complete: MsgType, SenderCompID and
// TargetCompID default to "Unknown" and SeqNum to -1 rather than being
// absent. Numeric projections are pointers so that "field missing or
// unparsable" is distinguishable from a legitimate zero value.
//
// A Message is created once by the parser and never mutated afterwards,
// except for IsValid/ValidationErrors which the validator attaches.
type Message struct {
	// Timestamp is the message receipt time, normalized to UTC. It comes
	// from the log-line prefix when one parses, otherwise from the
	// configured fallback (processing time or SendingTime, tag 52).
	Timestamp time.Time `json:"timestamp"`

	MsgType     string `json:"msgType"`
	MsgTypeName string `json:"msgTypeName"`

	// SeqNum is tag 34, or -1 when absent or unparsable.
	SeqNum int `json:"sequenceNumber"`

	SenderCompID string `json:"senderCompId"`
	TargetCompID string `json:"targetCompId"`
	FixVersion   string `json:"fixVersion"`

	// Common identifier and instrument projections, empty when absent.
	ClOrdID      string `json:"clOrdId,omitempty"`
	OrderID      string `json:"orderId,omitempty"`
	ExecID       string `json:"execId,omitempty"`
	Symbol       string `json:"symbol,omitempty"`
	SecurityType string `json:"securityType,omitempty"`
	Side         string `json:"side,omitempty"`
	OrdType      string `json:"ordType,omitempty"`
	TimeInForce  string `json:"timeInForce,omitempty"`
	OrdStatus    string `json:"ordStatus,omitempty"`
	ExecType     string `json:"execType,omitempty"`
	Account      string `json:"account,omitempty"`

	// Numeric projections, nil when the underlying field is absent or
	// does not parse.
	Price     *float64 `json:"price,omitempty"`
	OrderQty  *float64 `json:"orderQty,omitempty"`
	LastQty   *float64 `json:"lastQty,omitempty"`
	CumQty    *float64 `json:"cumQty,omitempty"`
	LeavesQty *float64 `json:"leavesQty,omitempty"`

	// TransactTime is tag 60 in UTC, nil when absent or unparsable.
	TransactTime *time.Time `json:"transactTime,omitempty"`

	// Fields holds every tag present in the line, verbatim.
	Fields map[string]string `json:"fields"`

	IsValid          bool     `json:"isValid"`
	ValidationErrors []string `json:"validationErrors,omitempty"`
}

// SessionKey identifies the logical connection a message belongs to.
func (m *Message) SessionKey() string {
	return m.SenderCompID + "->" + m.TargetCompID
}

// SideName renders tag 54 codes as Buy/Sell, passing unknown codes through.
func SideName(side string) string {
	switch side {
	case "1":
		return "Buy"
	case "2":
		return "Sell"
	default:
		return side
	}
}
