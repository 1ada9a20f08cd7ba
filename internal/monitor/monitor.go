// Package monitor computes aggregate health signals over a parsed
// message stream: per-session counts and last-seen timestamps, sequence
// gap detection, reject/reset counts and transaction-to-receipt latency
// percentiles. Everything is computed fresh per invocation; nothing here
// is persisted.
package monitor

import (
	"math"
	"sort"
	"time"

	"github.com/fixtools/fix-log-analyzer/internal/fix"
)

// SequenceGap records one discontinuity in a session's sequence numbers.
type SequenceGap struct {
	ExpectedSeqNum int       `json:"expectedSeqNum"`
	ReceivedSeqNum int       `json:"receivedSeqNum"`
	DetectedAt     time.Time `json:"detectedAt"`
}

// SessionHealth aggregates gap detection results across sessions.
type SessionHealth struct {
	TotalGaps    int                      `json:"totalGaps"`
	SequenceGaps map[string][]SequenceGap `json:"sequenceGaps"`

	// DuplicateSeqNums counts repeated sequence numbers per session.
	// Duplicates are reported as data, not flagged as gaps.
	DuplicateSeqNums map[string]int `json:"duplicateSeqNums,omitempty"`

	// HealthScore is 0-100, 100 for an empty stream.
	HealthScore float64 `json:"healthScore"`
}

// SessionCount is a per-session message count.
type SessionCount struct {
	SessionKey   string `json:"sessionKey"`
	MessageCount int    `json:"messageCount"`
}

// SessionTimestamp is a per-session last-message timestamp.
type SessionTimestamp struct {
	SessionKey    string    `json:"sessionKey"`
	LastTimestamp time.Time `json:"lastTimestamp"`
}

// MessageTypeStats summarizes order-related activity and the full
// message-type distribution.
type MessageTypeStats struct {
	NewOrders        int            `json:"newOrders"`
	RestatedOrders   int            `json:"restatedOrders"`
	CancelledOrders  int            `json:"cancelledOrders"`
	Distribution     map[string]int `json:"messageTypeDistribution"`
}

// LatencyStats holds transaction-to-receipt latency aggregates in
// milliseconds, over the most recent sample of messages carrying a
// transaction time.
type LatencyStats struct {
	AverageLatencyMs float64 `json:"averageLatencyMs"`
	P95LatencyMs     float64 `json:"p95LatencyMs"`
	P99LatencyMs     float64 `json:"p99LatencyMs"`
}

// Stats is the full monitoring aggregate.
type Stats struct {
	MessageRates          []SessionCount     `json:"messageRates"`
	LastMessageTimestamps []SessionTimestamp `json:"lastMessageTimestamps"`
	MessageTypes          MessageTypeStats   `json:"messageTypes"`
	Latency               LatencyStats       `json:"latencyStats"`
	SessionHealth         SessionHealth      `json:"sessionHealth"`
	SequenceResets        int                `json:"sequenceResets"`
	RejectedMessages      int                `json:"rejectedMessages"`
	SessionMessages       int                `json:"sessionMessages"`
}

// ComputeStats folds one message batch into the monitoring aggregate.
// The batch is typically the stored stream, optionally pre-filtered by
// owning principal at the store.
func ComputeStats(messages []*fix.Message, latencySampleSize int) Stats {
	return Stats{
		MessageRates:          messageRates(messages),
		LastMessageTimestamps: lastTimestamps(messages),
		MessageTypes:          messageTypeStats(messages),
		Latency:               latencyStats(messages, latencySampleSize),
		SessionHealth:         ComputeHealth(messages),
		SequenceResets:        countSequenceResets(messages),
		RejectedMessages:      countRejected(messages),
		SessionMessages:       countSessionMessages(messages),
	}
}

// ComputeHealth detects sequence gaps per session and derives the health
// score. Within each session messages are sorted by sequence number;
// each adjacent pair with actual > previous+1 yields one gap. Repeated
// or decreasing numbers are counted separately, not flagged as gaps.
func ComputeHealth(messages []*fix.Message) SessionHealth {
	health := SessionHealth{
		SequenceGaps:     make(map[string][]SequenceGap),
		DuplicateSeqNums: make(map[string]int),
	}

	for key, session := range groupBySession(messages) {
		sort.SliceStable(session, func(i, j int) bool {
			return session[i].SeqNum < session[j].SeqNum
		})

		var gaps []SequenceGap
		for i := 1; i < len(session); i++ {
			expected := session[i-1].SeqNum + 1
			actual := session[i].SeqNum

			if actual > expected {
				gaps = append(gaps, SequenceGap{
					ExpectedSeqNum: expected,
					ReceivedSeqNum: actual,
					DetectedAt:     session[i].Timestamp,
				})
			} else if actual == session[i-1].SeqNum {
				health.DuplicateSeqNums[key]++
			}
		}

		if len(gaps) > 0 {
			health.SequenceGaps[key] = gaps
			health.TotalGaps += len(gaps)
		}
	}

	health.HealthScore = HealthScore(health.TotalGaps, countSequenceResets(messages), len(messages))
	return health
}

// HealthScore is max(0, 100 - (gaps+resets)/total*100), defined as 100
// for an empty stream.
func HealthScore(totalGaps, sequenceResets, totalMessages int) float64 {
	if totalMessages == 0 {
		return 100
	}
	score := 100 - float64(totalGaps+sequenceResets)/float64(totalMessages)*100
	return math.Max(0, score)
}

func groupBySession(messages []*fix.Message) map[string][]*fix.Message {
	sessions := make(map[string][]*fix.Message)
	for _, m := range messages {
		key := m.SessionKey()
		sessions[key] = append(sessions[key], m)
	}
	return sessions
}

func messageRates(messages []*fix.Message) []SessionCount {
	sessions := groupBySession(messages)
	rates := make([]SessionCount, 0, len(sessions))
	for key, session := range sessions {
		rates = append(rates, SessionCount{SessionKey: key, MessageCount: len(session)})
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i].SessionKey < rates[j].SessionKey })
	return rates
}

func lastTimestamps(messages []*fix.Message) []SessionTimestamp {
	sessions := groupBySession(messages)
	timestamps := make([]SessionTimestamp, 0, len(sessions))
	for key, session := range sessions {
		last := session[0].Timestamp
		for _, m := range session[1:] {
			if m.Timestamp.After(last) {
				last = m.Timestamp
			}
		}
		timestamps = append(timestamps, SessionTimestamp{SessionKey: key, LastTimestamp: last})
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].SessionKey < timestamps[j].SessionKey })
	return timestamps
}

func messageTypeStats(messages []*fix.Message) MessageTypeStats {
	stats := MessageTypeStats{Distribution: make(map[string]int)}

	for _, m := range messages {
		stats.Distribution[m.MsgType]++

		switch m.MsgType {
		case fix.MsgTypeNewOrderSingle:
			stats.NewOrders++
			if m.Fields[fix.TagPossDupFlag] == "Y" {
				stats.RestatedOrders++
			}
		case fix.MsgTypeOrderCancelRequest:
			stats.CancelledOrders++
		case fix.MsgTypeExecutionReport:
			if m.Fields[fix.TagExecType] == fix.OrdStatusCanceled {
				stats.CancelledOrders++
			}
		}
	}

	return stats
}

// latencyStats computes |receipt - transact| in milliseconds over the
// most recent sampleSize messages that carry a transaction time, with
// p95/p99 by nearest-rank indexing, no interpolation.
func latencyStats(messages []*fix.Message, sampleSize int) LatencyStats {
	withTransact := make([]*fix.Message, 0, len(messages))
	for _, m := range messages {
		if m.TransactTime != nil {
			withTransact = append(withTransact, m)
		}
	}

	sort.SliceStable(withTransact, func(i, j int) bool {
		return withTransact[i].Timestamp.After(withTransact[j].Timestamp)
	})
	if sampleSize > 0 && len(withTransact) > sampleSize {
		withTransact = withTransact[:sampleSize]
	}

	latencies := make([]float64, 0, len(withTransact))
	var sum float64
	for _, m := range withTransact {
		latency := math.Abs(float64(m.Timestamp.Sub(*m.TransactTime).Milliseconds()))
		if latency > 0 {
			latencies = append(latencies, latency)
			sum += latency
		}
	}

	if len(latencies) == 0 {
		return LatencyStats{}
	}

	sort.Float64s(latencies)
	return LatencyStats{
		AverageLatencyMs: sum / float64(len(latencies)),
		P95LatencyMs:     latencies[int(float64(len(latencies))*0.95)],
		P99LatencyMs:     latencies[int(float64(len(latencies))*0.99)],
	}
}

func countSequenceResets(messages []*fix.Message) int {
	count := 0
	for _, m := range messages {
		if m.MsgType == fix.MsgTypeSeqReset {
			count++
		}
	}
	return count
}

func countRejected(messages []*fix.Message) int {
	count := 0
	for _, m := range messages {
		if m.MsgType == fix.MsgTypeExecutionReport && m.Fields[fix.TagExecType] == fix.OrdStatusRejected {
			count++
		}
	}
	return count
}

func countSessionMessages(messages []*fix.Message) int {
	count := 0
	for _, m := range messages {
		switch m.MsgType {
		case fix.MsgTypeLogon, fix.MsgTypeLogout, fix.MsgTypeHeartbeat:
			count++
		}
	}
	return count
}
