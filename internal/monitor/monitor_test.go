package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixtools/fix-log-analyzer/internal/fix"
)

func sessionMsg(sender, target string, seqNum int, ts time.Time) *fix.Message {
	return &fix.Message{
		MsgType:      "8",
		SeqNum:       seqNum,
		SenderCompID: sender,
		TargetCompID: target,
		Timestamp:    ts,
		Fields:       map[string]string{},
	}
}

func TestComputeHealth_DetectsGap(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	messages := []*fix.Message{
		sessionMsg("A", "B", 1, base),
		sessionMsg("A", "B", 2, base.Add(time.Second)),
		sessionMsg("A", "B", 4, base.Add(2*time.Second)),
		sessionMsg("A", "B", 5, base.Add(3*time.Second)),
	}

	health := ComputeHealth(messages)
	assert.Equal(t, 1, health.TotalGaps)

	gaps := health.SequenceGaps["A->B"]
	require.Len(t, gaps, 1)
	assert.Equal(t, 3, gaps[0].ExpectedSeqNum)
	assert.Equal(t, 4, gaps[0].ReceivedSeqNum)
	assert.Equal(t, base.Add(2*time.Second), gaps[0].DetectedAt)
}

func TestComputeHealth_SessionsAreIndependent(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	// Interleaved sessions, each individually contiguous.
	messages := []*fix.Message{
		sessionMsg("A", "B", 1, base),
		sessionMsg("B", "A", 1, base),
		sessionMsg("A", "B", 2, base),
		sessionMsg("B", "A", 2, base),
	}

	health := ComputeHealth(messages)
	assert.Zero(t, health.TotalGaps)
	assert.Equal(t, 100.0, health.HealthScore)
}

func TestComputeHealth_DuplicatesAreNotGaps(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	messages := []*fix.Message{
		sessionMsg("A", "B", 1, base),
		sessionMsg("A", "B", 2, base),
		sessionMsg("A", "B", 2, base),
		sessionMsg("A", "B", 3, base),
	}

	health := ComputeHealth(messages)
	assert.Zero(t, health.TotalGaps)
	assert.Equal(t, 1, health.DuplicateSeqNums["A->B"])
}

func TestComputeHealth_OutOfOrderArrivalIsNotAGap(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	messages := []*fix.Message{
		sessionMsg("A", "B", 3, base),
		sessionMsg("A", "B", 1, base.Add(time.Second)),
		sessionMsg("A", "B", 2, base.Add(2*time.Second)),
	}

	health := ComputeHealth(messages)
	assert.Zero(t, health.TotalGaps)
}

func TestComputeHealth_EmptyStream(t *testing.T) {
	health := ComputeHealth(nil)
	assert.Zero(t, health.TotalGaps)
	assert.Equal(t, 100.0, health.HealthScore)
}

func TestHealthScore(t *testing.T) {
	assert.Equal(t, 100.0, HealthScore(0, 0, 0))
	assert.Equal(t, 100.0, HealthScore(0, 0, 50))
	assert.Equal(t, 90.0, HealthScore(4, 1, 50))

	// Clamped at zero, never negative.
	assert.Equal(t, 0.0, HealthScore(100, 100, 10))
}

func TestComputeStats_MessageRatesAndTimestamps(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	messages := []*fix.Message{
		sessionMsg("A", "B", 1, base),
		sessionMsg("A", "B", 2, base.Add(time.Hour)),
		sessionMsg("B", "A", 1, base.Add(time.Minute)),
	}

	stats := ComputeStats(messages, 1000)

	require.Len(t, stats.MessageRates, 2)
	assert.Equal(t, SessionCount{SessionKey: "A->B", MessageCount: 2}, stats.MessageRates[0])
	assert.Equal(t, SessionCount{SessionKey: "B->A", MessageCount: 1}, stats.MessageRates[1])

	require.Len(t, stats.LastMessageTimestamps, 2)
	assert.Equal(t, base.Add(time.Hour), stats.LastMessageTimestamps[0].LastTimestamp)
	assert.Equal(t, base.Add(time.Minute), stats.LastMessageTimestamps[1].LastTimestamp)
}

func TestComputeStats_MessageTypeCounts(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	typed := func(msgType string, fields map[string]string) *fix.Message {
		if fields == nil {
			fields = map[string]string{}
		}
		return &fix.Message{
			MsgType: msgType, SeqNum: 1, SenderCompID: "A", TargetCompID: "B",
			Timestamp: base, Fields: fields,
		}
	}

	messages := []*fix.Message{
		typed("D", nil),
		typed("D", map[string]string{"43": "Y"}),
		typed("F", nil),
		typed("8", map[string]string{"150": "4"}),
		typed("8", map[string]string{"150": "8"}),
		typed("4", nil),
		typed("A", nil),
		typed("0", nil),
		typed("5", nil),
	}

	stats := ComputeStats(messages, 1000)

	assert.Equal(t, 2, stats.MessageTypes.NewOrders)
	assert.Equal(t, 1, stats.MessageTypes.RestatedOrders)
	assert.Equal(t, 2, stats.MessageTypes.CancelledOrders, "cancel request plus cancelled execution")
	assert.Equal(t, 2, stats.MessageTypes.Distribution["D"])
	assert.Equal(t, 2, stats.MessageTypes.Distribution["8"])

	assert.Equal(t, 1, stats.SequenceResets)
	assert.Equal(t, 1, stats.RejectedMessages)
	assert.Equal(t, 3, stats.SessionMessages)
}

func TestLatencyStats(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	withLatency := func(ms int64, ts time.Time) *fix.Message {
		transact := ts.Add(-time.Duration(ms) * time.Millisecond)
		return &fix.Message{
			MsgType: "8", SeqNum: 1, SenderCompID: "A", TargetCompID: "B",
			Timestamp: ts, TransactTime: &transact, Fields: map[string]string{},
		}
	}

	messages := []*fix.Message{
		withLatency(10, base),
		withLatency(20, base.Add(time.Second)),
		withLatency(30, base.Add(2*time.Second)),
		withLatency(40, base.Add(3*time.Second)),
	}

	stats := ComputeStats(messages, 1000)
	assert.Equal(t, 25.0, stats.Latency.AverageLatencyMs)
	assert.Equal(t, 40.0, stats.Latency.P95LatencyMs)
	assert.Equal(t, 40.0, stats.Latency.P99LatencyMs)
}

func TestLatencyStats_SampleWindowKeepsMostRecent(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	withLatency := func(ms int64, ts time.Time) *fix.Message {
		transact := ts.Add(-time.Duration(ms) * time.Millisecond)
		return &fix.Message{
			MsgType: "8", SeqNum: 1, SenderCompID: "A", TargetCompID: "B",
			Timestamp: ts, TransactTime: &transact, Fields: map[string]string{},
		}
	}

	// The old outlier falls outside the two-message sample.
	messages := []*fix.Message{
		withLatency(5000, base),
		withLatency(10, base.Add(time.Minute)),
		withLatency(20, base.Add(2*time.Minute)),
	}

	stats := ComputeStats(messages, 2)
	assert.Equal(t, 15.0, stats.Latency.AverageLatencyMs)
}

func TestLatencyStats_NoTransactTime(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	stats := ComputeStats([]*fix.Message{sessionMsg("A", "B", 1, base)}, 1000)
	assert.Zero(t, stats.Latency.AverageLatencyMs)
	assert.Zero(t, stats.Latency.P95LatencyMs)
}
