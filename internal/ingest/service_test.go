package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fixtools/fix-log-analyzer/internal/config"
	"github.com/fixtools/fix-log-analyzer/internal/dict"
	"github.com/fixtools/fix-log-analyzer/internal/observability"
	"github.com/fixtools/fix-log-analyzer/internal/parser"
	"github.com/fixtools/fix-log-analyzer/internal/store"
)

const testDictionary = `<fix type="FIX" major="4" minor="4" servicepack="0">
  <messages>
    <message name="NewOrderSingle" msgtype="D" msgcat="app"/>
    <message name="ExecutionReport" msgtype="8" msgcat="app"/>
  </messages>
  <fields>
    <field number="54" name="Side" type="CHAR">
      <value enum="1" description="BUY"/>
      <value enum="2" description="SELL"/>
    </field>
    <field number="55" name="Symbol" type="STRING"/>
  </fields>
</fix>`

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "FIX44.xml"), []byte(testDictionary), 0644))

	registry := dict.NewRegistry("FIX.4.4", zap.NewNop())
	require.NoError(t, registry.LoadDir(dir))

	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	p := parser.New(registry, config.TimestampFallbackNow, zap.NewNop())
	svc := NewService(p, registry, st, observability.NewMetrics(), zap.NewNop())
	return svc, st
}

func TestProcessReader(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	input := strings.Join([]string{
		"20250601 10:00:00.000 8=FIX.4.4|35=D|34=1|49=A|56=B|55=AAPL|54=1",
		"20250601 10:00:01.000 8=FIX.4.4|35=8|34=2|49=B|56=A|55=AAPL|54=1",
		"not a fix line at all",
		"20250601 10:00:02.000 8=FIX.4.4|35=8|34=3|49=B|56=A|55=AAPL|54=X",
	}, "\n")

	result, err := svc.ProcessReader(ctx, strings.NewReader(input), "")
	require.NoError(t, err)

	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, 4, result.LinesRead)
	assert.Equal(t, 3, result.Parsed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Invalid, "bad Side enum")

	// Everything parsed lands in the store, invalid included.
	messages, err := st.Scan(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, messages, 3)

	invalid := 0
	for _, m := range messages {
		if !m.IsValid {
			invalid++
		}
	}
	assert.Equal(t, 1, invalid)

	summary, err := st.SessionSummary(ctx, result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.MessageCount)
}

func TestProcessReader_Empty(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.ProcessReader(context.Background(), strings.NewReader(""), "")
	require.NoError(t, err)
	assert.Zero(t, result.LinesRead)
	assert.Zero(t, result.Parsed)
}

func TestProcessReader_Cancellation(t *testing.T) {
	svc, _ := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ProcessReader(ctx, strings.NewReader("8=FIX.4.4|35=D|34=1"), "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessReader_PreservesLineOrder(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	// Distinct prefix timestamps so stored order is observable.
	var lines []string
	lines = append(lines,
		"20250601 10:00:05.000 8=FIX.4.4|35=D|34=5|49=A|56=B",
		"20250601 10:00:01.000 8=FIX.4.4|35=D|34=1|49=A|56=B",
		"20250601 10:00:03.000 8=FIX.4.4|35=D|34=3|49=A|56=B",
	)

	_, err := svc.ProcessReader(ctx, strings.NewReader(strings.Join(lines, "\n")), "")
	require.NoError(t, err)

	messages, err := st.Scan(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, messages, 3)

	// Scan is newest first regardless of ingestion order.
	assert.Equal(t, 5, messages[0].SeqNum)
	assert.Equal(t, 3, messages[1].SeqNum)
	assert.Equal(t, 1, messages[2].SeqNum)
}

func TestProcessFile(t *testing.T) {
	svc, _ := newTestService(t)

	path := filepath.Join(t.TempDir(), "orders.log")
	content := "20250601 10:00:00.000 8=FIX.4.4|35=D|34=1|49=A|56=B|55=IBM|54=2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	result, err := svc.ProcessFile(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Parsed)

	_, err = svc.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.log"), "")
	assert.Error(t, err)
}

func TestProcessLine(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	stored, err := svc.ProcessLine(ctx, "8=FIX.4.4|35=8|34=7|49=A|56=B|55=TSLA", "")
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = svc.ProcessLine(ctx, "no payload here", "")
	require.NoError(t, err)
	assert.False(t, stored)

	messages, err := st.Scan(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "TSLA", messages[0].Symbol)
}

func TestProcessReader_VersionHint(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.ProcessReader(ctx,
		strings.NewReader("8=FIX.4.4|35=D|34=1|49=A|56=B"), "FIX.4.2")
	require.NoError(t, err)

	messages, err := st.Scan(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "FIX.4.2", messages[0].FixVersion)
}
