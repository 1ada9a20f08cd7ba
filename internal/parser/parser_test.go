package parser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fixtools/fix-log-analyzer/internal/config"
	"github.com/fixtools/fix-log-analyzer/internal/dict"
)

const testDictionary = `<fix type="FIX" major="4" minor="4" servicepack="0">
  <messages>
    <message name="NewOrderSingle" msgtype="D" msgcat="app"/>
    <message name="ExecutionReport" msgtype="8" msgcat="app"/>
  </messages>
  <fields>
    <field number="11" name="ClOrdID" type="STRING"/>
    <field number="54" name="Side" type="CHAR">
      <value enum="1" description="BUY"/>
      <value enum="2" description="SELL"/>
    </field>
    <field number="55" name="Symbol" type="STRING"/>
  </fields>
</fix>`

func newTestParser(t *testing.T, fallback string) *Parser {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "FIX44.xml"), []byte(testDictionary), 0644))

	registry := dict.NewRegistry("FIX.4.4", zap.NewNop())
	require.NoError(t, registry.LoadDir(dir))

	return New(registry, fallback, zap.NewNop())
}

func TestParse_FullLine(t *testing.T) {
	p := newTestParser(t, config.TimestampFallbackNow)

	line := "20250601 10:15:30.123 - " +
		"8=FIX.4.4|9=154|35=D|34=1234|49=SENDER|56=TARGET|52=20250601-10:15:30.000|" +
		"11=ORD-1|55=AAPL|54=1|38=100|44=150.25|40=2|59=0|60=20250601-10:15:30.000|10=128"

	msg := p.Parse(line, "")
	require.NotNil(t, msg)

	assert.Equal(t, "D", msg.MsgType)
	assert.Equal(t, "NewOrderSingle", msg.MsgTypeName)
	assert.Equal(t, 1234, msg.SeqNum)
	assert.Equal(t, "SENDER", msg.SenderCompID)
	assert.Equal(t, "TARGET", msg.TargetCompID)
	assert.Equal(t, "FIX.4.4", msg.FixVersion)
	assert.Equal(t, "ORD-1", msg.ClOrdID)
	assert.Equal(t, "AAPL", msg.Symbol)
	assert.Equal(t, "1", msg.Side)
	assert.Equal(t, "2", msg.OrdType)
	assert.Equal(t, "0", msg.TimeInForce)
	assert.True(t, msg.IsValid)

	require.NotNil(t, msg.Price)
	assert.Equal(t, 150.25, *msg.Price)
	require.NotNil(t, msg.OrderQty)
	assert.Equal(t, 100.0, *msg.OrderQty)

	want := time.Date(2025, 6, 1, 10, 15, 30, 123_000_000, time.UTC)
	assert.Equal(t, want, msg.Timestamp)

	require.NotNil(t, msg.TransactTime)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 15, 30, 0, time.UTC), *msg.TransactTime)

	assert.Equal(t, "ORD-1", msg.Fields["11"])
	assert.Equal(t, "128", msg.Fields["10"])
}

func TestParse_DelimiterVariants(t *testing.T) {
	p := newTestParser(t, config.TimestampFallbackNow)

	variants := map[string]string{
		"caret": "8=FIX.4.4^A35=D^A34=7^A49=A^A56=B",
		"pipe":  "8=FIX.4.4|35=D|34=7|49=A|56=B",
		"soh":   "8=FIX.4.4\x0135=D\x0134=7\x0149=A\x0156=B",
	}

	for name, payload := range variants {
		msg := p.Parse(payload, "")
		require.NotNil(t, msg, name)
		assert.Equal(t, "D", msg.MsgType, name)
		assert.Equal(t, 7, msg.SeqNum, name)
		assert.Equal(t, "A", msg.SenderCompID, name)
	}
}

func TestParse_NoPayload(t *testing.T) {
	p := newTestParser(t, config.TimestampFallbackNow)

	assert.Nil(t, p.Parse("just an ordinary log line", ""))
	assert.Nil(t, p.Parse("", ""))
}

func TestParse_UndelimitedPayload(t *testing.T) {
	p := newTestParser(t, config.TimestampFallbackNow)

	// The marker is present but the payload carries no field delimiters,
	// so it collapses into a single malformed token and yields nothing.
	assert.Nil(t, p.Parse("Invalid timestamp - 8=FIXT.1.135=D34=1234", ""))
}

func TestParse_MinimalPayloadDefaults(t *testing.T) {
	p := newTestParser(t, config.TimestampFallbackNow)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	msg := p.Parse("8=FIX.4.4|55=MSFT", "")
	require.NotNil(t, msg)

	assert.Equal(t, "Unknown", msg.MsgType)
	assert.Equal(t, "Unknown (Unknown)", msg.MsgTypeName)
	assert.Equal(t, -1, msg.SeqNum)
	assert.Equal(t, "Unknown", msg.SenderCompID)
	assert.Equal(t, "Unknown", msg.TargetCompID)
	assert.Equal(t, "MSFT", msg.Symbol)
	assert.Nil(t, msg.Price)
	assert.Nil(t, msg.TransactTime)
	assert.Equal(t, fixed, msg.Timestamp)
}

func TestParse_MalformedTokensDropped(t *testing.T) {
	p := newTestParser(t, config.TimestampFallbackNow)

	msg := p.Parse("8=FIX.4.4|35=D|=orphan|49=|notag|55=IBM", "")
	require.NotNil(t, msg)

	assert.Equal(t, "IBM", msg.Symbol)
	assert.Equal(t, "Unknown", msg.SenderCompID)
	assert.NotContains(t, msg.Fields, "49")
	assert.NotContains(t, msg.Fields, "")
	assert.Len(t, msg.Fields, 3)
}

func TestParse_TimeOnlyPrefixAnchoredToToday(t *testing.T) {
	p := newTestParser(t, config.TimestampFallbackNow)
	p.now = func() time.Time { return time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC) }

	msg := p.Parse("10:15:30.500 8=FIX.4.4|35=D|34=1", "")
	require.NotNil(t, msg)

	assert.Equal(t, time.Date(2025, 6, 1, 10, 15, 30, 500_000_000, time.UTC), msg.Timestamp)
}

func TestParse_TimestampFallbackNow(t *testing.T) {
	p := newTestParser(t, config.TimestampFallbackNow)
	fixed := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	msg := p.Parse("8=FIX.4.4|35=D|34=1|52=20250601-08:00:00.000", "")
	require.NotNil(t, msg)

	// SendingTime is ignored under the "now" policy.
	assert.Equal(t, fixed, msg.Timestamp)
}

func TestParse_TimestampFallbackSendingTime(t *testing.T) {
	p := newTestParser(t, config.TimestampFallbackSendingTime)
	p.now = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }

	msg := p.Parse("8=FIX.4.4|35=D|34=1|52=20250601-08:00:00.000", "")
	require.NotNil(t, msg)
	assert.Equal(t, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), msg.Timestamp)

	// Without SendingTime the policy still degrades to now.
	msg = p.Parse("8=FIX.4.4|35=D|34=2", "")
	require.NotNil(t, msg)
	assert.Equal(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), msg.Timestamp)
}

func TestParse_PrefixTimestampWins(t *testing.T) {
	p := newTestParser(t, config.TimestampFallbackSendingTime)

	msg := p.Parse("2025-06-01 10:00:00.000 8=FIX.4.4|35=D|34=1|52=20250601-08:00:00.000", "")
	require.NotNil(t, msg)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), msg.Timestamp)
}

func TestParse_VersionHint(t *testing.T) {
	p := newTestParser(t, config.TimestampFallbackNow)

	msg := p.Parse("8=FIX.4.4|35=8|34=1", "FIX.4.2")
	require.NotNil(t, msg)
	assert.Equal(t, "FIX.4.2", msg.FixVersion)
}

func TestParse_FIXTApplicationVersion(t *testing.T) {
	p := newTestParser(t, config.TimestampFallbackNow)

	msg := p.Parse("8=FIXT.1.1|35=D|34=9|1137=6", "")
	require.NotNil(t, msg)
	assert.Equal(t, "FIX.4.4", msg.FixVersion)
	assert.Equal(t, "NewOrderSingle", msg.MsgTypeName)
}

func TestParse_BadNumericProjections(t *testing.T) {
	p := newTestParser(t, config.TimestampFallbackNow)

	msg := p.Parse("8=FIX.4.4|35=D|34=abc|44=not-a-price|38=12.5", "")
	require.NotNil(t, msg)

	assert.Equal(t, -1, msg.SeqNum)
	assert.Nil(t, msg.Price)
	require.NotNil(t, msg.OrderQty)
	assert.Equal(t, 12.5, *msg.OrderQty)

	// Raw values survive in the field map even when projection fails.
	assert.Equal(t, "not-a-price", msg.Fields["44"])
}
