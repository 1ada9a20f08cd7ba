// Package parser turns raw log lines into structured FIX messages. A
// line may carry an arbitrary timestamped prefix ahead of the embedded
// payload, and the payload may spell the field delimiter as SOH, "^A" or
// "|".
package parser

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fixtools/fix-log-analyzer/internal/config"
	"github.com/fixtools/fix-log-analyzer/internal/dict"
	"github.com/fixtools/fix-log-analyzer/internal/fix"
)

// prefixTimeFormats are tried in order against the log-line prefix.
var prefixTimeFormats = []string{
	"20060102 15:04:05.000",
	"2006-01-02 15:04:05.000",
	"20060102 15:04:05",
	"2006-01-02 15:04:05",
	"15:04:05.000",
	"15:04:05",
}

// fixTimeFormats are the FIX UTCTimestamp layouts used for tag 60 and 52.
var fixTimeFormats = []string{
	fix.TimeFormatMillis,
	fix.TimeFormat,
}

// delimiterReplacer rewrites the known alternate delimiter spellings to
// canonical SOH.
var delimiterReplacer = strings.NewReplacer("^A", fix.SOH, "|", fix.SOH)

// Parser converts log lines into fix.Message values. It is stateless and
// safe for concurrent use once the registry's load phase has completed.
type Parser struct {
	registry          *dict.Registry
	timestampFallback string
	logger            *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a parser. timestampFallback is one of the
// config.TimestampFallback* policies.
func New(registry *dict.Registry, timestampFallback string, logger *zap.Logger) *Parser {
	return &Parser{
		registry:          registry,
		timestampFallback: timestampFallback,
		logger:            logger,
		now:               time.Now,
	}
}

// Parse converts one raw log line into a message. It returns nil for
// lines with no recoverable payload; parse problems never propagate as
// panics, they degrade to nil plus a log entry.
func (p *Parser) Parse(line, versionHint string) (msg *fix.Message) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic parsing fix log line",
				zap.Any("panic", r),
				zap.String("line", line),
			)
			msg = nil
		}
	}()

	start := findPayloadStart(line)
	if start == -1 {
		p.logger.Warn("no fix payload found in line", zap.String("line", line))
		return nil
	}

	var prefixTime *time.Time
	if start > 0 {
		prefix := strings.Trim(line[:start], " -[]")
		prefixTime = p.parsePrefixTimestamp(prefix)
	}

	payload := delimiterReplacer.Replace(line[start:])
	fields := tokenize(payload)
	if len(fields) == 0 {
		p.logger.Warn("no valid fields found in payload", zap.String("payload", payload))
		return nil
	}

	version := versionHint
	if version == "" {
		version = p.registry.DetectVersion(fields)
	}

	msgType := valueOr(fields, fix.TagMsgType, "Unknown")

	msg = &fix.Message{
		Timestamp:    p.resolveTimestamp(prefixTime, fields),
		MsgType:      msgType,
		MsgTypeName:  p.registry.MessageTypeName(msgType, version),
		SeqNum:       parseSeqNum(fields[fix.TagMsgSeqNum]),
		SenderCompID: valueOr(fields, fix.TagSenderCompID, "Unknown"),
		TargetCompID: valueOr(fields, fix.TagTargetCompID, "Unknown"),
		FixVersion:   version,
		ClOrdID:      fields[fix.TagClOrdID],
		OrderID:      fields[fix.TagOrderID],
		ExecID:       fields[fix.TagExecID],
		Symbol:       fields[fix.TagSymbol],
		SecurityType: fields[fix.TagSecurityType],
		Side:         fields[fix.TagSide],
		OrdType:      fields[fix.TagOrdType],
		TimeInForce:  fields[fix.TagTimeInForce],
		OrdStatus:    fields[fix.TagOrdStatus],
		ExecType:     fields[fix.TagExecType],
		Account:      fields[fix.TagAccount],
		Price:        parseDecimal(fields[fix.TagPrice]),
		OrderQty:     parseDecimal(fields[fix.TagOrderQty]),
		LastQty:      parseDecimal(fields[fix.TagLastQty]),
		CumQty:       parseDecimal(fields[fix.TagCumQty]),
		LeavesQty:    parseDecimal(fields[fix.TagLeavesQty]),
		TransactTime: parseFixTimestamp(fields[fix.TagTransactTime]),
		Fields:       fields,
		IsValid:      true,
	}

	p.logger.Debug("parsed fix message",
		zap.String("msg_type", msg.MsgType),
		zap.Int("seq_num", msg.SeqNum),
		zap.String("sender", msg.SenderCompID),
		zap.String("target", msg.TargetCompID),
		zap.Int("field_count", len(fields)),
	)

	return msg
}

// findPayloadStart locates the embedded FIX payload by its BeginString
// marker. Both classic and transport-layer begin strings are accepted.
func findPayloadStart(line string) int {
	if idx := strings.Index(line, "8=FIX"); idx != -1 {
		return idx
	}
	return strings.Index(line, "8=FIXT")
}

// tokenize splits a canonical-delimited payload into tag/value pairs.
// Tokens that are not exactly one tag and one value are dropped
// silently; this also rejects whole undelimited payloads masquerading
// as a single token.
func tokenize(payload string) map[string]string {
	fields := make(map[string]string)

	for _, token := range strings.Split(payload, fix.SOH) {
		if token == "" {
			continue
		}
		parts := strings.Split(token, "=")
		if len(parts) != 2 {
			continue
		}
		tag := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if tag == "" || value == "" {
			continue
		}
		fields[tag] = value
	}

	return fields
}

// parsePrefixTimestamp tries the known log timestamp formats in order.
// Time-only formats are anchored to the current UTC date.
func (p *Parser) parsePrefixTimestamp(prefix string) *time.Time {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil
	}

	for _, layout := range prefixTimeFormats {
		t, err := time.Parse(layout, prefix)
		if err != nil {
			continue
		}
		if t.Year() == 0 {
			now := p.now().UTC()
			t = time.Date(now.Year(), now.Month(), now.Day(),
				t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
		} else {
			t = t.UTC()
		}
		return &t
	}

	return nil
}

// resolveTimestamp applies the configured fallback policy when the line
// prefix carried no timestamp.
func (p *Parser) resolveTimestamp(prefixTime *time.Time, fields map[string]string) time.Time {
	if prefixTime != nil {
		return *prefixTime
	}

	if p.timestampFallback == config.TimestampFallbackSendingTime {
		if t := parseFixTimestamp(fields[fix.TagSendingTime]); t != nil {
			return *t
		}
	}

	return p.now().UTC()
}

func parseFixTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range fixTimeFormats {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func parseSeqNum(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return n
}

func parseDecimal(value string) *float64 {
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &f
}

func valueOr(fields map[string]string, tag, fallback string) string {
	if v, ok := fields[tag]; ok {
		return v
	}
	return fallback
}
