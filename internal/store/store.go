// Package store persists parsed messages in sqlite and serves the
// filtered scans the reconstructor, monitor and API read from.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fixtools/fix-log-analyzer/internal/fix"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Store provides message persistence and querying
type Store struct {
	db *sql.DB
}

// Filter narrows a message scan. Zero values mean "no constraint".
type Filter struct {
	// MsgTypes restricts to a set of message type codes.
	MsgTypes []string

	// Sender restricts to one owning principal (SenderCompID).
	Sender string

	Symbol string

	// OrderID matches the order id projection (tag 37). ClOrdID matches
	// the client order id (tag 11) or the amendment linkage (tag 41).
	// When both are given a message matching either qualifies.
	OrderID string
	ClOrdID string

	Start *time.Time
	End   *time.Time

	// Limit/Offset paginate; Limit <= 0 means no limit.
	Limit  int
	Offset int
}

// SessionSummary describes one ingestion session's stored messages.
type SessionSummary struct {
	SessionID    string    `json:"sessionId"`
	MessageCount int       `json:"messageCount"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
}

// Open creates or opens the message store
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// migrate creates the necessary tables
func (s *Store) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			ts_unix_millis INTEGER NOT NULL,
			msg_type TEXT NOT NULL,
			msg_type_name TEXT NOT NULL,
			seq_num INTEGER NOT NULL,
			sender_comp_id TEXT NOT NULL,
			target_comp_id TEXT NOT NULL,
			fix_version TEXT NOT NULL,
			cl_ord_id TEXT NOT NULL DEFAULT '',
			orig_cl_ord_id TEXT NOT NULL DEFAULT '',
			order_id TEXT NOT NULL DEFAULT '',
			exec_id TEXT NOT NULL DEFAULT '',
			symbol TEXT NOT NULL DEFAULT '',
			security_type TEXT NOT NULL DEFAULT '',
			side TEXT NOT NULL DEFAULT '',
			ord_type TEXT NOT NULL DEFAULT '',
			time_in_force TEXT NOT NULL DEFAULT '',
			ord_status TEXT NOT NULL DEFAULT '',
			exec_type TEXT NOT NULL DEFAULT '',
			account TEXT NOT NULL DEFAULT '',
			price REAL NULL,
			order_qty REAL NULL,
			last_qty REAL NULL,
			cum_qty REAL NULL,
			leaves_qty REAL NULL,
			transact_unix_millis INTEGER NULL,
			is_valid INTEGER NOT NULL DEFAULT 1,
			validation_errors TEXT NOT NULL DEFAULT '[]',
			fields_json TEXT NOT NULL,
			created_unix_millis INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts_unix_millis)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_msg_type ON messages(msg_type)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_order_id ON messages(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_cl_ord_id ON messages(cl_ord_id)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// InsertBatch stores one batch of parsed messages transactionally under
// an ingestion session id.
func (s *Store) InsertBatch(ctx context.Context, sessionID string, messages []*fix.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO messages (
		session_id, ts_unix_millis, msg_type, msg_type_name, seq_num,
		sender_comp_id, target_comp_id, fix_version,
		cl_ord_id, orig_cl_ord_id, order_id, exec_id, symbol, security_type,
		side, ord_type, time_in_force, ord_status, exec_type, account,
		price, order_qty, last_qty, cum_qty, leaves_qty, transact_unix_millis,
		is_valid, validation_errors, fields_json, created_unix_millis
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()

	for _, m := range messages {
		fieldsJSON, err := json.Marshal(m.Fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
		errorsJSON, err := json.Marshal(m.ValidationErrors)
		if err != nil {
			return fmt.Errorf("failed to marshal validation errors: %w", err)
		}

		var transactMillis sql.NullInt64
		if m.TransactTime != nil {
			transactMillis = sql.NullInt64{Int64: m.TransactTime.UnixMilli(), Valid: true}
		}

		_, err = stmt.ExecContext(ctx,
			sessionID, m.Timestamp.UnixMilli(), m.MsgType, m.MsgTypeName, m.SeqNum,
			m.SenderCompID, m.TargetCompID, m.FixVersion,
			m.ClOrdID, m.Fields[fix.TagOrigClOrdID], m.OrderID, m.ExecID, m.Symbol, m.SecurityType,
			m.Side, m.OrdType, m.TimeInForce, m.OrdStatus, m.ExecType, m.Account,
			nullFloat(m.Price), nullFloat(m.OrderQty), nullFloat(m.LastQty),
			nullFloat(m.CumQty), nullFloat(m.LeavesQty), transactMillis,
			boolToInt(m.IsValid), string(errorsJSON), string(fieldsJSON), now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Scan returns the messages matching a filter, newest first.
func (s *Store) Scan(ctx context.Context, f Filter) ([]*fix.Message, error) {
	where, args := buildWhere(f)

	query := `SELECT ts_unix_millis, msg_type, msg_type_name, seq_num,
		sender_comp_id, target_comp_id, fix_version,
		cl_ord_id, order_id, exec_id, symbol, security_type,
		side, ord_type, time_in_force, ord_status, exec_type, account,
		price, order_qty, last_qty, cum_qty, leaves_qty, transact_unix_millis,
		is_valid, validation_errors, fields_json
		FROM messages` + where + ` ORDER BY ts_unix_millis DESC`

	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*fix.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// Count returns the number of messages matching a filter.
func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	where, args := buildWhere(f)

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// SessionSummary reports on one ingestion session's stored messages.
func (s *Store) SessionSummary(ctx context.Context, sessionID string) (*SessionSummary, error) {
	var count int
	var minMillis, maxMillis sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(ts_unix_millis), MAX(ts_unix_millis)
		 FROM messages WHERE session_id = ?`, sessionID,
	).Scan(&count, &minMillis, &maxMillis)
	if err != nil {
		return nil, fmt.Errorf("failed to query session summary: %w", err)
	}
	if count == 0 {
		return nil, ErrNotFound
	}

	return &SessionSummary{
		SessionID:    sessionID,
		MessageCount: count,
		StartTime:    time.UnixMilli(minMillis.Int64).UTC(),
		EndTime:      time.UnixMilli(maxMillis.Int64).UTC(),
	}, nil
}

// SymbolDistribution returns per-symbol execution report counts.
func (s *Store) SymbolDistribution(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, COUNT(*) FROM messages
		 WHERE msg_type = ? AND symbol != ''
		 GROUP BY symbol`, fix.MsgTypeExecutionReport)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbol distribution: %w", err)
	}
	defer rows.Close()

	distribution := make(map[string]int)
	for rows.Next() {
		var symbol string
		var count int
		if err := rows.Scan(&symbol, &count); err != nil {
			return nil, fmt.Errorf("failed to scan symbol row: %w", err)
		}
		distribution[symbol] = count
	}

	return distribution, rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func buildWhere(f Filter) (string, []any) {
	var conds []string
	var args []any

	if len(f.MsgTypes) > 0 {
		placeholders := strings.Repeat("?,", len(f.MsgTypes))
		conds = append(conds, "msg_type IN ("+placeholders[:len(placeholders)-1]+")")
		for _, t := range f.MsgTypes {
			args = append(args, t)
		}
	}
	if f.Sender != "" {
		conds = append(conds, "sender_comp_id = ?")
		args = append(args, f.Sender)
	}
	if f.Symbol != "" {
		conds = append(conds, "symbol = ?")
		args = append(args, f.Symbol)
	}

	// Identifier filters OR together when both are present, matching
	// either the exchange-assigned or client-assigned id.
	switch {
	case f.OrderID != "" && f.ClOrdID != "":
		conds = append(conds, "(order_id = ? OR cl_ord_id = ? OR orig_cl_ord_id = ?)")
		args = append(args, f.OrderID, f.ClOrdID, f.ClOrdID)
	case f.OrderID != "":
		conds = append(conds, "order_id = ?")
		args = append(args, f.OrderID)
	case f.ClOrdID != "":
		conds = append(conds, "(cl_ord_id = ? OR orig_cl_ord_id = ?)")
		args = append(args, f.ClOrdID, f.ClOrdID)
	}

	if f.Start != nil {
		conds = append(conds, "ts_unix_millis >= ?")
		args = append(args, f.Start.UnixMilli())
	}
	if f.End != nil {
		conds = append(conds, "ts_unix_millis <= ?")
		args = append(args, f.End.UnixMilli())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanMessage(rows *sql.Rows) (*fix.Message, error) {
	var m fix.Message
	var tsMillis int64
	var transactMillis sql.NullInt64
	var price, orderQty, lastQty, cumQty, leavesQty sql.NullFloat64
	var isValid int
	var errorsJSON, fieldsJSON string

	err := rows.Scan(&tsMillis, &m.MsgType, &m.MsgTypeName, &m.SeqNum,
		&m.SenderCompID, &m.TargetCompID, &m.FixVersion,
		&m.ClOrdID, &m.OrderID, &m.ExecID, &m.Symbol, &m.SecurityType,
		&m.Side, &m.OrdType, &m.TimeInForce, &m.OrdStatus, &m.ExecType, &m.Account,
		&price, &orderQty, &lastQty, &cumQty, &leavesQty, &transactMillis,
		&isValid, &errorsJSON, &fieldsJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}

	m.Timestamp = time.UnixMilli(tsMillis).UTC()
	if transactMillis.Valid {
		t := time.UnixMilli(transactMillis.Int64).UTC()
		m.TransactTime = &t
	}
	m.Price = floatPtr(price)
	m.OrderQty = floatPtr(orderQty)
	m.LastQty = floatPtr(lastQty)
	m.CumQty = floatPtr(cumQty)
	m.LeavesQty = floatPtr(leavesQty)
	m.IsValid = isValid != 0

	if err := json.Unmarshal([]byte(errorsJSON), &m.ValidationErrors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal validation errors: %w", err)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &m.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}

	return &m, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
