package fix

// --- Message Types ---
const (
	// Admin messages
	MsgTypeHeartbeat = "0" // Heartbeat
	MsgTypeReject    = "3" // Session-level Reject
	MsgTypeSeqReset  = "4" // Sequence Reset
	MsgTypeLogout    = "5" // Logout
	MsgTypeLogon     = "A" // Logon

	// Order entry messages
	MsgTypeNewOrderSingle     = "D" // New Order Single
	MsgTypeOrderCancelRequest = "F" // Order Cancel Request
	MsgTypeOrderCancelReplace = "G" // Order Cancel/Replace Request
	MsgTypeExecutionReport    = "8" // Execution Report
	MsgTypeOrderCancelReject  = "9" // Order Cancel Reject
)

// --- Tags ---
const (
	TagAccount          = "1"
	TagBeginString      = "8"
	TagClOrdID          = "11"
	TagCumQty           = "14"
	TagExecID           = "17"
	TagLastPx           = "31"
	TagLastQty          = "32"
	TagMsgSeqNum        = "34"
	TagMsgType          = "35"
	TagOrderID          = "37"
	TagOrderQty         = "38"
	TagOrdStatus        = "39"
	TagOrdType          = "40"
	TagOrigClOrdID      = "41"
	TagPossDupFlag      = "43"
	TagPrice            = "44"
	TagSenderCompID     = "49"
	TagSendingTime      = "52"
	TagSide             = "54"
	TagSymbol           = "55"
	TagTargetCompID     = "56"
	TagText             = "58"
	TagTimeInForce      = "59"
	TagTransactTime     = "60"
	TagExecType         = "150"
	TagLeavesQty        = "151"
	TagSecurityType     = "167"
	TagApplVerID        = "1128"
	TagDefaultApplVerID = "1137"
)

// --- OrdStatus / ExecType codes (tag 39 / 150) ---
const (
	OrdStatusNew             = "0"
	OrdStatusPartiallyFilled = "1"
	OrdStatusFilled          = "2"
	OrdStatusCanceled        = "4"
	OrdStatusRejected        = "8"
)

// --- Protocol constants ---
const (
	// SOH is the canonical FIX field delimiter.
	SOH = "\x01"

	BeginStringFIXT = "FIXT.1.1"

	// FIX UTCTimestamp layouts, with and without milliseconds.
	TimeFormatMillis = "20060102-15:04:05.000"
	TimeFormat       = "20060102-15:04:05"
)
