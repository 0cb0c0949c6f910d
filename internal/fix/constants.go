package fix

// FIX protocol constants: well-known tags and MsgType values

// Well-known tag numbers used by the harness itself. Test bodies are free
// to use any integer tag; these are the ones the codec and session engine
// treat specially.
const (
	TagBeginString  = 8
	TagBodyLength   = 9
	TagCheckSum     = 10
	TagMsgSeqNum    = 34
	TagMsgType      = 35
	TagSenderCompID = 49
	TagTargetCompID = 56
	TagSendingTime  = 52

	TagClOrdID       = 11
	TagExecType      = 150
	TagOrderQty      = 38
	TagOrdType       = 40
	TagPrice         = 44
	TagSide          = 54
	TagSymbol        = 55
	TagEncryptMethod = 98
	TagHeartBtInt    = 108
	TagTestReqID     = 112
)

// MsgType values (tag 35) for the administrative and application
// messages the harness knows by name.
const (
	MsgTypeHeartbeat          = "0"
	MsgTypeTestRequest        = "1"
	MsgTypeResendRequest      = "2"
	MsgTypeReject             = "3"
	MsgTypeSequenceReset      = "4"
	MsgTypeLogout             = "5"
	MsgTypeIOI                = "6"
	MsgTypeAdvertisement      = "7"
	MsgTypeExecutionReport    = "8"
	MsgTypeOrderCancelReject  = "9"
	MsgTypeLogon              = "A"
	MsgTypeNewOrderSingle     = "D"
	MsgTypeOrderCancelRequest = "F"
	MsgTypeOrderCancelReplace = "G"
	MsgTypeOrderStatusRequest = "H"
	MsgTypeBusinessReject     = "j"
)

var msgTypeNames = map[string]string{
	"0": "Heartbeat",
	"1": "TestRequest",
	"2": "ResendRequest",
	"3": "Reject",
	"4": "SequenceReset",
	"5": "Logout",
	"6": "IOI",
	"7": "Advertisement",
	"8": "ExecutionReport",
	"9": "OrderCancelReject",
	"A": "Logon",
	"B": "News",
	"C": "Email",
	"D": "NewOrderSingle",
	"E": "NewOrderList",
	"F": "OrderCancelRequest",
	"G": "OrderCancelReplaceRequest",
	"H": "OrderStatusRequest",
	"J": "AllocationInstruction",
	"K": "ListCancelRequest",
	"L": "ListExecute",
	"M": "ListStatusRequest",
	"N": "ListStatus",
	"P": "AllocationInstructionAck",
	"Q": "DontKnowTrade",
	"R": "QuoteRequest",
	"S": "Quote",
	"T": "SettlementInstructions",
	"V": "MarketDataRequest",
	"W": "MarketDataSnapshotFullRefresh",
	"X": "MarketDataIncrementalRefresh",
	"Y": "MarketDataRequestReject",
	"Z": "QuoteCancel",
	"a": "QuoteStatusRequest",
	"b": "MassQuoteAcknowledgement",
	"c": "SecurityDefinitionRequest",
	"d": "SecurityDefinition",
	"e": "SecurityStatusRequest",
	"f": "SecurityStatus",
	"g": "TradingSessionStatusRequest",
	"h": "TradingSessionStatus",
	"i": "MassQuote",
	"j": "BusinessMessageReject",
	"k": "BidRequest",
	"l": "BidResponse",
	"m": "ListStrikePrice",
}

var execTypeNames = map[string]string{
	"0": "New",
	"1": "PartialFill",
	"2": "Fill",
	"3": "DoneForDay",
	"4": "Canceled",
	"5": "Replaced",
	"6": "PendingCancel",
	"7": "Stopped",
	"8": "Rejected",
	"9": "Suspended",
	"A": "PendingNew",
	"B": "Calculated",
	"C": "Expired",
	"D": "Restated",
	"E": "PendingReplace",
	"F": "Trade",
	"G": "TradeCorrect",
	"H": "TradeCancel",
	"I": "OrderStatus",
}

// MsgTypeName returns the human-readable name for a MsgType value,
// or the value itself when unknown.
func MsgTypeName(msgType string) string {
	if name, ok := msgTypeNames[msgType]; ok {
		return name
	}
	return msgType
}

// ExecTypeName returns the human-readable name for an ExecType (tag 150)
// value, or the value itself when unknown.
func ExecTypeName(execType string) string {
	if name, ok := execTypeNames[execType]; ok {
		return name
	}
	return execType
}
