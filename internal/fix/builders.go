package fix

// Builders for common FIX messages

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SendingTimeFormat is the UTC timestamp layout for tag 52.
const SendingTimeFormat = "20060102-15:04:05.000"

// FormatSendingTime renders a time for tag 52.
func FormatSendingTime(t time.Time) string {
	return t.UTC().Format(SendingTimeFormat)
}

// Endpoint is the session identity a builder stamps into a message:
// who is sending, who should receive, and the heartbeat interval the
// sender wants to advertise on Logon.
type Endpoint interface {
	SenderCompID() string
	TargetCompID() string
	HeartbeatInterval() time.Duration
}

// Logon builds a Logon (35=A) message for the endpoint, advertising
// its heartbeat interval in tag 108.
func Logon(ep Endpoint) *Message {
	return NewMessage(
		F(TagMsgType, MsgTypeLogon),
		F(TagSenderCompID, ep.SenderCompID()),
		F(TagTargetCompID, ep.TargetCompID()),
		F(TagEncryptMethod, 0),
		F(TagHeartBtInt, int(ep.HeartbeatInterval()/time.Second)),
	)
}

// Logout builds a Logout (35=5) message for the endpoint.
func Logout(ep Endpoint) *Message {
	return NewMessage(
		F(TagMsgType, MsgTypeLogout),
		F(TagSenderCompID, ep.SenderCompID()),
		F(TagTargetCompID, ep.TargetCompID()),
	)
}

// Heartbeat builds a Heartbeat (35=0). testReqID may be empty; when set
// it is carried in tag 112, answering a TestRequest.
func Heartbeat(ep Endpoint, testReqID string) *Message {
	m := NewMessage(
		F(TagMsgType, MsgTypeHeartbeat),
		F(TagSenderCompID, ep.SenderCompID()),
		F(TagTargetCompID, ep.TargetCompID()),
	)
	if testReqID != "" {
		m.Set(TagTestReqID, testReqID)
	}
	return m
}

// TestRequest builds a TestRequest (35=1) carrying the given TestReqID.
func TestRequest(ep Endpoint, testReqID string) *Message {
	return NewMessage(
		F(TagMsgType, MsgTypeTestRequest),
		F(TagTestReqID, testReqID),
		F(TagSenderCompID, ep.SenderCompID()),
		F(TagTargetCompID, ep.TargetCompID()),
	)
}

// Order describes a NewOrderSingle to build. Zero-value fields are
// filled with reasonable defaults: a generated ClOrdID, market order
// type, and a transact time of now.
type Order struct {
	ClOrdID  string
	Symbol   string
	Side     string // "1" buy, "2" sell
	Quantity decimal.Decimal
	Price    decimal.Decimal // empty/zero means market order
	OrdType  string
	Extra    []Field // free-form tags appended after the named ones
}

// NewOrderSingle builds a NewOrderSingle (35=D) message.
func NewOrderSingle(ep Endpoint, order Order) *Message {
	clOrdID := order.ClOrdID
	if clOrdID == "" {
		clOrdID = uuid.NewString()
	}
	ordType := order.OrdType
	if ordType == "" {
		if order.Price.IsZero() {
			ordType = "1" // market
		} else {
			ordType = "2" // limit
		}
	}

	m := NewMessage(
		F(TagMsgType, MsgTypeNewOrderSingle),
		F(TagSenderCompID, ep.SenderCompID()),
		F(TagTargetCompID, ep.TargetCompID()),
		F(TagClOrdID, clOrdID),
		F(TagSymbol, order.Symbol),
		F(TagSide, order.Side),
		F(TagOrderQty, order.Quantity.String()),
		F(TagOrdType, ordType),
		F(60, FormatSendingTime(time.Now())),
	)
	if !order.Price.IsZero() {
		m.Set(TagPrice, order.Price.String())
	}
	for _, f := range order.Extra {
		m.append(f)
	}
	return m
}

// Execution describes an ExecutionReport to build in response to an
// order message.
type Execution struct {
	OrderID   string
	ExecID    string
	ExecType  string // tag 150
	OrdStatus string // tag 39
	LastQty   decimal.Decimal
	LastPrice decimal.Decimal
	Extra     []Field
}

// ExecutionReport builds an ExecutionReport (35=8) answering the given
// order. ClOrdID, Symbol and Side are copied over from the order.
func ExecutionReport(ep Endpoint, order *Message, exec Execution) *Message {
	orderID := exec.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}
	execID := exec.ExecID
	if execID == "" {
		execID = uuid.NewString()
	}

	m := NewMessage(
		F(TagMsgType, MsgTypeExecutionReport),
		F(TagSenderCompID, ep.SenderCompID()),
		F(TagTargetCompID, ep.TargetCompID()),
		F(37, orderID),
		F(17, execID),
		F(TagExecType, exec.ExecType),
		F(39, exec.OrdStatus),
	)
	for _, tag := range []int{TagClOrdID, TagSymbol, TagSide, TagOrderQty} {
		if value, ok := order.Get(tag); ok {
			m.Set(tag, value)
		}
	}
	if !exec.LastQty.IsZero() {
		m.Set(32, exec.LastQty.String())
	}
	if !exec.LastPrice.IsZero() {
		m.Set(31, exec.LastPrice.String())
	}
	for _, f := range exec.Extra {
		m.append(f)
	}
	return m
}
