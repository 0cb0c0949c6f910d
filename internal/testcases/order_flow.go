package testcases

import (
	"github.com/shopspring/decimal"

	"github.com/tturner/fixtest/internal/asserts"
	"github.com/tturner/fixtest/internal/config"
	"github.com/tturner/fixtest/internal/controller"
	"github.com/tturner/fixtest/internal/fix"
)

// OrderFlowCase sends a limit order and checks the acknowledgement and
// fill coming back, then logs out.
type OrderFlowCase struct {
	controller.Base
	client, server string
}

func NewOrderFlowCase(cfg *config.Config) *OrderFlowCase {
	client, server := endpoints(cfg)
	return &OrderFlowCase{
		Base: controller.Base{
			TestID:          "order-flow",
			TestDescription: "limit order acknowledged and filled",
			ClientNames:     nameList(client),
			ServerNames:     nameList(server),
		},
		client: client,
		server: server,
	}
}

func (tc *OrderFlowCase) Run(env *controller.Env) error {
	if err := logon(env, tc.client, tc.server); err != nil {
		return err
	}

	ct, err := env.Transport(tc.client)
	if err != nil {
		return err
	}

	qty := decimal.NewFromInt(100)
	price := decimal.RequireFromString("10.50")
	order := fix.NewOrderSingle(ct.Session(), fix.Order{
		Symbol:   "MSFT",
		Side:     "1",
		Quantity: qty,
		Price:    price,
	})
	clOrdID, _ := order.Get(fix.TagClOrdID)

	if err := env.Send(tc.client, order); err != nil {
		return err
	}

	if tc.server != "" {
		received, err := env.WaitForMessage(tc.server, "new order")
		if err != nil {
			return err
		}
		asserts.MsgType(received, fix.MsgTypeNewOrderSingle)
		asserts.Tag(received, fix.TagClOrdID, clOrdID)
		asserts.Tag(received, fix.TagOrderQty, "100")
		asserts.Tag(received, fix.TagPrice, "10.5")
		asserts.Tag(received, fix.TagOrdType, "2")

		st, err := env.Transport(tc.server)
		if err != nil {
			return err
		}
		ack := fix.ExecutionReport(st.Session(), received, fix.Execution{
			ExecType:  "0", // New
			OrdStatus: "0",
		})
		if err := env.Send(tc.server, ack); err != nil {
			return err
		}
		fill := fix.ExecutionReport(st.Session(), received, fix.Execution{
			ExecType:  "F", // Trade
			OrdStatus: "2",
			LastQty:   qty,
			LastPrice: price,
		})
		if err := env.Send(tc.server, fill); err != nil {
			return err
		}
	}

	ack, err := env.WaitForMessage(tc.client, "order acknowledgement")
	if err != nil {
		return err
	}
	asserts.MsgType(ack, fix.MsgTypeExecutionReport)
	asserts.Tag(ack, fix.TagClOrdID, clOrdID)
	asserts.Tag(ack, fix.TagExecType, "0")

	fill, err := env.WaitForMessage(tc.client, "fill")
	if err != nil {
		return err
	}
	asserts.MsgType(fill, fix.MsgTypeExecutionReport)
	asserts.Tag(fill, fix.TagExecType, "F")
	asserts.Tag(fill, 32, "100")
	asserts.Tag(fill, 31, "10.5")

	return logout(env, tc.client, tc.server)
}
