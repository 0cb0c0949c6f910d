package testcases

import (
	"github.com/tturner/fixtest/internal/asserts"
	"github.com/tturner/fixtest/internal/config"
	"github.com/tturner/fixtest/internal/controller"
	"github.com/tturner/fixtest/internal/fix"
)

// endpoints picks the first configured client and server connection.
// Either may be absent: a run against an external system has no
// in-process server half.
func endpoints(cfg *config.Config) (client, server string) {
	if conns := cfg.ClientConnections(); len(conns) > 0 {
		client = conns[0].Name
	}
	if conns := cfg.ServerConnections(); len(conns) > 0 {
		server = conns[0].Name
	}
	return client, server
}

func nameList(name string) []string {
	if name == "" {
		return nil
	}
	return []string{name}
}

// logon performs the opening handshake. When a server connection is
// in-process it answers the Logon itself; otherwise the peer system
// is expected to.
func logon(env *controller.Env, client, server string) error {
	ct, err := env.Transport(client)
	if err != nil {
		return err
	}
	if err := env.Send(client, fix.Logon(ct.Session())); err != nil {
		return err
	}

	if server != "" {
		m, err := env.WaitForMessage(server, "logon request")
		if err != nil {
			return err
		}
		asserts.MsgType(m, fix.MsgTypeLogon)
		asserts.TagExists(m, fix.TagHeartBtInt)

		st, err := env.Transport(server)
		if err != nil {
			return err
		}
		if err := env.Send(server, fix.Logon(st.Session())); err != nil {
			return err
		}
	}

	m, err := env.WaitForMessage(client, "logon response")
	if err != nil {
		return err
	}
	asserts.MsgType(m, fix.MsgTypeLogon)
	return nil
}

// logout closes the conversation from the client side.
func logout(env *controller.Env, client, server string) error {
	ct, err := env.Transport(client)
	if err != nil {
		return err
	}
	if err := env.Send(client, fix.Logout(ct.Session())); err != nil {
		return err
	}

	if server != "" {
		m, err := env.WaitForMessage(server, "logout request")
		if err != nil {
			return err
		}
		asserts.MsgType(m, fix.MsgTypeLogout)

		st, err := env.Transport(server)
		if err != nil {
			return err
		}
		if err := env.Send(server, fix.Logout(st.Session())); err != nil {
			return err
		}
	}

	m, err := env.WaitForMessage(client, "logout response")
	if err != nil {
		return err
	}
	asserts.MsgType(m, fix.MsgTypeLogout)
	return nil
}
