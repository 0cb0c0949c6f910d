package testcases

import (
	"github.com/tturner/fixtest/internal/asserts"
	"github.com/tturner/fixtest/internal/config"
	"github.com/tturner/fixtest/internal/controller"
	"github.com/tturner/fixtest/internal/session"
)

// LogonCase performs the opening handshake and nothing else.
type LogonCase struct {
	controller.Base
	client, server string
}

func NewLogonCase(cfg *config.Config) *LogonCase {
	client, server := endpoints(cfg)
	return &LogonCase{
		Base: controller.Base{
			TestID:          "logon",
			TestDescription: "logon handshake",
			ClientNames:     nameList(client),
			ServerNames:     nameList(server),
		},
		client: client,
		server: server,
	}
}

func (tc *LogonCase) Run(env *controller.Env) error {
	if err := logon(env, tc.client, tc.server); err != nil {
		return err
	}

	ct, err := env.Transport(tc.client)
	if err != nil {
		return err
	}
	asserts.Equal(ct.Session().State(), session.LoggedOn)
	return nil
}

// LogonLogoutCase walks the whole session lifecycle.
type LogonLogoutCase struct {
	controller.Base
	client, server string
}

func NewLogonLogoutCase(cfg *config.Config) *LogonLogoutCase {
	client, server := endpoints(cfg)
	return &LogonLogoutCase{
		Base: controller.Base{
			TestID:          "logon-logout",
			TestDescription: "logon followed by an orderly logout",
			ClientNames:     nameList(client),
			ServerNames:     nameList(server),
		},
		client: client,
		server: server,
	}
}

func (tc *LogonLogoutCase) Run(env *controller.Env) error {
	if err := logon(env, tc.client, tc.server); err != nil {
		return err
	}
	if err := logout(env, tc.client, tc.server); err != nil {
		return err
	}

	ct, err := env.Transport(tc.client)
	if err != nil {
		return err
	}
	asserts.Equal(ct.Session().State(), session.LoggedOut)
	return nil
}
