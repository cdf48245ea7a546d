package loop

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// EnvConfig is the environment surface of the driver. Unset or empty
// variables leave the corresponding Config field untouched, except
// FORGELOOP_VERIFY_CMD where a set-but-empty value disables verification.
type EnvConfig struct {
	Agent         string `env:"FORGELOOP_AGENT"`
	Flags         string `env:"FORGELOOP_FLAGS"`
	VerifyCommand string `env:"FORGELOOP_VERIFY_CMD"`
	NotifyURL     string `env:"FORGELOOP_NOTIFY_URL"`
	NotifyToken   string `env:"FORGELOOP_NOTIFY_TOKEN"`
	Verbosity     string `env:"FORGELOOP_VERBOSITY"`
	ConfigFile    string `env:"FORGELOOP_CONFIG"`

	verifySet bool
}

const verifyCommandEnv = "FORGELOOP_VERIFY_CMD"

// LoadEnv reads EnvConfig through lookuper, or the process environment when
// lookuper is nil.
func LoadEnv(ctx context.Context, lookuper envconfig.Lookuper) (*EnvConfig, error) {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}

	var env EnvConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &env,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	_, env.verifySet = lookuper.Lookup(verifyCommandEnv)
	return &env, nil
}

// Apply overlays the non-empty environment values onto c.
func (e *EnvConfig) Apply(c *Config) {
	if e.Agent != "" {
		c.Agent = e.Agent
	}
	if e.Flags != "" {
		c.Flags = e.Flags
	}
	if e.verifySet {
		c.VerifyCommand = e.VerifyCommand
	}
	if e.NotifyURL != "" {
		c.Notify.URL = e.NotifyURL
	}
	if e.NotifyToken != "" {
		c.Notify.Token = e.NotifyToken
	}
	if e.Verbosity != "" {
		c.Logging.Verbosity = e.Verbosity
	}
}
