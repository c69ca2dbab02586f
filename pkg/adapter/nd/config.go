package nd

import (
	"time"

	ndadapter "github.com/marmos91/ndd/internal/adapter/nd"
	"github.com/marmos91/ndd/internal/protocol/nd"
)

// Config holds the ND server settings.
type Config struct {
	// BindAddress is the local address to receive on. Empty or "0.0.0.0"
	// receives on all interfaces.
	BindAddress string

	// Protocol is the IP protocol number. Defaults to 77.
	Protocol int

	// PollInterval bounds how long a receive blocks before the loop checks
	// for shutdown.
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.BindAddress == "" {
		c.BindAddress = "0.0.0.0"
	}
	if c.Protocol == 0 {
		c.Protocol = nd.IPProtocol
	}
	if c.PollInterval <= 0 {
		c.PollInterval = ndadapter.DefaultPollInterval
	}
	return c
}
