package intake

import "time"

const (
	DefaultMaxCallDuration     = 5 * time.Minute
	DefaultCallbackWindow      = time.Hour
	DefaultMaxRetries          = 1
	DefaultReferencePrefix     = "RX"
	DefaultCollaboratorTimeout = 10 * time.Second
	defaultLogBuffer           = 64
)

// Config is the typed per-engine configuration every session is built from.
type Config struct {
	MaxCallDuration     time.Duration
	CallbackWindow      time.Duration
	MaxRetries          *int // validation failures tolerated per field before the query is unresolved; nil means DefaultMaxRetries
	LeadTypes           []string
	ReferencePrefix     string
	CollaboratorTimeout time.Duration
	LogBuffer           int
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.MaxCallDuration <= 0 {
		c.MaxCallDuration = DefaultMaxCallDuration
	}
	if c.CallbackWindow <= 0 {
		c.CallbackWindow = DefaultCallbackWindow
	}
	retries := DefaultMaxRetries
	if c.MaxRetries != nil && *c.MaxRetries >= 0 {
		retries = *c.MaxRetries
	}
	c.MaxRetries = &retries
	if len(c.LeadTypes) == 0 {
		c.LeadTypes = DefaultLeadTypes
	}
	if c.ReferencePrefix == "" {
		c.ReferencePrefix = DefaultReferencePrefix
	}
	if c.CollaboratorTimeout <= 0 {
		c.CollaboratorTimeout = DefaultCollaboratorTimeout
	}
	if c.LogBuffer <= 0 {
		c.LogBuffer = defaultLogBuffer
	}
	return c
}

func (c Config) policy() Policy {
	return Policy{MaxCallDuration: c.MaxCallDuration, CallbackWindow: c.CallbackWindow}
}
