package strata

import (
	"github.com/spf13/viper"
)

// InitOption configures initialization.
type InitOption func(*initConfig)

type initConfig struct {
	options       *ClientOptions
	client        Client
	clientOptions []ClientOption
	viper         *viper.Viper
	store         *Store
	startSession  bool
}

// WithOptions provides explicit client options instead of loading them.
func WithOptions(opts ClientOptions) InitOption {
	return func(c *initConfig) {
		c.options = &opts
	}
}

// WithClient binds an existing client. Options are then ignored.
func WithClient(client Client) InitOption {
	return func(c *initConfig) {
		c.client = client
	}
}

// WithClientOptions passes options to the EventClient Init creates.
func WithClientOptions(opts ...ClientOption) InitOption {
	return func(c *initConfig) {
		c.clientOptions = append(c.clientOptions, opts...)
	}
}

// WithViper loads options from vp instead of a default viper instance.
func WithViper(vp *viper.Viper) InitOption {
	return func(c *initConfig) {
		c.viper = vp
	}
}

// WithStore initializes store instead of the default store.
func WithStore(store *Store) InitOption {
	return func(c *initConfig) {
		c.store = store
	}
}

// WithSession starts a session on the isolation scope of the returned
// context; the cleanup function ends it.
func WithSession() InitOption {
	return func(c *initConfig) {
		c.startSession = true
	}
}

func applyInitOptions(opts []InitOption) initConfig {
	cfg := initConfig{store: defaultStore}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
