package bootstrap

import "github.com/kbukum/whisperjob/config"

// Config is satisfied by any struct embedding config.ServiceConfig:
//
//	type Config struct {
//	    config.ServiceConfig `mapstructure:",squash"`
//	    Server server.Config `mapstructure:"server"`
//	}
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
