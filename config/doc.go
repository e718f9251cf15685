// Package config loads service configuration with Viper.
//
// A YAML file provides the base values, an optional .env file is loaded into
// the environment with godotenv, and environment variables override both.
//
// # Usage
//
//	var cfg AppConfig
//	err := config.LoadConfig("whisperjob", &cfg, config.WithEnvPrefix("WHISPERJOB"))
//
// With the prefix above, WHISPERJOB_WORKER_MAX_MESSAGE_SIZE overrides
// worker.max_message_size.
package config
