package config

import "errors"

var (
	// ErrInvalidConfig reports a value Validate rejects, such as an unknown
	// store backend or a kafka broker list without a topic.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig reports an unreadable OCTOFIT_CONFIG file or env values
	// that do not decode into Config.
	ErrLoadConfig = errors.New("load config failed")
)
