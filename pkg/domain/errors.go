package domain

import "errors"

// Common domain errors
var (
	ErrDroneNotRouted        = errors.New("drone not present in routing table")
	ErrMissionRejected       = errors.New("mission rejected by safety validation")
	ErrNoSteps               = errors.New("script produced no executable steps")
	ErrProviderNotConfigured = errors.New("llm provider not configured")
	ErrConfigInvalid         = errors.New("invalid configuration")
)
