// Package config provides the fleet configuration structures and loading logic.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/skygateai/skygate/pkg/domain"
	"github.com/skygateai/skygate/pkg/mavlink"
	"github.com/skygateai/skygate/pkg/safety"
)

// Fleet is the deployment configuration: the drones that may appear in
// scripts with their MAVLink addresses, the regulatory envelope missions are
// validated against, and the translation and telemetry settings.
type Fleet struct {
	Mission   MissionConfig          `yaml:"mission" json:"mission"`
	Limits    LimitsConfig           `yaml:"limits" json:"limits"`
	LLM       LLMConfig              `yaml:"llm" json:"llm"`
	Telemetry TelemetryConfig        `yaml:"telemetry" json:"telemetry"`
	Drones    map[string]DroneConfig `yaml:"drones" json:"drones"`
}

// MissionConfig carries mission-wide defaults.
type MissionConfig struct {
	// ID overrides the mission id stamped on parsed documents.
	ID string `yaml:"id" json:"id"`
	// SharedPosition switches the validator to the legacy single position
	// track shared by all drones.
	SharedPosition bool `yaml:"shared_position" json:"shared_position"`
	// Home is the launch point as "lon,lat" in decimal degrees. When set,
	// local x/y waypoints are localized to coordinates before composition.
	Home string `yaml:"home" json:"home"`
}

// LimitsConfig mirrors safety.Limits with zero values meaning defaults.
type LimitsConfig struct {
	MinAltitude    float64 `yaml:"min_altitude" json:"min_altitude"`
	MaxAltitude    float64 `yaml:"max_altitude" json:"max_altitude"`
	GeofenceRadius float64 `yaml:"geofence_radius" json:"geofence_radius"`
}

// LLMConfig selects and tunes the translation provider.
type LLMConfig struct {
	Provider string `yaml:"provider" json:"provider"`
	Model    string `yaml:"model" json:"model"`
}

// TelemetryConfig carries the OTLP exporter settings.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint" json:"endpoint"`
	Environment string `yaml:"environment" json:"environment"`
	Insecure    bool   `yaml:"insecure" json:"insecure"`
}

// DroneConfig is one vehicle's MAVLink address as written in the fleet file.
// Fields are plain ints so range errors surface in Finalize with a reason
// instead of as a decoder type error.
type DroneConfig struct {
	SystemID    int `yaml:"system_id" json:"system_id"`
	ComponentID int `yaml:"component_id" json:"component_id"`
}

// FinalizationError wraps errors encountered while finalising a fleet
// configuration.
type FinalizationError struct {
	Reason error
}

func (e FinalizationError) Error() string {
	return fmt.Sprintf("fleet finalisation failed: %v", e.Reason)
}

func (e FinalizationError) Unwrap() error { return e.Reason }

// Default returns the built-in configuration used when no fleet file
// exists. Environment overrides still apply on top of the zero config, so
// SKYGATE_LLM_PROVIDER and friends behave the same with or without a file.
func Default() (*Fleet, error) {
	fleet := &Fleet{}
	applyEnvOverrides(fleet)
	if err := fleet.Finalize(); err != nil {
		return nil, err
	}
	return fleet, nil
}

// Load reads a fleet file, applies environment overrides, and finalises it.
// The file is parsed as YAML with a JSON fallback, so either format works.
func Load(path string) (*Fleet, error) {
	// #nosec G304 -- file path is operator-supplied on the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fleet file: %w", err)
	}

	var fleet Fleet
	if err := yaml.Unmarshal(data, &fleet); err != nil {
		if jsonErr := json.Unmarshal(data, &fleet); jsonErr != nil {
			return nil, fmt.Errorf("parse fleet file: %v", err)
		}
	}

	applyEnvOverrides(&fleet)

	if err := fleet.Finalize(); err != nil {
		return nil, err
	}
	return &fleet, nil
}

func applyEnvOverrides(fleet *Fleet) {
	if val := os.Getenv("SKYGATE_LLM_PROVIDER"); val != "" {
		fleet.LLM.Provider = val
	}
	if val := os.Getenv("SKYGATE_LLM_MODEL"); val != "" {
		fleet.LLM.Model = val
	}
	if val := os.Getenv("SKYGATE_OTLP_ENDPOINT"); val != "" {
		fleet.Telemetry.Endpoint = val
	}
	if val := os.Getenv("SKYGATE_OTLP_INSECURE"); val == "true" {
		fleet.Telemetry.Insecure = true
	}
}

// Finalize fills defaults and validates the fleet in place. System ids must
// be unique and non-zero: zero is the broadcast address and two vehicles on
// one id would receive each other's plans.
func (f *Fleet) Finalize() error {
	if f == nil {
		return nil
	}

	if f.Limits.MaxAltitude <= 0 {
		f.Limits.MaxAltitude = safety.DefaultLimits().MaxAltitude
	}
	if f.Limits.GeofenceRadius <= 0 {
		f.Limits.GeofenceRadius = safety.DefaultLimits().GeofenceRadius
	}
	if f.Limits.MinAltitude > f.Limits.MaxAltitude {
		return FinalizationError{Reason: fmt.Errorf("%w: min_altitude %.1f above max_altitude %.1f",
			domain.ErrConfigInvalid, f.Limits.MinAltitude, f.Limits.MaxAltitude)}
	}

	if f.LLM.Provider == "" {
		f.LLM.Provider = "openai"
	}

	if f.Drones == nil {
		f.Drones = map[string]DroneConfig{}
	}
	addresses := make(map[[2]int]string, len(f.Drones))
	for id, drone := range f.Drones {
		if id == "" {
			return FinalizationError{Reason: fmt.Errorf("%w: drone with empty id", domain.ErrConfigInvalid)}
		}
		if drone.SystemID < 1 || drone.SystemID > 255 {
			return FinalizationError{Reason: fmt.Errorf("%w: drone %s system_id %d outside 1..255",
				domain.ErrConfigInvalid, id, drone.SystemID)}
		}
		if drone.ComponentID < 0 || drone.ComponentID > 255 {
			return FinalizationError{Reason: fmt.Errorf("%w: drone %s component_id %d outside 0..255",
				domain.ErrConfigInvalid, id, drone.ComponentID)}
		}
		key := [2]int{drone.SystemID, drone.ComponentID}
		if other, dup := addresses[key]; dup {
			return FinalizationError{Reason: fmt.Errorf("%w: drones %s and %s share address %d/%d",
				domain.ErrConfigInvalid, other, id, drone.SystemID, drone.ComponentID)}
		}
		addresses[key] = id
	}

	return nil
}

// Routing converts the fleet's drone table to the composer's routing map.
func (f *Fleet) Routing() mavlink.Routing {
	routing := make(mavlink.Routing, len(f.Drones))
	for id, drone := range f.Drones {
		routing[id] = mavlink.Address{
			SystemID:    uint8(drone.SystemID),
			ComponentID: uint8(drone.ComponentID),
		}
	}
	return routing
}

// SafetyLimits converts the configured envelope for the validator.
func (f *Fleet) SafetyLimits() safety.Limits {
	return safety.Limits{
		MinAltitude:    f.Limits.MinAltitude,
		MaxAltitude:    f.Limits.MaxAltitude,
		GeofenceRadius: f.Limits.GeofenceRadius,
	}
}
