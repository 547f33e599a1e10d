package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/linefollow/internal/odometry"
	"github.com/banshee-data/linefollow/internal/reflectance"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the robot's calibration and controller tuning. Every
// field is optional; the Get* accessors fall back to the defaults below, so
// partial files are safe. Values are fixed once the robot is built from them.
type TuningConfig struct {
	// Reflectance processing
	EMAGain      *float64 `json:"ema_gain,omitempty" yaml:"ema_gain,omitempty"`
	WindowLength *int     `json:"window_length,omitempty" yaml:"window_length,omitempty"`
	SignalMode   *string  `json:"signal_mode,omitempty" yaml:"signal_mode,omitempty"`

	// Line-tracking monitor
	MistakeThreshold  *float64 `json:"mistake_threshold,omitempty" yaml:"mistake_threshold,omitempty"`
	RecoveryThreshold *float64 `json:"recovery_threshold,omitempty" yaml:"recovery_threshold,omitempty"`

	// Loop timing, duration strings like "20ms"
	TickPeriod             *string `json:"tick_period,omitempty" yaml:"tick_period,omitempty"`
	OdometerUpdateInterval *string `json:"odometer_update_interval,omitempty" yaml:"odometer_update_interval,omitempty"`

	// Steering
	SteeringGain     *float64 `json:"steering_gain,omitempty" yaml:"steering_gain,omitempty"`
	SteeringDeadband *float64 `json:"steering_deadband,omitempty" yaml:"steering_deadband,omitempty"`
	BaseSpeed        *float64 `json:"base_speed,omitempty" yaml:"base_speed,omitempty"`

	// Drivetrain geometry
	GearRatio              *float64 `json:"gear_ratio,omitempty" yaml:"gear_ratio,omitempty"`
	CountsPerMotorShaftRev *float64 `json:"counts_per_motor_shaft_rev,omitempty" yaml:"counts_per_motor_shaft_rev,omitempty"`
	WheelDiameterIn        *float64 `json:"wheel_diameter_in,omitempty" yaml:"wheel_diameter_in,omitempty"`

	// Telemetry
	ReportEvery *int `json:"report_every,omitempty" yaml:"report_every,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to its
// default, matching config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	geo := odometry.DefaultGeometry()
	return &TuningConfig{
		EMAGain:                ptrFloat64(0.9),
		WindowLength:           ptrInt(15),
		SignalMode:             ptrString("median"),
		MistakeThreshold:       ptrFloat64(0.25),
		RecoveryThreshold:      ptrFloat64(0.1),
		TickPeriod:             ptrString("20ms"),
		OdometerUpdateInterval: ptrString("50ms"),
		SteeringGain:           ptrFloat64(0.15),
		SteeringDeadband:       ptrFloat64(0.2),
		BaseSpeed:              ptrFloat64(0.3),
		GearRatio:              ptrFloat64(geo.GearRatio),
		CountsPerMotorShaftRev: ptrFloat64(geo.CountsPerMotorShaftRev),
		WheelDiameterIn:        ptrFloat64(geo.WheelDiameter),
		ReportEvery:            ptrInt(25),
	}
}

// LoadTuningConfig loads a TuningConfig from a .json, .yaml or .yml file.
// Fields omitted from the file keep their defaults through the Get* methods.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.EMAGain != nil {
		if !(*c.EMAGain >= 0 && *c.EMAGain <= 1) {
			return fmt.Errorf("ema_gain must be between 0 and 1, got %v", *c.EMAGain)
		}
	}

	if c.WindowLength != nil && *c.WindowLength < 1 {
		return fmt.Errorf("window_length must be positive, got %d", *c.WindowLength)
	}

	if c.SignalMode != nil {
		if _, err := reflectance.ParseMode(*c.SignalMode); err != nil {
			return err
		}
	}

	if c.MistakeThreshold != nil && *c.MistakeThreshold <= 0 {
		return fmt.Errorf("mistake_threshold must be positive, got %v", *c.MistakeThreshold)
	}
	if c.RecoveryThreshold != nil && *c.RecoveryThreshold <= 0 {
		return fmt.Errorf("recovery_threshold must be positive, got %v", *c.RecoveryThreshold)
	}

	if err := validateDuration("tick_period", c.TickPeriod); err != nil {
		return err
	}
	if err := validateDuration("odometer_update_interval", c.OdometerUpdateInterval); err != nil {
		return err
	}

	if c.SteeringGain != nil && *c.SteeringGain < 0 {
		return fmt.Errorf("steering_gain must be non-negative, got %v", *c.SteeringGain)
	}
	if c.SteeringDeadband != nil && *c.SteeringDeadband < 0 {
		return fmt.Errorf("steering_deadband must be non-negative, got %v", *c.SteeringDeadband)
	}
	if c.BaseSpeed != nil && (*c.BaseSpeed < -1 || *c.BaseSpeed > 1) {
		return fmt.Errorf("base_speed must be between -1 and 1, got %v", *c.BaseSpeed)
	}

	if err := c.GetGeometry().Validate(); err != nil {
		return err
	}

	if c.ReportEvery != nil && *c.ReportEvery < 0 {
		return fmt.Errorf("report_every must be non-negative, got %d", *c.ReportEvery)
	}

	return nil
}

func validateDuration(name string, v *string) error {
	if v == nil || *v == "" {
		return nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, *v)
	}
	return nil
}

// GetEMAGain returns the ema_gain value or the default.
func (c *TuningConfig) GetEMAGain() float64 {
	if c.EMAGain == nil {
		return 0.9
	}
	return *c.EMAGain
}

// GetWindowLength returns the window_length value or the default.
func (c *TuningConfig) GetWindowLength() int {
	if c.WindowLength == nil {
		return 15
	}
	return *c.WindowLength
}

// GetSignalMode returns the parsed signal_mode, or the median default when
// unset or unparseable.
func (c *TuningConfig) GetSignalMode() reflectance.Mode {
	if c.SignalMode == nil {
		return reflectance.ModeMedian
	}
	mode, err := reflectance.ParseMode(*c.SignalMode)
	if err != nil {
		return reflectance.ModeMedian
	}
	return mode
}

// GetMistakeThreshold returns the mistake_threshold value or the default.
func (c *TuningConfig) GetMistakeThreshold() float64 {
	if c.MistakeThreshold == nil {
		return 0.25
	}
	return *c.MistakeThreshold
}

// GetRecoveryThreshold returns the recovery_threshold value or the default.
func (c *TuningConfig) GetRecoveryThreshold() float64 {
	if c.RecoveryThreshold == nil {
		return 0.1
	}
	return *c.RecoveryThreshold
}

// GetTickPeriod returns the tick_period duration or the default.
func (c *TuningConfig) GetTickPeriod() time.Duration {
	return parseDurationOr(c.TickPeriod, 20*time.Millisecond)
}

// GetOdometerUpdateInterval returns the odometer_update_interval duration or the default.
func (c *TuningConfig) GetOdometerUpdateInterval() time.Duration {
	return parseDurationOr(c.OdometerUpdateInterval, 50*time.Millisecond)
}

// GetSteeringGain returns the steering_gain value or the default.
func (c *TuningConfig) GetSteeringGain() float64 {
	if c.SteeringGain == nil {
		return 0.15
	}
	return *c.SteeringGain
}

// GetSteeringDeadband returns the steering_deadband value or the default.
func (c *TuningConfig) GetSteeringDeadband() float64 {
	if c.SteeringDeadband == nil {
		return 0.2
	}
	return *c.SteeringDeadband
}

// GetBaseSpeed returns the base_speed value or the default.
func (c *TuningConfig) GetBaseSpeed() float64 {
	if c.BaseSpeed == nil {
		return 0.3
	}
	return *c.BaseSpeed
}

// GetGeometry returns the drivetrain geometry, filling unset fields from
// odometry.DefaultGeometry.
func (c *TuningConfig) GetGeometry() odometry.Geometry {
	geo := odometry.DefaultGeometry()
	if c.GearRatio != nil {
		geo.GearRatio = *c.GearRatio
	}
	if c.CountsPerMotorShaftRev != nil {
		geo.CountsPerMotorShaftRev = *c.CountsPerMotorShaftRev
	}
	if c.WheelDiameterIn != nil {
		geo.WheelDiameter = *c.WheelDiameterIn
	}
	return geo
}

// GetReportEvery returns the report_every value or the default. Zero
// disables periodic log reports.
func (c *TuningConfig) GetReportEvery() int {
	if c.ReportEvery == nil {
		return 25
	}
	return *c.ReportEvery
}

func parseDurationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}
