// Package config loads the one-shot JSON machine description the
// application task graph is built from: wheel base geometry and PID
// gains, the lift stepper's pin assignment, the gripper servo's PWM
// channel, the line sensor's I2C address, and the host link's serial
// device and baud rate.
//
// Grounded on standalone/config/config.go's
// LoadConfig/applyDefaults pattern, repurposed from a CNC machine's
// axis/heater configuration to this robot's geometry; spec.md's
// Non-goals exclude persistent configuration beyond this one-shot load
// at startup, so there is no save path, only LoadConfig and the
// defaults it fills in.
package config

import "encoding/json"

// PIDGains holds the three PID terms used by every wheel controller.
// Defaults match spec.md §4.4's "typical seed values used in the
// source".
type PIDGains struct {
	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`
	Kd float64 `json:"kd"`
}

// WheelConfig describes one driven wheel: its motor wiring, its
// encoder, and the PID loop that stabilizes its velocity.
type WheelConfig struct {
	PWMPin string `json:"pwm_pin"`
	DirPin string `json:"dir_pin"`
	Invert bool   `json:"invert"`

	MinDutyPercent uint8 `json:"min_duty_percent"`

	EncoderCountsPerRev int     `json:"encoder_counts_per_rev"`
	WheelRadiusCm       float64 `json:"wheel_radius_cm"`
	MaxSpeedCmS         float64 `json:"max_speed_cm_s"`

	PID PIDGains `json:"pid"`
}

// StepperConfig describes one STEP/DIR pair, here used for the lift
// platform.
type StepperConfig struct {
	StepPin       string  `json:"step_pin"`
	DirPin        string  `json:"dir_pin"`
	PulseWidthUs  int     `json:"pulse_width_us"`
	DefaultSpeedHz float64 `json:"default_speed_hz"`
}

// LineSensorConfig describes the I2C reflectance array.
type LineSensorConfig struct {
	I2CAddress    uint8  `json:"i2c_address"`
	EdgeThreshold uint16 `json:"edge_threshold"`
}

// LinkConfig describes the UART the host's command link runs over.
type LinkConfig struct {
	Device   string `json:"device"`
	BaudRate int    `json:"baud_rate"`
}

// MachineConfig is the complete robot configuration, analogous to the
// standalone.MachineConfig but describing a wheeled robot instead of a
// Cartesian/CoreXY/delta printer.
type MachineConfig struct {
	LeftWheel  WheelConfig `json:"left_wheel"`
	RightWheel WheelConfig `json:"right_wheel"`

	LiftStepper StepperConfig `json:"lift_stepper"`

	GripperServoPin string `json:"gripper_servo_pin"`

	LineSensor LineSensorConfig `json:"line_sensor"`

	Link LinkConfig `json:"link"`
}

// LoadConfig parses a JSON machine description and fills in any
// missing fields with sensible defaults.
func LoadConfig(jsonData []byte) (*MachineConfig, error) {
	var cfg MachineConfig
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills in zero-valued fields with the seed values
// spec.md §4.4 and §4.6 call out.
func applyDefaults(cfg *MachineConfig) {
	applyWheelDefaults(&cfg.LeftWheel)
	applyWheelDefaults(&cfg.RightWheel)

	if cfg.LiftStepper.PulseWidthUs == 0 {
		cfg.LiftStepper.PulseWidthUs = 2
	}
	if cfg.LiftStepper.DefaultSpeedHz == 0 {
		cfg.LiftStepper.DefaultSpeedHz = 500
	}

	if cfg.LineSensor.I2CAddress == 0 {
		cfg.LineSensor.I2CAddress = 0x2A
	}
	if cfg.LineSensor.EdgeThreshold == 0 {
		cfg.LineSensor.EdgeThreshold = 110
	}

	if cfg.Link.BaudRate == 0 {
		cfg.Link.BaudRate = 115200
	}
}

func applyWheelDefaults(w *WheelConfig) {
	if w.MinDutyPercent == 0 {
		w.MinDutyPercent = 10
	}
	if w.EncoderCountsPerRev == 0 {
		w.EncoderCountsPerRev = 360
	}
	if w.WheelRadiusCm == 0 {
		w.WheelRadiusCm = 3.25
	}
	if w.MaxSpeedCmS == 0 {
		w.MaxSpeedCmS = 40
	}
	if w.PID.Kp == 0 && w.PID.Ki == 0 && w.PID.Kd == 0 {
		w.PID = PIDGains{Kp: 0.25, Ki: 0.02, Kd: 1.0}
	}
}

// DefaultConfig returns a complete configuration using only the
// default pin names, for tests.
func DefaultConfig() *MachineConfig {
	cfg := &MachineConfig{
		LeftWheel: WheelConfig{
			PWMPin: "pwm0",
			DirPin: "gpio2",
		},
		RightWheel: WheelConfig{
			PWMPin: "pwm1",
			DirPin: "gpio3",
			Invert: true,
		},
		LiftStepper: StepperConfig{
			StepPin: "gpio4",
			DirPin:  "gpio5",
		},
		GripperServoPin: "pwm2",
		Link: LinkConfig{
			Device: "/dev/ttyACM0",
		},
	}
	applyDefaults(cfg)
	return cfg
}
