package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{"left_wheel":{"pwm_pin":"pwm0","dir_pin":"gpio2"}}`))
	require.NoError(t, err)

	assert.Equal(t, "pwm0", cfg.LeftWheel.PWMPin)
	assert.Equal(t, uint8(10), cfg.LeftWheel.MinDutyPercent)
	assert.Equal(t, 360, cfg.LeftWheel.EncoderCountsPerRev)
	assert.Equal(t, PIDGains{Kp: 0.25, Ki: 0.02, Kd: 1.0}, cfg.LeftWheel.PID)
	assert.Equal(t, uint8(0x2A), cfg.LineSensor.I2CAddress)
	assert.Equal(t, uint16(110), cfg.LineSensor.EdgeThreshold)
	assert.Equal(t, 115200, cfg.Link.BaudRate)
}

func TestLoadConfigPreservesExplicitValues(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{
		"left_wheel": {"pid": {"kp": 1, "ki": 2, "kd": 3}},
		"line_sensor": {"i2c_address": 42, "edge_threshold": 200},
		"link": {"device": "/dev/ttyUSB0", "baud_rate": 1000000}
	}`))
	require.NoError(t, err)

	assert.Equal(t, PIDGains{Kp: 1, Ki: 2, Kd: 3}, cfg.LeftWheel.PID)
	assert.Equal(t, uint8(42), cfg.LineSensor.I2CAddress)
	assert.Equal(t, uint16(200), cfg.LineSensor.EdgeThreshold)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Link.Device)
	assert.Equal(t, 1000000, cfg.Link.BaudRate)
}

func TestLoadConfigRejectsMalformedJSON(t *testing.T) {
	_, err := LoadConfig([]byte(`{not json`))
	require.Error(t, err)
}

func TestDefaultConfigIsFullyPopulated(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotZero(t, cfg.LeftWheel.MaxSpeedCmS)
	assert.NotZero(t, cfg.RightWheel.MaxSpeedCmS)
	assert.True(t, cfg.RightWheel.Invert)
	assert.Equal(t, "/dev/ttyACM0", cfg.Link.Device)
}
