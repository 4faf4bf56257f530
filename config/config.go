// Package config loads the monitor's configuration from config.yaml,
// environment variables (BEDMONITOR_*) and built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	WiFi     WiFiConfig     `mapstructure:"wifi"`
	Security SecurityConfig `mapstructure:"security"`
	Uplink   UplinkConfig   `mapstructure:"uplink"`
	Sensors  SensorsConfig  `mapstructure:"sensors"`
	Alert    AlertConfig    `mapstructure:"alert"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MQTTConfig struct {
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	ClientID  string        `mapstructure:"client_id"`
	KeepAlive time.Duration `mapstructure:"keep_alive"`
	// PublishPause is the inter-publish breather between the per-field
	// messages of one telemetry cycle.
	PublishPause time.Duration `mapstructure:"publish_pause"`
	Topics       TopicsConfig  `mapstructure:"topics"`
}

type TopicsConfig struct {
	Temperature string `mapstructure:"temperature"`
	Humidity    string `mapstructure:"humidity"`
	Angle       string `mapstructure:"angle"`
	Alert       string `mapstructure:"alert"`
	Status      string `mapstructure:"status"`
}

type WiFiConfig struct {
	SSID     string `mapstructure:"ssid"`
	Password string `mapstructure:"password"`
	// ProbeAddr is the TCP endpoint the radio probe dials to decide
	// whether the link is usable.
	ProbeAddr      string        `mapstructure:"probe_addr"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
}

type SecurityConfig struct {
	// Key and IV are provisioned here, exactly 16 bytes each. There are
	// no compiled-in defaults on purpose.
	Key string `mapstructure:"key"`
	IV  string `mapstructure:"iv"`
}

type UplinkConfig struct {
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

type SensorsConfig struct {
	I2CBus   string `mapstructure:"i2c_bus"`
	TiltAddr uint16 `mapstructure:"tilt_addr"`
	EnvAddr  uint16 `mapstructure:"env_addr"`
}

type AlertConfig struct {
	AngleMin    float64 `mapstructure:"angle_min"`
	AngleMax    float64 `mapstructure:"angle_max"`
	AngleTarget float64 `mapstructure:"angle_target"`
	// Pins for indicator LED, buzzer, servo and the two uplink buttons,
	// by periph pin name.
	LEDPin     string `mapstructure:"led_pin"`
	BuzzerPin  string `mapstructure:"buzzer_pin"`
	ServoPin   string `mapstructure:"servo_pin"`
	StartPin   string `mapstructure:"start_pin"`
	StopPin    string `mapstructure:"stop_pin"`
	DebounceMS int    `mapstructure:"debounce_ms"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("mqtt.host", "test.mosquitto.org")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.client_id", "pico_hospital_bed_12345")
	v.SetDefault("mqtt.keep_alive", "60s")
	v.SetDefault("mqtt.publish_pause", "100ms")
	v.SetDefault("mqtt.topics.temperature", "hospital/cama/temperatura")
	v.SetDefault("mqtt.topics.humidity", "hospital/cama/umidade")
	v.SetDefault("mqtt.topics.angle", "hospital/cama/angulo")
	v.SetDefault("mqtt.topics.status", "hospital/cama/status")
	v.SetDefault("mqtt.topics.alert", "hospital/cama01/alerta")

	v.SetDefault("wifi.probe_addr", "test.mosquitto.org:1883")
	v.SetDefault("wifi.max_attempts", 5)
	v.SetDefault("wifi.attempt_timeout", "15s")
	v.SetDefault("wifi.retry_backoff", "3s")

	v.SetDefault("uplink.port", "/dev/ttyUSB0")
	v.SetDefault("uplink.baud", 115200)

	v.SetDefault("sensors.i2c_bus", "")
	v.SetDefault("sensors.tilt_addr", 0x68)
	v.SetDefault("sensors.env_addr", 0x38)

	v.SetDefault("alert.angle_min", 30.0)
	v.SetDefault("alert.angle_max", 45.0)
	v.SetDefault("alert.angle_target", 37.5)
	v.SetDefault("alert.led_pin", "GPIO13")
	v.SetDefault("alert.buzzer_pin", "GPIO10")
	v.SetDefault("alert.servo_pin", "GPIO2")
	v.SetDefault("alert.start_pin", "GPIO5")
	v.SetDefault("alert.stop_pin", "GPIO6")
	v.SetDefault("alert.debounce_ms", 50)
}

// Load reads the configuration, optionally from an explicit file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/bedmonitor/")
	}

	v.SetEnvPrefix("BEDMONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No file is fine; defaults plus env carry the day.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the process cannot safely start with.
func (c *Config) Validate() error {
	if len(c.Security.Key) != 16 {
		return fmt.Errorf("security.key must be exactly 16 bytes, got %d", len(c.Security.Key))
	}
	if len(c.Security.IV) != 16 {
		return fmt.Errorf("security.iv must be exactly 16 bytes, got %d", len(c.Security.IV))
	}
	if c.MQTT.Host == "" {
		return fmt.Errorf("mqtt.host must not be empty")
	}
	if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
		return fmt.Errorf("mqtt.port out of range: %d", c.MQTT.Port)
	}
	if c.WiFi.MaxAttempts <= 0 {
		return fmt.Errorf("wifi.max_attempts must be positive")
	}
	if c.Alert.AngleMin >= c.Alert.AngleMax {
		return fmt.Errorf("alert.angle_min must be below alert.angle_max")
	}
	if c.Alert.AngleTarget < c.Alert.AngleMin || c.Alert.AngleTarget > c.Alert.AngleMax {
		return fmt.Errorf("alert.angle_target must sit inside the safe range")
	}
	return nil
}

// BrokerAddr returns host:port for the MQTT broker.
func (c *MQTTConfig) BrokerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
