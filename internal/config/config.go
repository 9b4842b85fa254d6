package config

import (
	"time"

	"github.com/brocaar/lorawan/band"
)

// Version defines the rak811 version.
var Version string

// Config defines the configuration structure.
type Config struct {
	General struct {
		LogLevel int `mapstructure:"log_level"`
	}

	Serial struct {
		Port     string `mapstructure:"port"`
		BaudRate int    `mapstructure:"baud_rate"`
	}

	Device struct {
		ATTimeout     time.Duration `mapstructure:"at_timeout"`
		JoinTimeout   time.Duration `mapstructure:"join_timeout"`
		SendTimeout   time.Duration `mapstructure:"send_timeout"`
		MaxLineLength int           `mapstructure:"max_line_length"`
		Region        band.Name     `mapstructure:"region"`
		Class         string        `mapstructure:"class"`
		ADR           bool          `mapstructure:"adr"`
		Confirmed     bool          `mapstructure:"confirmed"`
		Activation    string        `mapstructure:"activation"`
		JoinRetries   int           `mapstructure:"join_retries"`
		JoinInterval  time.Duration `mapstructure:"join_interval"`

		OTAA struct {
			DevEUI string `mapstructure:"dev_eui"`
			AppEUI string `mapstructure:"app_eui"`
			AppKey string `mapstructure:"app_key"`
		} `mapstructure:"otaa"`

		ABP struct {
			DevAddr string `mapstructure:"dev_addr"`
			NwkSKey string `mapstructure:"nwk_s_key"`
			AppSKey string `mapstructure:"app_s_key"`
		} `mapstructure:"abp"`
	}

	Uplink struct {
		Interval time.Duration `mapstructure:"interval"`
		Port     int           `mapstructure:"port"`
		Payload  string        `mapstructure:"payload"`
		Sleep    bool          `mapstructure:"sleep"`
	}

	API struct {
		Bind string `mapstructure:"bind"`
	} `mapstructure:"api"`

	MQTT struct {
		Server        string `mapstructure:"server"`
		Username      string `mapstructure:"username"`
		Password      string `mapstructure:"password"`
		QOS           uint8  `mapstructure:"qos"`
		CleanSession  bool   `mapstructure:"clean_session"`
		ClientID      string `mapstructure:"client_id"`
		TopicTemplate string `mapstructure:"topic_template"`
	} `mapstructure:"mqtt"`
}

// C holds the global configuration.
var C Config
