package cmd

import (
	"bytes"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"i4.energy/across/rak811/internal/config"
	"i4.energy/across/rak811/modem"
)

var (
	cfgFile string
	version string
)

var rootCmd = &cobra.Command{
	Use:   "rak811",
	Short: "RAK811 LoRaWAN node",
	Long: `rak811 drives a RAK811 LoRaWAN module over its serial AT command interface.
It joins the network, sends uplinks received over HTTP and forwards downlinks to MQTT.`,
	RunE: run,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to configuration file (optional)")
	rootCmd.PersistentFlags().Int("log-level", 4, "debug=5, info=4, error=2, fatal=1, panic=0")
	rootCmd.PersistentFlags().String("serial-port", "/dev/ttyUSB0", "serial port of the module")
	rootCmd.PersistentFlags().Int("baud-rate", modem.DefaultBaudRate, "baud rate of the module")

	viper.BindPFlag("general.log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("serial.port", rootCmd.PersistentFlags().Lookup("serial-port"))
	viper.BindPFlag("serial.baud_rate", rootCmd.PersistentFlags().Lookup("baud-rate"))

	// default values
	viper.SetDefault("device.at_timeout", modem.DefaultATTimeout)
	viper.SetDefault("device.join_timeout", modem.DefaultJoinTimeout)
	viper.SetDefault("device.send_timeout", modem.DefaultSendTimeout)
	viper.SetDefault("device.region", "EU868")
	viper.SetDefault("device.class", "A")
	viper.SetDefault("device.adr", true)
	viper.SetDefault("device.activation", "otaa")
	viper.SetDefault("device.join_retries", 3)
	viper.SetDefault("device.join_interval", 10*time.Second)

	viper.SetDefault("uplink.port", 1)

	viper.SetDefault("api.bind", "0.0.0.0:8080")

	viper.SetDefault("mqtt.server", "")
	viper.SetDefault("mqtt.qos", 0)
	viper.SetDefault("mqtt.clean_session", true)
	viper.SetDefault("mqtt.client_id", "rak811")
	viper.SetDefault("mqtt.topic_template", "rak811/{{ .DevEUI }}/event/{{ .Event }}")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sendCmd)
}

// Execute executes the root command.
func Execute(v string) {
	version = v

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func initConfig() {
	config.Version = version

	if cfgFile != "" {
		b, err := os.ReadFile(cfgFile)
		if err != nil {
			log.WithError(err).WithField("config", cfgFile).Fatal("error loading config file")
		}
		viper.SetConfigType("toml")
		if err := viper.ReadConfig(bytes.NewBuffer(b)); err != nil {
			log.WithError(err).WithField("config", cfgFile).Fatal("error loading config file")
		}
	} else {
		viper.SetConfigName("rak811")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/rak811")
		viper.AddConfigPath("/etc/rak811")
		if err := viper.ReadInConfig(); err != nil {
			switch err.(type) {
			case viper.ConfigFileNotFoundError:
				log.Warning("No configuration file found, using defaults.")
			default:
				log.WithError(err).Fatal("read configuration file error")
			}
		}
	}

	viperBindEnvs(config.C)

	viperHooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	if err := viper.Unmarshal(&config.C, viper.DecodeHook(viperHooks)); err != nil {
		log.WithError(err).Fatal("unmarshal config error")
	}
}

func viperBindEnvs(iface interface{}, parts ...string) {
	ifv := reflect.ValueOf(iface)
	ift := reflect.TypeOf(iface)
	for i := 0; i < ift.NumField(); i++ {
		v := ifv.Field(i)
		t := ift.Field(i)
		tv, ok := t.Tag.Lookup("mapstructure")
		if !ok {
			tv = strings.ToLower(t.Name)
		}
		if tv == "-" {
			continue
		}

		switch v.Kind() {
		case reflect.Struct:
			viperBindEnvs(v.Interface(), append(parts, tv)...)
		default:
			// Bash doesn't allow env variable names with a dot so
			// bind the double underscore version.
			keyDot := strings.Join(append(parts, tv), ".")
			keyUnderscore := strings.Join(append(parts, tv), "__")
			viper.BindEnv(keyDot, strings.ToUpper(keyUnderscore))
		}
	}
}
