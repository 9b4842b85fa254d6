package cmd

import (
	"os"
	"text/template"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"i4.energy/across/rak811/internal/config"
)

const configTemplate = `[general]
# Log level
#
# debug=5, info=4, warning=3, error=2, fatal=1, panic=0
log_level={{ .General.LogLevel }}


# Serial port of the module.
[serial]
# Device path (e.g. /dev/ttyUSB0 or COM6).
port="{{ .Serial.Port }}"

# Baud rate, the module ships configured for 9600.
baud_rate={{ .Serial.BaudRate }}


# LoRaWAN settings of the module.
[device]
# Response timeout of configuration commands.
at_timeout="{{ .Device.ATTimeout }}"

# Time to wait for the network to accept a join.
join_timeout="{{ .Device.JoinTimeout }}"

# Time to wait for the module to accept an uplink.
send_timeout="{{ .Device.SendTimeout }}"

# Longest response line kept while waiting for its terminator (0 = default).
max_line_length={{ .Device.MaxLineLength }}

# Frequency plan.
#
# One of AS923, AU915, CN470, EU433, EU868, IN865, KR920, US915.
region="{{ .Device.Region }}"

# Device class, A or C.
class="{{ .Device.Class }}"

# Adaptive data rate.
adr={{ .Device.ADR }}

# Send confirmed uplinks.
confirmed={{ .Device.Confirmed }}

# Activation, otaa or abp.
activation="{{ .Device.Activation }}"

# Join attempts before giving up and the pause between them.
join_retries={{ .Device.JoinRetries }}
join_interval="{{ .Device.JoinInterval }}"

  # Over the air activation credentials (hex).
  [device.otaa]
  dev_eui="{{ .Device.OTAA.DevEUI }}"
  app_eui="{{ .Device.OTAA.AppEUI }}"
  app_key="{{ .Device.OTAA.AppKey }}"

  # Activation by personalisation session (hex).
  [device.abp]
  dev_addr="{{ .Device.ABP.DevAddr }}"
  nwk_s_key="{{ .Device.ABP.NwkSKey }}"
  app_s_key="{{ .Device.ABP.AppSKey }}"


# Periodic uplink.
[uplink]
# Interval between uplinks, 0 disables them.
interval="{{ .Uplink.Interval }}"

# Port and hex payload of the uplink.
port={{ .Uplink.Port }}
payload="{{ .Uplink.Payload }}"

# Put the module to sleep between uplinks.
sleep={{ .Uplink.Sleep }}


# HTTP API.
[api]
# ip:port to bind the api server to, empty disables it.
bind="{{ .API.Bind }}"


# Downlink forwarding to MQTT.
[mqtt]
# MQTT server (e.g. scheme://host:port), empty disables forwarding.
server="{{ .MQTT.Server }}"

# Connect with the given username (optional)
username="{{ .MQTT.Username }}"

# Connect with the given password (optional)
password="{{ .MQTT.Password }}"

# Quality of service level
#
# 0: at most once
# 1: at least once
# 2: exactly once
qos={{ .MQTT.QOS }}

# Clean session
clean_session={{ .MQTT.CleanSession }}

# Client ID
client_id="{{ .MQTT.ClientID }}"

# Topic template, executed with .DevEUI and .Event.
topic_template="{{ .MQTT.TopicTemplate }}"
`

var configCmd = &cobra.Command{
	Use:   "configfile",
	Short: "Print the rak811 configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		t := template.Must(template.New("config").Parse(configTemplate))
		err := t.Execute(os.Stdout, &config.C)
		if err != nil {
			return errors.Wrap(err, "execute config template error")
		}
		return nil
	},
}
