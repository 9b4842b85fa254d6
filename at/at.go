package at

const (
	// Terminal Control
	CRLF = "\r\n"

	// Markers searched for inside received lines
	ErrorMarker    = "ERROR:"
	DownlinkMarker = "at+recv="

	// Expected success substrings
	OK          = "OK"
	InitOK      = "Initialization OK"
	SleepOK     = "OK Sleep"
	WakeUpOK    = "OK Wake Up"
	JoinSuccess = "OK Join Success"
)

// Commands, without the line terminator which is appended on write.
const (
	CmdWorkModeLoRaWAN = "at+set_config=lora:work_mode:0"
	CmdClass           = "at+set_config=lora:class:%d"
	CmdConfirm         = "at+set_config=lora:confirm:%d"
	CmdRegion          = "at+set_config=lora:region:%s"
	CmdSleep           = "at+set_config=device:sleep:%d"
	CmdRestart         = "at+set_config=device:restart"
	CmdAdr             = "at+set_config=lora:adr:%d"
	CmdJoinMode        = "at+set_config=lora:join_mode:%d"
	CmdDevAddr         = "at+set_config=lora:dev_addr:%s"
	CmdNwksKey         = "at+set_config=lora:nwks_key:%s"
	CmdAppsKey         = "at+set_config=lora:apps_key:%s"
	CmdDevEUI          = "at+set_config=lora:dev_eui:%s"
	CmdAppEUI          = "at+set_config=lora:app_eui:%s"
	CmdAppKey          = "at+set_config=lora:app_key:%s"
	CmdJoin            = "at+join"
	CmdSend            = "at+send=lora:%d:%s"
	CmdVersion         = "at+version"
)

// Join modes as understood by lora:join_mode.
const (
	JoinModeOTAA = 0
	JoinModeABP  = 1
)

type ResponseType int

const (
	TypeIgnored  ResponseType = iota // Nothing of interest to the driver
	TypeError                        // Contains ERROR:<code>
	TypeExpected                     // Contains the expected success marker
	TypeDownlink                     // at+recv= notification
)

func (t ResponseType) String() string {
	switch t {
	case TypeError:
		return "error"
	case TypeExpected:
		return "expected"
	case TypeDownlink:
		return "downlink"
	default:
		return "ignored"
	}
}
