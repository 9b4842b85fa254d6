package at

import (
	"strconv"
	"strings"
)

// Result is the outcome of a single command attempt. The zero value is
// Undefined and is never produced by the driver.
//
// Result implements error so that a non-success outcome can be wrapped and
// later matched with errors.Is.
type Result int

const (
	Undefined Result = iota
	Success
	ResponseInvalid
	ATResponseTimeout
	ATCommandUnsupported
	ATCommandInvalidParameter
	ErrorReadingOrWritingFlash
	LoRaBusy
	LoRaServiceIsUnknown
	LoRaParameterInvalid
	LoRaFrequencyInvalid
	LoRaDataRateInvalid
	LoRaFrequencyAndDataRateInvalid
	LoRaDeviceNotJoinedNetwork
	LoRaPacketTooLong
	LoRaServiceIsClosedByServer
	LoRaRegionUnsupported
	LoRaDutyCycleRestricted
	LoRaNoValidChannelFound
	LoRaNoFreeChannelFound
	StatusIsError
	LoRaTransmitTimeout
	LoRaRX1Timeout
	LoRaRX2Timeout
	LoRaRX1ReceiveError
	LoRaRX2ReceiveError
	LoRaJoinFailed
	LoRaDownlinkRepeated
	LoRaPayloadSizeNotValidForDataRate
	LoRaTooManyDownlinkFramesLost
	LoRaAddressFail
	LoRaMicVerifyError
)

var resultNames = map[Result]string{
	Undefined:                          "Undefined",
	Success:                            "Success",
	ResponseInvalid:                    "ResponseInvalid",
	ATResponseTimeout:                  "ATResponseTimeout",
	ATCommandUnsupported:               "ATCommandUnsupported",
	ATCommandInvalidParameter:          "ATCommandInvalidParameter",
	ErrorReadingOrWritingFlash:         "ErrorReadingOrWritingFlash",
	LoRaBusy:                           "LoRaBusy",
	LoRaServiceIsUnknown:               "LoRaServiceIsUnknown",
	LoRaParameterInvalid:               "LoRaParameterInvalid",
	LoRaFrequencyInvalid:               "LoRaFrequencyInvalid",
	LoRaDataRateInvalid:                "LoRaDataRateInvalid",
	LoRaFrequencyAndDataRateInvalid:    "LoRaFrequencyAndDataRateInvalid",
	LoRaDeviceNotJoinedNetwork:         "LoRaDeviceNotJoinedNetwork",
	LoRaPacketTooLong:                  "LoRaPacketTooLong",
	LoRaServiceIsClosedByServer:        "LoRaServiceIsClosedByServer",
	LoRaRegionUnsupported:              "LoRaRegionUnsupported",
	LoRaDutyCycleRestricted:            "LoRaDutyCycleRestricted",
	LoRaNoValidChannelFound:            "LoRaNoValidChannelFound",
	LoRaNoFreeChannelFound:             "LoRaNoFreeChannelFound",
	StatusIsError:                      "StatusIsError",
	LoRaTransmitTimeout:                "LoRaTransmitTimeout",
	LoRaRX1Timeout:                     "LoRaRX1Timeout",
	LoRaRX2Timeout:                     "LoRaRX2Timeout",
	LoRaRX1ReceiveError:                "LoRaRX1ReceiveError",
	LoRaRX2ReceiveError:                "LoRaRX2ReceiveError",
	LoRaJoinFailed:                     "LoRaJoinFailed",
	LoRaDownlinkRepeated:               "LoRaDownlinkRepeated",
	LoRaPayloadSizeNotValidForDataRate: "LoRaPayloadSizeNotValidForDataRate",
	LoRaTooManyDownlinkFramesLost:      "LoRaTooManyDownlinkFramesLost",
	LoRaAddressFail:                    "LoRaAddressFail",
	LoRaMicVerifyError:                 "LoRaMicVerifyError",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return "Result(" + strconv.Itoa(int(r)) + ")"
}

func (r Result) Error() string {
	return "at: " + r.String()
}

// errorCodes is the RAK811 firmware error table. It is the wire contract
// with the device, every entry must match the vendor documentation.
var errorCodes = map[uint16]Result{
	1:   ATCommandUnsupported,
	2:   ATCommandInvalidParameter,
	3:   ErrorReadingOrWritingFlash, // flash read/write
	4:   ErrorReadingOrWritingFlash, // IIC read/write
	5:   ATCommandInvalidParameter,  // UART send
	41:  ResponseInvalid,            // BLE in an invalid state
	80:  LoRaBusy,
	81:  LoRaServiceIsUnknown,
	82:  LoRaParameterInvalid,
	83:  LoRaFrequencyInvalid,
	84:  LoRaDataRateInvalid,
	85:  LoRaFrequencyAndDataRateInvalid,
	86:  LoRaDeviceNotJoinedNetwork,
	87:  LoRaPacketTooLong,
	88:  LoRaServiceIsClosedByServer,
	89:  LoRaRegionUnsupported,
	90:  LoRaDutyCycleRestricted,
	91:  LoRaNoValidChannelFound,
	92:  LoRaNoFreeChannelFound,
	93:  StatusIsError,
	94:  LoRaTransmitTimeout,
	95:  LoRaRX1Timeout,
	96:  LoRaRX2Timeout,
	97:  LoRaRX1ReceiveError,
	98:  LoRaRX2ReceiveError,
	99:  LoRaJoinFailed,
	100: LoRaDownlinkRepeated,
	101: LoRaPayloadSizeNotValidForDataRate,
	102: LoRaTooManyDownlinkFramesLost,
	103: LoRaAddressFail,
	104: LoRaMicVerifyError,
}

// MapErrorCode returns the Result for a vendor error code. Codes missing
// from the table map to ResponseInvalid.
func MapErrorCode(code uint16) Result {
	if r, ok := errorCodes[code]; ok {
		return r
	}
	return ResponseInvalid
}

// ParseErrorCode maps the text following the error marker. Text that is not
// an unsigned 16 bit number maps to ResponseInvalid.
func ParseErrorCode(text string) Result {
	code, err := strconv.ParseUint(strings.TrimSpace(text), 10, 16)
	if err != nil {
		return ResponseInvalid
	}
	return MapErrorCode(uint16(code))
}
