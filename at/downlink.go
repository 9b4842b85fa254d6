package at

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformedDownlink is returned for a downlink line with the wrong number
// of fields or a non-numeric field.
var ErrMalformedDownlink = errors.New("at: malformed downlink")

// Downlink is a parsed at+recv notification.
//
//	at+recv=<port>,<rssi>,<snr>,<length>[,<payload>]
//
// The module separates the payload with ':' on some firmware revisions, both
// forms are accepted.
type Downlink struct {
	Port    int
	RSSI    int
	SNR     int
	Length  int
	Payload string // hex, empty when Length is 0
}

// PayloadBytes decodes the hex payload.
func (d Downlink) PayloadBytes() ([]byte, error) {
	return HexToBytes(d.Payload)
}

func isDownlinkDelimiter(r rune) bool {
	return r == '=' || r == ',' || r == ':'
}

// ParseDownlink parses the notification contained in line. Text preceding
// the marker is ignored.
func ParseDownlink(line string) (Downlink, error) {
	var dl Downlink

	i := strings.Index(line, DownlinkMarker)
	if i < 0 {
		return dl, errors.Wrap(ErrMalformedDownlink, "marker not found")
	}
	fields := strings.FieldsFunc(line[i+len(DownlinkMarker):], isDownlinkDelimiter)
	if len(fields) < 4 {
		return dl, errors.Wrapf(ErrMalformedDownlink, "expected at least 4 fields, got %d", len(fields))
	}

	values := make([]int, 4)
	for j, name := range []string{"port", "rssi", "snr", "length"} {
		v, err := strconv.Atoi(strings.TrimSpace(fields[j]))
		if err != nil {
			return dl, errors.Wrapf(ErrMalformedDownlink, "%s field %q", name, fields[j])
		}
		values[j] = v
	}
	dl.Port, dl.RSSI, dl.SNR, dl.Length = values[0], values[1], values[2], values[3]

	switch {
	case dl.Length < 0:
		return dl, errors.Wrapf(ErrMalformedDownlink, "negative length %d", dl.Length)
	case dl.Length == 0 && len(fields) != 4:
		return dl, errors.Wrapf(ErrMalformedDownlink, "expected 4 fields for empty payload, got %d", len(fields))
	case dl.Length > 0 && len(fields) != 5:
		return dl, errors.Wrapf(ErrMalformedDownlink, "expected 5 fields, got %d", len(fields))
	}
	if dl.Length > 0 {
		dl.Payload = strings.TrimSpace(fields[4])
	}

	return dl, nil
}
