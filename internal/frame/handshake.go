package frame

import (
	"context"
	"fmt"

	"github.com/corvid-graph/bolt-go-driver/internal/racing"
)

// protocolVersion is one entry of a handshake proposal: major.minor, plus
// how many minor versions below it the server may also choose.
type protocolVersion struct {
	major byte
	minor byte
	back  byte
}

// proposals lists the four version ranges offered to the server, most
// preferred first. Four slots is a protocol constraint, not a design
// choice: the handshake message is always exactly 20 bytes.
var proposals = [4]protocolVersion{
	{major: 5, minor: 7, back: 7}, // 5.0 .. 5.7
	{major: 4, minor: 4, back: 3}, // 4.1 .. 4.4
	{major: 4, minor: 1},
	{major: 3, minor: 0},
}

var magic = [4]byte{0x60, 0x60, 0xb0, 0x17}

// UnsupportedVersionError is returned when the server rejects every
// proposed version, or replies with something this driver cannot speak.
type UnsupportedVersionError struct {
	Major, Minor byte
}

func (e *UnsupportedVersionError) Error() string {
	if e.Major == 0 && e.Minor == 0 {
		return "server did not accept any of the requested Bolt versions"
	}
	return fmt.Sprintf("server responded with unsupported Bolt version %d.%d", e.Major, e.Minor)
}

// HTTPResponseError is returned when the peer answers the handshake with
// what looks like an HTTP response, a common misconfiguration when
// pointing the driver at the HTTP port instead of the Bolt port.
type HTTPResponseError struct{}

func (e *HTTPResponseError) Error() string {
	return "server responded HTTP, check that the address points at the Bolt port and not the HTTP port"
}

// Negotiate sends the handshake preamble and four version proposals over w,
// then reads back the server's chosen version from r. It returns the
// negotiated major and minor version, or an error if the server rejected
// every proposal.
func Negotiate(ctx context.Context, w racing.Writer, r racing.Reader) (major, minor byte, err error) {
	handshake := make([]byte, 0, 20)
	handshake = append(handshake, magic[:]...)
	for _, p := range proposals {
		handshake = append(handshake, 0x00, p.back, p.minor, p.major)
	}

	if _, err := w.Write(ctx, handshake); err != nil {
		return 0, 0, err
	}

	buf := make([]byte, 4)
	if _, err := r.ReadFull(ctx, buf); err != nil {
		return 0, 0, err
	}

	chosenMajor := buf[3]
	chosenMinor := buf[2]
	if chosenMajor == 0 && chosenMinor == 0 {
		return 0, 0, &UnsupportedVersionError{}
	}
	if chosenMajor == 80 && chosenMinor == 84 { // ASCII "PT" of an HTTP status line
		return 0, 0, &HTTPResponseError{}
	}
	if !supported(chosenMajor, chosenMinor) {
		return 0, 0, &UnsupportedVersionError{Major: chosenMajor, Minor: chosenMinor}
	}
	return chosenMajor, chosenMinor, nil
}

func supported(major, minor byte) bool {
	for _, p := range proposals {
		if p.major != major {
			continue
		}
		if minor <= p.minor && minor >= p.minor-p.back {
			return true
		}
	}
	return false
}
