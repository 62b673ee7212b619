// internal/driver/epson/command.go
package epson

import "time"

// ESC/VP.net line protocol framing
const (
	lineTerminator     = "\r"
	continuationMarker = "\r:"
	querySuffix        = "?"
	errorToken         = "ERR"
	replyBufferSize    = 256
)

// powerCode is the property the client queries on its own behalf
const powerCode = "PWR"

// Serial number side-channel
var serialProbe = []byte{
	0x45, 0x45, 0x4d, 0x50, 0x30, 0x31, 0x30, 0x30, // "EEMP0100"
	0x00, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00,
}

const (
	serialReplySize = 32
	serialOffset    = 24
	serialTimeout   = 10 * time.Second
)
