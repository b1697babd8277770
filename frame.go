package sandboxd

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// Wire layout shared by both ends of the bootstrap channel. A request is a
// fixed 512-byte record: bytes [0,64) hold the sandbox identifier, zero
// padded and not necessarily NUL-terminated when exactly 64 bytes long;
// bytes [64,512) hold a NUL-terminated network-namespace path, where an
// immediate NUL means "no network namespace to join". A response is a single
// little-endian int32: positive values are the leader pid, negative values
// carry a negated errno describing a creation failure.
const (
	requestFrameSize  = 512
	responseFrameSize = 4

	sandboxIDSize = 64

	// maxNetnsPathSize leaves room for the trailing NUL plus one byte of
	// slack in the [64,512) region.
	maxNetnsPathSize = requestFrameSize - sandboxIDSize - 2
)

// encodeRequest packs a sandbox identifier and netns path into a request
// frame. The identifier may use the full 64-byte region; anything longer, or
// a path that does not fit its region, is rejected. NUL bytes are rejected
// in both fields: a zero-padded, NUL-terminated layout cannot carry them,
// and letting them through would silently truncate the value on decode.
func encodeRequest(id, netnsPath string) ([requestFrameSize]byte, error) {
	var frame [requestFrameSize]byte
	if len(id) > sandboxIDSize {
		return frame, ErrSandboxIDTooLong
	}
	if strings.IndexByte(id, 0) >= 0 {
		return frame, ErrSandboxIDInvalid
	}
	if len(netnsPath) > maxNetnsPathSize {
		return frame, ErrNetnsPathTooLong
	}
	if strings.IndexByte(netnsPath, 0) >= 0 {
		return frame, ErrNetnsPathInvalid
	}
	copy(frame[:sandboxIDSize], id)
	copy(frame[sandboxIDSize:], netnsPath)
	return frame, nil
}

// decodeRequest unpacks a request frame. The identifier is read up to its
// zero padding; the path is read up to its NUL terminator.
func decodeRequest(frame []byte) (id, netnsPath string) {
	id = string(bytes.TrimRight(frame[:sandboxIDSize], "\x00"))

	rest := frame[sandboxIDSize:requestFrameSize]
	if i := bytes.IndexByte(rest, 0); i >= 0 {
		rest = rest[:i]
	}
	netnsPath = string(rest)
	return id, netnsPath
}

// encodeResponse packs a response value in little-endian byte order.
func encodeResponse(v int32) [responseFrameSize]byte {
	var frame [responseFrameSize]byte
	binary.LittleEndian.PutUint32(frame[:], uint32(v))
	return frame
}

// decodeResponse unpacks a little-endian response value.
func decodeResponse(frame [responseFrameSize]byte) int32 {
	return int32(binary.LittleEndian.Uint32(frame[:]))
}
