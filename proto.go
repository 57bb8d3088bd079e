package kyo

import (
	"fmt"
	"strings"
)

const (
	maxZones      = 32
	maxZones8     = 8
	maxPartitions = 8
	maxOutputs    = 16
	maxKeyfobs    = 16
)

// response sizes, including the echoed command.
const (
	respSensor32    = 18
	respSensor8     = 12
	respPartition32 = 26
	respPartition8  = 17
	respVersion     = 19
)

var (
	cmdVersion      = []byte{0xF0, 0x00, 0x00, 0x0B, 0x00, 0xFB}
	cmdSensorStatus = []byte{0xF0, 0x04, 0xF0, 0x0A, 0x00, 0xEE}
	cmdPartition32G = []byte{0xF0, 0x02, 0x15, 0x12, 0x00, 0x19}
	cmdPartition32  = []byte{0xF0, 0xEC, 0x14, 0x12, 0x00, 0x02}
	cmdPartition8   = []byte{0xF0, 0x68, 0x0E, 0x09, 0x00, 0x6F}
	cmdResetAlarms  = []byte{0x0F, 0x05, 0xF0, 0x01, 0x00, 0x05, 0xFF, 0x00, 0xFF}
)

// crc is the checksum used by arm, disarm and output frames.
// It sums cmd[0..n) where n is the index of the checksum byte itself.
func crc(cmd []byte, n int) byte {
	var sum int
	for _, b := range cmd[:n] {
		sum += int(b)
	}
	return byte(0x203 - sum)
}

// checksum is the plain additive checksum over buf[from:to).
func checksum(buf []byte, from, to int) byte {
	var sum byte
	for _, b := range buf[from:to] {
		sum += b
	}
	return sum
}

// verifyResponse checks the trailing checksum of a response. sent is the
// length of the echoed command. A response with no payload is not checked.
func verifyResponse(resp []byte, sent int) error {
	if len(resp) <= sent+1 {
		return nil
	}
	last := len(resp) - 1
	if want := checksum(resp, sent, last); want != resp[last] {
		return fmt.Errorf("checksum mismatch: expected 0x%02X, got 0x%02X", want, resp[last])
	}
	return nil
}

func splitAddress(addr uint16) (lo, hi byte) {
	return byte(addr & 0xFF), byte(addr >> 8)
}

// registerFrame builds a read of length+1 bytes starting at addr.
func registerFrame(addr uint16, length byte) []byte {
	lo, hi := splitAddress(addr)
	cmd := []byte{0xF0, lo, hi, length, 0x00, 0x00}
	cmd[5] = checksum(cmd, 0, 5)
	return cmd
}

func armFrame(total, partial byte) []byte {
	cmd := []byte{0x0F, 0x00, 0xF0, 0x03, 0x00, 0x02, 0x00, 0x00, 0x00, 0xCC, 0xFF}
	cmd[6] = total
	cmd[7] = partial
	cmd[9] = crc(cmd, 9)
	return cmd
}

// armMasks returns the arming masks after arming partition p (1-based) with
// the given type, keeping every other partition as it currently is.
func armMasks(total, partial byte, p int, t ArmType) (byte, byte) {
	bit := byte(1) << (p - 1)
	if t == ArmPartial {
		return total, partial | bit
	}
	return total | bit, partial
}

func disarmMasks(total, partial byte, p int) (byte, byte) {
	bit := byte(1) << (p - 1)
	return total &^ bit, partial &^ bit
}

func outputFrame(n int, activate bool) []byte {
	cmd := []byte{0x0F, 0x06, 0xF0, 0x01, 0x00, 0x06, 0x00, 0x00, 0x00}
	// the frame only carries one mask byte: outputs 9-16 shift out to 0.
	bit := byte(1) << (n - 1)
	if activate {
		cmd[6] = bit
		cmd[8] = cmd[6]
		return cmd
	}
	cmd[7] = bit
	cmd[8] = cmd[7]
	return cmd
}

// zoneFrame builds an include/exclude (bypass) frame. The four exclude bytes
// sit at 6..9 and the include bytes at 10..13, zones 25-32 first.
func zoneFrame(zone int, include bool) []byte {
	cmd := make([]byte, 15)
	copy(cmd, []byte{0x0F, 0x01, 0xF0, 0x07, 0x00, 0x07})
	base := 6
	if include {
		base = 10
	}
	var offset int
	switch {
	case zone > 24:
		offset = 0
	case zone > 16:
		offset = 1
	case zone > 8:
		offset = 2
	default:
		offset = 3
	}
	cmd[base+offset] = 1 << ((zone - 1) % 8)
	cmd[14] = checksum(cmd, 6, 14)
	return cmd
}

func dateTimeFrame(day, month, year, hour, minute, second int) []byte {
	cmd := []byte{
		0x0F, 0x03, 0xF0, 0x05, 0x00, 0x07,
		byte(day), byte(month), byte(year - 2000),
		byte(hour), byte(minute), byte(second),
		0x00,
	}
	cmd[12] = checksum(cmd, 6, 12)
	return cmd
}

// bit8 reads bit index of a single-byte bitmap.
func bit8(rx []byte, offset, index int) bool {
	if index > 7 {
		return false
	}
	return rx[offset]>>index&1 == 1
}

// bit32 reads a zone bit from a 4-byte group stored zones 25-32 first.
func bit32(rx []byte, base, index int) bool {
	return rx[base+(3-index/8)]>>(index%8)&1 == 1
}

// zoneBit extracts a zone bit for the given model family.
func zoneBit(f family, rx []byte, base, index int) bool {
	if f == family8 {
		return bit8(rx, base, index)
	}
	return bit32(rx, base, index)
}

// panelString decodes a space/NUL padded ASCII field.
func panelString(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}

func serialNumber(b []byte) string {
	if b[0] == 0 && b[1] == 0 && b[2] == 0 {
		return "Not enrolled"
	}
	return fmt.Sprintf("%02X%02X%02X", b[0], b[1], b[2])
}
