package kyo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC(t *testing.T) {
	cmd := []byte{0x0F, 0x00, 0xF0, 0x03, 0x00, 0x02, 0x00, 0x00, 0x00}
	var sum int
	for _, b := range cmd {
		sum += int(b)
	}
	require.Equal(t, byte((0x203-sum)&0xFF), crc(cmd, 9))
	require.Equal(t, byte(0xFF), crc(cmd, 9))
}

func TestChecksum(t *testing.T) {
	require.Equal(t, byte(0xFB), checksum(cmdVersion, 0, 5))
	require.Equal(t, byte(0xEE), checksum(cmdSensorStatus, 0, 5))
	require.Equal(t, byte(0x19), checksum(cmdPartition32G, 0, 5))
	require.Equal(t, byte(0x02), checksum(cmdPartition32, 0, 5))
	require.Equal(t, byte(0x6F), checksum(cmdPartition8, 0, 5))
}

func TestBit32(t *testing.T) {
	const base = 6
	for i := range 32 {
		rx := make([]byte, 12)
		rx[base+(3-i/8)] = 1 << (i % 8)
		for j := range 32 {
			require.Equal(t, i == j, bit32(rx, base, j), "set %d read %d", i, j)
		}
	}
}

func TestBit8(t *testing.T) {
	rx := []byte{0, 0b1000_0001}
	require.True(t, bit8(rx, 1, 0))
	require.True(t, bit8(rx, 1, 7))
	require.False(t, bit8(rx, 1, 3))
	require.False(t, bit8(rx, 1, 8))
}

func TestArmFrame(t *testing.T) {
	t.Run("keeps other partitions", func(t *testing.T) {
		total, partial := armMasks(0b10010, 0, 3, ArmTotal)
		cmd := armFrame(total, partial)
		require.Len(t, cmd, 11)
		require.Equal(t, byte(0b010110), cmd[6])
		require.Equal(t, byte(0), cmd[7])
		require.Equal(t, crc(cmd, 9), cmd[9])
		require.Equal(t, byte(0xFF), cmd[10])
	})

	t.Run("partial", func(t *testing.T) {
		total, partial := armMasks(0b1, 0b100, 2, ArmPartial)
		require.Equal(t, byte(0b1), total)
		require.Equal(t, byte(0b110), partial)
	})

	t.Run("partial delay 0 arms total", func(t *testing.T) {
		total, partial := armMasks(0, 0, 8, ArmPartialDelay0)
		require.Equal(t, byte(0x80), total)
		require.Equal(t, byte(0), partial)
	})

	t.Run("disarm", func(t *testing.T) {
		total, partial := disarmMasks(0b10110, 0b1000, 3)
		require.Equal(t, byte(0b10010), total)
		require.Equal(t, byte(0b1000), partial)
		total, partial = disarmMasks(total, partial, 4)
		require.Equal(t, byte(0), partial)
		require.Equal(t, byte(0b10010), total)
	})
}

func TestOutputFrame(t *testing.T) {
	on := outputFrame(3, true)
	require.Equal(t, []byte{0x0F, 0x06, 0xF0, 0x01, 0x00, 0x06, 0x04, 0x00, 0x04}, on)
	off := outputFrame(8, false)
	require.Equal(t, []byte{0x0F, 0x06, 0xF0, 0x01, 0x00, 0x06, 0x00, 0x80, 0x80}, off)
	require.Equal(t, byte(0), outputFrame(12, true)[6])
}

func TestZoneFrame(t *testing.T) {
	for _, tt := range []struct {
		zone    int
		include bool
		index   int
		bit     byte
	}{
		{1, false, 9, 0x01},
		{8, false, 9, 0x80},
		{9, false, 8, 0x01},
		{20, false, 7, 0x08},
		{32, false, 6, 0x80},
		{1, true, 13, 0x01},
		{16, true, 12, 0x80},
		{17, true, 11, 0x01},
		{25, true, 10, 0x01},
	} {
		cmd := zoneFrame(tt.zone, tt.include)
		require.Len(t, cmd, 15)
		require.Equal(t, []byte{0x0F, 0x01, 0xF0, 0x07, 0x00, 0x07}, cmd[:6])
		for i := 6; i < 14; i++ {
			if i == tt.index {
				require.Equal(t, tt.bit, cmd[i], "zone %d", tt.zone)
				continue
			}
			require.Zero(t, cmd[i], "zone %d byte %d", tt.zone, i)
		}
		require.Equal(t, tt.bit, cmd[14])
	}
}

func TestDateTimeFrame(t *testing.T) {
	cmd := dateTimeFrame(15, 10, 2026, 13, 45, 30)
	require.Equal(t, []byte{
		0x0F, 0x03, 0xF0, 0x05, 0x00, 0x07,
		15, 10, 26, 13, 45, 30,
		byte(15 + 10 + 26 + 13 + 45 + 30),
	}, cmd)
}

func TestRegisterFrame(t *testing.T) {
	require.Equal(t, []byte{0xF0, 0x40, 0x2E, 0x3F, 0x00, 0x9D}, registerFrame(0x2E40, 0x3F))
	require.Equal(t, []byte{0xF0, 0x45, 0xC0, 0x02, 0x00, 0xF7}, registerFrame(0xC045, 0x02))
}

func TestVerifyResponse(t *testing.T) {
	echo := []byte{0xF0, 0x04, 0xF0, 0x0A, 0x00, 0xEE}
	resp := append(append([]byte{}, echo...), 0x01, 0x02, 0x03)
	require.NoError(t, verifyResponse(resp, len(echo)))

	resp[len(resp)-1] = 0x09
	require.Error(t, verifyResponse(resp, len(echo)))

	require.NoError(t, verifyResponse(echo, len(echo)))
	require.NoError(t, verifyResponse(append(echo, 0x42), len(echo)))
}

func TestPanelString(t *testing.T) {
	require.Equal(t, "Front door", panelString([]byte("Front door      ")))
	require.Equal(t, "Garage", panelString([]byte("Garage\x00\x00\x00  ")))
	require.Equal(t, "", panelString([]byte("                ")))
	require.Equal(t, "Hall\x00way", panelString([]byte("Hall\x00way \x00  ")))
}

func TestSerialNumber(t *testing.T) {
	require.Equal(t, "Not enrolled", serialNumber([]byte{0, 0, 0}))
	require.Equal(t, "0A1B2C", serialNumber([]byte{0x0A, 0x1B, 0x2C}))
}
