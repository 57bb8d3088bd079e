package kyo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func detected(m AlarmModel) *store {
	return &store{model: m, detected: true}
}

// reply completes req with data following a 6 byte echo.
func reply(req *request, data []byte) *transaction {
	rx := append(append([]byte{}, req.frame...), data...)
	return &transaction{request: *req, rx: rx}
}

func block(fill func(b []byte)) []byte {
	b := make([]byte, 65)
	fill(b)
	return b
}

func nameBlock(names ...string) []byte {
	return block(func(b []byte) {
		for i := range b[:64] {
			b[i] = ' '
		}
		for i, n := range names {
			copy(b[i*nameLen:], n)
		}
	})
}

func TestConfigReaderZoneConfig(t *testing.T) {
	st := detected(Model32)
	r := &configReader{step: stepZoneConfig}

	req, _ := r.next(st)
	require.Equal(t, registerFrame(addrZoneConfig, blockLen), req.frame)
	next := r.complete(st, reply(req, block(func(b []byte) {
		b[0], b[1], b[2] = 0x01, 0x01, 0b101
		b[60], b[61], b[62] = 0x18, 0x00, 0x00
	})))
	require.NotNil(t, next)
	require.Equal(t, registerFrame(addrZoneConfig17, blockLen), next.frame)
	require.Equal(t, stepZoneConfig, r.step)

	require.Nil(t, r.complete(st, reply(next, block(func(b []byte) {
		b[4], b[5], b[6] = 0x02, 0x01, 0x80
	}))))
	require.Equal(t, stepZoneNames, r.step)

	cfg := st.panelConfig()
	require.Equal(t, ZoneConfig{Number: 1, Type: 0x01, Enrolled: true, Areas: []int{1, 3}}, cfg.Zones[0])
	require.Equal(t, "Unconfigured", cfg.Zones[15].Type.String())
	require.False(t, cfg.Zones[15].Enrolled)
	require.Equal(t, ZoneConfig{Number: 18, Type: 0x02, Enrolled: true, Areas: []int{8}}, cfg.Zones[17])
	require.Equal(t, "1, 3", areaList(st.zoneArea[0]))
	require.Equal(t, "None", areaList(st.zoneArea[15]))
}

func TestConfigReaderShortRead(t *testing.T) {
	st := detected(Model32)
	r := &configReader{step: stepZoneConfig}
	req, _ := r.next(st)
	require.Nil(t, r.complete(st, reply(req, make([]byte, 10))))
	require.Equal(t, stepZoneNames, r.step)
}

func TestConfigReaderNames(t *testing.T) {
	st := detected(Model8)
	r := &configReader{step: stepZoneNames}

	req, _ := r.next(st)
	next := r.complete(st, reply(req, nameBlock("Front door", "Kitchen", "", "Garage")))
	require.NotNil(t, next)
	require.Equal(t, registerFrame(addrZoneNames+0x40, blockLen), next.frame)
	require.Nil(t, r.complete(st, reply(next, nameBlock("Hall", "Attic", "Patio", "Shed"))))
	require.Equal(t, stepZoneSerials, r.step)

	require.Equal(t, "Front door", st.zoneName[0])
	require.Equal(t, "", st.zoneName[2])
	require.Equal(t, "Shed", st.zoneName[7])
	require.Equal(t, "", st.zoneName[8])
}

func TestConfigReaderSerials(t *testing.T) {
	st := detected(Model8)
	r := &configReader{step: stepZoneSerials}

	for i := range 8 {
		req, _ := r.next(st)
		require.NotNil(t, req)
		require.Equal(t, registerFrame(addrZoneSerials+uint16(i*3), serialLen), req.frame)
		require.Equal(t, timeoutESN, req.timeout)
		data := []byte{0x12, 0x34, byte(i), 0x00}
		if i == 3 {
			data = []byte{0, 0, 0, 0}
		}
		require.Nil(t, r.complete(st, reply(req, data)))
		require.Equal(t, stepZoneSerials, r.step)
	}

	req, _ := r.next(st)
	require.Nil(t, req)
	require.Equal(t, stepOutputNames, r.step)
	require.Zero(t, r.zoneESN)
	require.Equal(t, "123400", st.zoneSerial[0])
	require.Equal(t, "Not enrolled", st.zoneSerial[3])
	require.Equal(t, "123407", st.zoneSerial[7])
}

func TestConfigReaderSerialsUnsupported(t *testing.T) {
	st := detected(Model32)
	r := &configReader{step: stepKeyfobSerials}

	req, _ := r.next(st)
	require.Nil(t, r.complete(st, reply(req, nil)))
	require.Equal(t, stepKeyfobNames, r.step)
	require.Zero(t, r.keyfobESN)

	r = &configReader{step: stepKeyfobSerials, keyfobESN: 4}
	req, _ = r.next(st)
	require.Nil(t, r.complete(st, reply(req, nil)))
	require.Equal(t, stepKeyfobSerials, r.step)
	require.Equal(t, 5, r.keyfobESN)
}

func TestConfigReaderTimers(t *testing.T) {
	st := detected(Model32)
	r := &configReader{step: stepTimers}
	req, _ := r.next(st)
	require.Equal(t, registerFrame(addrTimers, timersLen), req.frame)

	data := make([]byte, 27)
	data[0], data[1] = 30, 45
	data[14], data[15] = 10, 20
	data[16] = 3
	data[23] = 9
	require.Nil(t, r.complete(st, reply(req, data)))
	require.Equal(t, stepKeyfobSerials, r.step)

	cfg := st.panelConfig()
	require.Equal(t, PartitionTimers{Number: 1, EntryDelay: 30, ExitDelay: 45, SirenTimer: 3}, cfg.Partitions[0])
	require.Equal(t, PartitionTimers{Number: 8, EntryDelay: 10, ExitDelay: 20, SirenTimer: 9}, cfg.Partitions[7])

	var texts []string
	for _, e := range st.textEvents() {
		if e.Index == 0 && (e.Field == FieldPartitionEntryDelay || e.Field == FieldPartitionSirenTimer) {
			texts = append(texts, e.Text)
		}
	}
	require.Equal(t, []string{"30s", "3"}, texts)
}

func TestConfigReaderReset(t *testing.T) {
	st := detected(Model32)
	r := &configReader{step: stepTimers, zoneESN: 7, keyfobESN: 3}
	req, _ := r.next(st)
	require.NotNil(t, req)

	r.reset()
	require.Equal(t, stepDetected, r.step)
	require.Zero(t, r.zoneESN)
	require.Zero(t, r.keyfobESN)

	require.Nil(t, r.complete(st, reply(req, make([]byte, 27))))
	require.Equal(t, stepDetected, r.step)

	req, publish := r.next(st)
	require.Nil(t, req)
	require.False(t, publish)
	require.Equal(t, stepZoneConfig, r.step)
}

func TestTextEvents(t *testing.T) {
	st := detected(Model8)
	st.firmware = "KYO8 FW1"
	st.zoneName[0] = "Door"
	st.zoneSerial[1] = "ABCDEF"

	events := st.textEvents()
	require.Equal(t, 8, count(events, FieldZoneName))
	require.Equal(t, maxOutputs, count(events, FieldOutputName))
	require.Equal(t, maxKeyfobs, count(events, FieldKeyfobName))

	byKey := map[[2]int]string{}
	for _, e := range events {
		require.True(t, e.Field.IsText(), e.Field.String())
		byKey[[2]int{int(e.Field), e.Index}] = e.Text
	}
	require.Equal(t, "KYO8 FW1", byKey[[2]int{int(FieldFirmwareVersion), 0}])
	require.Equal(t, "KYO8", byKey[[2]int{int(FieldModel), 0}])
	require.Equal(t, "Door", byKey[[2]int{int(FieldZoneName), 0}])
	require.Equal(t, "N/A", byKey[[2]int{int(FieldZoneSerial), 0}])
	require.Equal(t, "ABCDEF", byKey[[2]int{int(FieldZoneSerial), 1}])
	require.Equal(t, "N/A", byKey[[2]int{int(FieldKeyfobName), 3}])
	require.Equal(t, "Instant", byKey[[2]int{int(FieldZoneType), 0}])
	require.Equal(t, "None", byKey[[2]int{int(FieldZoneArea), 0}])
}
