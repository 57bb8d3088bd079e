package kyo

import "fmt"

// configuration read steps. Each scheduler tick advances at most one step,
// or one slot of a serial number scan.
const (
	stepDetected = iota
	stepZoneConfig
	stepZoneNames
	stepZoneSerials
	stepOutputNames
	stepTimers
	stepKeyfobSerials
	stepKeyfobNames
	stepPublish
	stepDone
)

const (
	addrZoneConfig    = 0x009F
	addrZoneConfig17  = 0x00DF
	addrZoneNames     = 0x2E00
	addrZoneSerials   = 0xC045
	addrOutputNames   = 0x3280
	addrTimers        = 0x016F
	addrKeyfobSerials = 0xC0B1
	addrKeyfobNames   = 0x3180

	blockLen  = 0x3F // reads 64 bytes
	timersLen = 0x1A
	serialLen = 0x02
	nameLen   = 16
)

type configReader struct {
	step      int
	zoneESN   int
	keyfobESN int

	// gen changes on every reset so replies to reads issued before the
	// reset are ignored.
	gen uint64
}

func (r *configReader) reset() {
	r.step = stepDetected
	r.zoneESN = 0
	r.keyfobESN = 0
	r.gen++
}

func (r *configReader) done() bool {
	return r.step >= stepDone
}

func (r *configReader) read(addr uint16, length byte, part int) *request {
	timeout := timeoutRegister
	if length == serialLen {
		timeout = timeoutESN
	}
	return &request{
		op:      opRegister,
		frame:   registerFrame(addr, length),
		timeout: timeout,
		step:    r.step,
		part:    part,
		gen:     r.gen,
	}
}

// next returns the first read of the current step, or nil when the step
// needs no transaction. publish is set when the text values should be sent.
func (r *configReader) next(st *store) (req *request, publish bool) {
	switch r.step {
	case stepDetected:
		r.step = stepZoneConfig
	case stepZoneConfig:
		return r.read(addrZoneConfig, blockLen, 0), false
	case stepZoneNames:
		return r.read(addrZoneNames, blockLen, 0), false
	case stepZoneSerials:
		if r.zoneESN >= st.maxZones() {
			r.zoneESN = 0
			r.step = stepOutputNames
			return nil, false
		}
		return r.read(addrZoneSerials+uint16(r.zoneESN*3), serialLen, r.zoneESN), false
	case stepOutputNames:
		return r.read(addrOutputNames, blockLen, 0), false
	case stepTimers:
		return r.read(addrTimers, timersLen, 0), false
	case stepKeyfobSerials:
		if r.keyfobESN >= maxKeyfobs {
			r.keyfobESN = 0
			r.step = stepKeyfobNames
			return nil, false
		}
		return r.read(addrKeyfobSerials+uint16(r.keyfobESN*3), serialLen, r.keyfobESN), false
	case stepKeyfobNames:
		return r.read(addrKeyfobNames, blockLen, 0), false
	case stepPublish:
		r.step = stepDone
		return nil, true
	}
	return nil, false
}

// complete decodes a register read and returns the next read of the same
// step, if any. Replies from before a reset are dropped.
func (r *configReader) complete(st *store, tx *transaction) *request {
	if tx.gen != r.gen || tx.step != r.step {
		log.Debug("ignoring stale register read", "step", tx.step)
		return nil
	}

	switch tx.step {
	case stepZoneConfig:
		if !r.need(tx, 6+64) {
			r.step++
			return nil
		}
		for i := range 16 {
			z := tx.part*16 + i
			if z >= st.maxZones() {
				break
			}
			off := 6 + i*4
			st.zoneType[z] = tx.rx[off]
			st.zoneEnrolled[z] = tx.rx[off+1] == 0x01
			st.zoneArea[z] = tx.rx[off+2]
			log.Debug("zone config", "zone", z+1, "type", ZoneType(st.zoneType[z]), "enrolled", st.zoneEnrolled[z], "area", fmt.Sprintf("0x%02X", st.zoneArea[z]))
		}
		if tx.part == 0 && st.maxZones() > 16 {
			return r.read(addrZoneConfig17, blockLen, 1)
		}
		r.step++

	case stepZoneNames:
		reads := 8
		if st.maxZones() <= maxZones8 {
			reads = 2
		}
		if !r.need(tx, 6+64) {
			r.step++
			return nil
		}
		names(tx, st.zoneName[:st.maxZones()])
		if next := tx.part + 1; next < reads {
			return r.read(addrZoneNames+uint16(next*0x40), blockLen, next)
		}
		r.step++

	case stepZoneSerials:
		i := tx.part
		if !r.need(tx, 6+3) {
			if i == 0 {
				log.Warn("zone serial register not available")
				r.zoneESN = 0
				r.step++
				return nil
			}
			r.zoneESN++
			return nil
		}
		st.zoneSerial[i] = serialNumber(tx.rx[6:9])
		log.Debug("zone serial", "zone", i+1, "serial", st.zoneSerial[i])
		r.zoneESN++

	case stepOutputNames:
		if !r.need(tx, 6+64) {
			r.step++
			return nil
		}
		names(tx, st.outputName[:])
		if next := tx.part + 1; next < maxOutputs/4 {
			return r.read(addrOutputNames+uint16(next*0x40), blockLen, next)
		}
		r.step++

	case stepTimers:
		if r.need(tx, 6+26) {
			for i := range maxPartitions {
				st.partitionEntryDelay[i] = tx.rx[6+i*2]
				st.partitionExitDelay[i] = tx.rx[7+i*2]
				st.partitionSirenTimer[i] = tx.rx[22+i]
				log.Debug("partition timers", "partition", i+1, "entry", st.partitionEntryDelay[i], "exit", st.partitionExitDelay[i], "siren", st.partitionSirenTimer[i])
			}
		}
		r.step++

	case stepKeyfobSerials:
		i := tx.part
		if !r.need(tx, 6+3) {
			if i == 0 {
				log.Warn("keyfob serial register not available")
				r.keyfobESN = 0
				r.step++
				return nil
			}
			r.keyfobESN++
			return nil
		}
		st.keyfobSerial[i] = serialNumber(tx.rx[6:9])
		log.Debug("keyfob serial", "keyfob", i+1, "serial", st.keyfobSerial[i])
		r.keyfobESN++

	case stepKeyfobNames:
		if !r.need(tx, 6+64) {
			r.step++
			return nil
		}
		names(tx, st.keyfobName[:])
		if next := tx.part + 1; next < maxKeyfobs/4 {
			return r.read(addrKeyfobNames+uint16(next*0x40), blockLen, next)
		}
		r.step++
	}
	return nil
}

func (r *configReader) need(tx *transaction, n int) bool {
	if len(tx.rx) < n {
		log.Warn("register read failed", "addr", fmt.Sprintf("0x%02X%02X", tx.frame[2], tx.frame[1]), "got", len(tx.rx), "want", n)
		return false
	}
	return true
}

// names decodes the four 16 byte names of one block read into dst.
func names(tx *transaction, dst []string) {
	for n := range 4 {
		i := tx.part*4 + n
		if i >= len(dst) {
			return
		}
		off := 6 + n*nameLen
		dst[i] = panelString(tx.rx[off : off+nameLen])
		log.Debug("name", "step", tx.step, "index", i+1, "name", dst[i])
	}
}
