package fm

import (
	"encoding/binary"

	"github.com/dougsko/fmd/pkg/hardware"
)

// decodeStationList extracts in-band frequencies (kHz) from a search list buffer
func decodeStationList(buf []byte, low, high int64) []int64 {
	if len(buf) <= hardware.StationListCountIndex {
		return nil
	}
	count := int(buf[hardware.StationListCountIndex])
	stations := make([]int64, 0, count)

	for i := 0; i < count; i++ {
		off := hardware.StationListCountIndex + 1 + i*hardware.StationEntrySize
		if off+1 >= len(buf) {
			break
		}
		idx := int64(buf[off]&hardware.StationIndexHighMask)<<8 | int64(buf[off+1])
		khz := idx*hardware.StationStepKHz + low
		if khz < low || khz > high {
			continue
		}
		stations = append(stations, khz)
	}
	return stations
}

// decodeAFList extracts alternate frequencies (kHz) from an AF list buffer
func decodeAFList(buf []byte) []int64 {
	if len(buf) <= hardware.AFListCountIndex {
		return nil
	}
	count := int(buf[hardware.AFListCountIndex])
	afs := make([]int64, 0, count)

	for i := 0; i < count; i++ {
		off := hardware.AFListCountIndex + 1 + i*hardware.AFEntrySize
		if off+hardware.AFEntrySize > len(buf) {
			break
		}
		afs = append(afs, int64(binary.LittleEndian.Uint32(buf[off:])))
	}
	return afs
}
