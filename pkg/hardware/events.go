package hardware

import "fmt"

// Event is a single raw event code delivered in the driver's event buffer
type Event uint8

// Driver event codes
const (
	EventReady          Event = 0x01
	EventTune           Event = 0x02
	EventSeekComplete   Event = 0x03
	EventScanNext       Event = 0x04
	EventRawRDS         Event = 0x05
	EventRT             Event = 0x06
	EventPS             Event = 0x07
	EventError          Event = 0x08
	EventBelowThreshold Event = 0x09
	EventAboveThreshold Event = 0x0A
	EventStereo         Event = 0x0B
	EventMono           Event = 0x0C
	EventRDSAvailable   Event = 0x0D
	EventRDSUnavailable Event = 0x0E
	EventSearchList     Event = 0x0F
	EventAFList         Event = 0x10
	EventDisabled       Event = 0x12
	EventRDSGroupMask   Event = 0x13
	EventRTPlus         Event = 0x14
	EventERT            Event = 0x15
	EventAFJump         Event = 0x16
)

var eventNames = map[Event]string{
	EventReady:          "ready",
	EventTune:           "tune",
	EventSeekComplete:   "seek_complete",
	EventScanNext:       "scan_next",
	EventRawRDS:         "raw_rds",
	EventRT:             "rt",
	EventPS:             "ps",
	EventError:          "error",
	EventBelowThreshold: "below_threshold",
	EventAboveThreshold: "above_threshold",
	EventStereo:         "stereo",
	EventMono:           "mono",
	EventRDSAvailable:   "rds_available",
	EventRDSUnavailable: "rds_unavailable",
	EventSearchList:     "search_list",
	EventAFList:         "af_list",
	EventDisabled:       "disabled",
	EventRDSGroupMask:   "rds_group_mask_request",
	EventRTPlus:         "rt_plus",
	EventERT:            "ert",
	EventAFJump:         "af_jump",
}

// String returns the event name, or its hex code when unknown
func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("event_0x%02x", uint8(e))
}

// Buffer layouts shared by drivers and decoders
const (
	// Station list: count byte, then 2-byte channel indexes in 50 kHz steps above the band floor
	StationListCountIndex = 0
	StationEntrySize      = 2
	StationStepKHz        = 50
	StationIndexHighMask  = 0x03

	// AF list: count at byte 6, then 4-byte little-endian kHz entries
	AFListCountIndex = 6
	AFEntrySize      = 4
)

// MaxStations is the largest station list a single buffer can carry
const MaxStations = (StdBufferSize - 1) / StationEntrySize

// MaxAFEntries is the largest AF list a single buffer can carry
const MaxAFEntries = (StdBufferSize - AFListCountIndex - 1) / AFEntrySize
