package hardware

import "errors"

var (
	// ErrClosed is returned by every DeviceChannel call made without an open handle
	ErrClosed = errors.New("device not open")
	// ErrNotSupported is returned by drivers that cannot serve a request
	ErrNotSupported = errors.New("operation not supported by device")
)

// DeviceConfig represents tuner device configuration
type DeviceConfig struct {
	Driver       string // "v4l2" or "mock"
	Path         string // Radio node (e.g., /dev/radio0)
	PollInterval int    // Event read poll interval in milliseconds
}

// DeviceChannel is the synchronous request/response interface to an FM receiver
type DeviceChannel interface {
	Open() error
	Close() error
	IsOpen() bool

	// Power control
	Enable(mode DeviceMode) error
	Disable() error

	// Tuning, in kHz
	SetFrequency(khz int64) error
	GetFrequency() (int64, error)
	StartSearch(dir SearchDirection) error

	// Controls
	SetControl(id ControlID, value int32) error
	GetControl(id ControlID) (int32, error)

	// Tuner properties
	GetBandLimits() (low, high int64, err error)
	SetBandLimits(low, high int64) error
	SetAudioMode(mode AudioMode) error
	GetSignalStrength() (int32, error)

	// Buffers. ReadEventBlock returns 0 bytes when nothing arrived within
	// the poll interval, and ErrClosed once the handle has been released.
	ReadEventBlock(buf []byte) (int, error)
	ReadBuffer(index BufferIndex, buf []byte) (int, error)
}

// DeviceMode selects the function the device is enabled for
type DeviceMode int32

const (
	ModeNone DeviceMode = 0
	ModeRX   DeviceMode = 1
	ModeTX   DeviceMode = 2
)

// SearchDirection of a hardware seek or search
type SearchDirection int

const (
	SearchDown SearchDirection = 0
	SearchUp   SearchDirection = 1
)

// String returns "up" or "down"
func (d SearchDirection) String() string {
	if d == SearchUp {
		return "up"
	}
	return "down"
}

// AudioMode of the tuner output
type AudioMode uint32

const (
	AudioMono   AudioMode = 0
	AudioStereo AudioMode = 1
)

// BufferIndex selects one of the driver's private data buffers
type BufferIndex uint32

const (
	BufferStationList BufferIndex = 0
	BufferEvents      BufferIndex = 1
	BufferRTData      BufferIndex = 2
	BufferPSData      BufferIndex = 3
	BufferAFList      BufferIndex = 7
)

// StdBufferSize is the size every buffer read must provide
const StdBufferSize = 128

// ControlID identifies a tuner control
type ControlID uint32

const (
	cidBase        ControlID = 0x00980900
	cidPrivateBase ControlID = 0x08000000
)

// Tuner controls
const (
	CtrlAudioMute        = cidBase + 9
	CtrlSearchMode       = cidPrivateBase + 1
	CtrlScanDwell        = cidPrivateBase + 2
	CtrlSearchOn         = cidPrivateBase + 3
	CtrlState            = cidPrivateBase + 4
	CtrlRDSGroupMask     = cidPrivateBase + 6
	CtrlRegion           = cidPrivateBase + 7
	CtrlSignalThreshold  = cidPrivateBase + 8
	CtrlEmphasis         = cidPrivateBase + 12
	CtrlChannelSpacing   = cidPrivateBase + 14
	CtrlRDSOn            = cidPrivateBase + 15
	CtrlRDSGroupProc     = cidPrivateBase + 16
	CtrlLowPowerMode     = cidPrivateBase + 17
	CtrlAntenna          = cidPrivateBase + 18
	CtrlSoftMute         = cidPrivateBase + 30
	CtrlAFJump           = cidPrivateBase + 27
	CtrlAudioPath        = cidPrivateBase + 41
	CtrlSINRSamples      = cidPrivateBase + 0x2C
	CtrlSINRThreshold    = cidPrivateBase + 0x2D
	CtrlIntfLowTh        = cidPrivateBase + 0x2E
	CtrlIntfHighTh       = cidPrivateBase + 0x2F
	CtrlSearchAlgorithm  = cidPrivateBase + 0x30
	CtrlSINRFirstStage   = cidPrivateBase + 0x31
	CtrlRMSSIFirstStage  = cidPrivateBase + 0x32
	CtrlSINRFinalStage   = cidPrivateBase + 0x33
	CtrlAFRMSSIThreshold = cidPrivateBase + 0x34
	CtrlAFRMSSISamples   = cidPrivateBase + 0x35
	CtrlGoodChRMSSITh    = cidPrivateBase + 0x36
)

// Control values
const (
	SearchModeSeek       int32 = 0
	SearchModeListStrong int32 = 2
	SeekDwellTime        int32 = 0

	MuteBoth   int32 = 3
	UnmuteBoth int32 = 0

	AudioPathDigital int32 = 0
)
