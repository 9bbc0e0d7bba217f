//go:build !linux

package hardware

// V4L2Device is unavailable off Linux; every call fails with ErrNotSupported
type V4L2Device struct{}

// NewV4L2Device returns a driver that cannot be opened on this platform
func NewV4L2Device(config DeviceConfig) *V4L2Device {
	return &V4L2Device{}
}

func (d *V4L2Device) Open() error { return ErrNotSupported }
func (d *V4L2Device) Close() error { return nil }
func (d *V4L2Device) IsOpen() bool { return false }
func (d *V4L2Device) Enable(mode DeviceMode) error { return ErrNotSupported }
func (d *V4L2Device) Disable() error { return ErrNotSupported }
func (d *V4L2Device) SetFrequency(khz int64) error { return ErrNotSupported }
func (d *V4L2Device) GetFrequency() (int64, error) { return 0, ErrNotSupported }
func (d *V4L2Device) StartSearch(dir SearchDirection) error { return ErrNotSupported }
func (d *V4L2Device) SetControl(id ControlID, value int32) error { return ErrNotSupported }
func (d *V4L2Device) GetControl(id ControlID) (int32, error) { return 0, ErrNotSupported }
func (d *V4L2Device) GetBandLimits() (int64, int64, error) { return 0, 0, ErrNotSupported }
func (d *V4L2Device) SetBandLimits(low, high int64) error { return ErrNotSupported }
func (d *V4L2Device) SetAudioMode(mode AudioMode) error { return ErrNotSupported }
func (d *V4L2Device) GetSignalStrength() (int32, error) { return 0, ErrNotSupported }
func (d *V4L2Device) ReadEventBlock(buf []byte) (int, error) { return 0, ErrClosed }
func (d *V4L2Device) ReadBuffer(index BufferIndex, buf []byte) (int, error) { return 0, ErrNotSupported }
