//go:build linux

package hardware

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/dougsko/fmd/pkg/logging"
	"golang.org/x/sys/unix"
)

// V4L2 radio frequencies are expressed in units of 62.5 Hz
const tuneMult = 16

const (
	tunerRadio     = 1
	bufTypePrivate = 0x80
	memoryUserPtr  = 2
)

// ioctl request encoding
const (
	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | uintptr('V')<<8 | nr
}

type v4l2Control struct {
	id    uint32
	value int32
}

type v4l2Frequency struct {
	tuner     uint32
	typ       uint32
	frequency uint32
	reserved  [8]uint32
}

type v4l2Tuner struct {
	index      uint32
	name       [32]uint8
	typ        uint32
	capability uint32
	rangeLow   uint32
	rangeHigh  uint32
	rxSubchans uint32
	audMode    uint32
	signal     int32
	afc        int32
	reserved   [4]uint32
}

type v4l2HwFreqSeek struct {
	tuner      uint32
	typ        uint32
	seekUpward uint32
	wrapAround uint32
	spacing    uint32
	rangeLow   uint32
	rangeHigh  uint32
	reserved   [5]uint32
}

type v4l2Timecode struct {
	typ      uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userbits [4]uint8
}

type v4l2Buffer struct {
	index     uint32
	typ       uint32
	bytesUsed uint32
	flags     uint32
	field     uint32
	timestamp unix.Timeval
	timecode  v4l2Timecode
	sequence  uint32
	memory    uint32
	userPtr   uintptr
	length    uint32
	reserved2 uint32
	requestFD int32
}

var (
	vidiocDQBUF       = ioc(iocRead|iocWrite, 17, unsafe.Sizeof(v4l2Buffer{}))
	vidiocGCTRL       = ioc(iocRead|iocWrite, 27, unsafe.Sizeof(v4l2Control{}))
	vidiocSCTRL       = ioc(iocRead|iocWrite, 28, unsafe.Sizeof(v4l2Control{}))
	vidiocGTUNER      = ioc(iocRead|iocWrite, 29, unsafe.Sizeof(v4l2Tuner{}))
	vidiocSTUNER      = ioc(iocWrite, 30, unsafe.Sizeof(v4l2Tuner{}))
	vidiocGFREQUENCY  = ioc(iocRead|iocWrite, 56, unsafe.Sizeof(v4l2Frequency{}))
	vidiocSFREQUENCY  = ioc(iocWrite, 57, unsafe.Sizeof(v4l2Frequency{}))
	vidiocSHWFREQSEEK = ioc(iocWrite, 82, unsafe.Sizeof(v4l2HwFreqSeek{}))
)

// V4L2Device drives an FM receiver through the Linux V4L2 radio interface
type V4L2Device struct {
	path         string
	pollInterval time.Duration
	fd           int
	mutex        sync.Mutex
}

// NewV4L2Device creates a driver for the radio node at path
func NewV4L2Device(config DeviceConfig) *V4L2Device {
	poll := time.Duration(config.PollInterval) * time.Millisecond
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	path := config.Path
	if path == "" {
		path = "/dev/radio0"
	}
	return &V4L2Device{path: path, pollInterval: poll, fd: -1}
}

// Open acquires the device handle
func (d *V4L2Device) Open() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.fd >= 0 {
		return nil
	}

	fd, err := unix.Open(d.path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", d.path, err)
	}
	d.fd = fd
	logging.Infof("v4l2", "Opened %s (fd %d)", d.path, fd)
	return nil
}

// Close releases the device handle. Closing twice is a no-op.
func (d *V4L2Device) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", d.path, err)
	}
	logging.Infof("v4l2", "Closed %s", d.path)
	return nil
}

// IsOpen reports whether a handle is held
func (d *V4L2Device) IsOpen() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.fd >= 0
}

// handle returns the current descriptor snapshot
func (d *V4L2Device) handle() (int, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.fd < 0 {
		return -1, ErrClosed
	}
	return d.fd, nil
}

func (d *V4L2Device) ioctl(req uintptr, arg unsafe.Pointer) error {
	fd, err := d.handle()
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		if errno == unix.EBADF {
			return ErrClosed
		}
		return errno
	}
	return nil
}

// Enable powers the receiver on in the given mode
func (d *V4L2Device) Enable(mode DeviceMode) error {
	return d.SetControl(CtrlState, int32(mode))
}

// Disable powers the receiver off
func (d *V4L2Device) Disable() error {
	return d.SetControl(CtrlState, int32(ModeNone))
}

// SetControl writes a single control value
func (d *V4L2Device) SetControl(id ControlID, value int32) error {
	ctrl := v4l2Control{id: uint32(id), value: value}
	if err := d.ioctl(vidiocSCTRL, unsafe.Pointer(&ctrl)); err != nil {
		return fmt.Errorf("set control 0x%08x=%d: %w", uint32(id), value, err)
	}
	return nil
}

// GetControl reads a single control value
func (d *V4L2Device) GetControl(id ControlID) (int32, error) {
	ctrl := v4l2Control{id: uint32(id)}
	if err := d.ioctl(vidiocGCTRL, unsafe.Pointer(&ctrl)); err != nil {
		return 0, fmt.Errorf("get control 0x%08x: %w", uint32(id), err)
	}
	return ctrl.value, nil
}

// SetFrequency tunes to khz
func (d *V4L2Device) SetFrequency(khz int64) error {
	freq := v4l2Frequency{typ: tunerRadio, frequency: uint32(khz * tuneMult)}
	if err := d.ioctl(vidiocSFREQUENCY, unsafe.Pointer(&freq)); err != nil {
		return fmt.Errorf("set frequency %d kHz: %w", khz, err)
	}
	return nil
}

// GetFrequency returns the tuned frequency in kHz
func (d *V4L2Device) GetFrequency() (int64, error) {
	freq := v4l2Frequency{typ: tunerRadio}
	if err := d.ioctl(vidiocGFREQUENCY, unsafe.Pointer(&freq)); err != nil {
		return 0, fmt.Errorf("get frequency: %w", err)
	}
	return int64(freq.frequency) / tuneMult, nil
}

// StartSearch starts a hardware search in the given direction
func (d *V4L2Device) StartSearch(dir SearchDirection) error {
	seek := v4l2HwFreqSeek{typ: tunerRadio, seekUpward: uint32(dir)}
	if err := d.ioctl(vidiocSHWFREQSEEK, unsafe.Pointer(&seek)); err != nil {
		return fmt.Errorf("start search %s: %w", dir, err)
	}
	return nil
}

func (d *V4L2Device) getTuner() (v4l2Tuner, error) {
	tuner := v4l2Tuner{}
	if err := d.ioctl(vidiocGTUNER, unsafe.Pointer(&tuner)); err != nil {
		return tuner, fmt.Errorf("get tuner: %w", err)
	}
	return tuner, nil
}

func (d *V4L2Device) setTuner(tuner *v4l2Tuner) error {
	if err := d.ioctl(vidiocSTUNER, unsafe.Pointer(tuner)); err != nil {
		return fmt.Errorf("set tuner: %w", err)
	}
	return nil
}

// GetBandLimits returns the tuner range in kHz
func (d *V4L2Device) GetBandLimits() (int64, int64, error) {
	tuner, err := d.getTuner()
	if err != nil {
		return 0, 0, err
	}
	return int64(tuner.rangeLow) / tuneMult, int64(tuner.rangeHigh) / tuneMult, nil
}

// SetBandLimits sets the tuner range in kHz
func (d *V4L2Device) SetBandLimits(low, high int64) error {
	tuner, err := d.getTuner()
	if err != nil {
		return err
	}
	tuner.rangeLow = uint32(low * tuneMult)
	tuner.rangeHigh = uint32(high * tuneMult)
	return d.setTuner(&tuner)
}

// SetAudioMode selects stereo or mono output
func (d *V4L2Device) SetAudioMode(mode AudioMode) error {
	tuner, err := d.getTuner()
	if err != nil {
		return err
	}
	tuner.audMode = uint32(mode)
	return d.setTuner(&tuner)
}

// GetSignalStrength returns the raw tuner signal value
func (d *V4L2Device) GetSignalStrength() (int32, error) {
	tuner, err := d.getTuner()
	if err != nil {
		return 0, err
	}
	return tuner.signal, nil
}

// ReadEventBlock waits up to one poll interval for the event buffer
func (d *V4L2Device) ReadEventBlock(buf []byte) (int, error) {
	fd, err := d.handle()
	if err != nil {
		return 0, err
	}

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN | unix.POLLPRI}}
	n, err := unix.Poll(fds, int(d.pollInterval/time.Millisecond))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	if fds[0].Revents&unix.POLLNVAL != 0 {
		return 0, ErrClosed
	}

	n, err = d.ReadBuffer(BufferEvents, buf)
	if errors.Is(err, unix.EAGAIN) {
		return 0, nil
	}
	return n, err
}

// ReadBuffer dequeues one of the driver's private buffers into buf
func (d *V4L2Device) ReadBuffer(index BufferIndex, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, fmt.Errorf("read buffer %d: empty destination", index)
	}

	v4lBuf := v4l2Buffer{
		index:   uint32(index),
		typ:     bufTypePrivate,
		memory:  memoryUserPtr,
		userPtr: uintptr(unsafe.Pointer(&buf[0])),
		length:  uint32(len(buf)),
	}
	err := d.ioctl(vidiocDQBUF, unsafe.Pointer(&v4lBuf))
	runtime.KeepAlive(buf)
	if err != nil {
		return 0, fmt.Errorf("read buffer %d: %w", index, err)
	}

	n := int(v4lBuf.bytesUsed)
	if n > len(buf) {
		n = len(buf)
	}
	return n, nil
}
