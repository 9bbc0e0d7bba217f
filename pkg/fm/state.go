package fm

// State is the controller lifecycle state
type State int

const (
	Off State = iota
	OnInProgress
	On
	OffInProgress
	TuneInProgress
	SeekInProgress
	ScanInProgress
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Off:
		return "OFF"
	case OnInProgress:
		return "ON_IN_PROGRESS"
	case On:
		return "ON"
	case OffInProgress:
		return "OFF_IN_PROGRESS"
	case TuneInProgress:
		return "TUNE_IN_PROGRESS"
	case SeekInProgress:
		return "SEEK_IN_PROGRESS"
	case ScanInProgress:
		return "SCAN_IN_PROGRESS"
	default:
		return "UNKNOWN"
	}
}

// searching reports whether a seek or scan is in flight
func (s State) searching() bool {
	return s == SeekInProgress || s == ScanInProgress
}

// Powered reports whether the device accepts synchronous commands
func (s State) Powered() bool {
	return s != Off && s != OnInProgress && s != OffInProgress
}
