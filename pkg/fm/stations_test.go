package fm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dougsko/fmd/pkg/hardware"
)

func TestDecodeStationList(t *testing.T) {
	buf := make([]byte, hardware.StdBufferSize)
	stations := []int64{87500, 98100, 107900}
	n := hardware.EncodeStationList(buf, stations, 87500)

	got := decodeStationList(buf[:n], 87500, 108000)
	if len(got) != len(stations) {
		t.Fatalf("Expected %d stations, got %d", len(stations), len(got))
	}
	for i := range stations {
		if got[i] != stations[i] {
			t.Errorf("Station %d: expected %d, got %d", i, stations[i], got[i])
		}
	}

	t.Run("Out Of Band Dropped", func(t *testing.T) {
		got := decodeStationList(buf[:n], 87500, 100000)
		if len(got) != 2 {
			t.Errorf("Expected 2 in-band stations, got %v", got)
		}
	})

	t.Run("Truncated", func(t *testing.T) {
		got := decodeStationList(buf[:4], 87500, 108000)
		if len(got) != 1 || got[0] != 87500 {
			t.Errorf("Expected only the complete entry, got %v", got)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if got := decodeStationList(nil, 87500, 108000); got != nil {
			t.Errorf("Expected nil, got %v", got)
		}
	})

	t.Run("Upper Index Bits", func(t *testing.T) {
		// 76000 + 640*50 needs the high index byte
		n := hardware.EncodeStationList(buf, []int64{108000}, 76000)
		got := decodeStationList(buf[:n], 76000, 108000)
		if len(got) != 1 || got[0] != 108000 {
			t.Errorf("Expected [108000], got %v", got)
		}
	})
}

func TestDecodeAFList(t *testing.T) {
	buf := make([]byte, hardware.StdBufferSize)
	n := hardware.EncodeAFList(buf, []int64{89300, 104100})

	got := decodeAFList(buf[:n])
	if len(got) != 2 || got[0] != 89300 || got[1] != 104100 {
		t.Errorf("Expected [89300 104100], got %v", got)
	}

	if got := decodeAFList(buf[:hardware.AFListCountIndex]); got != nil {
		t.Errorf("Expected nil for short buffer, got %v", got)
	}
}

func TestCompletionSlot(t *testing.T) {
	slot := completionSlot{name: "tune"}

	t.Run("Signal Before Wait", func(t *testing.T) {
		w := slot.arm()
		if !slot.signal() {
			t.Fatal("Expected armed slot to accept the signal")
		}
		if res := w.wait(context.Background(), time.Second); res != Signaled {
			t.Errorf("Expected signaled, got %s", res)
		}
	})

	t.Run("Duplicate Signal", func(t *testing.T) {
		if slot.signal() {
			t.Error("Expected signal on an unarmed slot to be a no-op")
		}
	})

	t.Run("Stale Signal Does Not Leak", func(t *testing.T) {
		w := slot.arm()
		if res := w.wait(context.Background(), 10*time.Millisecond); res != TimedOut {
			t.Errorf("Expected timed out, got %s", res)
		}
		slot.disarm(w)
		if slot.signal() {
			t.Error("Expected disarmed slot to ignore the signal")
		}
	})

	t.Run("Disarm Keeps Newer Wait", func(t *testing.T) {
		old := slot.arm()
		fresh := slot.arm()
		slot.disarm(old)
		if !slot.signal() {
			t.Fatal("Expected the newer wait to stay armed")
		}
		if res := fresh.wait(context.Background(), time.Second); res != Signaled {
			t.Errorf("Expected signaled, got %s", res)
		}
	})

	t.Run("Context Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		w := slot.arm()
		if res := w.wait(ctx, time.Second); res != Canceled {
			t.Errorf("Expected canceled, got %s", res)
		}
		slot.disarm(w)
	})
}

func TestStateError(t *testing.T) {
	err := error(&StateError{Op: "tune", State: SeekInProgress})
	if !errors.Is(err, ErrInvalidState) {
		t.Error("Expected StateError to match ErrInvalidState")
	}
	if err.Error() == "" {
		t.Error("Expected a message")
	}

	wrapped := deviceError("tune", errors.New("ioctl failed"))
	if !errors.Is(wrapped, ErrDevice) {
		t.Errorf("Expected %v to match ErrDevice", wrapped)
	}
}

func TestStateNames(t *testing.T) {
	tests := map[State]string{
		Off:            "OFF",
		On:             "ON",
		SeekInProgress: "SEEK_IN_PROGRESS",
	}
	for st, want := range tests {
		if st.String() != want {
			t.Errorf("Expected %q, got %q", want, st.String())
		}
	}
	if !ScanInProgress.searching() || TuneInProgress.searching() {
		t.Error("Only seek and scan are searches")
	}
	if OnInProgress.Powered() || !TuneInProgress.Powered() {
		t.Error("Unexpected Powered() result")
	}
}
