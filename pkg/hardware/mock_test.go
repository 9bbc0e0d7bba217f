package hardware

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func TestMockGPIO(t *testing.T) {
	gpio := NewMockGPIO()

	if err := gpio.Initialize(); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	pins := []int{18, 24, 25}
	values := []bool{true, false, true}
	for i, pin := range pins {
		if err := gpio.SetPin(pin, values[i]); err != nil {
			t.Errorf("Failed to set pin %d: %v", pin, err)
		}
	}
	for i, pin := range pins {
		value, err := gpio.GetPin(pin)
		if err != nil {
			t.Errorf("Failed to get pin %d: %v", pin, err)
		}
		if value != values[i] {
			t.Errorf("Pin %d: expected %t, got %t", pin, values[i], value)
		}
	}
	if gpio.Writes() != len(pins) {
		t.Errorf("Expected %d writes, got %d", len(pins), gpio.Writes())
	}
}

// readEvents collects events until want have arrived or the deadline passes
func readEvents(t *testing.T, dev *MockDevice, want int) []Event {
	t.Helper()
	var got []Event
	buf := make([]byte, StdBufferSize)
	deadline := time.Now().Add(time.Second)
	for len(got) < want && time.Now().Before(deadline) {
		n, err := dev.ReadEventBlock(buf)
		if err != nil {
			t.Fatalf("ReadEventBlock failed: %v", err)
		}
		for _, b := range buf[:n] {
			got = append(got, Event(b))
		}
	}
	return got
}

func TestMockDeviceLifecycle(t *testing.T) {
	dev := NewMockDevice(MockDeviceConfig{})

	t.Run("Closed Device", func(t *testing.T) {
		if err := dev.Enable(ModeRX); !errors.Is(err, ErrClosed) {
			t.Errorf("Expected ErrClosed, got %v", err)
		}
		if _, err := dev.ReadEventBlock(make([]byte, 8)); !errors.Is(err, ErrClosed) {
			t.Errorf("Expected ErrClosed from read, got %v", err)
		}
	})

	t.Run("Enable Emits Ready", func(t *testing.T) {
		if err := dev.Open(); err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if err := dev.Enable(ModeRX); err != nil {
			t.Fatalf("Enable failed: %v", err)
		}
		events := readEvents(t, dev, 1)
		if len(events) != 1 || events[0] != EventReady {
			t.Errorf("Expected [ready], got %v", events)
		}
		if dev.Mode() != ModeRX {
			t.Errorf("Expected mode RX, got %d", dev.Mode())
		}
	})

	t.Run("Tune Emits Tune", func(t *testing.T) {
		if err := dev.SetFrequency(98100); err != nil {
			t.Fatalf("SetFrequency failed: %v", err)
		}
		events := readEvents(t, dev, 1)
		if len(events) != 1 || events[0] != EventTune {
			t.Errorf("Expected [tune], got %v", events)
		}
		freq, _ := dev.GetFrequency()
		if freq != 98100 {
			t.Errorf("Expected 98100, got %d", freq)
		}
	})

	t.Run("Out Of Band Rejected", func(t *testing.T) {
		if err := dev.SetFrequency(120000); err == nil {
			t.Error("Expected out of band error")
		}
	})

	t.Run("Close Unblocks Reader", func(t *testing.T) {
		errCh := make(chan error, 1)
		go func() {
			buf := make([]byte, 8)
			for {
				if _, err := dev.ReadEventBlock(buf); err != nil {
					errCh <- err
					return
				}
			}
		}()
		dev.Close()
		select {
		case err := <-errCh:
			if !errors.Is(err, ErrClosed) {
				t.Errorf("Expected ErrClosed, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Reader did not observe close")
		}
		if err := dev.Close(); err != nil {
			t.Errorf("Second close should be a no-op, got %v", err)
		}
	})
}

func TestMockDeviceSearch(t *testing.T) {
	dev := NewMockDevice(MockDeviceConfig{Stations: []int64{90000, 95000, 100000}})
	dev.Open()
	defer dev.Close()

	dev.SetFrequency(95000)
	readEvents(t, dev, 1)

	t.Run("Seek Up", func(t *testing.T) {
		dev.SetControl(CtrlSearchMode, SearchModeSeek)
		if err := dev.StartSearch(SearchUp); err != nil {
			t.Fatalf("StartSearch failed: %v", err)
		}
		events := readEvents(t, dev, 2)
		if len(events) != 2 || events[0] != EventTune || events[1] != EventSeekComplete {
			t.Errorf("Expected [tune seek_complete], got %v", events)
		}
		if freq, _ := dev.GetFrequency(); freq != 100000 {
			t.Errorf("Expected 100000, got %d", freq)
		}
	})

	t.Run("Seek Up Wraps", func(t *testing.T) {
		dev.StartSearch(SearchUp)
		readEvents(t, dev, 2)
		if freq, _ := dev.GetFrequency(); freq != 90000 {
			t.Errorf("Expected wrap to 90000, got %d", freq)
		}
	})

	t.Run("Scan Produces List", func(t *testing.T) {
		dev.SetControl(CtrlSearchMode, SearchModeListStrong)
		dev.StartSearch(SearchUp)
		events := readEvents(t, dev, 1)
		if len(events) != 1 || events[0] != EventSearchList {
			t.Errorf("Expected [search_list], got %v", events)
		}

		buf := make([]byte, StdBufferSize)
		n, err := dev.ReadBuffer(BufferStationList, buf)
		if err != nil {
			t.Fatalf("ReadBuffer failed: %v", err)
		}
		if n != 7 || buf[0] != 3 {
			t.Errorf("Expected 3 stations in 7 bytes, got count %d in %d", buf[0], n)
		}
		// (95000 - 87500) / 50 = 150
		if buf[3] != 0 || buf[4] != 150 {
			t.Errorf("Unexpected second entry % x", buf[3:5])
		}
	})

	t.Run("Stop Completes Early", func(t *testing.T) {
		slow := NewMockDevice(MockDeviceConfig{SearchLatency: time.Hour})
		slow.Open()
		defer slow.Close()

		slow.SetControl(CtrlSearchMode, SearchModeSeek)
		slow.StartSearch(SearchDown)
		slow.SetControl(CtrlSearchOn, 0)
		events := readEvents(t, slow, 2)
		if len(events) != 2 || events[0] != EventTune {
			t.Errorf("Expected stop to complete the seek, got %v", events)
		}
	})
}

func TestMockDeviceInjection(t *testing.T) {
	dev := NewMockDevice(MockDeviceConfig{})
	dev.Open()
	defer dev.Close()

	t.Run("Suppress", func(t *testing.T) {
		dev.Suppress(EventReady)
		dev.Enable(ModeRX)
		buf := make([]byte, 8)
		time.Sleep(10 * time.Millisecond)
		n, _ := dev.ReadEventBlock(buf)
		if n != 0 {
			t.Errorf("Expected suppressed ready event, got % x", buf[:n])
		}
		dev.Release(EventReady)
	})

	t.Run("Fail Next", func(t *testing.T) {
		boom := errors.New("boom")
		dev.FailNext("set_frequency", boom)
		if err := dev.SetFrequency(98100); !errors.Is(err, boom) {
			t.Errorf("Expected injected error, got %v", err)
		}
		if err := dev.SetFrequency(98100); err != nil {
			t.Errorf("Failure should be consumed, got %v", err)
		}
		readEvents(t, dev, 1)
	})

	t.Run("Inject Batches", func(t *testing.T) {
		dev.Inject(EventPS, EventRT, EventStereo)
		events := readEvents(t, dev, 3)
		if len(events) != 3 || events[2] != EventStereo {
			t.Errorf("Expected three injected events, got %v", events)
		}
	})

	t.Run("AF List Buffer", func(t *testing.T) {
		dev.SetAFList([]int64{98300, 101700})
		buf := make([]byte, StdBufferSize)
		if _, err := dev.ReadBuffer(BufferAFList, buf); err != nil {
			t.Fatalf("ReadBuffer failed: %v", err)
		}
		if buf[AFListCountIndex] != 2 {
			t.Fatalf("Expected 2 AF entries, got %d", buf[AFListCountIndex])
		}
		second := binary.LittleEndian.Uint32(buf[AFListCountIndex+1+AFEntrySize:])
		if second != 101700 {
			t.Errorf("Expected 101700, got %d", second)
		}
	})
}

func TestEventString(t *testing.T) {
	if EventDisabled.String() != "disabled" {
		t.Errorf("Expected disabled, got %s", EventDisabled)
	}
	if Event(0x11).String() != "event_0x11" {
		t.Errorf("Expected hex name for unknown code, got %s", Event(0x11))
	}
}
