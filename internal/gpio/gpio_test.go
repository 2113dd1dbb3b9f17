package gpio

import (
	"errors"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"BOARD", ModeBoard, false},
		{"bcm", ModeBCM, false},
		{" Board ", ModeBoard, false},
		{"wiringpi", ModeUnknown, true},
		{"", ModeUnknown, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestToBCM(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		pin     Pin
		want    Pin
		wantErr error
	}{
		{"board trigger", ModeBoard, 7, 4, nil},
		{"board echo", ModeBoard, 11, 17, nil},
		{"bcm passthrough", ModeBCM, 17, 17, nil},
		{"board ground", ModeBoard, 6, 0, ErrInvalidPin},
		{"bcm out of range", ModeBCM, 40, 0, ErrInvalidPin},
		{"no mode", ModeUnknown, 7, 0, ErrModeNotSet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBCM(tt.mode, tt.pin)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ToBCM() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToBCM() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ToBCM() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidPin(t *testing.T) {
	if !ValidPin(ModeBoard, 40) {
		t.Error("header pin 40 should be valid")
	}
	if ValidPin(ModeBoard, 1) {
		t.Error("header pin 1 is 3.3V and should be invalid")
	}
	if ValidPin(ModeUnknown, 7) {
		t.Error("no pin is valid without a mode")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("wiringpi", nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenFake(t *testing.T) {
	b, err := Open("FAKE", nil)
	if err != nil {
		t.Fatalf("Open(fake): %v", err)
	}
	if _, ok := b.(*FakeBoard); !ok {
		t.Fatalf("Open(fake) returned %T", b)
	}
	if err := Close(b); err != nil {
		t.Errorf("Close: %v", err)
	}
}
