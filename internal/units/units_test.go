package units

import (
	"math"
	"testing"
	"time"
)

func TestConvertDistance(t *testing.T) {
	tests := []struct {
		name     string
		mm       float64
		units    string
		expected float64
	}{
		{"1000 mm to cm", 1000, CM, 100},
		{"254 mm to inches", 254, Inch, 10},
		{"1000 mm to mm", 1000, MM, 1000},
		{"unknown units default to mm", 1000, "furlong", 1000},
		{"0 mm to cm", 0, CM, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertDistance(tt.mm, tt.units)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ConvertDistance(%f, %s) = %f, want %f", tt.mm, tt.units, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid mm", MM, true},
		{"valid cm", CM, true},
		{"valid in", Inch, true},
		{"invalid unit", "ft", false},
		{"empty string", "", false},
		{"case sensitive", "MM", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	if got, want := GetValidUnitsString(), "mm, cm, in"; got != want {
		t.Errorf("GetValidUnitsString() = %q, want %q", got, want)
	}
}

func TestDistanceForEcho(t *testing.T) {
	tests := []struct {
		echo time.Duration
		want float64
	}{
		{2 * time.Millisecond, 343},
		{time.Second, 171500},
		{0, 0},
	}
	for _, tt := range tests {
		if got := DistanceForEcho(tt.echo); math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("DistanceForEcho(%v) = %f, want %f", tt.echo, got, tt.want)
		}
	}
}

func TestEchoForDistanceRoundTrip(t *testing.T) {
	for _, mm := range []float64{27, 500, 1000, 4400} {
		got := DistanceForEcho(EchoForDistance(mm))
		// one microsecond of echo is about 0.17mm
		if math.Abs(got-mm) > 0.2 {
			t.Errorf("round trip of %.0fmm gave %f", mm, got)
		}
	}
	if got := EchoForDistance(1000); got != 5831*time.Microsecond {
		t.Errorf("EchoForDistance(1000) = %v, want 5.831ms", got)
	}
}
