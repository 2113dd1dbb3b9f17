package volume

import "testing"

func TestMapperVolume(t *testing.T) {
	m := DefaultMapper()
	tests := []struct {
		name     string
		distance int
		want     int
	}{
		{"empty bucket", 110, 0},
		{"half full", 60, 1146},
		{"rim", 0, 2522},
		{"below the calibrated range", 200, -2064},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Volume(tt.distance); got != tt.want {
				t.Errorf("Volume(%d) = %d, want %d", tt.distance, got, tt.want)
			}
		})
	}
}

func TestMapperCustom(t *testing.T) {
	m := Mapper{Slope: -2, Intercept: 1000.5}
	if got := m.Volume(100); got != 800 {
		t.Errorf("Volume(100) = %d, want 800", got)
	}
}

func TestMapperVolumeTies(t *testing.T) {
	m := Mapper{Slope: -2, Intercept: 1000.5}
	tests := []struct {
		distance int
		want     int
	}{
		{100, 800}, // 800.5
		{99, 802},  // 802.5
		{250, 500}, // 500.5
		{501, -2},  // -1.5
		{500, 0},   // 0.5
	}
	for _, tt := range tests {
		if got := m.Volume(tt.distance); got != tt.want {
			t.Errorf("Volume(%d) = %d, want %d", tt.distance, got, tt.want)
		}
	}
}

func TestMapperString(t *testing.T) {
	if got, want := DefaultMapper().String(), "volume = -22.93 * reading + 2522"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
