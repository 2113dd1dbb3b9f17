package calibration

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dougalf/lolat/internal/fsutil"
)

func TestTableEncode(t *testing.T) {
	table := Table{{Distance: 110, Volume: 0}, {Distance: 88, Volume: 500}}
	got, err := table.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `[
    [
        110,
        0
    ],
    [
        88,
        500
    ]
]
`
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("Encode mismatch (-want +got):\n%s", diff)
	}
}

func TestTableEncodeEmpty(t *testing.T) {
	got, err := Table(nil).Encode()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "[]\n" {
		t.Errorf("Encode(nil) = %q", got)
	}
}

func TestLoad(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	_ = fsys.WriteFile(DefaultFileName, []byte("[[110, 0], [88, 500], [66, 1000]]\n"), 0o644)

	got, err := Load(fsys, DefaultFileName)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Table{{110, 0}, {88, 500}, {66, 1000}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"not json", "nope", nil},
		{"triple", "[[1, 2, 3]]", nil},
		{"no baseline", "[[88, 500]]", ErrNoBaseline},
		{"empty", "[]", ErrNoBaseline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fsutil.NewMemoryFileSystem()
			_ = fsys.WriteFile("cal.json", []byte(tt.content), 0o644)
			_, err := Load(fsys, "cal.json")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := Load(fsutil.NewMemoryFileSystem(), "missing.json"); err == nil {
		t.Error("expected error for missing file")
	}
}
