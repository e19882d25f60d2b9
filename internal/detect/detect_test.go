package detect

import (
	"context"
	"errors"
	"image"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"precise", ModePrecise, false},
		{"fast", ModeFast, false},
		{"", ModePrecise, false},
		{"cnn", "", true},
		{"PRECISE", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMode(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMode(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	bounds := image.Rect(0, 0, 640, 480)

	tests := []struct {
		name string
		in   Region
		want Region
		ok   bool
	}{
		{
			name: "inside bounds untouched",
			in:   Region{X: 10, Y: 20, W: 100, H: 100},
			want: Region{X: 10, Y: 20, W: 100, H: 100},
			ok:   true,
		},
		{
			name: "overhanging right edge clipped",
			in:   Region{X: 600, Y: 10, W: 100, H: 100},
			want: Region{X: 600, Y: 10, W: 40, H: 100},
			ok:   true,
		},
		{
			name: "negative origin clipped",
			in:   Region{X: -30, Y: -10, W: 100, H: 100},
			want: Region{X: 0, Y: 0, W: 70, H: 90},
			ok:   true,
		},
		{
			name: "fully outside dropped",
			in:   Region{X: 700, Y: 500, W: 50, H: 50},
			ok:   false,
		},
		{
			name: "zero size dropped",
			in:   Region{X: 10, Y: 10, W: 0, H: 40},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := clamp(tt.in, bounds)
			if ok != tt.ok {
				t.Fatalf("clamp(%+v) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("clamp(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

// fakeDetector records the mode it was invoked with.
type fakeDetector struct {
	regions []Region
	err     error
	calls   int
}

func (f *fakeDetector) Detect(_ context.Context, _ image.Image, _ Mode) ([]Region, error) {
	f.calls++
	return f.regions, f.err
}

func TestSelectorRouting(t *testing.T) {
	precise := &fakeDetector{regions: []Region{{X: 1, Y: 1, W: 10, H: 10}}}
	fast := &fakeDetector{regions: []Region{{X: 2, Y: 2, W: 20, H: 20}}}
	sel := NewSelector(precise, fast)
	frame := image.NewRGBA(image.Rect(0, 0, 64, 64))

	got, err := sel.Detect(context.Background(), frame, ModeFast)
	if err != nil {
		t.Fatalf("fast detect: %v", err)
	}
	if fast.calls != 1 || precise.calls != 0 {
		t.Errorf("fast mode routed to wrong backend (fast=%d precise=%d)", fast.calls, precise.calls)
	}
	if got[0].W != 20 {
		t.Errorf("unexpected regions from fast backend: %+v", got)
	}

	if _, err := sel.Detect(context.Background(), frame, ModePrecise); err != nil {
		t.Fatalf("precise detect: %v", err)
	}
	if precise.calls != 1 {
		t.Errorf("precise mode not routed to precise backend")
	}
}

func TestSelectorMissingBackend(t *testing.T) {
	sel := NewSelector(nil, &fakeDetector{})
	frame := image.NewRGBA(image.Rect(0, 0, 8, 8))

	_, err := sel.Detect(context.Background(), frame, ModePrecise)
	if err == nil {
		t.Fatal("expected error for missing precise backend")
	}
	var detErr *Error
	if !errors.As(err, &detErr) {
		t.Fatalf("expected *detect.Error, got %T", err)
	}
	if detErr.Backend != "precise" {
		t.Errorf("expected backend 'precise' in error, got %q", detErr.Backend)
	}
}

func TestSelectorZeroDetections(t *testing.T) {
	sel := NewSelector(&fakeDetector{regions: []Region{}}, nil)
	frame := image.NewRGBA(image.Rect(0, 0, 8, 8))

	regions, err := sel.Detect(context.Background(), frame, ModePrecise)
	if err != nil {
		t.Fatalf("zero detections must not be an error: %v", err)
	}
	if len(regions) != 0 {
		t.Errorf("expected empty result, got %+v", regions)
	}
}
