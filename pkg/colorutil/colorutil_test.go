package colorutil

import "testing"

func TestOverRGBA(t *testing.T) {
	tests := []struct {
		name           string
		sr, sg, sb, sa float64
		dr, dg, db, da float64
		wantR          float64
		wantA          float64
	}{
		{"opaque source wins", 200, 0, 0, 1, 50, 50, 50, 1, 200, 1},
		{"transparent source keeps dest", 200, 0, 0, 0, 50, 50, 50, 1, 50, 1},
		{"half over opaque averages", 255, 0, 0, 0.5, 0, 0, 0, 1, 127.5, 1},
		{"half over transparent keeps color", 255, 0, 0, 0.5, 0, 0, 0, 0, 255, 0.5},
		{"both transparent", 255, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _, a := OverRGBA(tt.sr, tt.sg, tt.sb, tt.sa, tt.dr, tt.dg, tt.db, tt.da)
			if diff := r - tt.wantR; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("r = %v, want %v", r, tt.wantR)
			}
			if diff := a - tt.wantA; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("a = %v, want %v", a, tt.wantA)
			}
		})
	}
}

func TestClampByte(t *testing.T) {
	tests := []struct {
		in   float64
		want uint8
	}{
		{-5, 0},
		{0, 0},
		{127.4, 127},
		{127.6, 128},
		{255, 255},
		{300, 255},
	}
	for _, tt := range tests {
		if got := ClampByte(tt.in); got != tt.want {
			t.Errorf("ClampByte(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
