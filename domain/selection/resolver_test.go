package selection

import "testing"

func TestResolveBoundary(t *testing.T) {
	sel := Selection{Start: 100, End: 300}

	tests := []struct {
		name string
		t    float64
		want Boundary
	}{
		{name: "before start", t: 20, want: BoundaryStart},
		{name: "on start", t: 100, want: BoundaryStart},
		{name: "closer to start", t: 199, want: BoundaryStart},
		{name: "equidistant resolves to end", t: 200, want: BoundaryEnd},
		{name: "closer to end", t: 201, want: BoundaryEnd},
		{name: "on end", t: 300, want: BoundaryEnd},
		{name: "after end", t: 590, want: BoundaryEnd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveBoundary(tt.t, sel); got != tt.want {
				t.Errorf("ResolveBoundary(%v, %v) = %s, want %s", tt.t, sel, got, tt.want)
			}
		})
	}
}

func TestResolveBoundary_IsDeterministic(t *testing.T) {
	sel := Selection{Start: 0, End: 300}
	first := ResolveBoundary(150, sel)
	for i := 0; i < 100; i++ {
		if got := ResolveBoundary(150, sel); got != first {
			t.Fatalf("ResolveBoundary changed result on call %d: got %s, first %s", i, got, first)
		}
	}
	if first != BoundaryEnd {
		t.Errorf("expected tie to resolve to end, got %s", first)
	}
}
