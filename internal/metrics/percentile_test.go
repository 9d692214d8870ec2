package metrics

import "testing"

func TestPercentile_LinearInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}

	cases := []struct {
		p    float64
		want float64
	}{
		{0.0, 10},
		{1.0, 40},
		{0.5, 25},
		{0.25, 17.5},
	}
	for _, c := range cases {
		got := Percentile(sorted, c.p)
		if got != c.want {
			t.Errorf("Percentile(%v, %v) = %v, want %v", sorted, c.p, got, c.want)
		}
	}
}

func TestPercentile_EmptyAndSingleton(t *testing.T) {
	if got := Percentile(nil, 0.5); got != 0 {
		t.Errorf("Percentile(nil) = %v, want 0", got)
	}
	if got := Percentile([]float64{42}, 0.9); got != 42 {
		t.Errorf("Percentile(singleton) = %v, want 42", got)
	}
}

func TestSortedCopy_DoesNotMutateInput(t *testing.T) {
	in := []float64{3, 1, 2}
	out := SortedCopy(in)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Fatalf("SortedCopy mutated its input: %v", in)
	}
	if out[0] != 1 || out[1] != 2 || out[2] != 3 {
		t.Fatalf("SortedCopy did not sort: %v", out)
	}
}

func TestMean(t *testing.T) {
	if got := Mean([]float64{1, 2, 3}); got != 2 {
		t.Errorf("Mean = %v, want 2", got)
	}
	if got := Mean(nil); got != 0 {
		t.Errorf("Mean(nil) = %v, want 0", got)
	}
}
