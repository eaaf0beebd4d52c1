package idhash

import "testing"

func TestComputeJobIDDeterministic(t *testing.T) {
	a := ComputeJobID("0xAbC", 1000, 2000, 3000)
	b := ComputeJobID("0xabc", 1000, 2000, 3000)

	if a != b {
		t.Fatalf("expected case-insensitive IDs to match: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestComputeJobIDDistinct(t *testing.T) {
	base := ComputeJobID("0xabc", 1000, 2000, 3000)

	variants := []string{
		ComputeJobID("0xabd", 1000, 2000, 3000),
		ComputeJobID("0xabc", 1001, 2000, 3000),
		ComputeJobID("0xabc", 1000, 2001, 3000),
		ComputeJobID("0xabc", 1000, 2000, 3001),
	}
	for i, v := range variants {
		if v == base {
			t.Fatalf("variant %d collided with base ID", i)
		}
	}
}
