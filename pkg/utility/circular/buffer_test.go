package circular

import "testing"

func TestBuffer_PushGet(t *testing.T) {
	b := NewBuffer[int](5)
	for i := 0; i < 9; i++ {
		b.Push(i)
	}

	c := NewBuffer[int](8)
	c.Push(0)
	c.Push(1)

	tests := []struct {
		name     string
		result   int
		expected int
	}{
		{"b.Get(0) == 8", b.Get(0), 8},
		{"b.Get(1) == 7", b.Get(1), 7},
		{"b.Get(2) == 6", b.Get(2), 6},
		{"b.Get(3) == 5", b.Get(3), 5},
		{"b.Get(4) == 4", b.Get(4), 4},
		{"c.Get(0) == 1", c.Get(0), 1},
		{"c.Get(1) == 0", c.Get(1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.result != tt.expected {
				t.Errorf("got %d, want %d", tt.result, tt.expected)
			}
		})
	}
}

func TestBuffer_Chronological(t *testing.T) {
	b := NewBuffer[int](3)
	if len(b.Chronological()) != 0 {
		t.Fatal("expected empty slice for empty buffer")
	}

	for i := 1; i <= 4; i++ {
		b.Push(i)
	}

	got := b.Chronological()
	want := []int{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestBuffer_Replace(t *testing.T) {
	b := NewBuffer[int](2)
	b.Replace(7)
	if b.Size() != 1 || b.Get(0) != 7 {
		t.Fatalf("Replace on empty buffer should push, got size %d", b.Size())
	}

	b.Push(8)
	b.Replace(9)
	if b.Get(0) != 9 || b.Get(1) != 7 {
		t.Errorf("got [%d %d], want [9 7]", b.Get(0), b.Get(1))
	}
}

func TestBuffer_GetOutOfRangePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic")
		}
	}()
	NewBuffer[int](2).Get(0)
}

func TestBuffer_ZeroCapacityPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic")
		}
	}()
	NewBuffer[int](0)
}
