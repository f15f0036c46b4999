package bitreader

import "testing"

func TestReadBits(t *testing.T) {
	r := New([]byte{0b10110010, 0b11110000})

	if v, err := r.ReadBits(4); err != nil || v != 0b1011 {
		t.Fatalf("ReadBits(4) = %v, %v", v, err)
	}
	if v, err := r.ReadBits(4); err != nil || v != 0b0010 {
		t.Fatalf("ReadBits(4) = %v, %v", v, err)
	}
	if v, err := r.ReadBits(8); err != nil || v != 0b11110000 {
		t.Fatalf("ReadBits(8) = %v, %v", v, err)
	}
	if _, err := r.ReadBits(1); err == nil {
		t.Fatalf("expected error past end of buffer")
	}
}

func TestReadFlagAndByteAlign(t *testing.T) {
	r := New([]byte{0x80})
	flag, err := r.ReadFlag()
	if err != nil || !flag {
		t.Fatalf("ReadFlag() = %v, %v", flag, err)
	}
	if r.BitsRemaining() != 7 {
		t.Fatalf("BitsRemaining() = %d, want 7", r.BitsRemaining())
	}
	r.ByteAlign()
	if r.BitsRemaining() != 0 {
		t.Fatalf("BitsRemaining() after align = %d, want 0", r.BitsRemaining())
	}
}

func TestReadUE(t *testing.T) {
	// Exp-Golomb codes: 0 -> "1", 1 -> "010", 2 -> "011", 3 -> "00100"
	r := New([]byte{0b1_010_011_0, 0b0100_0000})
	for _, want := range []uint32{0, 1, 2, 3} {
		got, err := r.ReadUE()
		if err != nil {
			t.Fatalf("ReadUE() error = %v", err)
		}
		if got != want {
			t.Fatalf("ReadUE() = %d, want %d", got, want)
		}
	}
}

func TestReadSE(t *testing.T) {
	// ue(v) -> se(v): 0->0, 1->1, 2->-1, 3->2, 4->-2
	r := New([]byte{0b1_010_011_0, 0b0100_0010, 0b1_0000000})
	want := []int32{0, 1, -1, 2, -2}
	for _, w := range want {
		got, err := r.ReadSE()
		if err != nil {
			t.Fatalf("ReadSE() error = %v", err)
		}
		if got != w {
			t.Fatalf("ReadSE() = %d, want %d", got, w)
		}
	}
}

func TestSkipBits(t *testing.T) {
	r := New([]byte{0xFF, 0xAA})
	if err := r.SkipBits(9); err != nil {
		t.Fatalf("SkipBits() error = %v", err)
	}
	v, err := r.ReadBits(7)
	if err != nil {
		t.Fatalf("ReadBits() error = %v", err)
	}
	if v != 0b0101010 {
		t.Fatalf("ReadBits() = %b, want %b", v, 0b0101010)
	}
}
