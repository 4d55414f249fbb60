package bytesize

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  ByteSize
	}{
		{"1024", 1024},
		{"4Ki", 4 * KiB},
		{"4KiB", 4 * KiB},
		{"100Mi", 100 * MiB},
		{"1Gi", GiB},
		{"1GiB", GiB},
		{"500MB", 500 * MB},
		{"2TB", 2 * TB},
		{"1.5Gi", ByteSize(1.5 * float64(GiB))},
		{"0", 0},
		{" 8 KiB ", 8 * KiB},
	}

	for _, tt := range tests {
		got, err := Parse(tt.input)
		if err != nil {
			t.Errorf("Parse(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, input := range []string{"", "abc", "1XB", "Gi", "-5Ki"} {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) should have failed", input)
		}
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		size ByteSize
		want string
	}{
		{512, "512B"},
		{4 * KiB, "4.00KiB"},
		{GiB, "1.00GiB"},
		{ByteSize(1.5 * float64(MiB)), "1.50MiB"},
	}

	for _, tt := range tests {
		if got := tt.size.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", uint64(tt.size), got, tt.want)
		}
	}
}

func TestUnmarshalText(t *testing.T) {
	var b ByteSize
	if err := b.UnmarshalText([]byte("100Mi")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if b != 100*MiB {
		t.Errorf("Expected 100MiB, got %v", b)
	}

	if err := b.UnmarshalText([]byte("nonsense")); err == nil {
		t.Error("Expected error for unparsable input")
	}
}
