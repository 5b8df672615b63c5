package pagination

import "testing"

func TestClampPageSize(t *testing.T) {
	cfg := PageSizeConfig{Default: 20, Max: 50}
	tests := []struct {
		in   int
		want int
	}{
		{in: 0, want: 20},
		{in: -4, want: 20},
		{in: 10, want: 10},
		{in: 500, want: 50},
	}
	for _, tt := range tests {
		if got := ClampPageSize(tt.in, cfg); got != tt.want {
			t.Fatalf("ClampPageSize(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if got := ClampPageSize(0, PageSizeConfig{}); got != 1 {
		t.Fatalf("ClampPageSize zero config = %d, want 1", got)
	}
}

func TestOffsetTokens(t *testing.T) {
	if EncodeOffset(0) != "" {
		t.Fatal("expected empty token for first page")
	}
	token := EncodeOffset(40)
	got, err := DecodeOffset(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != 40 {
		t.Fatalf("offset = %d, want 40", got)
	}
	if _, err := DecodeOffset("!!"); err == nil {
		t.Fatal("expected error for garbage token")
	}
	if _, err := DecodeOffset("eDo0MA"); err == nil {
		t.Fatal("expected error for wrong prefix")
	}
}
