package gfx

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestDrawIndexedAttribsCheck(t *testing.T) {
	if err := (DrawIndexedAttribs{NumIndices: 36, NumInstances: 1}).Check(); err != nil {
		t.Fatalf("Check: unexpected error: %v", err)
	}
	for _, bad := range []DrawIndexedAttribs{
		{NumIndices: 36},
		{NumInstances: 4},
	} {
		if err := bad.Check(); !errors.Is(err, ErrInvalidDesc) {
			t.Errorf("Check(%+v): got %v, want ErrInvalidDesc", bad, err)
		}
	}
}

func TestMipLevelCount(t *testing.T) {
	tests := []struct {
		w, h, want int
	}{
		{1, 1, 1},
		{4, 4, 3},
		{256, 256, 9},
		{640, 480, 10},
		{1, 1024, 11},
		{0, 16, 1},
	}
	for _, tt := range tests {
		if got := MipLevelCount(tt.w, tt.h); got != tt.want {
			t.Errorf("MipLevelCount(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}
