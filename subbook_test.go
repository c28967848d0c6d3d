package ebx

import (
	"testing"

	"github.com/mistydemeo/eb-sub000/internal/catalog"
	"github.com/mistydemeo/eb-sub000/internal/search"
)

func TestComposeMovieFileName(t *testing.T) {
	// Full-width "A1b" followed by a full-width space terminator:
	// uppercase letters fold to lowercase ASCII.
	argv := []int{0x2341<<16 | 0x2330, 0x2362<<16 | 0x2121, 0, 0}
	name, err := ComposeMovieFileName(argv)
	if err != nil {
		t.Fatal(err)
	}
	if name != "a0b" {
		t.Errorf("name = %q, want %q", name, "a0b")
	}

	if _, err := ComposeMovieFileName([]int{0x2121<<16 | 0, 0, 0, 0}); err != nil {
		t.Errorf("empty name must not error, got %v", err)
	}

	if _, err := ComposeMovieFileName([]int{0x2a2a << 16, 0, 0, 0}); err == nil {
		t.Error("expected error for a non-alphanumeric JIS character")
	}
}

func TestConvertStyleBridgesEnumOrders(t *testing.T) {
	cases := []struct {
		in   catalog.Style
		want search.Style
	}{
		{catalog.StyleConvert, search.StyleConvert},
		{catalog.StyleAsis, search.StyleAsis},
		{catalog.StyleDelete, search.StyleDelete},
	}
	for _, c := range cases {
		if got := convertStyle(c.in); got != c.want {
			t.Errorf("convertStyle(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestPageRange(t *testing.T) {
	r := pageRange(3, 2)
	if r.StartByte != 2*2048 || r.EndByte != 4*2048 {
		t.Errorf("pageRange(3, 2) = %+v", r)
	}

	if absent := pageRange(0, 5); absent.EndByte != 0 {
		t.Errorf("page 0 must produce an absent range, got %+v", absent)
	}
}

func TestDefaultMultiStyle(t *testing.T) {
	jis := defaultMultiStyle(false)
	if jis.Space != search.StyleDelete {
		t.Errorf("JIS multi style Space = %v, want delete", jis.Space)
	}
	if jis.Mark != search.StyleDelete || jis.Katakana != search.StyleConvert {
		t.Errorf("multi style defaults = %+v", jis)
	}

	latin := defaultMultiStyle(true)
	if latin.Space != search.StyleAsis {
		t.Errorf("Latin multi style Space = %v, want as-is", latin.Space)
	}
}
