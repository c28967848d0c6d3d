package ebx

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want wordClass
	}{
		{"empty", nil, classOther},
		{"ascii", []byte("apple"), classAlpha},
		{"katakana", []byte{0xa5, 0xa2}, classKana},
		{"hiragana", []byte{0xa4, 0xa2}, classKana},
		{"kanji", []byte{0xb8, 0xc2}, classOther},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := classify(c.in); got != c.want {
				t.Errorf("classify(%v) = %v, want %v", c.in, got, c.want)
			}
		})
	}
}

func TestEncodeQueryLatin1(t *testing.T) {
	out, err := encodeQuery("abc", CharCodeISO8859_1)
	if err != nil {
		t.Fatalf("encodeQuery: %v", err)
	}
	if string(out) != "abc" {
		t.Errorf("got %q, want %q", out, "abc")
	}

	if _, err := encodeQuery("日本語", CharCodeISO8859_1); err == nil {
		t.Error("expected error encoding non-Latin-1 text as ISO-8859-1")
	}
}

func TestEncodeQueryJIS(t *testing.T) {
	out, err := encodeQuery("abc", CharCodeJISX0208)
	if err != nil {
		t.Fatalf("encodeQuery: %v", err)
	}
	if string(out) != "abc" {
		t.Errorf("ascii passthrough: got %q, want %q", out, "abc")
	}
}

func TestReverseWord(t *testing.T) {
	if got := string(reverseWord([]byte("abc"))); got != "cba" {
		t.Errorf("reverseWord(abc) = %q, want %q", got, "cba")
	}
	// EUC-JP two-byte characters reverse as units.
	in := []byte{0xa4, 0xa2, 0xa4, 0xa4, 'x'}
	want := []byte{'x', 0xa4, 0xa4, 0xa4, 0xa2}
	if got := reverseWord(in); string(got) != string(want) {
		t.Errorf("reverseWord(% x) = % x, want % x", in, got, want)
	}
}

func TestValidateWord(t *testing.T) {
	if err := validateWord(""); err == nil {
		t.Error("expected error for empty word")
	}
	if err := validateWord(string(make([]byte, maxWordLength+1))); err == nil {
		t.Error("expected error for over-long word")
	}
	if err := validateWord("dictionary"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestResolveWordIndex(t *testing.T) {
	sb := &Subbook{searches: map[SearchMethod]*searchDescriptor{
		SearchWordAsis: {StartPage: 1},
	}}
	method, err := resolveWordIndex(sb, classAlpha, SearchWordAlphabet, SearchWordKana, SearchWordAsis)
	if err != nil {
		t.Fatalf("resolveWordIndex: %v", err)
	}
	if method != SearchWordAsis {
		t.Errorf("got %v, want fallback to asis", method)
	}

	if _, err := resolveWordIndex(&Subbook{searches: map[SearchMethod]*searchDescriptor{}}, classAlpha, SearchWordAlphabet, SearchWordKana, SearchWordAsis); err == nil {
		t.Error("expected error when no index is available")
	}
}
