package catalog

import (
	"encoding/binary"
	"testing"
)

func TestParseEBCatalog(t *testing.T) {
	buf := make([]byte, 16+ebRecordSize)
	binary.BigEndian.PutUint16(buf[0:2], 1)
	rec := buf[16:]
	copy(rec[2:], "TEST TITLE")
	for i := 2 + len("TEST TITLE"); i < 2+ebTitleLength; i++ {
		rec[i] = ' '
	}
	copy(rec[2+ebTitleLength:], "SUB1    ")

	header, records, err := Parse(buf, EB)
	if err != nil {
		t.Fatal(err)
	}
	if header.SubbookCount != 1 {
		t.Fatalf("SubbookCount = %d, want 1", header.SubbookCount)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Directory != "SUB1" {
		t.Errorf("Directory = %q, want %q", records[0].Directory, "SUB1")
	}
	if records[0].IndexPage != 1 {
		t.Errorf("IndexPage = %d, want 1 for an EB record", records[0].IndexPage)
	}
}

func TestParseEPWINGCatalogFonts(t *testing.T) {
	buf := make([]byte, 16+epwingRecordSize)
	binary.BigEndian.PutUint16(buf[0:2], 1)
	buf[3] = 6 // version

	rec := buf[16:]
	copy(rec[2:], "TITLE")
	copy(rec[2+epwingTitleLen:], "KANJI   ")
	binary.BigEndian.PutUint16(rec[2+epwingTitleLen+directoryNameLength+4:], 1)

	wideBase := 2 + epwingTitleLen + 18
	narrowBase := 2 + epwingTitleLen + 50
	copy(rec[wideBase:], "GA16FULL")
	copy(rec[narrowBase:], "GA16HALF")
	rec[narrowBase+directoryNameLength] = 0x00 // absent slot

	header, records, err := Parse(buf, EPWING)
	if err != nil {
		t.Fatal(err)
	}
	if header.Version != 6 {
		t.Errorf("Version = %d, want 6", header.Version)
	}
	r := records[0]
	if r.Directory != "KANJI" {
		t.Errorf("Directory = %q, want %q", r.Directory, "KANJI")
	}
	if r.WideFontFiles[0] != "GA16FULL" || r.NarrowFontFiles[0] != "GA16HALF" {
		t.Errorf("font files = %q / %q", r.WideFontFiles[0], r.NarrowFontFiles[0])
	}
	if r.NarrowFontFiles[1] != "" {
		t.Errorf("absent font slot parsed as %q", r.NarrowFontFiles[1])
	}
}

func TestParseRejectsEmptyCatalog(t *testing.T) {
	buf := make([]byte, 16)
	if _, _, err := Parse(buf, EB); err == nil {
		t.Fatal("expected error for a zero-subbook catalog")
	}
	if _, _, err := Parse(buf[:4], EB); err == nil {
		t.Fatal("expected error for a truncated header")
	}
}

func TestIsMisleaded(t *testing.T) {
	title := append([]byte("8&5f<R!!?71QOBCf<-E5"), ' ', ' ')
	if !IsMisleaded(title) {
		t.Error("known broken title not recognised")
	}
	if IsMisleaded([]byte("ordinary title")) {
		t.Error("ordinary title flagged as misleaded")
	}
}

func TestParseIndexDirectoryStyles(t *testing.T) {
	buf := make([]byte, 2048)
	buf[1] = 2    // index count
	buf[4] = 0x02 // global availability: style flags are present

	rec := buf[16:32]
	rec[0] = byte(IndexWordAsis)
	binary.BigEndian.PutUint32(rec[2:6], 100)
	binary.BigEndian.PutUint32(rec[6:10], 10)
	rec[10] = 2
	// Flags: katakana=asis (01), lower=convert (00), mark bits nonzero
	// (asis), everything else zero (convert).
	rec[11] = 0x40 | 0x04

	rec2 := buf[32:48]
	rec2[0] = byte(IndexMenu)
	binary.BigEndian.PutUint32(rec2[2:6], 200)

	records, err := ParseIndexDirectory(buf, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	r := records[0]
	if r.ID != IndexWordAsis || r.StartPage != 100 || r.PageCount != 10 {
		t.Fatalf("record 0 = %+v", r)
	}
	if r.Style.Katakana != StyleAsis {
		t.Errorf("Katakana = %v, want StyleAsis", r.Style.Katakana)
	}
	if r.Style.Lower != StyleConvert {
		t.Errorf("Lower = %v, want StyleConvert", r.Style.Lower)
	}
	if r.Style.Mark != StyleAsis {
		t.Errorf("Mark = %v, want StyleAsis for nonzero mark bits", r.Style.Mark)
	}
	if r.Style.Space != StyleDelete {
		t.Errorf("Space = %v, want StyleDelete for a JIS book", r.Style.Space)
	}

	if records[1].ID != IndexMenu || records[1].StartPage != 200 {
		t.Fatalf("record 1 = %+v", records[1])
	}
}

func TestParseMultiPage(t *testing.T) {
	buf := make([]byte, 2048)
	binary.BigEndian.PutUint16(buf[0:2], 1)

	entry := buf[16:]
	entry[0] = 2 // index count
	// JIS X 0208 label bytes for hiragana "ai".
	copy(entry[2:], []byte{0x24, 0x22, 0x24, 0x24, 0x00})

	idx := entry[2+maxMultiLabelLength:]
	idx[0] = multiIDWordAsis
	binary.BigEndian.PutUint32(idx[2:6], 300)
	idx2 := idx[16:]
	idx2[0] = multiIDCandidates
	binary.BigEndian.PutUint32(idx2[2:6], 400)

	entries, err := ParseMultiPage(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].StartPage != 300 || entries[0].CandidatesPage != 400 {
		t.Fatalf("entry = %+v", entries[0])
	}
	if entries[0].Label != "あい" {
		t.Fatalf("Label = %q, want %q", entries[0].Label, "あい")
	}
}
