// Command ebfont binds a book, selects a subbook and font, and dumps
// one glyph as a PNG file.
package main

import (
	"flag"
	"fmt"
	"image/png"
	"os"

	ebx "github.com/mistydemeo/eb-sub000"
)

func main() {
	var (
		path      string
		subbook   int
		kindFlag  string
		height    int
		char      int
		out       string
	)

	flag.StringVar(&path, "book", "", "path to a book directory (containing CATALOG or CATALOGS)")
	flag.IntVar(&subbook, "subbook", 0, "subbook index")
	flag.StringVar(&kindFlag, "kind", "wide", "font kind: narrow or wide")
	flag.IntVar(&height, "height", 16, "font height: 16, 24, 30, or 48")
	flag.IntVar(&char, "char", 0, "packed (row<<8|cell) character number to dump")
	flag.StringVar(&out, "out", "glyph.png", "output PNG path")
	flag.Parse()

	if path == "" || char == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s -book=<dir> -char=N [-subbook=N] [-kind=narrow|wide] [-height=16|24|30|48] [-out=glyph.png]\n", os.Args[0])
		os.Exit(1)
	}

	var kind ebx.FontKind
	switch kindFlag {
	case "narrow":
		kind = ebx.FontNarrow
	case "wide":
		kind = ebx.FontWide
	default:
		fmt.Fprintf(os.Stderr, "bad -kind %q: want narrow or wide\n", kindFlag)
		os.Exit(1)
	}

	var fontHeight ebx.FontHeight
	switch height {
	case 16:
		fontHeight = ebx.FontHeight16
	case 24:
		fontHeight = ebx.FontHeight24
	case 30:
		fontHeight = ebx.FontHeight30
	case 48:
		fontHeight = ebx.FontHeight48
	default:
		fmt.Fprintf(os.Stderr, "bad -height %d: want 16, 24, 30, or 48\n", height)
		os.Exit(1)
	}

	book, err := ebx.Bind(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bind %s: %v\n", path, err)
		os.Exit(1)
	}
	defer book.Close()

	sb, err := book.SetSubbook(subbook)
	if err != nil {
		fmt.Fprintf(os.Stderr, "set subbook %d: %v\n", subbook, err)
		os.Exit(1)
	}

	f, err := sb.SetFont(kind, fontHeight)
	if err != nil {
		fmt.Fprintf(os.Stderr, "set font %s/%d: %v\n", kindFlag, height, err)
		os.Exit(1)
	}

	glyph, err := f.Glyph(char)
	if err != nil {
		fmt.Fprintf(os.Stderr, "glyph 0x%x: %v\n", char, err)
		os.Exit(1)
	}

	fp, err := os.Create(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", out, err)
		os.Exit(1)
	}
	defer fp.Close()

	if err := png.Encode(fp, glyph); err != nil {
		fmt.Fprintf(os.Stderr, "encode %s: %v\n", out, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (height=%d kind=%s char=0x%x)\n", out, height, kindFlag, char)
}
