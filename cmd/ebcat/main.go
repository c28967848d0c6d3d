// Command ebcat binds a book, lists its subbooks, runs a word search,
// and streams the matched articles' text to stdout.
package main

import (
	"flag"
	"fmt"
	"os"

	ebx "github.com/mistydemeo/eb-sub000"
)

func main() {
	var (
		path    string
		subbook int
		word    string
		list    bool
	)

	flag.StringVar(&path, "book", "", "path to a book directory (containing CATALOG or CATALOGS)")
	flag.IntVar(&subbook, "subbook", 0, "subbook index to search")
	flag.StringVar(&word, "word", "", "word to search for")
	flag.BoolVar(&list, "list", false, "list subbooks and exit")
	flag.Parse()

	if path == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -book=<dir> [-subbook=N] [-word=W] [-list]\n", os.Args[0])
		os.Exit(1)
	}

	book, err := ebx.Bind(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bind %s: %v\n", path, err)
		os.Exit(1)
	}
	defer book.Close()

	if list || word == "" {
		for i, sb := range book.Subbooks {
			fmt.Printf("%d: %s (%s)\n", i, sb.Title, sb.Directory)
		}
		if word == "" {
			return
		}
	}

	sb, err := book.SetSubbook(subbook)
	if err != nil {
		fmt.Fprintf(os.Stderr, "set subbook %d: %v\n", subbook, err)
		os.Exit(1)
	}

	hits, err := sb.SearchWord(word)
	if err != nil {
		fmt.Fprintf(os.Stderr, "search %q: %v\n", word, err)
		os.Exit(1)
	}
	fmt.Printf("%d hit(s) for %q\n", len(hits), word)

	buf := make([]byte, 4096)
	for _, hit := range hits {
		sb.SeekText(hit.Heading)
		n, err := sb.ReadHeading(buf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read heading: %v\n", err)
			continue
		}
		fmt.Printf("--- %s\n", buf[:n])

		sb.SeekText(hit.Text)
		for {
			n, err := sb.ReadText(buf)
			if n > 0 {
				os.Stdout.Write(buf[:n])
			}
			if err != nil || sb.EndOfArticle() || sb.EOF() {
				break
			}
		}
		fmt.Println()
	}
}
