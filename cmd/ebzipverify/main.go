// Command ebzipverify reads a single compressed stream file end to
// end through internal/zio and reports whether it decodes cleanly and,
// for EBZIP streams, whether the decoded bytes match the CRC-32
// recorded in the stream's own header. This is a bulk-verification
// tool, not something the core streaming reader needs at read time.
package main

import (
	"flag"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/mistydemeo/eb-sub000/internal/blockdev"
	"github.com/mistydemeo/eb-sub000/internal/zio"
)

var kinds = map[string]zio.Kind{
	"plain":   zio.KindPlain,
	"ebzip":   zio.KindEBZIP,
	"epwing":  zio.KindEPWING,
	"epwing6": zio.KindEPWING6,
}

func main() {
	var file, kindName string
	flag.StringVar(&file, "file", "", "compressed stream file")
	flag.StringVar(&kindName, "kind", "ebzip", "stream kind: plain, ebzip, epwing, epwing6")
	flag.Parse()

	if file == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -file=<path> [-kind=ebzip]\n", os.Args[0])
		os.Exit(1)
	}
	kind, ok := kinds[kindName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown kind %q\n", kindName)
		os.Exit(1)
	}

	dev, err := blockdev.Open(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	stream, err := zio.Open(dev, kind, zio.Params{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open stream: %v\n", err)
		os.Exit(1)
	}
	defer stream.Close()

	size := stream.Size()
	digest := crc32.NewIEEE()
	buf := make([]byte, 64*1024)
	var total int64
	for total < size {
		n := len(buf)
		if int64(n) > size-total {
			n = int(size - total)
		}
		if err := stream.ReadFull(buf[:n]); err != nil {
			fmt.Fprintf(os.Stderr, "read at %d: %v\n", total, err)
			os.Exit(1)
		}
		digest.Write(buf[:n])
		total += int64(n)
	}
	fmt.Printf("decoded %d bytes\n", total)

	want, hasCRC := stream.EBZIPCRC32()
	if !hasCRC {
		fmt.Println("no stored checksum for this stream kind")
		return
	}
	got := digest.Sum32()
	if got != want {
		fmt.Printf("CRC mismatch: stored %08x, computed %08x\n", want, got)
		os.Exit(1)
	}
	fmt.Printf("CRC OK: %08x\n", got)
}
