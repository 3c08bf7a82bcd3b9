// Command pngtool is a thin smoke-test binary over the png package: it
// dumps a file's IHDR/ancillary metadata, or round-trip-decodes and
// re-encodes a file to check the pipeline end to end. It never imports
// the codec's internal packages — only the public API a real caller
// would use.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/pngcore/pngcodec"
)

func main() {
	infoCmd := flag.Bool("info", false, "print IHDR/ancillary metadata and exit")
	roundtrip := flag.String("roundtrip", "", "decode the input then re-encode to this path")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		log.Fatal("usage: pngtool [-info] [-roundtrip OUT] FILE.png")
	}

	f, err := os.Open(args[0])
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer f.Close()

	r := png.NewReader(f, png.Lenient())
	if err := r.Preamble(); err != nil {
		log.Fatalf("preamble: %v", err)
	}
	info := r.Info()

	if *infoCmd || *roundtrip == "" {
		printInfo(info)
	}
	for _, w := range r.Warnings() {
		fmt.Fprintf(os.Stderr, "warning: %v\n", w)
	}

	if *roundtrip == "" {
		return
	}

	rows := make([][]int, 0, info.Height)
	for {
		row, err := r.AsRGBA8()
		if err != nil {
			break
		}
		rows = append(rows, row)
	}

	out, err := os.Create(*roundtrip)
	if err != nil {
		log.Fatalf("create: %v", err)
	}
	defer out.Close()

	w, err := png.NewWriter(info.Width, info.Height, png.WithTrueColor(true))
	if err != nil {
		log.Fatalf("new writer: %v", err)
	}
	i := 0
	if err := w.Write(out, func() ([]int, error) {
		if i >= len(rows) {
			return nil, fmt.Errorf("short read")
		}
		row := rows[i]
		i++
		return row, nil
	}); err != nil {
		log.Fatalf("write: %v", err)
	}
}

func printInfo(info png.Info) {
	fmt.Printf("width=%d height=%d bitdepth=%d colortype=%d interlace=%d planes=%d\n",
		info.Width, info.Height, info.BitDepth, info.ColorType, info.Interlace, info.Planes())
	if info.Gamma != nil {
		fmt.Printf("gamma=%d\n", *info.Gamma)
	}
	if len(info.Palette) > 0 {
		fmt.Printf("palette entries=%d\n", len(info.Palette))
	}
	for _, t := range info.Text {
		fmt.Printf("text: %s=%q\n", t.Keyword, t.Text)
	}
}
