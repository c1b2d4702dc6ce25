// Command tallycli counts whitespace-separated values from stdin or files
// and prints the most frequent one.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pscheid92/tallyd/pkg/tally"
)

func main() {
	topK := flag.Int("top", 0, "also print the top K values by count")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [file ...]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Reads whitespace-separated values from the given files (or stdin) and")
		fmt.Fprintln(flag.CommandLine.Output(), "prints the most frequent value. Ties go to the value seen first.")
		fmt.Fprintln(flag.CommandLine.Output())
		flag.PrintDefaults()
	}
	flag.Parse()

	counter := tally.New[string]()

	if flag.NArg() == 0 {
		if err := scanInto(counter, os.Stdin); err != nil {
			fmt.Fprintf(os.Stderr, "tallycli: %v\n", err)
			os.Exit(1)
		}
	} else {
		for _, path := range flag.Args() {
			if err := scanFile(counter, path); err != nil {
				fmt.Fprintf(os.Stderr, "tallycli: %v\n", err)
				os.Exit(1)
			}
		}
	}

	mode, ok := counter.Mode()
	if !ok {
		fmt.Fprintln(os.Stderr, "tallycli: no values in input")
		os.Exit(1)
	}

	fmt.Printf("%s\t%d\n", mode.Value, mode.Count)

	if *topK > 0 {
		fmt.Println()
		for _, e := range counter.Top(*topK) {
			fmt.Printf("%s\t%d\n", e.Value, e.Count)
		}
	}
}

func scanFile(counter *tally.Tally[string], path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return scanInto(counter, f)
}

func scanInto(counter *tally.Tally[string], r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		counter.Add(sc.Text())
	}
	return sc.Err()
}
