// Command pdfmangle anonymizes a PDF file: it randomizes text and
// vector geometry, replaces images, filters metadata and scrubs
// auxiliary resources, while keeping the document structure intact.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/benoitkugler/pdfmangle/config"
	"github.com/benoitkugler/pdfmangle/mangle"
)

func check(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func main() {
	configPath := flag.String("config", "", "YAML configuration file (defaults apply when omitted)")
	seed := flag.Int64("seed", 0, "random seed, for reproducible runs (0 means time-based)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [options] input.pdf [output.pdf]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	input := flag.Arg(0)
	if input == "" {
		flag.Usage()
		os.Exit(1)
	}

	conf := config.Default()
	if *configPath != "" {
		var err error
		conf, err = config.Load(*configPath)
		check(err)
	}

	src := mangle.NewEntropySource()
	if *seed != 0 {
		src = mangle.NewSource(*seed)
	}
	log.Printf("mangling %s (seed %d)", input, src.Seed())

	m, err := mangle.NewFromFile(input, conf, src)
	check(err)
	check(m.Mangle())

	output := flag.Arg(1)
	if output == "" {
		// name the output after its mangled content, so the file
		// name leaks nothing either
		output = filepath.Join(filepath.Dir(input), m.HashName()+".pdf")
	}
	check(m.WriteFile(output))
	fmt.Println(output)
}
