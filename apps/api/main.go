package main

import (
	"flag"
	_ "net/http/pprof" // registers /debug/pprof on the debug server
)

func main() {
	withDig := flag.Bool("dig", false, "resolve dependencies with the dig container")
	flag.Parse()

	if *withDig {
		startWithDig()
		return
	}
	startManual()
}
