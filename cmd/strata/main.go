// Command strata mints and continues strata traces from shells and CI jobs.
//
//	eval "$(strata env --export)"           # start a trace for child processes
//	curl -H "$(strata headers | head -1)" …  # continue it over HTTP
//	strata parse 771a43a4192642f0b136d5159a501700-1234567890abcdef-1
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
