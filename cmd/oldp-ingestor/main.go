// Command oldp-ingestor ingests legal data into Open Legal Data
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/openlegaldata/oldp-ingestor/internal/cli"
)

func main() {
	err := cli.Execute()
	if err == nil {
		return
	}

	var ee *cli.ExitError
	if errors.As(err, &ee) {
		if ee.Err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", ee.Err)
		}
		os.Exit(ee.Code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
