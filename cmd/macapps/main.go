// Copyright (c) 2025, Gareth Watts
// All rights reserved.

// macapps lists the applications installed on a Mac.
//
// It runs system_profiler, or reads a previously captured
// `system_profiler -xml SPApplicationsDataType` export, and prints one
// record per application.
package main

import (
	"fmt"
	"os"

	"github.com/gwatts/macapps/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
