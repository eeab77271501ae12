/*
 *  main.go
 *  cmd
 *
 *  Created by Haibao Tang on 12/12/19
 *  Copyright © 2019 Haibao Tang. All rights reserved.
 */

package main

import (
	"os"

	"github.com/op/go-logging"
	"github.com/tanghaibao/rnaseqqc"
)

// main is the entrypoint for the entire program, routes to commands
func main() {
	logging.SetBackend(rnaseqqc.BackendFormatter)
	if err := rnaseqqc.Execute(); err != nil {
		os.Exit(1)
	}
}
