// Command opgrants creates, fetches and completes Open Payments incoming
// payments on remote wallets, caching the grants it needs in a SQL database.
package main

import "os"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
