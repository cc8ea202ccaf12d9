// Command authcore is the operator tool for the authcore library: it issues
// and inspects tokens, provisions TOTP secrets, generates recovery codes and
// lints engine configuration.
package main

import (
	"os"

	"github.com/MrEthical07/authcore/cmd/authcore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
