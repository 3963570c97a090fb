// encryptkey seals a provider API key for config.yaml.
//
// Usage:
//
//	export AIROUTER_MASTER_KEY=$(openssl rand -hex 32)
//	go run ./cmd/tools/encryptkey sk-xxxx
//
// Paste the printed enc:aes256:... string as the provider's apiKey.
package main

import (
	"fmt"
	"os"

	"airouter/internal/crypto"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] == "" {
		fmt.Fprintln(os.Stderr, "usage: encryptkey <api-key>")
		fmt.Fprintf(os.Stderr, "       %s must hold 64 hex chars\n", crypto.MasterKeyEnv)
		os.Exit(1)
	}

	k, err := crypto.KeyringFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	sealed, err := k.Seal(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "seal failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(sealed)
}
