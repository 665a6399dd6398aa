// cmd/genkey prints a fresh ENCRYPTION_KEY.
// Usage: go run ./cmd/genkey
package main

import (
	"fmt"
	"os"

	"github.com/CT14090/meal-plan-verification/internal/vault"
)

func main() {
	key, err := vault.GenerateKey()
	if err != nil {
		fmt.Fprintln(os.Stderr, "genkey:", err)
		os.Exit(1)
	}
	fmt.Println(key)
}
