package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

const secretKeyBytes = 32

func runKeygen(cmd *cobra.Command, args []string) error {
	key, err := generateSecretKey(rand.Reader)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), key)
	return nil
}

// generateSecretKey returns secretKeyBytes random bytes, hex encoded the way
// SECRET_KEY expects them.
func generateSecretKey(r io.Reader) (string, error) {
	key := make([]byte, secretKeyBytes)
	if _, err := io.ReadFull(r, key); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(key), nil
}
