package main

import (
	"context"
	"fmt"
	"os"

	"ledger/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background(), nil, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
