package main

import (
	"fmt"
	"os"

	"github.com/tillberg/autorestart"

	"github.com/ayofemiade/ConvergsAI/internal/cli"
)

func main() {
	if os.Getenv("CONVERGS_AUTORESTART") == "1" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
