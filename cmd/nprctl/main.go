package main

import (
	"os"

	"github.com/pesio-ai/be-ar-nonpayment/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
