package main

import (
	"askdocs/internal/cli"
)

func main() {
	cli.Execute()
}
