package main

import (
	"github.com/klubhuset/backend/internal/cli"
)

func main() {
	cli.Execute()
}
