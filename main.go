package main

import (
	"os"

	"github.com/peerhive/peerhive/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
