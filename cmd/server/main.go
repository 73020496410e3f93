package main

import (
	"os"

	"meetflow/internal/app"
)

func main() {
	os.Exit(app.Run())
}
