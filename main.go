package main

import (
	"github.com/rs/zerolog"

	"github.com/BioHazard786/Warpcall/cmd"
	"github.com/BioHazard786/Warpcall/internal/logging"
)

func main() {
	logging.Init(zerolog.ErrorLevel)
	cmd.Execute()
}
