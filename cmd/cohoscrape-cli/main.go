package main

import (
	"context"

	"github.com/daveminay/cohoscrape/cmd/cohoscrape-cli/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
