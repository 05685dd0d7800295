// Command tbot is a command-line client for the Telegram Bot API built on
// the telegrambot package.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
