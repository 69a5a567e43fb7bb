package assets

import (
	_ "embed"
	"strings"
)

//go:embed help.html
var helpHTML string

// Help is the /help text in Telegram HTML.
func Help() string {
	return strings.TrimSpace(helpHTML)
}
