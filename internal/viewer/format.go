package viewer

import "fmt"

const (
	bellEmoji      = "\U0001F514"
	mutedBellEmoji = "\U0001F515"
	trashEmoji     = "\U0001F5D1"

	firstEmoji = "⏮"
	backEmoji  = "◀"
	nextEmoji  = "▶"
	lastEmoji  = "⏭"
	stopEmoji  = "⏹"

	// default embed colour when the author has no accent colour set
	blurple = 0x5865F2
)

// Bell returns the bell emoji for an "on" state and the crossed-out bell
// otherwise.
func Bell(on bool) string {
	if on {
		return bellEmoji
	}
	return mutedBellEmoji
}

// NotifyText renders a toggle confirmation; format carries one %s that
// becomes "now" or "no longer".
func NotifyText(format string, on bool) string {
	word := "no longer"
	if on {
		word = "now"
	}
	return Bell(on) + fmt.Sprintf(format, word)
}
