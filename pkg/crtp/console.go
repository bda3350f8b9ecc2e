package crtp

// ConsoleResponse carries a fragment of the vehicle's debug console output.
type ConsoleResponse struct {
	Text string
}

// MatchConsoleResponse reports whether the ack payload is console text.
func MatchConsoleResponse(data []byte) bool {
	return len(data) >= 1 && Header(data[0]).Matches(NewHeader(PortConsole, 0))
}

// ParseConsoleResponse decodes a console packet. The text is not necessarily
// NUL-terminated; a terminator, if present, ends the fragment.
func ParseConsoleResponse(data []byte) *ConsoleResponse {
	text := data[1:]
	if i := indexNul(text); i < len(text) {
		text = text[:i]
	}
	return &ConsoleResponse{Text: string(text)}
}
