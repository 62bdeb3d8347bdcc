package game

// HistoryWindow returns the most recent n messages. n <= 0 returns nothing.
func HistoryWindow(msgs []Message, n int) []Message {
	if n <= 0 || len(msgs) == 0 {
		return []Message{}
	}
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return cloneSlice(msgs)
}

// LastOfSpeaker returns up to n of the most recent messages from speaker,
// oldest first.
func LastOfSpeaker(msgs []Message, speaker Speaker, n int) []Message {
	var out []Message
	for i := len(msgs) - 1; i >= 0 && len(out) < n; i-- {
		if msgs[i].Speaker == speaker {
			out = append(out, msgs[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
