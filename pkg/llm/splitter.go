package llm

import "strings"

const (
	thinkOpen  = "<thinking>"
	thinkClose = "</thinking>"
)

// thinkSplitter separates streamed model output into thought and answer
// text. Models instructed to reason inside <thinking>...</thinking>
// deliver the tags split across arbitrary chunk boundaries, so the
// splitter holds back any suffix that could be the start of a tag until
// the next delta resolves it.
type thinkSplitter struct {
	enabled bool
	state   splitState
	buf     string
}

type splitState int

const (
	stateScanOpen splitState = iota
	stateInThought
	statePassthrough
)

func newThinkSplitter(enabled bool) *thinkSplitter {
	return &thinkSplitter{enabled: enabled}
}

// feed consumes one delta and returns the thought and answer text it
// released. Either may be empty.
func (s *thinkSplitter) feed(delta string) (thought, text string) {
	if !s.enabled {
		return "", delta
	}
	s.buf += delta

	for {
		switch s.state {
		case stateScanOpen:
			if idx := strings.Index(s.buf, thinkOpen); idx >= 0 {
				text += s.buf[:idx]
				s.buf = s.buf[idx+len(thinkOpen):]
				s.state = stateInThought
				continue
			}
			held := tagPrefixLen(s.buf, thinkOpen)
			text += s.buf[:len(s.buf)-held]
			s.buf = s.buf[len(s.buf)-held:]
			return thought, text

		case stateInThought:
			if idx := strings.Index(s.buf, thinkClose); idx >= 0 {
				thought += s.buf[:idx]
				s.buf = s.buf[idx+len(thinkClose):]
				s.state = statePassthrough
				continue
			}
			held := tagPrefixLen(s.buf, thinkClose)
			thought += s.buf[:len(s.buf)-held]
			s.buf = s.buf[len(s.buf)-held:]
			return thought, text

		case statePassthrough:
			text += s.buf
			s.buf = ""
			return thought, text
		}
	}
}

// flush releases anything still held back at end of stream. An unclosed
// thought stays a thought; a partial tag was just literal text after all.
func (s *thinkSplitter) flush() (thought, text string) {
	if s.buf == "" {
		return "", ""
	}
	held := s.buf
	s.buf = ""
	switch s.state {
	case stateInThought:
		return held, ""
	default:
		return "", held
	}
}

// tagPrefixLen returns the length of the longest suffix of s that is a
// proper prefix of tag.
func tagPrefixLen(s, tag string) int {
	maxLen := len(tag) - 1
	if len(s) < maxLen {
		maxLen = len(s)
	}
	for k := maxLen; k > 0; k-- {
		if strings.HasSuffix(s, tag[:k]) {
			return k
		}
	}
	return 0
}
