package assistantmsg

import (
	"bytes"
	"strings"

	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

type scanMode uint8

const (
	modeText scanMode = iota
	modeTool
	modeParam
)

var (
	contentOpenTag  = toolvocab.OpenTag(toolvocab.ParamContent)
	contentCloseTag = toolvocab.CloseTag(toolvocab.ParamContent)
)

// scanner is the classification core shared by Parser and Parse. It walks a
// byte buffer one offset at a time and keeps the open text/tool block as an
// index into blocks, never as a separate copy.
type scanner struct {
	vocab *toolvocab.Vocabulary

	// livePartialParams stores the growing value of an open parameter after
	// every advance so partial reads see it.
	livePartialParams bool
	// maxParamBytes abandons an open parameter once its value grows past
	// the limit. Zero disables the guard.
	maxParamBytes int

	blocks []Block
	mode   scanMode

	textIdx   int
	textStart int

	toolIdx   int
	toolStart int
	toolClose string
	// contentDropped is set when the soft cap abandoned the open tool's
	// content parameter; write_to_file recovery must not restore it.
	contentDropped bool

	param      toolvocab.ParamName
	paramStart int
	paramClose string
}

func newScanner(vocab *toolvocab.Vocabulary) *scanner {
	if vocab == nil {
		vocab = toolvocab.Default()
	}
	s := &scanner{vocab: vocab}
	s.reset()
	return s
}

func (s *scanner) reset() {
	s.blocks = nil
	s.mode = modeText
	s.textIdx = -1
	s.textStart = 0
	s.toolIdx = -1
	s.toolStart = 0
	s.toolClose = ""
	s.contentDropped = false
	s.param = ""
	s.paramStart = 0
	s.paramClose = ""
}

// advance classifies buf[from:]. Offsets before from were classified by an
// earlier call against the same, append-only buffer.
func (s *scanner) advance(buf []byte, from int) {
	for i := from; i < len(buf); i++ {
		if s.mode == modeParam {
			if toolvocab.EndsWithAt(buf, s.paramClose, i) {
				value := string(buf[s.paramStart : i-len(s.paramClose)+1])
				s.toolParams()[s.param] = closeParamValue(s.param, value)
				s.param = ""
				s.mode = modeTool
				// Fall through: the same offset is checked against tool-body rules.
			} else {
				if s.maxParamBytes > 0 && i+1-s.paramStart > s.maxParamBytes {
					delete(s.toolParams(), s.param)
					if s.param == toolvocab.ParamContent {
						s.contentDropped = true
					}
					s.param = ""
					s.paramStart = 0
					s.mode = modeTool
				}
				continue
			}
		}

		if s.mode == modeTool {
			if name, ok := s.vocab.ParamEndingAt(buf, i); ok {
				s.param = name
				s.paramStart = i + 1
				s.paramClose = toolvocab.CloseTag(name)
				s.mode = modeParam
				continue
			}
			if toolvocab.EndsWithAt(buf, s.toolClose, i) {
				tool := s.blocks[s.toolIdx].(ToolUseBlock)
				body := buf[s.toolStart : i-len(s.toolClose)+1]
				if tool.Name == toolvocab.ToolWriteToFile && !s.contentDropped {
					recoverWriteContent(tool.Params, body)
				}
				tool.Partial = false
				s.blocks[s.toolIdx] = tool
				s.toolIdx = -1
				s.mode = modeText
				s.textStart = i + 1
			}
			continue
		}

		if name, ok := s.vocab.ToolEndingAt(buf, i); ok {
			tagStart := i - len(toolvocab.OpenTag(name)) + 1
			s.closeText(buf, tagStart)
			s.blocks = append(s.blocks, ToolUseBlock{
				Name:    name,
				Params:  map[toolvocab.ParamName]string{},
				Partial: true,
			})
			s.toolIdx = len(s.blocks) - 1
			s.toolStart = i + 1
			s.toolClose = toolvocab.CloseTag(name)
			s.contentDropped = false
			s.mode = modeTool
			continue
		}
		if s.textIdx < 0 {
			s.textStart = i
			s.blocks = append(s.blocks, TextBlock{Partial: true})
			s.textIdx = len(s.blocks) - 1
		}
	}
	s.syncOpen(buf)
}

// closeText seals the text preceding a tool open tag that starts at end.
func (s *scanner) closeText(buf []byte, end int) {
	text := ""
	if end > s.textStart {
		text = strings.TrimSpace(string(buf[s.textStart:end]))
	}
	if s.textIdx >= 0 {
		if text == "" {
			s.blocks = append(s.blocks[:s.textIdx], s.blocks[s.textIdx+1:]...)
		} else {
			s.blocks[s.textIdx] = TextBlock{Content: text}
		}
		s.textIdx = -1
		return
	}
	if text != "" {
		s.blocks = append(s.blocks, TextBlock{Content: text})
	}
}

// syncOpen refreshes the visible content of the open text block and, when
// enabled, the partial value of the open parameter.
func (s *scanner) syncOpen(buf []byte) {
	if s.textIdx >= 0 {
		s.blocks[s.textIdx] = TextBlock{
			Content: strings.TrimSpace(string(buf[s.textStart:])),
			Partial: true,
		}
	}
	if s.mode == modeParam && s.livePartialParams {
		s.toolParams()[s.param] = string(buf[s.paramStart:])
	}
}

// closeOpenParam applies the close rule to whatever an open parameter has
// captured at end of input.
func (s *scanner) closeOpenParam(buf []byte) {
	if s.mode != modeParam {
		return
	}
	s.toolParams()[s.param] = closeParamValue(s.param, string(buf[s.paramStart:]))
	s.param = ""
	s.mode = modeTool
}

func (s *scanner) toolParams() map[toolvocab.ParamName]string {
	return s.blocks[s.toolIdx].(ToolUseBlock).Params
}

func closeParamValue(name toolvocab.ParamName, value string) string {
	if name == toolvocab.ParamContent {
		return stripOneNewline(value)
	}
	return strings.TrimSpace(value)
}

func stripOneNewline(value string) string {
	value = strings.TrimPrefix(value, "\n")
	return strings.TrimSuffix(value, "\n")
}

// recoverWriteContent re-derives the content parameter of a write_to_file
// body from the first <content> and the last </content>, so payloads that
// contain tag-like text are not cut at an inner close tag.
func recoverWriteContent(params map[toolvocab.ParamName]string, body []byte) {
	start := bytes.Index(body, []byte(contentOpenTag))
	if start < 0 {
		return
	}
	end := bytes.LastIndex(body, []byte(contentCloseTag))
	if end < 0 || end <= start {
		return
	}
	params[toolvocab.ParamContent] = stripOneNewline(string(body[start+len(contentOpenTag) : end]))
}

// seal marks every block complete, trims text and drops empty text blocks.
func seal(blocks []Block) []Block {
	out := blocks[:0]
	for _, b := range blocks {
		if text, ok := b.(TextBlock); ok {
			text.Content = strings.TrimSpace(text.Content)
			if text.Content == "" {
				continue
			}
			b = text
		}
		out = append(out, withPartial(b, false))
	}
	clear(blocks[len(out):])
	return out
}
