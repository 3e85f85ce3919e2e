package assistantmsg

import (
	"github.com/OnslaughtSnail/agenthost/kernel/errcode"
	"github.com/OnslaughtSnail/agenthost/kernel/toolvocab"
)

const (
	// DefaultMaxAccumulatorBytes caps the whole assistant message of one turn.
	DefaultMaxAccumulatorBytes = 1024 * 1024
	// DefaultMaxParamBytes caps one open parameter value.
	DefaultMaxParamBytes = 100 * 1024
)

// Limits bounds the memory one Parser may hold.
type Limits struct {
	// MaxAccumulatorBytes is a hard cap: a chunk that would grow the
	// accumulator past it fails with ErrBufferOverflow.
	MaxAccumulatorBytes int
	// MaxParamBytes is a soft cap: an open parameter that grows past it is
	// dropped and scanning continues inside the tool body.
	MaxParamBytes int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxAccumulatorBytes: DefaultMaxAccumulatorBytes,
		MaxParamBytes:       DefaultMaxParamBytes,
	}
}

func (l Limits) normalized() Limits {
	def := DefaultLimits()
	if l.MaxAccumulatorBytes <= 0 {
		l.MaxAccumulatorBytes = def.MaxAccumulatorBytes
	}
	if l.MaxParamBytes <= 0 {
		l.MaxParamBytes = def.MaxParamBytes
	}
	return l
}

// Option configures a Parser.
type Option func(*Parser)

// WithLimits overrides the size guards. Non-positive fields keep defaults.
func WithLimits(l Limits) Option {
	return func(p *Parser) {
		p.limits = l.normalized()
	}
}

// WithVocabulary replaces the process-wide tag vocabulary.
func WithVocabulary(v *toolvocab.Vocabulary) Option {
	return func(p *Parser) {
		if v != nil {
			p.vocab = v
		}
	}
}

// Parser classifies one turn of streamed assistant output. Each call to
// ProcessChunk scans only the bytes appended since the previous call.
// A Parser is owned by a single turn and is not safe for concurrent use.
type Parser struct {
	vocab  *toolvocab.Vocabulary
	limits Limits
	buf    []byte
	scan   *scanner
}

// NewParser returns a parser ready for the first chunk of a turn.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		vocab:  toolvocab.Default(),
		limits: DefaultLimits(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.scan = newScanner(p.vocab)
	p.scan.livePartialParams = true
	p.scan.maxParamBytes = p.limits.MaxParamBytes
	return p
}

// Reset returns the parser to its initial state. Limits and vocabulary are kept.
func (p *Parser) Reset() {
	p.buf = p.buf[:0]
	p.scan.reset()
}

// Limits returns the active size guards.
func (p *Parser) Limits() Limits {
	return p.limits
}

// Len returns the number of bytes accumulated in the current turn.
func (p *Parser) Len() int {
	return len(p.buf)
}

// ProcessChunk appends chunk to the accumulator, classifies the new suffix
// and returns a copy of the full block sequence. A chunk that would exceed
// the accumulator cap is rejected without changing parser state.
func (p *Parser) ProcessChunk(chunk string) ([]Block, error) {
	if len(p.buf)+len(chunk) > p.limits.MaxAccumulatorBytes {
		return nil, errcode.Wrap(errcode.ErrorCodeBufferOverflow, ErrBufferOverflow,
			"assistantmsg: accumulator would reach %d bytes (limit %d)", len(p.buf)+len(chunk), p.limits.MaxAccumulatorBytes)
	}
	from := len(p.buf)
	p.buf = append(p.buf, chunk...)
	p.scan.advance(p.buf, from)
	return p.Blocks(), nil
}

// Blocks returns a copy of the current sequence. The trailing partial block
// is deep-copied, since it is the only block the parser still mutates.
func (p *Parser) Blocks() []Block {
	out := make([]Block, len(p.scan.blocks))
	copy(out, p.scan.blocks)
	if n := len(out); n > 0 && out[n-1].IsPartial() {
		out[n-1] = Clone(out[n-1])
	}
	return out
}

// Finalize seals the sequence at end of stream: an open parameter keeps what
// it captured, every block becomes non-partial, text is trimmed and empty
// text blocks are dropped. Calling it again has no further effect.
func (p *Parser) Finalize() []Block {
	s := p.scan
	s.closeOpenParam(p.buf)
	s.textIdx = -1
	s.toolIdx = -1
	s.mode = modeText
	s.textStart = len(p.buf)
	s.blocks = seal(s.blocks)
	return p.Blocks()
}
