package assistantmsg

import (
	"errors"

	"github.com/OnslaughtSnail/agenthost/kernel/errcode"
)

// ErrBufferOverflow reports that a turn produced more assistant text than
// the accumulator accepts. The turn must be aborted.
var ErrBufferOverflow = errors.New("assistantmsg: buffer overflow")

// IsBufferOverflow reports whether err is, or wraps, a buffer overflow.
func IsBufferOverflow(err error) bool {
	return errors.Is(err, ErrBufferOverflow) || errcode.Is(err, errcode.ErrorCodeBufferOverflow)
}
