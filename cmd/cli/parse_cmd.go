package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/OnslaughtSnail/agenthost/kernel/assistantmsg"
)

func (e *cliEnv) runParse(ctx context.Context, args []string) error {
	fs, level := e.newFlagSet("parse")
	var (
		chunk    = fs.Int("chunk", 64, "Chunk size in bytes for incremental parsing")
		batch    = fs.Bool("batch", false, "Use the batch parser instead of streaming chunks")
		asJSON   = fs.Bool("json", false, "Print blocks as JSON")
		trace    = fs.Bool("trace", false, "Print the block list after every chunk")
		plain    = fs.Bool("plain", false, "Disable colors")
		maxBytes = fs.Int("max-bytes", e.cfg.Limits.MaxAccumulatorBytes, "Hard cap on accumulated bytes")
		maxParam = fs.Int("max-param-bytes", e.cfg.Limits.MaxParamBytes, "Soft cap on one parameter value")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := e.applyLogLevel(*level); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("parse: expected exactly one input (FILE or -)")
	}
	text, err := e.readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	printer := newBlockPrinter(e.stdout, *plain)

	var blocks []assistantmsg.Block
	if *batch {
		blocks = assistantmsg.Parse(text)
	} else {
		limits := assistantmsg.Limits{MaxAccumulatorBytes: *maxBytes, MaxParamBytes: *maxParam}
		blocks, err = e.parseChunks(ctx, text, *chunk, limits, func(n int, cur []assistantmsg.Block) {
			if !*trace {
				return
			}
			printer.dim.Fprintf(e.stdout, "-- chunk %d --\n", n)
			printer.printBlocks(cur)
		})
		if err != nil {
			return err
		}
	}
	if *asJSON {
		return writeBlocksJSON(e.stdout, blocks)
	}
	printer.printBlocks(blocks)
	printer.printSummary(blocks)
	return nil
}

// parseChunks feeds text to an incremental parser in size-byte chunks and
// returns the finalized blocks.
func (e *cliEnv) parseChunks(ctx context.Context, text string, size int, limits assistantmsg.Limits, onChunk func(int, []assistantmsg.Block)) ([]assistantmsg.Block, error) {
	if size <= 0 {
		size = len(text)
	}
	p := assistantmsg.NewParser(assistantmsg.WithLimits(limits))
	n := 0
	for start := 0; start < len(text); start += size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+size, len(text))
		blocks, err := p.ProcessChunk(text[start:end])
		if err != nil {
			e.log.WithFields(logrus.Fields{"chunk": n, "bytes": p.Len()}).WithError(err).Error("parse: chunk rejected")
			return nil, err
		}
		n++
		if onChunk != nil {
			onChunk(n, blocks)
		}
	}
	e.log.WithFields(logrus.Fields{"chunks": n, "bytes": p.Len()}).Debug("parse: finalized")
	return p.Finalize(), nil
}

func (e *cliEnv) readInput(path string) (string, error) {
	if path == "-" {
		raw, err := io.ReadAll(e.stdin)
		if err != nil {
			return "", fmt.Errorf("parse: read stdin: %w", err)
		}
		return string(raw), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}
	return string(raw), nil
}
