package live

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kornella/anywaa/pkg/core/audio"
)

// CaptureBlockSize is the number of samples extracted per capture tick.
const CaptureBlockSize = 4096

// Source is an exclusive handle to one microphone input stream delivering
// normalized mono float samples at the capture rate. ReadBlock blocks until
// it can fill p, so tick cadence is driven by the audio subsystem's own
// buffering rather than an application timer; if the consumer falls behind,
// frames queue in the device buffer, not here.
type Source interface {
	ReadBlock(p []float32) (int, error)
	Close() error
}

// capture runs the periodic extraction loop: read the latest frame, encode
// it, hand the chunk to the session's send path.
type capture struct {
	src   Source
	block int
	send  func(audio.Chunk) error
}

func newCapture(src Source, send func(audio.Chunk) error) *capture {
	return &capture{src: src, block: CaptureBlockSize, send: send}
}

func (c *capture) run(ctx context.Context) error {
	buf := make([]float32, c.block)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := c.src.ReadBlock(buf)
		if n > 0 {
			chunk := audio.EncodeFrame(buf[:n], audio.CaptureRate)
			if sendErr := c.send(chunk); sendErr != nil {
				if errors.Is(sendErr, ErrSessionClosed) || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("send capture frame: %w", sendErr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read capture block: %w", err)
		}
	}
}
