package adapter

import (
	"context"
	"io"
	"time"
)

// EncodeParams are the codec settings passed to the external encoder.
type EncodeParams struct {
	VideoCodec string
	AudioCodec string
	Strict     string
	Threads    int
	ExtraArgs  []string
}

// EncodeRequest describes one encoder invocation.
type EncodeRequest struct {
	InputPath  string
	OutputPath string
	Params     EncodeParams
}

// EncodeProcess is a running encoder. Progress carries machine-readable
// key=value records, Diagnostics carries free-form text. Both streams must be
// drained before Wait is called.
type EncodeProcess interface {
	Progress() io.Reader
	Diagnostics() io.Reader
	Wait() error
}

// Encoder probes inputs and launches encodes.
type Encoder interface {
	Probe(ctx context.Context, inputPath string) (time.Duration, error)
	Start(ctx context.Context, req EncodeRequest) (EncodeProcess, error)
}
