package canvas

import (
	"context"
	"errors"

	"slackscribe/internal/services"
)

// Fetcher returns the raw block tree for a canvas.
type Fetcher interface {
	CanvasBlocks(ctx context.Context, canvasID, token string) ([]byte, error)
}

// Load fetches and parses a canvas. Any fetch or decode failure yields no
// references and an error marked ErrCanvasFetch; the upstream marker (auth,
// not found, transport) stays in the chain.
func Load(ctx context.Context, fetcher Fetcher, canvasID, token string, limit int) (Document, []AssetRef, error) {
	if fetcher == nil {
		return Document{ID: canvasID}, nil, services.Wrap(services.ErrCanvasFetch, "canvas", "fetch", "no canvas fetcher configured", nil)
	}
	raw, err := fetcher.CanvasBlocks(ctx, canvasID, token)
	if err != nil {
		return Document{ID: canvasID}, nil, services.Wrap(services.ErrCanvasFetch, "canvas", "fetch", canvasID, err)
	}
	blocks, err := DecodeBlocks(raw)
	if err != nil {
		return Document{ID: canvasID}, nil, services.Wrap(services.ErrCanvasFetch, "canvas", "decode", canvasID, err)
	}
	doc, refs := Parse(canvasID, blocks, limit)
	return doc, refs, nil
}

// IsFetchError reports whether err came from Load.
func IsFetchError(err error) bool {
	return errors.Is(err, services.ErrCanvasFetch)
}
