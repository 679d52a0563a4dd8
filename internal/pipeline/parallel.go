package pipeline

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/skypro1111/chunked-transcriber/internal/audio"
)

// transmitParallel submits up to MaxParallelRequests chunks at once. Results
// land in an index-tagged buffer, so ordering does not depend on completion
// order. The first failure cancels the remaining requests and no partial
// result is returned.
func (r *run) transmitParallel(ctx context.Context, encoded []audio.EncodedChunk) ([]Segment, *PipelineError) {
	total := len(encoded)
	segments := make([]Segment, total)

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.options.MaxParallelRequests)

	for i := range encoded {
		chunk := encoded[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return chunkError(PhaseTransmitting, chunk.Index, err)
			}
			mu.Lock()
			r.progress.emit(PhaseTransmitting, chunkPercent(percentTransmitting, percentCompleted-1, done, total), chunk.Index, total)
			mu.Unlock()

			resp, err := r.submit(gctx, chunkRequest(chunk))
			if err != nil {
				return chunkError(PhaseTransmitting, chunk.Index, err)
			}

			segments[i] = Segment{
				Index:        chunk.Index,
				Text:         resp.Text,
				StartSeconds: chunk.StartSeconds,
				EndSeconds:   chunk.EndSeconds,
			}

			mu.Lock()
			done++
			r.progress.emit(PhaseTransmitting, chunkPercent(percentTransmitting, percentCompleted-1, done, total), chunk.Index, total)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var perr *PipelineError
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, phaseError(PhaseTransmitting, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, phaseError(PhaseTransmitting, err)
	}

	return segments, nil
}
