package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/skypro1111/chunked-transcriber/internal/audio"
	"github.com/skypro1111/chunked-transcriber/internal/metrics"
	"github.com/skypro1111/chunked-transcriber/internal/transcription"
)

// Options configures a Pipeline
type Options struct {
	Planner audio.PlannerConfig

	// MaxParallelRequests bounds in-flight chunk requests of one run. 1 sends
	// chunks strictly sequentially: chunk i+1 is not submitted before chunk i
	// has returned.
	MaxParallelRequests int
}

// Pipeline runs the decode, plan, slice, encode, transmit and assemble steps
type Pipeline struct {
	options     Options
	decoder     audio.Decoder
	transcriber transcription.Transcriber
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// New creates a Pipeline. m may be nil.
func New(options Options, decoder audio.Decoder, transcriber transcription.Transcriber,
	logger *slog.Logger, m *metrics.Metrics) (*Pipeline, error) {

	if err := options.Planner.Validate(); err != nil {
		return nil, fmt.Errorf("invalid planner config: %w", err)
	}
	if decoder == nil {
		return nil, fmt.Errorf("decoder cannot be nil")
	}
	if transcriber == nil {
		return nil, fmt.Errorf("transcriber cannot be nil")
	}
	if options.MaxParallelRequests <= 0 {
		options.MaxParallelRequests = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		options:     options,
		decoder:     decoder,
		transcriber: transcriber,
		logger:      logger,
		metrics:     m,
	}, nil
}

// WithLogger returns a copy of the pipeline that logs to logger
func (p *Pipeline) WithLogger(logger *slog.Logger) *Pipeline {
	clone := *p
	clone.logger = logger
	return &clone
}

// run carries the state of one Run call
type run struct {
	*Pipeline
	progress *progressTracker
	started  time.Time
}

// Run transcribes src. On failure it returns a *PipelineError and no partial
// transcript; nothing is retried.
func (p *Pipeline) Run(ctx context.Context, src audio.Source, observer ProgressFunc) (*Transcript, error) {
	r := &run{
		Pipeline: p,
		progress: newProgressTracker(observer),
		started:  time.Now(),
	}
	p.metrics.RecordRunStarted()

	transcript, mode, perr := r.execute(ctx, src)
	if perr != nil {
		r.progress.fail(perr)
		p.metrics.RecordRunFailed(string(perr.Phase), time.Since(r.started).Seconds())
		p.logger.Error("Transcription run failed",
			slog.String("phase", string(perr.Phase)),
			slog.Int("chunk_index", perr.ChunkIndex),
			slog.String("error", perr.Err.Error()),
			slog.Duration("elapsed", time.Since(r.started)),
		)
		return nil, perr
	}

	snapshot := r.progress.snapshot()
	r.progress.emit(PhaseCompleted, percentCompleted, -1, snapshot.TotalChunks)
	p.metrics.RecordRunCompleted(mode, time.Since(r.started).Seconds())
	p.logger.Info("Transcription run completed",
		slog.String("mode", mode),
		slog.Int("chunks", len(transcript.Segments)),
		slog.Float64("audio_duration", transcript.TotalDurationSeconds),
		slog.Duration("elapsed", time.Since(r.started)),
	)

	return transcript, nil
}

func (r *run) execute(ctx context.Context, src audio.Source) (*Transcript, string, *PipelineError) {
	// Decoding: duration probe only
	r.progress.emit(PhaseDecoding, percentDecoding, -1, 0)
	if err := ctx.Err(); err != nil {
		return nil, "", phaseError(PhaseDecoding, err)
	}
	phaseStart := time.Now()
	duration, err := r.decoder.Probe(ctx, src.Data, src.MIMEType)
	if err != nil {
		return nil, "", phaseError(PhaseDecoding, err)
	}
	r.metrics.RecordPhase(string(PhaseDecoding), time.Since(phaseStart).Seconds())
	src = src.WithDuration(duration)

	// Planning
	r.progress.emit(PhasePlanning, percentPlanning, -1, 0)
	if err := ctx.Err(); err != nil {
		return nil, "", phaseError(PhasePlanning, err)
	}
	plan, err := audio.PlanChunks(r.options.Planner, src.SizeBytes, src.DurationSeconds)
	if err != nil {
		return nil, "", phaseError(PhasePlanning, err)
	}
	r.metrics.RecordPlan(src.DurationSeconds, plan.ChunkCount)
	r.logger.Info("Chunk plan computed",
		slog.Int64("size_bytes", src.SizeBytes),
		slog.Float64("duration", src.DurationSeconds),
		slog.Float64("chunk_duration", plan.ChunkDurationSeconds),
		slog.Int("chunk_count", plan.ChunkCount),
	)

	if plan.Single() {
		transcript, perr := r.singleShot(ctx, src)
		return transcript, "single", perr
	}

	encoded, perr := r.prepareChunks(ctx, src, plan)
	if perr != nil {
		return nil, "", perr
	}

	segments, perr := r.transmit(ctx, encoded)
	if perr != nil {
		return nil, "", perr
	}

	transcript := AssembleTranscript(segments)
	return &transcript, "chunked", nil
}

// singleShot forwards the original bytes unmodified
func (r *run) singleShot(ctx context.Context, src audio.Source) (*Transcript, *PipelineError) {
	r.progress.emit(PhaseTransmitting, percentTransmitting, 0, 1)
	if err := ctx.Err(); err != nil {
		return nil, chunkError(PhaseTransmitting, 0, err)
	}

	filename := src.Filename
	if filename == "" {
		filename = "audio"
	}
	resp, err := r.submit(ctx, &transcription.Request{
		ChunkIndex: 0,
		Filename:   filename,
		MIMEType:   src.MIMEType,
		Audio:      src.Data,
	})
	if err != nil {
		return nil, chunkError(PhaseTransmitting, 0, err)
	}

	r.progress.emit(PhaseTransmitting, percentCompleted-1, 0, 1)
	transcript := SingleShotTranscript(resp.Text, src.DurationSeconds)
	return &transcript, nil
}

// prepareChunks decodes, slices and encodes the source. The decoded buffer
// and chunk views stay local to this call, so only the encoded WAV bytes
// outlive it.
func (r *run) prepareChunks(ctx context.Context, src audio.Source, plan audio.ChunkPlan) ([]audio.EncodedChunk, *PipelineError) {
	r.progress.emit(PhaseSlicing, percentSlicing, -1, plan.ChunkCount)
	phaseStart := time.Now()
	decoded, err := r.decoder.Decode(ctx, src.Data, src.MIMEType)
	if err != nil {
		return nil, phaseError(PhaseSlicing, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, phaseError(PhaseSlicing, err)
	}

	chunks, err := audio.SliceChunks(decoded, plan)
	if err != nil {
		return nil, phaseError(PhaseSlicing, err)
	}
	r.metrics.RecordPhase(string(PhaseSlicing), time.Since(phaseStart).Seconds())
	r.logger.Debug("Audio sliced",
		slog.Int("sample_rate", decoded.SampleRate),
		slog.Int("channels", decoded.ChannelCount()),
		slog.Float64("decoded_duration", decoded.Duration()),
		slog.Int("chunks", len(chunks)),
	)

	phaseStart = time.Now()
	encoded := make([]audio.EncodedChunk, 0, len(chunks))
	for i, chunk := range chunks {
		r.progress.emit(PhaseEncoding, chunkPercent(percentEncoding, percentTransmitting, i, len(chunks)), chunk.Index, len(chunks))
		if err := ctx.Err(); err != nil {
			return nil, chunkError(PhaseEncoding, chunk.Index, err)
		}
		ec, err := audio.EncodeChunk(chunk)
		if err != nil {
			return nil, chunkError(PhaseEncoding, chunk.Index, err)
		}
		r.metrics.RecordChunkEncoded(len(ec.WAV))
		encoded = append(encoded, ec)
	}
	r.metrics.RecordPhase(string(PhaseEncoding), time.Since(phaseStart).Seconds())

	return encoded, nil
}

// transmit submits the encoded chunks and returns their segments in index order
func (r *run) transmit(ctx context.Context, encoded []audio.EncodedChunk) ([]Segment, *PipelineError) {
	phaseStart := time.Now()
	defer func() {
		r.metrics.RecordPhase(string(PhaseTransmitting), time.Since(phaseStart).Seconds())
	}()

	if r.options.MaxParallelRequests > 1 && len(encoded) > 1 {
		return r.transmitParallel(ctx, encoded)
	}
	return r.transmitSequential(ctx, encoded)
}

func (r *run) transmitSequential(ctx context.Context, encoded []audio.EncodedChunk) ([]Segment, *PipelineError) {
	total := len(encoded)
	segments := make([]Segment, 0, total)

	for i := range encoded {
		chunk := encoded[i]
		r.progress.emit(PhaseTransmitting, chunkPercent(percentTransmitting, percentCompleted-1, i, total), chunk.Index, total)
		if err := ctx.Err(); err != nil {
			return nil, chunkError(PhaseTransmitting, chunk.Index, err)
		}

		resp, err := r.submit(ctx, chunkRequest(chunk))
		if err != nil {
			return nil, chunkError(PhaseTransmitting, chunk.Index, err)
		}
		encoded[i].WAV = nil

		segments = append(segments, Segment{
			Index:        chunk.Index,
			Text:         resp.Text,
			StartSeconds: chunk.StartSeconds,
			EndSeconds:   chunk.EndSeconds,
		})
		r.progress.emit(PhaseTransmitting, chunkPercent(percentTransmitting, percentCompleted-1, i+1, total), chunk.Index, total)
	}

	return segments, nil
}

func chunkRequest(chunk audio.EncodedChunk) *transcription.Request {
	return &transcription.Request{
		ChunkIndex: chunk.Index,
		Filename:   chunk.Filename(),
		MIMEType:   "audio/wav",
		Audio:      chunk.WAV,
	}
}

// submit sends one request with logging and metrics
func (r *run) submit(ctx context.Context, request *transcription.Request) (*transcription.Response, error) {
	start := time.Now()
	r.metrics.RecordTranscriptionRequest()

	resp, err := r.transcriber.Transcribe(ctx, request)
	if err != nil {
		status := "0"
		var reqErr *transcription.RequestError
		if errors.As(err, &reqErr) {
			status = strconv.Itoa(reqErr.StatusCode)
		}
		r.metrics.RecordTranscriptionFailure(status, time.Since(start).Seconds())
		return nil, err
	}

	r.metrics.RecordTranscriptionSuccess(time.Since(start).Seconds())
	r.logger.Debug("Chunk transcribed",
		slog.Int("chunk_index", request.ChunkIndex),
		slog.Int("audio_bytes", len(request.Audio)),
		slog.Int("text_length", len(resp.Text)),
		slog.Duration("response_time", time.Since(start)),
	)
	return resp, nil
}
