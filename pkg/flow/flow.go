package flow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gomcpgo/lithophane_client/pkg/client"
	"github.com/gomcpgo/lithophane_client/pkg/metrics"
	"github.com/gomcpgo/lithophane_client/pkg/storage"
	"github.com/gomcpgo/lithophane_client/pkg/types"
)

// Options configures a Flow
type Options struct {
	Endpoint            string // recorded in artifact metadata
	Parameters          types.SubmissionParameters
	ArtifactFilename    string
	ArtifactContentType string
	MissingFilePolicy   string
	InFlightPolicy      string
	RequestTimeout      time.Duration // zero leaves the wait unbounded
	Logger              *zap.Logger
	Metrics             *metrics.Collector
}

// Flow drives the select → submit → expose cycle for a single artifact
type Flow struct {
	client  client.Client
	store   *storage.Storage
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Collector

	lifetime context.Context
	stop     context.CancelFunc

	mu      sync.Mutex
	state   State
	current *submission
	changed chan struct{}
	closed  bool

	wg sync.WaitGroup
}

// submission is one in-flight generate call
type submission struct {
	id      string
	file    *types.SelectedFile
	params  types.SubmissionParameters
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time

	done     chan struct{}
	artifact *types.ResultArtifact
	err      error
}

// New creates a flow in the idle state
func New(c client.Client, store *storage.Storage, opts Options) *Flow {
	if opts.ArtifactFilename == "" {
		opts.ArtifactFilename = types.DefaultArtifactFilename
	}
	if opts.ArtifactContentType == "" {
		opts.ArtifactContentType = types.DefaultArtifactContentType
	}
	if opts.MissingFilePolicy == "" {
		opts.MissingFilePolicy = types.MissingFileReject
	}
	if opts.InFlightPolicy == "" {
		opts.InFlightPolicy = types.InFlightSupersede
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lifetime, stop := context.WithCancel(context.Background())
	return &Flow{
		client:   c,
		store:    store,
		opts:     opts,
		logger:   logger.With(zap.String("component", "flow")),
		metrics:  opts.Metrics,
		lifetime: lifetime,
		stop:     stop,
		state:    InitialState(),
		changed:  make(chan struct{}),
	}
}

// Snapshot returns the current state
func (f *Flow) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Options returns the options the flow was built with
func (f *Flow) Options() Options {
	return f.opts
}

// SelectFile replaces the selected file. The current artifact is not affected.
func (f *Flow) SelectFile(file *types.SelectedFile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.transition(FileSelected{File: file})

	if file != nil {
		f.logger.Debug("file selected",
			zap.String("name", file.Name),
			zap.String("content_type", file.ContentType),
			zap.Int("size", file.Size()),
		)
	}
	return nil
}

// Submit uploads the selected file and blocks until the artifact is stored or
// the submission fails. Failures are also recorded in the state and the log.
func (f *Flow) Submit(ctx context.Context) (*types.ResultArtifact, error) {
	sub, joined, err := f.begin(ctx)
	if err != nil {
		return nil, err
	}
	if joined {
		select {
		case <-sub.done:
			return sub.artifact, sub.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.execute(sub)
	return sub.artifact, sub.err
}

// Start begins a submission bound to the flow lifetime and returns its ID
// without waiting. Use Wait to observe the outcome.
func (f *Flow) Start() (string, error) {
	sub, joined, err := f.begin(f.lifetime)
	if err != nil {
		return "", err
	}
	if !joined {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.execute(sub)
		}()
	}
	return sub.id, nil
}

// Wait blocks until no submission is in flight and returns the state
func (f *Flow) Wait(ctx context.Context) (State, error) {
	for {
		f.mu.Lock()
		st := f.state
		ch := f.changed
		closed := f.closed
		f.mu.Unlock()

		if st.Status != types.StatusSubmitting || closed {
			return st, nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Close cancels any in-flight submission, releases the live artifact and
// makes further operations fail with ErrClosed.
func (f *Flow) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	artifact := f.state.Artifact
	f.transition(TornDown{})
	f.mu.Unlock()

	f.stop()
	f.wg.Wait()

	if artifact != nil {
		return f.release(artifact)
	}
	return nil
}

// begin applies the missing-file and in-flight policies and, when a new
// submission is allowed, moves the flow to submitting.
func (f *Flow) begin(ctx context.Context) (*submission, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, false, ErrClosed
	}

	st := f.state
	if !st.HasFile() && f.opts.MissingFilePolicy != types.MissingFileAllow {
		f.metrics.RecordSubmission(metrics.OutcomeRejected, 0)
		f.logger.Warn("submit rejected", zap.Error(ErrNoFileSelected))
		return nil, false, ErrNoFileSelected
	}

	if f.current != nil {
		switch f.opts.InFlightPolicy {
		case types.InFlightReject:
			f.metrics.RecordSubmission(metrics.OutcomeRejected, 0)
			f.logger.Debug("submit rejected", zap.String("inflight", f.current.id))
			return nil, false, ErrSubmissionInFlight
		case types.InFlightJoin:
			f.logger.Debug("joining in-flight submission", zap.String("submission_id", f.current.id))
			return f.current, true, nil
		default:
			f.logger.Info("superseding in-flight submission", zap.String("submission_id", f.current.id))
			f.current.cancel()
		}
	}

	subCtx, cancel := context.WithCancel(ctx)
	stopAfter := context.AfterFunc(f.lifetime, cancel)
	if f.opts.RequestTimeout > 0 {
		var cancelTimeout context.CancelFunc
		subCtx, cancelTimeout = context.WithTimeout(subCtx, f.opts.RequestTimeout)
		parentCancel := cancel
		cancel = func() {
			cancelTimeout()
			parentCancel()
		}
	}
	release := cancel
	cancel = func() {
		stopAfter()
		release()
	}

	sub := &submission{
		id:      uuid.NewString(),
		file:    st.File,
		params:  f.opts.Parameters,
		ctx:     subCtx,
		cancel:  cancel,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	f.current = sub
	f.transition(SubmitStarted{SubmissionID: sub.id})
	return sub, false, nil
}

// execute performs the generate call and stores the payload
func (f *Flow) execute(sub *submission) {
	defer sub.cancel()

	f.metrics.InFlight(1)
	resp, err := f.client.Generate(sub.ctx, &types.Submission{
		ID:         sub.id,
		File:       sub.file,
		Parameters: sub.params,
	})
	f.metrics.InFlight(-1)

	var artifact *types.ResultArtifact
	if err == nil {
		artifact, err = f.store.Save(storage.SaveRequest{
			SubmissionID:   sub.id,
			Filename:       f.opts.ArtifactFilename,
			ContentType:    f.opts.ArtifactContentType,
			RemoteFilename: resp.RemoteFilename,
			Data:           resp.Data,
			Metadata:       f.metadata(sub),
		})
		if err != nil {
			err = &types.SubmissionError{SubmissionID: sub.id, Message: "failed to store artifact", Err: err}
		}
	}

	f.finish(sub, artifact, err)
}

func (f *Flow) metadata(sub *submission) *types.ArtifactMetadata {
	m := &types.ArtifactMetadata{
		Endpoint:   f.opts.Endpoint,
		Parameters: sub.params.AsMap(),
		Result: &types.ArtifactResult{
			Duration: time.Since(sub.started).Seconds(),
		},
	}
	if sub.file != nil {
		m.Source = &types.SourceInfo{
			Name:        sub.file.Name,
			ContentType: sub.file.ContentType,
			Size:        sub.file.Size(),
		}
	}
	return m
}

// finish records the outcome of sub. Outcomes of superseded submissions are
// dropped and their artifacts released.
func (f *Flow) finish(sub *submission, artifact *types.ResultArtifact, err error) {
	defer close(sub.done)
	duration := time.Since(sub.started)

	f.mu.Lock()
	if f.closed || f.current != sub {
		closed := f.closed
		if f.current == sub {
			f.current = nil
		}
		f.mu.Unlock()

		if artifact != nil {
			f.release(artifact)
		}
		sub.err = ErrSuperseded
		if closed {
			sub.err = ErrClosed
		}
		f.metrics.RecordSubmission(metrics.OutcomeSuperseded, duration)
		f.logger.Debug("discarding stale submission outcome", zap.String("submission_id", sub.id), zap.Error(err))
		return
	}
	f.current = nil

	if err != nil {
		f.transition(SubmitFailed{SubmissionID: sub.id, Err: err})
		f.mu.Unlock()

		sub.err = err
		f.metrics.RecordSubmission(metrics.OutcomeFailure, duration)
		f.logger.Error("submission failed",
			zap.String("submission_id", sub.id),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	previous := f.state.Artifact
	f.transition(SubmitSucceeded{SubmissionID: sub.id, Artifact: artifact})
	f.mu.Unlock()

	if previous != nil {
		f.release(previous)
	}

	sub.artifact = artifact
	f.metrics.RecordSubmission(metrics.OutcomeSuccess, duration)
	f.metrics.RecordArtifact(artifact.Size)
	f.logger.Info("artifact ready",
		zap.String("submission_id", sub.id),
		zap.String("artifact_id", artifact.ID),
		zap.Int64("size", artifact.Size),
		zap.Duration("duration", duration),
	)
}

func (f *Flow) release(artifact *types.ResultArtifact) error {
	if err := f.store.Release(artifact.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		f.logger.Warn("failed to release artifact", zap.String("artifact_id", artifact.ID), zap.Error(err))
		return err
	}
	f.metrics.RecordRelease()
	return nil
}

// transition must be called with f.mu held
func (f *Flow) transition(a Action) {
	prev := f.state
	f.state = Reduce(prev, a)
	f.metrics.RecordTransition(prev.Status, f.state.Status)

	close(f.changed)
	f.changed = make(chan struct{})
}
