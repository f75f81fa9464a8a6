// Package gateway is the execution core: it renders inbound protocol
// requests into an agent prompt, supervises the agent subprocess, and
// re-encodes its output into the caller's wire protocol.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"codegate/internal/agentexec"
	"codegate/internal/agentstream"
	"codegate/internal/config"
	"codegate/internal/history"
	"codegate/internal/logging"
	"codegate/internal/observability"
	"codegate/internal/toolcall"
	"codegate/internal/wire"
	"codegate/internal/workspace"
)

// ErrBadRequest marks validation failures the HTTP layer maps to a 400.
var ErrBadRequest = errors.New("bad request")

// ErrExecution marks agent execution failures. A failed execution always
// surfaces as an error response, never as a success with empty content.
var ErrExecution = errors.New("agent execution failed")

// Executor is the subprocess supervision surface the gateway consumes.
// *agentexec.Supervisor implements it; tests substitute replay fakes.
type Executor interface {
	Execute(ctx context.Context, req agentexec.Request) agentexec.Result
	ExecuteStream(ctx context.Context, req agentexec.Request) (*agentexec.Stream, error)
	Ready() error
}

// FrameWriter delivers one encoded frame to the client. Implementations
// flush after each frame.
type FrameWriter func(wire.Frame) error

// Service handles both wire protocols over one agent supervisor.
type Service struct {
	model   string
	timeout time.Duration

	exec    Executor
	spaces  *workspace.Manager
	store   *history.Store
	metrics *observability.MetricsCollector
	logger  *logging.Logger
}

// New assembles the gateway. store may be nil to disable history.
func New(cfg *config.Config, exec Executor, spaces *workspace.Manager, store *history.Store, metrics *observability.MetricsCollector) *Service {
	return &Service{
		model:   cfg.Model,
		timeout: cfg.DefaultTimeout,
		exec:    exec,
		spaces:  spaces,
		store:   store,
		metrics: metrics,
		logger:  logging.NewComponentLogger("gateway"),
	}
}

// Ready reports whether the agent binary is resolvable.
func (s *Service) Ready() error {
	return s.exec.Ready()
}

// Model returns the single supported model identifier.
func (s *Service) Model() string {
	return s.model
}

// Recent returns the newest execution records, if history is enabled.
func (s *Service) Recent(ctx context.Context, limit int) ([]history.Record, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.Recent(ctx, limit)
}

// ChatComplete handles a buffered chat-completions request.
func (s *Service) ChatComplete(ctx context.Context, requestID string, req wire.ChatRequest) (wire.ChatResponse, error) {
	if err := s.validateChat(req); err != nil {
		return wire.ChatResponse{}, err
	}
	prompt := wire.RenderChatPrompt(req.Messages, req.Tools)

	text, call, err := s.runBuffered(ctx, requestID, "chat", prompt)
	if err != nil {
		return wire.ChatResponse{}, err
	}
	return wire.BuildChatResponse(s.model, text, call), nil
}

// Respond handles a buffered responses-protocol request.
func (s *Service) Respond(ctx context.Context, requestID string, req wire.ResponsesRequest) (wire.ResponsesResponse, error) {
	if err := s.validateResponses(req); err != nil {
		return wire.ResponsesResponse{}, err
	}
	prompt := wire.RenderResponsesPrompt(req.Input, req.Tools)

	text, call, err := s.runBuffered(ctx, requestID, "responses", prompt)
	if err != nil {
		return wire.ResponsesResponse{}, err
	}
	return wire.BuildResponsesResponse(s.model, text, call), nil
}

// ChatCompleteStream handles a streaming chat-completions request, writing
// chunk frames to write as agent events arrive.
func (s *Service) ChatCompleteStream(ctx context.Context, requestID string, req wire.ChatRequest, write FrameWriter) error {
	if err := s.validateChat(req); err != nil {
		return err
	}
	prompt := wire.RenderChatPrompt(req.Messages, req.Tools)
	return s.runStream(ctx, requestID, "chat", prompt, wire.NewChatEnvelope(s.model), write)
}

// RespondStream handles a streaming responses-protocol request.
func (s *Service) RespondStream(ctx context.Context, requestID string, req wire.ResponsesRequest, write FrameWriter) error {
	if err := s.validateResponses(req); err != nil {
		return err
	}
	prompt := wire.RenderResponsesPrompt(req.Input, req.Tools)
	return s.runStream(ctx, requestID, "responses", prompt, wire.NewResponsesEnvelope(s.model), write)
}

func (s *Service) validateChat(req wire.ChatRequest) error {
	if req.Model != s.model {
		return fmt.Errorf("%w: model %q is not supported, use %q", ErrBadRequest, req.Model, s.model)
	}
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: messages must not be empty", ErrBadRequest)
	}
	return nil
}

func (s *Service) validateResponses(req wire.ResponsesRequest) error {
	if req.Model != s.model {
		return fmt.Errorf("%w: model %q is not supported, use %q", ErrBadRequest, req.Model, s.model)
	}
	if len(req.Input) == 0 {
		return fmt.Errorf("%w: input must not be empty", ErrBadRequest)
	}
	return nil
}

// runBuffered executes the agent to completion and resolves the final text
// plus an optional extracted tool call.
func (s *Service) runBuffered(ctx context.Context, requestID, protocol, prompt string) (string, *toolcall.Call, error) {
	logger := s.logger.WithRequestID(requestID)

	workDir, cleanup, err := s.spaces.Provision(requestID)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	defer cleanup()

	start := time.Now()
	res := s.exec.Execute(ctx, agentexec.Request{
		Prompt:  prompt,
		WorkDir: workDir,
		Timeout: s.timeout,
	})
	duration := time.Since(start)

	if !res.Success {
		logger.Error("buffered %s execution failed: %s", protocol, res.Error)
		s.metrics.RecordExecution(ctx, protocol, "error", duration)
		s.record(requestID, protocol, false, false, "", res.Error, duration)
		return "", nil, fmt.Errorf("%w: %s", ErrExecution, res.Error)
	}

	text := s.finalText(res.Output)
	call, discarded := toolcall.Extract(text)
	s.metrics.RecordDiscardedToolCalls(ctx, discarded)

	finish := wire.FinishStop
	if call != nil {
		finish = wire.FinishToolCalls
	}
	logger.Info("buffered %s execution finished in %s finish=%s", protocol, duration.Round(time.Millisecond), finish)
	s.metrics.RecordExecution(ctx, protocol, "success", duration)
	s.record(requestID, protocol, false, true, finish, "", duration)
	return text, call, nil
}

// runStream drives one streaming execution: agent lines are parsed into
// events and encoded through the protocol envelope as they arrive.
func (s *Service) runStream(ctx context.Context, requestID, protocol, prompt string, env wire.Envelope, write FrameWriter) error {
	logger := s.logger.WithRequestID(requestID)

	workDir, cleanup, err := s.spaces.Provision(requestID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExecution, err)
	}
	defer cleanup()

	start := time.Now()
	stream, err := s.exec.ExecuteStream(ctx, agentexec.Request{
		Prompt:  prompt,
		WorkDir: workDir,
		Timeout: s.timeout,
	})
	if err != nil {
		s.metrics.RecordExecution(ctx, protocol, "error", time.Since(start))
		s.record(requestID, protocol, true, false, "", err.Error(), time.Since(start))
		return fmt.Errorf("%w: %v", ErrExecution, err)
	}
	defer stream.Close()

	s.metrics.StreamStarted(ctx)
	defer s.metrics.StreamEnded(ctx)

	enc := wire.NewStreamEncoder(env)
	if err := s.writeFrames(write, enc.Begin()); err != nil {
		return s.clientGone(logger, stream, err)
	}

	for line := range stream.Lines() {
		ev := agentstream.ParseLine([]byte(line))
		if ev == nil {
			s.metrics.RecordStreamLine(ctx, "discarded")
			continue
		}
		s.metrics.RecordStreamLine(ctx, "event")
		if err := s.writeFrames(write, enc.Encode(ev)); err != nil {
			return s.clientGone(logger, stream, err)
		}
	}

	duration := time.Since(start)
	if streamErr := stream.Err(); streamErr != nil {
		if errors.Is(streamErr, agentexec.ErrCancelled) {
			logger.Debug("streaming %s execution cancelled after %s", protocol, duration.Round(time.Millisecond))
			return nil
		}
		logger.Error("streaming %s execution failed: %v", protocol, streamErr)
		s.metrics.RecordExecution(ctx, protocol, "error", duration)
		s.record(requestID, protocol, true, false, "", streamErr.Error(), duration)
		if err := s.writeFrames(write, enc.Error(streamErr.Error())); err != nil {
			logger.Debug("client disconnected during error frame: %v", err)
		}
		return nil
	}

	// Synthesizes the finishing frame when the agent exited cleanly without
	// a terminal result event; a no-op if one was already encoded.
	if err := s.writeFrames(write, enc.Finish()); err != nil {
		return s.clientGone(logger, stream, err)
	}

	s.metrics.RecordDiscardedToolCalls(ctx, enc.Discarded())
	logger.Info("streaming %s execution finished in %s finish=%s", protocol, duration.Round(time.Millisecond), enc.FinishReason())
	s.metrics.RecordExecution(ctx, protocol, "success", duration)
	s.record(requestID, protocol, true, true, enc.FinishReason(), "", duration)
	return nil
}

func (s *Service) writeFrames(write FrameWriter, frames []wire.Frame) error {
	for _, f := range frames {
		if err := write(f); err != nil {
			return err
		}
	}
	return nil
}

// clientGone handles a write failure: the downstream connection closed, so
// the agent is terminated and the request ends quietly.
func (s *Service) clientGone(logger *logging.Logger, stream *agentexec.Stream, err error) error {
	logger.Debug("client disconnected, cancelling execution: %v", err)
	stream.Close()
	for range stream.Lines() {
	}
	return nil
}

// finalText resolves the buffered execution's final text: the last terminal
// result event in the output, else the raw output itself.
func (s *Service) finalText(output string) string {
	final := ""
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if res, ok := agentstream.ParseLine([]byte(line)).(agentstream.Result); ok {
			final = res.Text
		}
	}
	if final == "" {
		return strings.TrimSpace(output)
	}
	return final
}

func (s *Service) record(requestID, protocol string, streamed, success bool, finish, errMsg string, duration time.Duration) {
	if s.store == nil {
		return
	}
	rec := history.Record{
		RequestID: requestID,
		Protocol:  protocol,
		Model:     s.model,
		Streamed:  streamed,
		Success:   success,
		Finish:    finish,
		Error:     errMsg,
		Duration:  duration,
		CreatedAt: time.Now(),
	}
	// History writes ride on a short background context so a slow disk
	// cannot stall the response path.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.Append(ctx, rec); err != nil {
		s.logger.Warn("failed to record execution %s: %v", requestID, err)
	}
}
