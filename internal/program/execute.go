package program

import (
	"context"
	"errors"

	"github.com/cascade-run/cascade/internal/delegate"
	"github.com/cascade-run/cascade/internal/executor"
	"github.com/cascade-run/cascade/internal/format"
	"github.com/cascade-run/cascade/internal/handler"
	"github.com/cascade-run/cascade/internal/lookup"
)

// execute dispatches every step of prog in order, streaming each step's
// executor.Output through format.ExecutorResult/ExecutorError to the
// delegate. An executor error ends that step's stream and is reported as
// an apology, per spec.md §7's rule that executor errors do not cancel
// the session; execution of any remaining steps still proceeds.
func (h *Handler) execute(ctx context.Context, prog *Program) error {
	if h.cfg.Executors == nil {
		return parseErrorf("no executor registered")
	}
	for _, step := range prog.Steps {
		if err := h.executeStep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) executeStep(ctx context.Context, step *handler.ProgramAST) error {
	out, err := h.cfg.Executors.Dispatch(ctx, step)
	if err != nil {
		if errors.Is(err, executor.ErrNoExecutor) {
			delegate.Emit(stepSink{h.cfg.Session.Delegate}, &handler.ReplyResult{
				Messages: []handler.ReplyMessage{format.ExecutorError("I don't know how to do that yet", h.cfg.Icon)},
			})
			return nil
		}
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case o, ok := <-out:
			if !ok {
				return nil
			}
			if o.Err != nil {
				delegate.Emit(stepSink{h.cfg.Session.Delegate}, &handler.ReplyResult{
					Messages: []handler.ReplyMessage{format.ExecutorError(o.Err.Error(), h.cfg.Icon)},
				})
				continue
			}
			h.fillRDLPreview(ctx, &o)
			delegate.Emit(stepSink{h.cfg.Session.Delegate}, &handler.ReplyResult{
				Messages: format.ExecutorResult(o.OutputType, o.OutputValue, h.cfg.Icon),
			})
		}
	}
}

// stepSink forwards every frame except AskSpecial, so streamed step
// results leave the turn's single trailing AskSpecial to the final reply
// GetReply returns.
type stepSink struct{ delegate.Delegate }

func (stepSink) SendAskSpecial(handler.AskSpecialKind) {}

// fillRDLPreview populates a webCallback RDL's Description with fetched-
// page markdown when the executor didn't already provide one. A fetch
// failure or an unconfigured PreviewClient just leaves the RDL as the
// executor built it; a missing preview is not an execution error.
func (h *Handler) fillRDLPreview(ctx context.Context, o *executor.Output) {
	if o.OutputType != "rdl" || h.cfg.PreviewClient == nil {
		return
	}
	rdl, ok := o.OutputValue.(handler.RDL)
	if !ok || rdl.WebCallback == "" || rdl.Description != "" {
		return
	}
	title, markdown, err := lookup.RenderPreview(ctx, h.cfg.PreviewClient, rdl.WebCallback, h.cfg.PreviewUserAgent)
	if err != nil {
		return
	}
	if rdl.DisplayTitle == "" {
		rdl.DisplayTitle = title
	}
	rdl.Description = markdown
	o.OutputValue = rdl
}
