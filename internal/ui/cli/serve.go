package cli

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"

	"codeintel/internal/core/app"
	"codeintel/internal/core/errors"
	"codeintel/internal/core/ports"
	"codeintel/internal/shared/observability"

	"github.com/spf13/cobra"
)

// maxRequestBytes bounds one request line on stdin.
const maxRequestBytes = 4 << 20

type request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type response struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result any             `json:"result,omitempty"`
	Error  *responseError  `json:"error,omitempty"`
}

type responseError struct {
	Code    errors.ErrorCode      `json:"code"`
	Message string                `json:"message"`
	Context map[string]any        `json:"context,omitempty"`
	// Partial is set when a rename failed after writing some files; those
	// files stay rewritten.
	Partial *ports.RefactorResult `json:"partial,omitempty"`
}

func newServeCmd(opts *options) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer JSON requests on stdin, one per line, keeping caches warm between them",
		Long: "Each input line is {\"id\":..., \"method\":..., \"params\":{...}} and produces one output line.\n" +
			"Methods: symbol_search, dependencies, refactor, apply_plan, cancel_plan, health.",
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(ctx context.Context, rt *runtime) error {
				if watch || rt.cfg.Watch.Enabled {
					if err := rt.app.StartWatcher(); err != nil {
						return err
					}
				}
				health := app.NewHealthService(rt.app)
				if rt.cfg.Observability.Enabled {
					srv := observability.NewServer(rt.cfg.Observability.MetricsAddress, health.HealthFunc)
					if err := srv.Start(ctx); err != nil {
						return err
					}
					rt.cleanups = append(rt.cleanups, srv.Stop)
				}
				return serve(ctx, &dispatcher{app: rt.app, health: health}, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "invalidate caches on file changes (default from config)")
	return cmd
}

// serve handles requests until in is exhausted or ctx is done. Responses are
// written in request order.
func serve(ctx context.Context, d *dispatcher, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxRequestBytes)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		resp := response{}
		if err := json.Unmarshal(line, &req); err != nil {
			resp.Error = toResponseError(errors.Wrap(err, errors.CodeValidationError, "malformed request"))
		} else {
			resp.ID = req.ID
			resp.Result, resp.Error = d.dispatch(ctx, req)
		}
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

type dispatcher struct {
	app    *app.App
	health *app.HealthService
}

func (d *dispatcher) dispatch(ctx context.Context, req request) (any, *responseError) {
	slog.Debug("request", "method", req.Method)
	var (
		result any
		err    error
	)
	switch req.Method {
	case "symbol_search":
		var p ports.SymbolRequest
		if err = decodeParams(req.Params, &p); err == nil {
			result, err = d.app.SymbolSearch(ctx, p)
		}
	case "dependencies":
		var p ports.DependencyRequest
		if err = decodeParams(req.Params, &p); err == nil {
			result, err = d.app.Dependencies(ctx, p)
		}
	case "refactor":
		var p ports.RefactorRequest
		if err = decodeParams(req.Params, &p); err == nil {
			result, err = d.app.Refactor(ctx, p)
		}
	case "apply_plan":
		var p struct {
			PlanID string `json:"plan_id"`
		}
		if err = decodeParams(req.Params, &p); err == nil {
			result, err = d.app.ApplyPlan(ctx, p.PlanID)
		}
	case "cancel_plan":
		var p struct {
			PlanID string `json:"plan_id"`
		}
		if err = decodeParams(req.Params, &p); err == nil {
			if err = d.app.CancelPlan(ctx, p.PlanID); err == nil {
				result = cancelledPlan{PlanID: p.PlanID, State: "cancelled"}
			}
		}
	case "health":
		result = d.health.Check(ctx)
	default:
		err = errors.New(errors.CodeValidationError, fmt.Sprintf("unknown method %q", req.Method))
	}
	if err != nil {
		return nil, failure(result, err)
	}
	return result, nil
}

// failure converts err, keeping the writes a failed rename already made.
func failure(result any, err error) *responseError {
	rerr := toResponseError(err)
	if res, ok := result.(ports.RefactorResult); ok && (len(res.Written) > 0 || len(res.Backups) > 0) {
		rerr.Partial = &res
	}
	return rerr
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(err, errors.CodeValidationError, "invalid params")
	}
	return nil
}

func toResponseError(err error) *responseError {
	var de *errors.DomainError
	if stderrors.As(err, &de) {
		msg := de.Message
		if de.Err != nil {
			msg = fmt.Sprintf("%s: %v", msg, de.Err)
		}
		return &responseError{Code: de.Code, Message: msg, Context: de.Context}
	}
	return &responseError{Code: errors.CodeInternal, Message: err.Error()}
}
