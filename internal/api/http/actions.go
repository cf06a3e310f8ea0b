package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shx815/simple-openhands/internal/api/middleware"
	"github.com/shx815/simple-openhands/internal/domain/command"
	"github.com/shx815/simple-openhands/internal/domain/jobs"
	"github.com/shx815/simple-openhands/internal/domain/session"
	"github.com/shx815/simple-openhands/internal/infrastructure/monitoring"
	"github.com/shx815/simple-openhands/internal/providers/filesystem"
	"github.com/shx815/simple-openhands/internal/shared/id"
	"github.com/shx815/simple-openhands/internal/shared/types"
)

// ExecuteAction dispatches one action to the shell or the file service
func (h *Handlers) ExecuteAction(c *gin.Context) {
	var req types.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Detail: "Invalid action request: " + err.Error()})
		return
	}

	kind := req.Action.Action
	switch kind {
	case types.ActionRun, types.ActionRead, types.ActionWrite, types.ActionEdit:
	default:
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Detail: "Unsupported action type: " + kind})
		return
	}

	rt, ok := h.runtime(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if h.tracer != nil {
		span, spanCtx := h.tracer.StartSpan(ctx, "action."+kind)
		ctx = spanCtx
		defer func() {
			span.SetStatus(c.Writer.Status())
			span.End()
		}()
	}

	if kind == types.ActionRun {
		h.run(ctx, c, rt, req.Action.Args)
		return
	}

	cwd, err := rt.Cwd()
	if err != nil {
		h.fail(c, err)
		return
	}

	args := req.Action.Args
	switch kind {
	case types.ActionRead:
		h.read(ctx, c, cwd, args)
	case types.ActionWrite:
		h.write(ctx, c, cwd, args)
	case types.ActionEdit:
		h.edit(ctx, c, cwd, args)
	}
}

func (h *Handlers) run(ctx context.Context, c *gin.Context, rt session.Runtime, args types.ActionArgs) {
	cmd := command.Command{
		Text:     args.Command,
		Blocking: args.Blocking,
		WorkDir:  args.Cwd,
		IsStatic: args.IsStatic,
		Hidden:   args.Hidden,
		IsInput:  args.IsInput,
		Thought:  args.Thought,
	}
	if args.Timeout != nil && *args.Timeout > 0 {
		cmd.Timeout = time.Duration(*args.Timeout * float64(time.Second))
	}

	obs, err := rt.Execute(ctx, cmd)
	if err != nil {
		h.fail(c, err)
		return
	}

	if list, err := rt.Jobs(); err == nil {
		h.updateActiveJobs(list)
	}
	c.JSON(http.StatusOK, runObservation(obs))
}

func (h *Handlers) read(ctx context.Context, c *gin.Context, cwd string, args types.ActionArgs) {
	full := filesystem.Resolve(cwd, args.Path)
	timer := monitoring.NewTimer(h.metrics, "filesystem", "read")

	res, err := h.files.Read(ctx, cwd, filesystem.ReadRequest{
		Path:   args.Path,
		Start:  args.Start,
		End:    args.End,
		Format: args.Format,
	})
	if err != nil {
		timer.Stop("error")
		c.JSON(http.StatusOK, types.Observation{
			Observation: types.ObservationRead,
			Content:     filesystem.Describe("reading", full, cwd, err),
			Extras:      types.FileExtras{Path: full},
		})
		return
	}

	timer.Stop("success")
	c.JSON(http.StatusOK, types.Observation{
		Observation: types.ObservationRead,
		Content:     res.Content,
		Extras: types.FileExtras{
			Path:     res.Path,
			Encoding: res.Encoding,
			MimeType: res.MimeType,
		},
	})
}

func (h *Handlers) write(ctx context.Context, c *gin.Context, cwd string, args types.ActionArgs) {
	timer := monitoring.NewTimer(h.metrics, "filesystem", "write")

	full, err := h.files.Write(ctx, cwd, args.Path, args.Content)
	content := "File written successfully"
	if err != nil {
		timer.Stop("error")
		h.logger.Warn("File write failed", zap.String("path", full), zap.Error(err))
		content = filesystem.Describe("writing", full, cwd, err)
	} else {
		timer.Stop("success")
	}

	c.JSON(http.StatusOK, types.Observation{
		Observation: types.ObservationWrite,
		Content:     content,
		Extras:      types.FileExtras{Path: full},
	})
}

func (h *Handlers) edit(ctx context.Context, c *gin.Context, cwd string, args types.ActionArgs) {
	full := filesystem.Resolve(cwd, args.Path)
	timer := monitoring.NewTimer(h.metrics, "filesystem", "edit")

	res, err := h.files.Edit(ctx, cwd, args.Path, args.Command, args.OldStr, args.NewStr)
	if err != nil {
		timer.Stop("error")
		c.JSON(http.StatusOK, types.Observation{
			Observation: types.ObservationEdit,
			Content:     filesystem.Describe("editing", full, "", err),
			Extras:      types.FileExtras{Path: full},
		})
		return
	}

	timer.Stop("success")
	c.JSON(http.StatusOK, types.Observation{
		Observation: types.ObservationEdit,
		Content:     "File edited successfully",
		Extras: types.FileExtras{
			Path:       res.Path,
			OldContent: res.OldContent,
			NewContent: res.NewContent,
		},
	})
}

func runObservation(obs *session.Observation) types.Observation {
	meta := types.RunMetadata{
		ExitCode:   obs.ExitCode,
		PID:        obs.PID,
		Username:   obs.Username,
		Hostname:   obs.Hostname,
		WorkingDir: obs.Cwd,
	}
	if !obs.IsStatic {
		meta.Prefix = obs.Prefix
		meta.Suffix = obs.Suffix
	}

	extras := types.RunExtras{
		Command:  obs.Command,
		ExitCode: obs.ExitCode,
		Cwd:      obs.Cwd,
		Running:  obs.Running,
		Hidden:   obs.Hidden,
		Metadata: meta,
	}
	if obs.JobID > 0 {
		jobID := obs.JobID
		extras.JobID = &jobID
	}

	return types.Observation{
		Observation: types.ObservationRun,
		Content:     obs.Content,
		Extras:      extras,
	}
}

// errorStatus maps protocol errors onto HTTP statuses
func errorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrCommandRunning):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoRunningCommand),
		errors.Is(err, session.ErrNoCommandToInteract),
		errors.Is(err, session.ErrUnsupported),
		errors.Is(err, command.ErrInvalidControl),
		errors.Is(err, command.ErrMultipleCommands):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionDead),
		errors.Is(err, session.ErrClosed),
		errors.Is(err, session.ErrNotInitialized),
		errors.Is(err, session.ErrNoSession):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorObservation(c *gin.Context, err error) types.Observation {
	errorID := middleware.GetRequestID(c)
	if errorID == "" {
		errorID = id.NewRequestID()
	}
	return types.Observation{
		Observation: types.ObservationError,
		Content:     "ERROR: " + err.Error(),
		Extras:      types.ErrorExtras{ErrorID: errorID},
	}
}
