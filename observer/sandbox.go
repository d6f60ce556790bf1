package observer

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nevindra/warden"

	wardenlog "go.opentelemetry.io/otel/log"
)

// ObservedSandbox wraps a warden.Sandbox with OTEL instrumentation.
type ObservedSandbox struct {
	inner warden.Sandbox
	inst  *Instruments
}

var _ warden.Sandbox = (*ObservedSandbox)(nil)

// WrapSandbox returns an instrumented sandbox.
func WrapSandbox(inner warden.Sandbox, inst *Instruments) *ObservedSandbox {
	return &ObservedSandbox{inner: inner, inst: inst}
}

func (o *ObservedSandbox) Start(ctx context.Context, opts warden.StartOptions) (string, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "sandbox.start", trace.WithAttributes(
		AttrWorkingDir.String(opts.WorkingDir),
		AttrExpireSeconds.Int(opts.Expiry.OrDefault().Seconds()),
	))
	defer span.End()
	start := time.Now()

	containerID, err := o.inner.Start(ctx, opts)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(AttrContainerID.String(containerID))
	}

	o.inst.SandboxStarts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
	o.inst.StartDuration.Record(ctx, durationMs)

	// Structured log
	var rec wardenlog.Record
	rec.SetSeverity(wardenlog.SeverityInfo)
	rec.SetBody(wardenlog.StringValue("sandbox started"))
	rec.AddAttributes(
		wardenlog.String("sandbox.container_id", containerID),
		wardenlog.String("sandbox.status", status),
		wardenlog.Float64("sandbox.duration_ms", durationMs),
	)
	o.inst.Logger.Emit(ctx, rec)

	return containerID, err
}

func (o *ObservedSandbox) Execute(ctx context.Context, containerID string, command []string, timeout time.Duration) (warden.ExecResult, error) {
	cmd := strings.Join(command, " ")
	ctx, span := o.inst.Tracer.Start(ctx, "sandbox.exec", trace.WithAttributes(
		AttrContainerID.String(containerID),
		AttrCommand.String(cmd),
	))
	defer span.End()
	start := time.Now()

	result, err := o.inner.Execute(ctx, containerID, command, timeout)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if result.ExitCode != 0 {
		status = "command_error"
	}
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		AttrExitCode.Int(result.ExitCode),
		AttrStatus.String(status),
	)

	o.inst.ExecCommands.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
	o.inst.ExecDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.Int("exit_code", result.ExitCode),
	))

	// Structured log
	var rec wardenlog.Record
	rec.SetSeverity(wardenlog.SeverityInfo)
	rec.SetBody(wardenlog.StringValue("command executed"))
	rec.AddAttributes(
		wardenlog.String("sandbox.container_id", containerID),
		wardenlog.String("sandbox.command", cmd),
		wardenlog.Int("sandbox.exit_code", result.ExitCode),
		wardenlog.String("sandbox.status", status),
		wardenlog.Float64("sandbox.duration_ms", durationMs),
	)
	o.inst.Logger.Emit(ctx, rec)

	return result, err
}

func (o *ObservedSandbox) Stop(ctx context.Context, containerID string) error {
	ctx, span := o.inst.Tracer.Start(ctx, "sandbox.stop", trace.WithAttributes(
		AttrContainerID.String(containerID),
	))
	defer span.End()

	err := o.inner.Stop(ctx, containerID)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	o.inst.SandboxStops.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))

	// Structured log
	var rec wardenlog.Record
	rec.SetSeverity(wardenlog.SeverityInfo)
	rec.SetBody(wardenlog.StringValue("sandbox stopped"))
	rec.AddAttributes(
		wardenlog.String("sandbox.container_id", containerID),
		wardenlog.String("sandbox.status", status),
	)
	o.inst.Logger.Emit(ctx, rec)

	return err
}
