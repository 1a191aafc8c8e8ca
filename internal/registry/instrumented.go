package registry

import (
	"context"

	"github.com/RomainDECOSTER/scoutquest/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Instrumented wraps a Registry with tracing and structured logging on
// every operation. It adds no behavior of its own.
type Instrumented struct {
	next   Registry
	tracer trace.Tracer
}

// NewInstrumented wraps next with observability.
func NewInstrumented(next Registry) *Instrumented {
	return &Instrumented{
		next:   next,
		tracer: otel.Tracer("internal/registry"),
	}
}

func (i *Instrumented) Register(ctx context.Context, req RegisterRequest) (*Instance, error) {
	ctx, span := i.tracer.Start(ctx, "registry.Register", trace.WithAttributes(
		attribute.String("service.name", req.ServiceName),
		attribute.String("service.host", req.Host),
		attribute.Int("service.port", req.Port),
	))
	defer span.End()

	logger.L().InfoContext(ctx, "registering instance", "service", req.ServiceName, "host", req.Host, "port", req.Port)

	inst, err := i.next.Register(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "registration failed", "service", req.ServiceName, "error", err)
		return nil, err
	}

	span.SetAttributes(attribute.String("instance.id", inst.ID))
	return inst, nil
}

func (i *Instrumented) Deregister(ctx context.Context, instanceID string) (bool, error) {
	ctx, span := i.tracer.Start(ctx, "registry.Deregister", trace.WithAttributes(
		attribute.String("instance.id", instanceID),
	))
	defer span.End()

	logger.L().InfoContext(ctx, "deregistering instance", "id", instanceID)

	ok, err := i.next.Deregister(ctx, instanceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	return ok, nil
}

func (i *Instrumented) Heartbeat(ctx context.Context, instanceID string) (bool, error) {
	ctx, span := i.tracer.Start(ctx, "registry.Heartbeat", trace.WithAttributes(
		attribute.String("instance.id", instanceID),
	))
	defer span.End()

	ok, err := i.next.Heartbeat(ctx, instanceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	return ok, nil
}

func (i *Instrumented) UpdateStatus(ctx context.Context, instanceID string, status Status) (bool, error) {
	ctx, span := i.tracer.Start(ctx, "registry.UpdateStatus", trace.WithAttributes(
		attribute.String("instance.id", instanceID),
		attribute.String("instance.status", string(status)),
	))
	defer span.End()

	logger.L().InfoContext(ctx, "updating instance status", "id", instanceID, "status", status)

	ok, err := i.next.UpdateStatus(ctx, instanceID, status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	return ok, nil
}

func (i *Instrumented) ApplyHealthResult(ctx context.Context, instanceID string, healthy bool) error {
	ctx, span := i.tracer.Start(ctx, "registry.ApplyHealthResult", trace.WithAttributes(
		attribute.String("instance.id", instanceID),
		attribute.Bool("healthy", healthy),
	))
	defer span.End()

	err := i.next.ApplyHealthResult(ctx, instanceID, healthy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (i *Instrumented) ListAllServices(ctx context.Context) ([]*Service, error) {
	ctx, span := i.tracer.Start(ctx, "registry.ListAllServices")
	defer span.End()

	services, err := i.next.ListAllServices(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("service.count", len(services)))
	return services, nil
}

func (i *Instrumented) GetService(ctx context.Context, name string) (*Service, error) {
	ctx, span := i.tracer.Start(ctx, "registry.GetService", trace.WithAttributes(
		attribute.String("service.name", name),
	))
	defer span.End()

	svc, err := i.next.GetService(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return svc, nil
}

func (i *Instrumented) DeregisterService(ctx context.Context, name string) error {
	ctx, span := i.tracer.Start(ctx, "registry.DeregisterService", trace.WithAttributes(
		attribute.String("service.name", name),
	))
	defer span.End()

	logger.L().InfoContext(ctx, "deregistering service", "name", name)

	err := i.next.DeregisterService(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (i *Instrumented) GetServiceInstances(ctx context.Context, serviceName string, query DiscoveryQuery) ([]*Instance, error) {
	ctx, span := i.tracer.Start(ctx, "registry.GetServiceInstances", trace.WithAttributes(
		attribute.String("service.name", serviceName),
		attribute.Bool("query.healthy_only", query.HealthyOnlyOrDefault()),
	))
	defer span.End()

	instances, err := i.next.GetServiceInstances(ctx, serviceName, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("instance.count", len(instances)))
	return instances, nil
}

func (i *Instrumented) GetServicesByTag(ctx context.Context, tag string) ([]*Service, error) {
	ctx, span := i.tracer.Start(ctx, "registry.GetServicesByTag", trace.WithAttributes(
		attribute.String("tag", tag),
	))
	defer span.End()

	services, err := i.next.GetServicesByTag(ctx, tag)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return services, nil
}

func (i *Instrumented) AllInstances(ctx context.Context) ([]*Instance, error) {
	ctx, span := i.tracer.Start(ctx, "registry.AllInstances")
	defer span.End()

	instances, err := i.next.AllInstances(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return instances, nil
}

func (i *Instrumented) Stats(ctx context.Context) Stats {
	_, span := i.tracer.Start(ctx, "registry.Stats")
	defer span.End()
	return i.next.Stats(ctx)
}

var _ Registry = (*Instrumented)(nil)
