package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

type TelemetryConfig struct {
	LogHandler slog.Handler
	Meter      metric.Meter
	Metrics    struct {
		ErrorCounter           metric.Int64Counter
		RequestCounter         metric.Int64Counter
		VersionGauge           metric.Int64Gauge
		RequestDuration        metric.Float64Histogram
		DBQueryDuration        metric.Float64Histogram
		SponsoredPostMutations metric.Int64Counter
	}
	Tracer trace.Tracer
}

// setupTelemetry initializes OTEL tracing, metrics, and logging. Metrics go
// to the Prometheus exporter unless OTLP is enabled; the log bridge and span
// export only exist with OTLP.
func setupTelemetry(ctx context.Context, config *Config) (*TelemetryConfig, func(context.Context) error, error) {
	telemetryConfig := &TelemetryConfig{}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNamespace("tsponsor"),
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTEL resource: %w", err)
	}

	var meterProvider *sdkmetric.MeterProvider

	if !config.OTLP {
		prometheusExporter, err := prometheus.New()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}

		meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(prometheusExporter),
		)
	} else {
		metricExporter, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithInsecure())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create OTEL metrics exporter: %w", err)
		}

		meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(
				sdkmetric.NewPeriodicReader(metricExporter),
			),
		)
	}

	otel.SetMeterProvider(meterProvider)
	telemetryConfig.Meter = meterProvider.Meter(config.ServiceName)

	var logProvider *sdklog.LoggerProvider

	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(config.TraceSampleRate)),
	}

	if config.OTLP {
		logExporter, err := otlploghttp.New(ctx,
			otlploghttp.WithCompression(otlploghttp.GzipCompression),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create log exporter: %w", err)
		}

		minSeverity := minsev.SeverityInfo
		if config.LogDebug {
			minSeverity = minsev.SeverityDebug
		}

		var processor sdklog.Processor = sdklog.NewBatchProcessor(logExporter, sdklog.WithExportBufferSize(512))
		processor = minsev.NewLogProcessor(processor, minSeverity)

		logProvider = sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(processor),
		)

		telemetryConfig.LogHandler = otelslog.NewHandler(
			config.ServiceName,
			otelslog.WithLoggerProvider(logProvider),
		)

		traceExporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

		traceOpts = append(traceOpts, sdktrace.WithBatcher(traceExporter,
			sdktrace.WithMaxExportBatchSize(config.TraceMaxBatchSize),
		))
	}

	if config.Logger != nil {
		config.Logger.Info("configured tracer with sampling",
			slog.Float64("rate", config.TraceSampleRate),
			slog.Bool("otlp", config.OTLP))
	}

	traceProvider := sdktrace.NewTracerProvider(traceOpts...)

	otel.SetTracerProvider(traceProvider)
	telemetryConfig.Tracer = traceProvider.Tracer(config.ServiceName)

	if err := initializeMetrics(telemetryConfig.Meter, telemetryConfig); err != nil {
		return nil, nil, err
	}

	cleanup := func(ctx context.Context) error {
		errs := []error{
			meterProvider.Shutdown(ctx),
			traceProvider.Shutdown(ctx),
		}

		if logProvider != nil {
			errs = append(errs, logProvider.Shutdown(ctx))
		}

		return errors.Join(errs...)
	}

	return telemetryConfig, cleanup, nil
}

// newSampler samples at rate, but always follows a sampled parent.
func newSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	}

	return sdktrace.ParentBased(
		sdktrace.TraceIDRatioBased(rate),
		sdktrace.WithRemoteParentSampled(sdktrace.AlwaysSample()),
		sdktrace.WithRemoteParentNotSampled(sdktrace.TraceIDRatioBased(rate)),
		sdktrace.WithLocalParentSampled(sdktrace.AlwaysSample()),
		sdktrace.WithLocalParentNotSampled(sdktrace.TraceIDRatioBased(rate)),
	)
}

func initializeMetrics(meter metric.Meter, tc *TelemetryConfig) error {
	var err error

	if tc.Metrics.ErrorCounter, err = meter.Int64Counter("http.server.errors",
		metric.WithDescription("HTTP responses with a 4xx or 5xx status"),
		metric.WithUnit("{error}"),
	); err != nil {
		return fmt.Errorf("create error counter: %w", err)
	}

	if tc.Metrics.RequestCounter, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return fmt.Errorf("create request counter: %w", err)
	}

	if tc.Metrics.RequestDuration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("create request duration histogram: %w", err)
	}

	if tc.Metrics.VersionGauge, err = meter.Int64Gauge("tsponsor.build.info",
		metric.WithDescription("Build version information"),
	); err != nil {
		return fmt.Errorf("create version gauge: %w", err)
	}

	if tc.Metrics.DBQueryDuration, err = meter.Float64Histogram("db.query.duration",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("create query duration histogram: %w", err)
	}

	if tc.Metrics.SponsoredPostMutations, err = meter.Int64Counter("tsponsor.sponsored_posts.mutations",
		metric.WithDescription("Sponsored posts created, updated and destroyed"),
		metric.WithUnit("{mutation}"),
	); err != nil {
		return fmt.Errorf("create mutation counter: %w", err)
	}

	return nil
}
