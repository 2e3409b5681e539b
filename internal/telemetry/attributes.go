// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing utilities for m3uproxy.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPUserAgentKey  = "http.user_agent"

	// Streaming attributes
	StreamChannelKey = "stream.channel"
	StreamProxyKey   = "stream.proxy"
	StreamModeKey    = "stream.mode"

	// Ingest attributes
	IngestSourceKey   = "ingest.source"
	IngestKindKey     = "ingest.kind"
	IngestChannelsKey = "ingest.channels"

	// Pipeline attributes
	PipelineProxyKey = "pipeline.proxy"
	PipelineStageKey = "pipeline.stage"

	// Job attributes
	JobTypeKey     = "job.type"
	JobStatusKey   = "job.status"
	JobDurationKey = "job.duration_ms"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// StreamAttributes creates streaming-proxy span attributes.
func StreamAttributes(channel, proxy, mode string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if channel != "" {
		attrs = append(attrs, attribute.String(StreamChannelKey, channel))
	}
	if proxy != "" {
		attrs = append(attrs, attribute.String(StreamProxyKey, proxy))
	}
	if mode != "" {
		attrs = append(attrs, attribute.String(StreamModeKey, mode))
	}
	return attrs
}

// IngestAttributes creates source-ingest span attributes.
func IngestAttributes(source, kind string, channels int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(IngestSourceKey, source),
		attribute.String(IngestKindKey, kind),
		attribute.Int(IngestChannelsKey, channels),
	}
}

// PipelineAttributes creates pipeline-run span attributes.
func PipelineAttributes(proxy, stage string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if proxy != "" {
		attrs = append(attrs, attribute.String(PipelineProxyKey, proxy))
	}
	if stage != "" {
		attrs = append(attrs, attribute.String(PipelineStageKey, stage))
	}
	return attrs
}

// JobAttributes creates job-related span attributes.
func JobAttributes(jobType, status string, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobTypeKey, jobType),
		attribute.String(JobStatusKey, status),
		attribute.Int64(JobDurationKey, durationMS),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
