package cache

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("@agentuity/go-dbcache/cache")

const (
	attrKey        = attribute.Key("dbcache.key")
	attrProvenance = attribute.Key("dbcache.provenance")
	attrPolicy     = attribute.Key("dbcache.policy")
	attrItems      = attribute.Key("dbcache.items")
)

func spanError(span trace.Span, err error) {
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}
