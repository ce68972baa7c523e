// Package adapter contains implementations of the collaborator interfaces
// defined in guard. DynamoDB, Redis, and AWS key-material adapters live
// here, along with in-memory counterparts for local development and tests.
package adapter

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("adapter")
