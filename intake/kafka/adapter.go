// Package kafka consumes transform requests from Kafka topics.
package kafka

import (
	"context"

	"formattransformer/internal/jobspec"
)

// HandleFunc runs one decoded request. The message is committed once it
// returns, whatever the outcome, unless ctx was cancelled.
type HandleFunc func(context.Context, jobspec.Request) error

type Adapter interface {
	Configure(Config) error
	Run(context.Context, HandleFunc) error
	Close() error
}
