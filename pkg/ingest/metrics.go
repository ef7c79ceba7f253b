// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingest

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/walteh/driveingest/pkg/ingest"

// instruments are resolved against the global meter provider, which is a
// no-op unless the binary installs one
type instruments struct {
	items       metric.Int64Counter
	bytes       metric.Int64Counter
	runDuration metric.Float64Histogram
}

func newInstruments() *instruments {
	meter := otel.Meter(meterName)
	noopMeter := noop.NewMeterProvider().Meter(meterName)

	items, err := meter.Int64Counter("driveingest.items",
		metric.WithDescription("Items handled, by result"),
		metric.WithUnit("{item}"))
	if err != nil {
		otel.Handle(err)
		items, _ = noopMeter.Int64Counter("driveingest.items")
	}

	bytes, err := meter.Int64Counter("driveingest.downloaded.bytes",
		metric.WithDescription("Bytes written to the download directory"),
		metric.WithUnit("By"))
	if err != nil {
		otel.Handle(err)
		bytes, _ = noopMeter.Int64Counter("driveingest.downloaded.bytes")
	}

	runDuration, err := meter.Float64Histogram("driveingest.run.duration",
		metric.WithDescription("Duration of a single run"),
		metric.WithUnit("s"))
	if err != nil {
		otel.Handle(err)
		runDuration, _ = noopMeter.Float64Histogram("driveingest.run.duration")
	}

	return &instruments{items: items, bytes: bytes, runDuration: runDuration}
}

func (m *instruments) recordItem(ctx context.Context, task Task) {
	var attrs []attribute.KeyValue
	switch {
	case task.Failure != nil:
		attrs = append(attrs,
			attribute.String("result", "failed"),
			attribute.String("kind", string(task.Failure.Kind)),
			attribute.String("stage", string(task.Failure.Stage)))
	case task.Skipped:
		attrs = append(attrs, attribute.String("result", "skipped"))
	default:
		attrs = append(attrs, attribute.String("result", task.Outcome.String()))
	}
	m.items.Add(ctx, 1, metric.WithAttributes(attrs...))
	if task.Downloaded {
		m.bytes.Add(ctx, task.Size)
	}
}

func (m *instruments) recordRun(ctx context.Context, report *RunReport) {
	m.runDuration.Record(ctx, report.Duration().Seconds(),
		metric.WithAttributes(attribute.Bool("aborted", report.Aborted)))
}
