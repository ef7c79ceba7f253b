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

package log

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/walteh/driveingest/pkg/ingest"
)

// 🎨 Display configuration
const (
	itemIndent   = 4  // spaces to indent item entries
	nameWidth    = 35 // Base width for item name
	outcomeWidth = 15 // Width for outcome text
	detailWidth  = 15 // Width for detail text
)

// 🎯 Logger prints run progress to a console and mirrors it to zerolog
type Logger struct {
	zlog    zerolog.Logger
	console io.Writer
	mu      sync.Mutex
}

var _ ingest.Observer = (*Logger)(nil)

// 🏭 New creates a new logger
func New(console io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(level)
	return &Logger{
		zlog:    zlog,
		console: console,
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context, along with its zerolog logger
func NewContext(ctx context.Context, l *Logger) context.Context {
	ctx = l.zlog.WithContext(ctx)
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatTask formats a finished item for display
func (l *Logger) formatTask(task ingest.Task) string {
	var symbol rune
	var symbolColor color.Attribute
	var outcome, detail string
	switch {
	case task.Failure != nil:
		symbol = '✗'
		symbolColor = color.FgRed
		outcome = "failed"
		detail = fmt.Sprintf("%s/%s", task.Failure.Stage, task.Failure.Kind)
	case task.Skipped:
		symbol = '-'
		symbolColor = color.FgYellow
		outcome = "skipped"
		detail = "not pending"
	case task.Outcome == ingest.OutcomeProcessed:
		symbol = '✓'
		symbolColor = color.FgGreen
		outcome = "processed"
		detail = humanSize(task.Size)
	default:
		symbol = '•'
		symbolColor = color.FgCyan
		outcome = "not processed"
		detail = humanSize(task.Size)
	}

	return fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", itemIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, task.Item.Name),
		color.New(symbolColor).Sprint(fmt.Sprintf("%-*s", outcomeWidth, outcome)),
		fmt.Sprintf("%-*s", detailWidth, detail))
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return strconv.FormatInt(n, 10) + " B"
	}
}

// 📝 RunStarted implements ingest.Observer
func (l *Logger) RunStarted(ctx context.Context, report *ingest.RunReport, files int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.console, "[ingesting %s]\n",
		color.New(color.FgCyan).Sprint(report.PendingFolderID))

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(report.DriveID),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprintf("%d files", files))

	l.zlog.Info().
		Str("run_id", report.RunID).
		Str("drive_id", report.DriveID).
		Int("files", files).
		Int("folders_ignored", report.FoldersIgnored).
		Msg("starting run")
}

// 📝 ItemFinished implements ingest.Observer
func (l *Logger) ItemFinished(ctx context.Context, task ingest.Task) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintln(l.console, l.formatTask(task))

	event := l.zlog.Info()
	if task.Failure != nil {
		event = l.zlog.Warn().Err(task.Failure.Err).
			Str("stage", string(task.Failure.Stage)).
			Str("kind", string(task.Failure.Kind))
	}
	event.
		Str("item_id", task.Item.ID).
		Str("name", task.Item.Name).
		Stringer("outcome", task.Outcome).
		Bool("moved", task.Moved).
		Bool("skipped", task.Skipped).
		Int64("size", task.Size).
		Msg("item finished")
}

// 📝 RunFinished implements ingest.Observer
func (l *Logger) RunFinished(ctx context.Context, report *ingest.RunReport, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if report.Seen > 0 {
		table, terr := RenderSummary(report)
		if terr == nil {
			fmt.Fprintln(l.console)
			fmt.Fprint(l.console, table)
		}
	}

	switch {
	case err != nil:
		fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprintf("run failed: %v", err))
	case report.Failed > 0:
		fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprintf("%d of %d items stay pending", report.Failed, report.Seen))
	default:
		fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprintf("%d items ingested in %s", report.Processed+report.NotProcessed, report.Duration().Round(time.Millisecond)))
	}

	l.zlog.Info().
		Err(err).
		Str("run_id", report.RunID).
		Int("seen", report.Seen).
		Int("downloaded", report.Downloaded).
		Int("processed", report.Processed).
		Int("not_processed", report.NotProcessed).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Dur("duration", report.Duration()).
		Msg("run complete")
}

// 📊 RenderSummary draws the report counters as a table
func RenderSummary(report *ingest.RunReport) (string, error) {
	data := pterm.TableData{
		{"seen", "downloaded", "processed", "not processed", "failed", "skipped"},
		{
			strconv.Itoa(report.Seen),
			strconv.Itoa(report.Downloaded),
			strconv.Itoa(report.Processed),
			strconv.Itoa(report.NotProcessed),
			strconv.Itoa(report.Failed),
			strconv.Itoa(report.Skipped),
		},
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("driveingest")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}
