// Package app wires the domain services over one attached Cupboard. The
// CLI, HTTP server and MCP tools all build on an App.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/fieldforms/internal/agents"
	"github.com/mesh-intelligence/fieldforms/internal/eventbus"
	"github.com/mesh-intelligence/fieldforms/internal/export"
	"github.com/mesh-intelligence/fieldforms/internal/fieldtree"
	"github.com/mesh-intelligence/fieldforms/internal/forms"
	"github.com/mesh-intelligence/fieldforms/internal/report"
	"github.com/mesh-intelligence/fieldforms/internal/retry"
	"github.com/mesh-intelligence/fieldforms/internal/submission"
	"github.com/mesh-intelligence/fieldforms/pkg/types"
)

// DefaultEventBuffer is the event bus queue size.
const DefaultEventBuffer = 256

// App holds the services of one running instance.
type App struct {
	Cupboard    types.Cupboard
	Events      *eventbus.Bus
	Fields      *fieldtree.Service
	Agents      *agents.Service
	Forms       *forms.Service
	Submissions *submission.Store
	Export      *export.Service
	Reports     *report.Service
	Logger      *zap.Logger
}

// Options tunes New.
type Options struct {
	Logger *zap.Logger
	Retry  *retry.Config
}

// New builds the services over an attached cupboard. The event bus is
// created but not started; call Start to dispatch events.
func New(cup types.Cupboard, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tables := make(map[string]types.Table, len(types.StandardTableNames))
	for _, name := range types.StandardTableNames {
		t, err := cup.GetTable(name)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		tables[name] = t
	}

	bus := eventbus.New(DefaultEventBuffer, logger.Named("events"))
	subOpts := []submission.Option{
		submission.WithPublisher(bus),
		submission.WithLogger(logger.Named("submissions")),
	}
	if opts.Retry != nil {
		subOpts = append(subOpts, submission.WithRetry(opts.Retry))
	}

	fields := fieldtree.NewService(tables[types.TableFields], tables[types.TableForms], tables[types.TableAgents], logger.Named("fields"))
	subs := submission.NewStore(tables[types.TableSubmissions], subOpts...)
	ag := agents.NewService(tables[types.TableAgents], fields, logger.Named("agents"))
	fm := forms.NewService(tables[types.TableForms], fields, subs, bus, logger.Named("forms"))

	return &App{
		Cupboard:    cup,
		Events:      bus,
		Fields:      fields,
		Agents:      ag,
		Forms:       fm,
		Submissions: subs,
		Export:      export.NewService(fields, ag, fm, subs),
		Reports:     report.NewService(fields, ag, fm, subs),
		Logger:      logger,
	}, nil
}

// Start begins event dispatch.
func (a *App) Start(ctx context.Context) { a.Events.Start(ctx) }

// Close stops the event bus and detaches the cupboard.
func (a *App) Close() error {
	a.Events.Stop()
	return a.Cupboard.Detach()
}
