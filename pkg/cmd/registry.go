package cmd

import (
	"log/slog"

	"github.com/relaykit/journey/pkg/executors/end"
	"github.com/relaykit/journey/pkg/executors/httprequest"
	executorlog "github.com/relaykit/journey/pkg/executors/log"
	"github.com/relaykit/journey/pkg/executors/sendemail"
	"github.com/relaykit/journey/pkg/executors/sharedflow"
	"github.com/relaykit/journey/pkg/interpreter"
	"github.com/relaykit/journey/pkg/persistence"
	"github.com/relaykit/journey/pkg/registry"
)

// NewRegistry wires the built-in node executors. The shared-flow executor
// needs the interpreter and the workflow store, so registration happens in
// two phases: core executors first, shared_flow once the interpreter exists.
func NewRegistry(logger *slog.Logger, mailer sendemail.Mailer) *registry.Registry {
	reg := registry.NewRegistry(logger)

	if mailer == nil {
		mailer = sendemail.NewLogMailer(logger)
	}

	reg.Register(executorlog.NewExecutor(logger))
	reg.Register(httprequest.NewExecutor())
	reg.Register(sendemail.NewExecutor(mailer, logger))
	reg.Register(end.NewExecutor(logger))

	return reg
}

// RegisterSharedFlow completes phase two.
func RegisterSharedFlow(reg *registry.Registry, workflows persistence.WorkflowRepository, interp *interpreter.Interpreter, logger *slog.Logger) {
	reg.Register(sharedflow.NewExecutor(workflows, interp, logger))
}
