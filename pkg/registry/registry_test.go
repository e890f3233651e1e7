package registry

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/journey/pkg/models"
)

type stubExecutor struct {
	nodeType string
	deps     []string
}

func (s *stubExecutor) Execute(_ context.Context, _ *models.RuleNode, _ *models.ExecutionContext) (*models.ExecutionResult, error) {
	return &models.ExecutionResult{Success: true}, nil
}

func (s *stubExecutor) Validate(_ *models.RuleNode) *models.ValidationResult { return models.Valid() }
func (s *stubExecutor) NodeType() string                                     { return s.nodeType }
func (s *stubExecutor) Dependencies() []string                               { return s.deps }

func newTestRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(os.Stdout, nil)))
}

func TestRegisterAndGet(t *testing.T) {
	reg := newTestRegistry()
	executor := &stubExecutor{nodeType: "log"}

	reg.Register(executor)

	got, ok := reg.Get("log")
	require.True(t, ok)
	assert.Same(t, executor, got)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
	assert.True(t, reg.IsRegistered("log"))
	assert.False(t, reg.IsRegistered("missing"))
}

func TestRegister_LastWriteWins(t *testing.T) {
	reg := newTestRegistry()
	first := &stubExecutor{nodeType: "log"}
	second := &stubExecutor{nodeType: "log"}

	reg.Register(first)
	reg.Register(second)

	got, ok := reg.Get("log")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Len(t, reg.NodeTypes(), 1)
}

func TestCheckDependencies(t *testing.T) {
	reg := newTestRegistry()
	reg.Register(&stubExecutor{nodeType: "log"})
	reg.Register(&stubExecutor{nodeType: "composite", deps: []string{"log", "send_email"}})

	problems := reg.CheckDependencies()
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0].Error(), "send_email")

	reg.Register(&stubExecutor{nodeType: "send_email"})
	assert.Empty(t, reg.CheckDependencies())
}
