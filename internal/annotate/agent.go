package annotate

import (
	"context"
	"log/slog"
	"os/exec"

	"github.com/agent-api/core"
	"github.com/agent-api/core/agent"
	"github.com/agent-api/core/agent/bootstrap"
	"github.com/agent-api/ollama"
	"github.com/go-logr/logr"
)

// NewAgent initializes and returns a new vision agent for keyframe
// descriptions
func NewAgent(ctx context.Context, logger *slog.Logger) (*agent.Agent, error) {
	// Check if Ollama is running
	_, err := exec.Command("curl", "-s", "http://localhost:11434/api/tags").Output()
	if err != nil {
		return nil, err
	}

	logrLogger := logr.FromSlogHandler(logger.Handler())

	// Set up Ollama provider
	opts := &ollama.ProviderOpts{
		Logger:  &logrLogger,
		BaseURL: "http://localhost",
		Port:    11434,
	}
	provider := ollama.NewProvider(opts)

	// Use the correct model
	model := &core.Model{
		ID: "llama3.2-vision:11b",
	}
	if err := provider.UseModel(ctx, model); err != nil {
		return nil, err
	}

	// Initialize agent
	return agent.NewAgent(
		bootstrap.WithProvider(provider),
		bootstrap.WithLogger(&logrLogger),
		bootstrap.WithSystemPrompt("You are a visual analysis assistant describing keyframes kept by a deduplication filter. Describe what changed in the scene and any people or objects present."),
	)
}
