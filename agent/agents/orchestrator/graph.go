package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	turnnode "github.com/tanpawarit/pulse-agent/agent/nodes/turn"
)

const graphName = "orchestrator.process_turn"

func (o *Orchestrator) compileTurnGraph(
	ctx context.Context,
) (compose.Runnable[turnnode.GraphInput, turnnode.GraphOutput], error) {
	graph := compose.NewGraph[turnnode.GraphInput, turnnode.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in turnnode.GraphInput) (*turnnode.GraphState, error) {
			return turnnode.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("bootstrap_context",
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (*turnnode.GraphState, error) {
			return turnnode.BootstrapContext(ctx, in, o.activity, o.personalization, o.turnLogger(in))
		}),
	); err != nil {
		return nil, fmt.Errorf("add node bootstrap_context: %w", err)
	}

	if err := graph.AddLambdaNode("list_tools",
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (*turnnode.GraphState, error) {
			return turnnode.ListTools(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node list_tools: %w", err)
	}

	if err := graph.AddLambdaNode("run_loop",
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (*turnnode.GraphState, error) {
			return turnnode.RunLoop(ctx, in, turnnode.LoopDeps{
				Completer:     o.completer,
				Sink:          o.sink,
				MaxIterations: o.maxIterations,
				Now:           o.now,
				NewID:         o.newID,
				Logger:        o.turnLogger(in),
			})
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_loop: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *turnnode.GraphState) (turnnode.GraphOutput, error) {
			return turnnode.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "bootstrap_context"},
		{"bootstrap_context", "list_tools"},
		{"list_tools", "run_loop"},
		{"run_loop", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
