// Package agents contains the conversational orchestration engine: the turn
// loop, the drafting-workflow state machine, memory scoping, guardrail
// validation, and the persona bundles dispatched through the loop.
package agents

import (
	"fmt"

	"github.com/lexcodex/adpilot/framework"
)

// transitions lists every legal state-machine edge. There are no implicit
// jumps: a move not listed here is rejected.
var transitions = map[framework.State][]framework.State{
	framework.StateIdle:           {framework.StateDiscovery},
	framework.StateDiscovery:      {framework.StateIdeation},
	framework.StateIdeation:       {framework.StateDrafting},
	framework.StateDrafting:       {framework.StateReview},
	framework.StateReview:         {framework.StateDrafting, framework.StateReadyToPublish},
	framework.StateReadyToPublish: {framework.StatePublished},
	framework.StatePublished:      {framework.StateIdle},
}

// CanTransition reports whether the edge from → to exists. A reset to idle is
// legal from any state (explicit user reset or archival).
func CanTransition(from, to framework.State) bool {
	if to == framework.StateIdle {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the conversation to the target state, validating the edge.
func Transition(conv *framework.Conversation, to framework.State) error {
	if !CanTransition(conv.State, to) {
		return fmt.Errorf("illegal state transition %s -> %s", conv.State, to)
	}
	conv.State = to
	return nil
}

// AdvanceOnToolResult bumps the conversation state when a tool outcome
// implies progress through the drafting workflow. Unknown tools leave the
// state untouched.
func AdvanceOnToolResult(conv *framework.Conversation, toolName string, success bool) {
	if !success {
		return
	}
	switch toolName {
	case ToolGenerateCopy, ToolGenerateVariants, ToolEditDraft:
		// A complete draft moves the workflow into review.
		reachState(conv, framework.StateReview)
	case ToolPublishCampaign:
		if conv.State == framework.StateReadyToPublish {
			conv.State = framework.StatePublished
		}
	}
}

// reachState walks the forward edges until target is reached. Used when a
// tool result implies intermediate stages (e.g. a draft appearing while the
// conversation is still in discovery).
func reachState(conv *framework.Conversation, target framework.State) {
	order := []framework.State{
		framework.StateIdle, framework.StateDiscovery, framework.StateIdeation,
		framework.StateDrafting, framework.StateReview,
	}
	pos := func(s framework.State) int {
		for i, st := range order {
			if st == s {
				return i
			}
		}
		return -1
	}
	from, to := pos(conv.State), pos(target)
	if from < 0 || to < 0 || from >= to {
		// review -> drafting -> review round trips land here; a fresh
		// draft while in review keeps the conversation in review.
		return
	}
	conv.State = target
}

// BeginTurn moves an idle conversation into discovery when the first user
// message of a workflow arrives.
func BeginTurn(conv *framework.Conversation) {
	if conv.State == framework.StateIdle {
		conv.State = framework.StateDiscovery
	}
}

// ConcludePublished resets a published conversation so the next unrelated
// request starts fresh.
func ConcludePublished(conv *framework.Conversation) {
	if conv.State == framework.StatePublished {
		conv.State = framework.StateIdle
	}
}
