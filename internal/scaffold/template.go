// Package scaffold writes the tool-owned backpack files onto a source branch.
package scaffold

// TaskStub is the initial content of .backpack/task.md.
const TaskStub = `# Task

Describe what this branch is for. This file is stripped on emit.
`

// AgentsStub is the initial content of .backpack/agents.md.
const AgentsStub = `# Agent instructions

Notes for coding agents working on this branch. This file is stripped on emit.

Commits whose message has a line reading [backpack:drop] are removed whole
from the emitted branch.
`
