package status

import (
	"fmt"
	"time"
)

// Command is a dev-mode lifecycle command name
type Command string

const (
	// CommandRun starts the dev-mode container if it is not running
	CommandRun Command = "run"

	// CommandStop stops the container and drops its status
	CommandStop Command = "stop"

	// CommandDelete removes the container and drops its status
	CommandDelete Command = "delete"

	// CommandReload pushes project files and triggers a recompilation
	CommandReload Command = "reload"

	// CommandLog toggles log streaming for the container
	CommandLog Command = "log"
)

// ParseCommand validates a command name
func ParseCommand(name string) (Command, error) {
	switch c := Command(name); c {
	case CommandRun, CommandStop, CommandDelete, CommandReload, CommandLog:
		return c, nil
	default:
		return "", fmt.Errorf("unknown dev-mode command %q", name)
	}
}

// Lifecycle reports whether the command creates or removes a container
func (c Command) Lifecycle() bool {
	return c == CommandRun || c == CommandStop || c == CommandDelete
}

// CommandsFor returns the lifecycle commands a container of the given kind accepts
func CommandsFor(kind ResourceKind) []Command {
	switch kind {
	case KindDevMode, KindProject:
		return []Command{CommandRun, CommandStop, CommandDelete}
	case KindDevService:
		return []Command{CommandRun, CommandStop}
	default:
		return nil
	}
}

// DevModeCommand is a transient instruction consumed once by the dev-mode controller
type DevModeCommand struct {
	ID            string    `json:"id"`
	Command       Command   `json:"command"`
	ProjectID     string    `json:"projectId"`
	Environment   string    `json:"environment"`
	ContainerName string    `json:"containerName"`
	IssuedAt      time.Time `json:"issuedAt"`
}

// Key returns the key of the container the command targets
func (c DevModeCommand) Key() GroupedKey {
	name := c.ContainerName
	if name == "" {
		name = c.ProjectID
	}
	return NewKey(c.ProjectID, c.Environment, name)
}

// DevModeResult is published after a command or reload finished
type DevModeResult struct {
	Command       Command   `json:"command"`
	ProjectID     string    `json:"projectId"`
	Environment   string    `json:"environment"`
	ContainerName string    `json:"containerName"`
	Success       bool      `json:"success"`
	Message       string    `json:"message,omitempty"`
	FinishedAt    time.Time `json:"finishedAt"`
}

// LogLine is a single line streamed from a container
type LogLine struct {
	Key  GroupedKey `json:"key"`
	Line string     `json:"line"`
	At   time.Time  `json:"at"`
}
