package substrate

import (
	"context"
	"os/exec"
	"strings"
)

// CommandSyncer prompts the external sync client for a replication pass by
// invoking a configured command. Deployments whose substrate replicates
// continuously configure no command and get the NopSyncer instead
type CommandSyncer struct {
	command string
}

// NewCommandSyncer creates a syncer around the given trigger command
func NewCommandSyncer(command string) Syncer {
	if strings.TrimSpace(command) == "" {
		return NopSyncer
	}
	return &CommandSyncer{command: command}
}

func (s *CommandSyncer) TriggerSync(ctx context.Context) error {
	parts := strings.Fields(s.command)
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	return cmd.Run()
}
