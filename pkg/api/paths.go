package api

import "fmt"

// Shared artifact namespace on the sync substrate. Each participant owns the
// subtree under its own identity prefix; everything the engine publishes for
// a run lives under the run root:
//
//	{owner}/shared/flows/{flow_name}/{run_id}/
//	    {step_number}-{step_id}/...   shared step outputs + manifest
//	    _progress/                    state.json, log.json, manifest
//	    _mpc/{i}_to_{j}/              stream.tcp, stream.accept, manifest
const (
	ProgressDirName   = "_progress"
	ProgressStateName = "state.json"
	ProgressLogName   = "log.json"

	MPCDirName     = "_mpc"
	MarkerFileName = "stream.tcp"
	AcceptFileName = "stream.accept"

	// AcceptValue is the literal truthy content of an accept flag
	AcceptValue = "1"
)

// RunRoot returns the run's root key prefix within the owner's datasite
func RunRoot(owner Identity, flowName string, runID RunID) string {
	return fmt.Sprintf("%s/shared/flows/%s/%s", owner, flowName, runID)
}

// StepDirName names a step's shared output directory: 1-based step number
// followed by the step ID
func StepDirName(number int, id StepID) string {
	return fmt.Sprintf("%d-%s", number, id)
}

// StepDir returns the shared output prefix for one step of a run
func StepDir(root string, number int, id StepID) string {
	return root + "/" + StepDirName(number, id)
}

// ProgressStateKey returns the key of the owner's progress snapshot
func ProgressStateKey(root string) string {
	return root + "/" + ProgressDirName + "/" + ProgressStateName
}

// ProgressLogKey returns the key of the owner's append-only progress log
func ProgressLogKey(root string) string {
	return root + "/" + ProgressDirName + "/" + ProgressLogName
}

// ProgressManifestKey returns the key of the progress directory's manifest
func ProgressManifestKey(root string) string {
	return root + "/" + ProgressDirName + "/" + ManifestFileName
}

// ChannelDir returns the directory prefix of one directed channel
func ChannelDir(root, channelID string) string {
	return root + "/" + MPCDirName + "/" + channelID
}

// MarkerKey returns the key of a directed channel's connection marker
func MarkerKey(root, channelID string) string {
	return ChannelDir(root, channelID) + "/" + MarkerFileName
}

// AcceptKey returns the key of a directed channel's accept flag
func AcceptKey(root, channelID string) string {
	return ChannelDir(root, channelID) + "/" + AcceptFileName
}

// ChannelManifestKey returns the key of a directed channel's manifest
func ChannelManifestKey(root, channelID string) string {
	return ChannelDir(root, channelID) + "/" + ManifestFileName
}

// MPCManifestKey returns the key of the mesh root manifest, readable by all
// session participants for topology audit
func MPCManifestKey(root string) string {
	return root + "/" + MPCDirName + "/" + ManifestFileName
}
