package domain

// Action is the decision of the conflict resolver for one entity.
type Action string

const (
	ActionNoOp                      Action = "no_op"
	ActionTakeRemote                Action = "take_remote"
	ActionKeepLocalAndEnqueueUpload Action = "keep_local_and_enqueue_upload"
	ActionDeleteRemote              Action = "delete_remote"
	ActionAdoptRemoteIntoLocal      Action = "adopt_remote_into_local"
	ActionCreateRemote              Action = "create_remote"
	ActionDeleteLocal               Action = "delete_local"
)

// Mutates reports whether applying the action writes to the local store.
func (a Action) Mutates() bool {
	switch a {
	case ActionTakeRemote, ActionAdoptRemoteIntoLocal, ActionDeleteLocal, ActionCreateRemote:
		return true
	default:
		return false
	}
}
