package apierrors

const (
	MsgInvalidRequest     = "invalidRequest"
	MsgInvalidProgress    = "invalidProgress"
	MsgBatchTooLarge      = "batchTooLarge"
	MsgEmptyTitle         = "emptyTitle"
	MsgEmptyName          = "emptyName"
	MsgInvalidCredentials = "invalidCredentials"
	MsgEmailExists        = "emailExists"
	MsgUnauthorized       = "unauthorized"
	MsgInvalidToken       = "invalidToken"
	MsgForbidden          = "forbidden"
	MsgNotRoomOwner       = "notRoomOwner"
	MsgCannotRemoveOwner  = "cannotRemoveOwner"
	MsgUserNotFound       = "userNotFound"
	MsgRoomNotFound       = "roomNotFound"
	MsgTaskNotFound       = "taskNotFound"
	MsgSubtaskNotFound    = "subtaskNotFound"
	MsgCompletionNotFound = "completionNotFound"
	MsgRateLimited        = "rateLimited"
	MsgStreamUnavailable  = "streamUnavailable"
	MsgInternalError      = "internalError"
)
