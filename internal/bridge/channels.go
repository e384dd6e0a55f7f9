package bridge

// Channel names shared by host and client. These strings are the contract;
// renaming one is a breaking change.
const (
	ChanChatComplete = "chat-complete"
	ChanChatStream   = "chat-stream"
	ChanAISetMode    = "ai-set-mode"
	ChanAIGetMode    = "ai-get-mode"

	ChanAIConfigGet    = "ai-config-get"
	ChanAIConfigSet    = "ai-config-set"
	ChanAIConfigUpdate = "ai-config-update"
	ChanAIConfigReset  = "ai-config-reset"

	ChanModelConfigList      = "model-config-list"
	ChanModelConfigAdd       = "model-config-add"
	ChanModelConfigUpdate    = "model-config-update"
	ChanModelConfigDelete    = "model-config-delete"
	ChanModelConfigSetActive = "model-config-set-active"
	ChanModelConfigGetActive = "model-config-get-active"

	ChanFSReadDir      = "fs-read-dir"
	ChanFSSelectFolder = "fs-select-folder"
	ChanFSReadFile     = "fs-read-file"
	ChanFSWriteFile    = "fs-write-file"

	ChanWindowMinimize = "window-minimize"
	ChanWindowMaximize = "window-maximize"
	ChanWindowClose    = "window-close"

	ChanDBQuery   = "db-query"
	ChanDBExecute = "db-execute"

	ChanUserProfileGet    = "user-profile-get"
	ChanUserProfileSet    = "user-profile-set"
	ChanUserProfileUpdate = "user-profile-update"
)
