// Package host binds the application's components to bridge channels. It is
// the only layer that knows both the wire contract and the domain types.
package host

import (
	"github.com/rs/zerolog"

	"deskmate/internal/bridge"
	"deskmate/internal/chat"
	"deskmate/internal/modelconfig"
	"deskmate/internal/storage"
)

// WindowController receives window commands from the shell. The host process
// has no window of its own; the embedder supplies an implementation.
type WindowController interface {
	Minimize()
	Maximize()
	Close()
}

// NopWindow ignores every window command.
type NopWindow struct{}

func (NopWindow) Minimize() {}
func (NopWindow) Maximize() {}
func (NopWindow) Close()    {}

type Service struct {
	store        *modelconfig.Store
	orchestrator *chat.Orchestrator
	modes        *chat.ModeController
	db           *storage.Store
	window       WindowController
	workspace    string
	logger       zerolog.Logger
}

type Config struct {
	Store        *modelconfig.Store
	Orchestrator *chat.Orchestrator
	Modes        *chat.ModeController
	DB           *storage.Store
	Window       WindowController
	Workspace    string
	Logger       zerolog.Logger
}

func NewService(cfg Config) *Service {
	w := cfg.Window
	if w == nil {
		w = NopWindow{}
	}
	return &Service{
		store:        cfg.Store,
		orchestrator: cfg.Orchestrator,
		modes:        cfg.Modes,
		db:           cfg.DB,
		window:       w,
		workspace:    cfg.Workspace,
		logger:       cfg.Logger,
	}
}

// Register wires every channel the shell may call.
func (s *Service) Register(r *bridge.Router) {
	r.HandleInvoke(bridge.ChanChatComplete, s.chatComplete)
	r.HandleStream(bridge.ChanChatStream, s.chatStream)
	r.HandleInvoke(bridge.ChanAISetMode, s.setMode)
	r.HandleInvoke(bridge.ChanAIGetMode, s.getMode)

	r.HandleInvoke(bridge.ChanAIConfigGet, s.aiConfigGet)
	r.HandleInvoke(bridge.ChanAIConfigSet, s.aiConfigSet)
	r.HandleInvoke(bridge.ChanAIConfigUpdate, s.aiConfigUpdate)
	r.HandleInvoke(bridge.ChanAIConfigReset, s.aiConfigReset)

	r.HandleInvoke(bridge.ChanModelConfigList, s.modelConfigList)
	r.HandleInvoke(bridge.ChanModelConfigAdd, s.modelConfigAdd)
	r.HandleInvoke(bridge.ChanModelConfigUpdate, s.modelConfigUpdate)
	r.HandleInvoke(bridge.ChanModelConfigDelete, s.modelConfigDelete)
	r.HandleInvoke(bridge.ChanModelConfigSetActive, s.modelConfigSetActive)
	r.HandleInvoke(bridge.ChanModelConfigGetActive, s.modelConfigGetActive)

	r.HandleInvoke(bridge.ChanFSReadDir, s.fsReadDir)
	r.HandleInvoke(bridge.ChanFSSelectFolder, s.fsSelectFolder)
	r.HandleInvoke(bridge.ChanFSReadFile, s.fsReadFile)
	r.HandleInvoke(bridge.ChanFSWriteFile, s.fsWriteFile)

	r.HandleNotify(bridge.ChanWindowMinimize, s.windowMinimize)
	r.HandleNotify(bridge.ChanWindowMaximize, s.windowMaximize)
	r.HandleNotify(bridge.ChanWindowClose, s.windowClose)

	r.HandleInvoke(bridge.ChanDBQuery, s.dbQuery)
	r.HandleInvoke(bridge.ChanDBExecute, s.dbExecute)

	r.HandleInvoke(bridge.ChanUserProfileGet, s.profileGet)
	r.HandleInvoke(bridge.ChanUserProfileSet, s.profileSet)
	r.HandleInvoke(bridge.ChanUserProfileUpdate, s.profileUpdate)
}
