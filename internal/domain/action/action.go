// Package action defines the action-registry domain contract: handler
// signatures, categories, and the registry interface the executor depends
// on (spec §4.3, §9 "dynamic action dispatch" design note).
package action

import "context"

// Category is an opaque tag used solely for enable/disable gating; the
// executor treats it opaquely (spec §4.3).
// 仅用于启用/禁用分组，executor 不感知具体含义。
type Category string

const (
	CategoryKeyboard Category = "keyboard"
	CategoryMouse    Category = "mouse"
	CategoryWindow   Category = "window"
	CategoryBrowser  Category = "browser"
	CategoryClipboard Category = "clipboard"
	CategoryFile     Category = "file"
	CategoryScreen   Category = "screen"
	CategoryTiming   Category = "timing"
	CategoryVision   Category = "vision"
	CategorySystem   Category = "system"
	CategoryEdit     Category = "edit"
	CategoryMacro    Category = "macro"
)

// ParamSpec declares one expected parameter of a handler, for validation
// warnings/errors (spec §4.1 PARAM_MISSING / PARAM_UNKNOWN).
type ParamSpec struct {
	Name     string
	Required bool
}

// Result is what a handler invocation returns: output variables to merge
// into the ExecutionContext. Handlers never panic; a failed call is
// reported through the error the Handler returns alongside the Result.
type Result struct {
	Outputs map[string]any
}

// Handler is the signature every registered action implements. It
// receives the (already variable-substituted) params object and pulls
// the keys it expects — the handler owns its own validation (spec §9
// "reflection-based parameter binding" design note: replaced by explicit
// handlers that self-validate instead of keyword-argument reflection).
type Handler func(ctx context.Context, deps Deps, params map[string]any) (*Result, error)

// Deps aggregates the shared collaborators a handler may need: the
// platform driver, the broker (for visual_navigate), and a mouse
// controller for smooth-movement defaults (spec §4.3: injected once at
// startup; a handler that needs a collaborator absent from Deps fails
// VALIDATION_FAILURE at invocation).
type Deps struct {
	Driver          Driver
	Broker          Broker
	MouseController MouseController
}

// Driver is the platform capability boundary the registry injects into
// handlers. Its concrete implementation lives in
// internal/infrastructure/driver; this interface is the contract handlers
// code against (spec §6.1, design notes: OS actuation primitives are a
// platform driver interface, out of scope as a concrete implementation
// beyond the minimal reference this repo ships).
type Driver interface {
	MouseMove(ctx context.Context, x, y int) error
	MouseClick(ctx context.Context, x, y int, button string) error
	MouseDoubleClick(ctx context.Context, x, y int) error
	MouseDrag(ctx context.Context, fromX, fromY, toX, toY int) error
	MouseScroll(ctx context.Context, dx, dy int) error
	MousePosition(ctx context.Context) (x, y int, err error)

	KeyPress(ctx context.Context, key string) error
	KeyShortcut(ctx context.Context, keys []string) error
	TypeText(ctx context.Context, text string) error
	TypeTextWithDelay(ctx context.Context, text string, delayMs int) error
	HoldKey(ctx context.Context, key string) error
	ReleaseKey(ctx context.Context, key string) error

	OpenApp(ctx context.Context, name string) error
	CloseApp(ctx context.Context, name string) error
	SwitchWindow(ctx context.Context, title string) error
	MinimizeWindow(ctx context.Context, title string) error
	MaximizeWindow(ctx context.Context, title string) error
	RestoreWindow(ctx context.Context, title string) error
	ActiveWindow(ctx context.Context) (title string, err error)

	GetClipboard(ctx context.Context) (string, error)
	SetClipboard(ctx context.Context, text string) error

	CaptureScreen(ctx context.Context) (jpegBytes []byte, w, h int, err error)
	CaptureRegion(ctx context.Context, x, y, w, h int) (jpegBytes []byte, err error)
	ScreenSize(ctx context.Context) (w, h int, err error)

	OpenURL(ctx context.Context, url string) error
	OpenFile(ctx context.Context, path string) error
	CreateFolder(ctx context.Context, path string) error
	DeleteFile(ctx context.Context, path string) error

	Lock(ctx context.Context) error
	Sleep(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Restart(ctx context.Context) error
	VolumeUp(ctx context.Context) error
	VolumeDown(ctx context.Context) error
	VolumeMute(ctx context.Context) error
}

// MouseController wraps the driver's raw MouseMove with a curve-based
// (smooth) movement default, used by verification/navigation handlers
// that want human-like movement rather than a teleport (spec §4.3).
type MouseController interface {
	MoveSmooth(ctx context.Context, driver Driver, toX, toY int) error
}

// Broker is the narrow slice of the broker transport the visual_navigate
// handler needs: send a vision request and wait for the terminal response,
// and service the state/action-cmd exchange (concrete shape defined by
// internal/service/visualnavhandler against internal/infrastructure/broker).
type Broker interface {
	Send(ctx context.Context, channel string, payload any, requestID string) error
	Receive(ctx context.Context, channel string, timeoutMs int, requestID string) (payload RawMessage, ok bool, err error)
}

// RawMessage is a decode-later JSON payload, avoiding an import cycle with
// infrastructure/broker's concrete Message type.
type RawMessage = []byte

// Entry is what the registry stores per action name.
// 注册表中每个动作名对应的条目，声明所需参数与依赖。
type Entry struct {
	Name            string
	Category        Category
	Handler         Handler
	RequiredParams  []string
	OptionalParams  []string
	OutputKeys      []string
	RequiresDriver  bool
	RequiresBroker  bool
	RequiresMouseCtl bool
}

// Registry maps action names to Entries (spec §4.3).
type Registry interface {
	Register(e Entry) error
	Lookup(name string) (Entry, bool)
	ListByCategory(cat Category) []Entry
	IsEnabled(name string, cat Category) bool
	Inject(driver Driver, broker Broker, mouse MouseController)
}
