package wallee

import (
	stdcontext "context"
	"sync"
)

type lightbox struct {
	scriptURL string
	loaded    bool
	startErr  error
}

// SignalLauncher is the Launcher used behind the HTTP shell: the page reports
// back through Loaded once the lightbox handler is available (or failed).
// Lightboxes are kept per session, so two payers on one payment never share one.
type SignalLauncher struct {
	mu    sync.Mutex
	boxes map[string]*lightbox
}

// NewSignalLauncher creates an empty launcher.
func NewSignalLauncher() *SignalLauncher {
	return &SignalLauncher{boxes: make(map[string]*lightbox)}
}

// Inject records the script URL for sessionID and resets its readiness.
func (l *SignalLauncher) Inject(_ stdcontext.Context, sessionID, scriptURL string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.boxes[sessionID] = &lightbox{scriptURL: scriptURL}
	return nil
}

// Loaded marks the lightbox handler of sessionID as available. A non-nil
// startErr is what the lightbox reported when starting the payment failed.
func (l *SignalLauncher) Loaded(sessionID string, startErr error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	box, ok := l.boxes[sessionID]
	if !ok {
		return false
	}
	box.loaded = true
	box.startErr = startErr
	return true
}

// ScriptURL returns the injected script for sessionID.
func (l *SignalLauncher) ScriptURL(sessionID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	box, ok := l.boxes[sessionID]
	if !ok {
		return "", false
	}
	return box.scriptURL, true
}

func (l *SignalLauncher) Ready(_ stdcontext.Context, sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	box, ok := l.boxes[sessionID]
	return ok && box.loaded
}

func (l *SignalLauncher) StartPayment(_ stdcontext.Context, sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	box, ok := l.boxes[sessionID]
	if !ok {
		return nil
	}
	delete(l.boxes, sessionID)
	return box.startErr
}

// Forget drops any lightbox state of sessionID.
func (l *SignalLauncher) Forget(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.boxes, sessionID)
}
