package controls

import (
	"sort"
	"sync"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/events"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/logger"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/playback"
)

// Renderer displays control state. The page bridge implements it.
type Renderer interface {
	RenderControls(view View)
	RenderVisibility(visible bool)
}

type nopRenderer struct{}

func (nopRenderer) RenderControls(View)    {}
func (nopRenderer) RenderVisibility(bool) {}

// Binding keeps the control state of every bound message and pushes changes
// to a Renderer. It holds no audio or network logic of its own.
type Binding struct {
	renderer Renderer

	mu      sync.Mutex
	views   map[string]View
	visible bool
}

// NewBinding creates a binding rendering to r. The control group starts
// hidden, matching TTS being disabled.
func NewBinding(r Renderer) *Binding {
	if r == nil {
		r = nopRenderer{}
	}
	return &Binding{renderer: r, views: make(map[string]View)}
}

// Bind registers messageID with the stopped view and renders it. Binding an
// already bound message re-renders its current view.
func (b *Binding) Bind(messageID string) {
	b.mu.Lock()
	v, ok := b.views[messageID]
	if !ok {
		v = viewFor(messageID, playback.StatusStopped)
		b.views[messageID] = v
	}
	b.mu.Unlock()
	b.renderer.RenderControls(v)
}

// Unbind forgets messageID.
func (b *Binding) Unbind(messageID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.views, messageID)
}

// Update applies a status change and clears any error flag.
func (b *Binding) Update(messageID string, status playback.Status) {
	v := viewFor(messageID, status)
	b.mu.Lock()
	b.views[messageID] = v
	b.mu.Unlock()
	b.renderer.RenderControls(v)
}

// MarkError flags messageID with an inline error. The message offers play
// again so the user can retry.
func (b *Binding) MarkError(messageID string, err error) {
	v := viewFor(messageID, playback.StatusStopped)
	v.Error = "audio unavailable"
	if err != nil {
		v.Error = err.Error()
	}
	b.mu.Lock()
	b.views[messageID] = v
	b.mu.Unlock()
	b.renderer.RenderControls(v)
}

// ResetAll forces every bound message to the stopped view.
func (b *Binding) ResetAll() {
	b.mu.Lock()
	ids := make([]string, 0, len(b.views))
	for id := range b.views {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	reset := make([]View, 0, len(ids))
	for _, id := range ids {
		v := viewFor(id, playback.StatusStopped)
		b.views[id] = v
		reset = append(reset, v)
	}
	b.mu.Unlock()

	for _, v := range reset {
		b.renderer.RenderControls(v)
	}
}

// SetVisible shows or hides the whole control group.
func (b *Binding) SetVisible(visible bool) {
	b.mu.Lock()
	b.visible = visible
	b.mu.Unlock()
	b.renderer.RenderVisibility(visible)
}

// Visible reports whether the control group is shown.
func (b *Binding) Visible() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visible
}

// View returns the current view of messageID.
func (b *Binding) View(messageID string) (View, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.views[messageID]
	return v, ok
}

// Views returns every bound view ordered by message ID.
func (b *Binding) Views() []View {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]View, 0, len(b.views))
	for _, v := range b.views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out
}

// Listen drives the binding from bus notifications and returns a function
// that detaches it.
func (b *Binding) Listen(bus *events.EventBus) func() {
	unsubs := []func(){
		bus.Subscribe(events.EventPlaybackStatus, b.onPlaybackStatus),
		bus.Subscribe(events.EventPlaybackFailed, b.onPlaybackFailed),
		bus.Subscribe(events.EventGenerationFailed, b.onGenerationFailed),
		bus.Subscribe(events.EventModeChanged, b.onModeChanged),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (b *Binding) onPlaybackStatus(e *events.Event) {
	data, ok := e.Data.(events.PlaybackStatusData)
	if !ok || e.MessageID == "" {
		return
	}
	status, known := playback.ParseStatus(data.Status)
	if !known {
		logger.Debug("Unknown playback status", "message_id", e.MessageID, "status", data.Status)
	}
	b.Update(e.MessageID, status)
}

func (b *Binding) onPlaybackFailed(e *events.Event) {
	data, ok := e.Data.(events.PlaybackFailedData)
	if !ok || e.MessageID == "" {
		return
	}
	b.MarkError(e.MessageID, data.Error)
}

func (b *Binding) onGenerationFailed(e *events.Event) {
	data, ok := e.Data.(events.GenerationFailedData)
	if !ok || e.MessageID == "" {
		return
	}
	b.MarkError(e.MessageID, data.Error)
}

func (b *Binding) onModeChanged(e *events.Event) {
	data, ok := e.Data.(events.ModeChangedData)
	if !ok {
		return
	}
	if !data.Enabled {
		b.ResetAll()
	}
	b.SetVisible(data.Enabled)
}
