package host

import (
	"encoding/json"
	"fmt"
	"os"
)

// MemoryHost is an in-process modeling environment. It keeps the whole
// scene graph in memory and exposes a JavaScript scripting context, which
// makes the bridge runnable and testable without an external application.
type MemoryHost struct {
	model *MemoryModel
}

// NewMemoryHost creates a host with an empty untitled model open.
func NewMemoryHost() *MemoryHost {
	h := &MemoryHost{}
	h.Open("Untitled")
	return h
}

// ActiveModel implements Host.
func (h *MemoryHost) ActiveModel() (Model, error) {
	if h.model == nil {
		return nil, ErrNoModel
	}
	return h.model, nil
}

// Open replaces the active model with a fresh one.
func (h *MemoryHost) Open(name string) *MemoryModel {
	h.model = newMemoryModel(name)
	return h.model
}

// Close discards the active model, leaving the host with none open.
func (h *MemoryHost) Close() {
	h.model = nil
}

// MemoryModel is the in-memory scene graph.
type MemoryModel struct {
	name      string
	path      string
	units     string
	nextID    int64
	entities  []Entity
	selection map[int64]bool
	materials []string
	engine    *scriptEngine
}

func newMemoryModel(name string) *MemoryModel {
	m := &MemoryModel{
		name:      name,
		units:     "mm",
		nextID:    1,
		selection: make(map[int64]bool),
	}
	m.engine = newScriptEngine(m)
	return m
}

// Name implements Model.
func (m *MemoryModel) Name() string { return m.name }

// Path implements Model. Empty until the model has been saved.
func (m *MemoryModel) Path() string { return m.path }

// Units implements Model.
func (m *MemoryModel) Units() string { return m.units }

// Entities implements Model.
func (m *MemoryModel) Entities() []Entity {
	out := make([]Entity, len(m.entities))
	copy(out, m.entities)
	return out
}

// Selection implements Model, preserving insertion order of the scene.
func (m *MemoryModel) Selection() []Entity {
	var out []Entity
	for _, e := range m.entities {
		if m.selection[e.ID] {
			out = append(out, e)
		}
	}
	return out
}

// Bounds implements Model: the union of all entity bounds.
func (m *MemoryModel) Bounds() Bounds {
	var b Bounds
	for _, e := range m.entities {
		b.Union(e.Bounds)
	}
	return b
}

// Materials implements Model.
func (m *MemoryModel) Materials() []string {
	out := make([]string, len(m.materials))
	copy(out, m.materials)
	return out
}

// Eval implements Model.
func (m *MemoryModel) Eval(code string) (string, error) {
	return m.engine.Eval(code)
}

// View implements Model.
func (m *MemoryModel) View() View {
	return &memoryView{model: m}
}

// AddBox adds an entity of the given kind spanning min..max and returns it.
func (m *MemoryModel) AddBox(kind Kind, name string, min, max [3]float64) Entity {
	e := Entity{
		ID:     m.nextID,
		Kind:   kind,
		Name:   name,
		Bounds: NewBounds(min, max),
	}
	m.nextID++
	m.entities = append(m.entities, e)
	return e
}

// AddMaterial registers a material name in the model's registry.
func (m *MemoryModel) AddMaterial(name string) {
	for _, existing := range m.materials {
		if existing == name {
			return
		}
	}
	m.materials = append(m.materials, name)
}

// Select adds the entity with the given id to the selection. Returns
// false when no such entity exists.
func (m *MemoryModel) Select(id int64) bool {
	for _, e := range m.entities {
		if e.ID == id {
			m.selection[id] = true
			return true
		}
	}
	return false
}

// SelectAll selects every entity in the model.
func (m *MemoryModel) SelectAll() {
	for _, e := range m.entities {
		m.selection[e.ID] = true
	}
}

// ClearSelection empties the selection.
func (m *MemoryModel) ClearSelection() {
	m.selection = make(map[int64]bool)
}

// Rename sets the model name.
func (m *MemoryModel) Rename(name string) {
	m.name = name
}

// modelSnapshot is the native save format: a JSON dump of the scene.
type modelSnapshot struct {
	Name      string   `json:"name"`
	Units     string   `json:"units"`
	Materials []string `json:"materials,omitempty"`
	Entities  []Entity `json:"entities"`
}

// SaveAs implements Model. The whole scene is serialized to path, and
// the model remembers path as its saved location.
func (m *MemoryModel) SaveAs(path string) error {
	snap := modelSnapshot{
		Name:      m.name,
		Units:     m.units,
		Materials: m.materials,
		Entities:  m.entities,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	m.path = path
	return nil
}
