package host

import (
	"fmt"

	"github.com/dop251/goja"
)

// scriptEngine is the model's privileged scripting context. It evaluates
// JavaScript with a `model` binding that manipulates the live scene graph
// directly. State persists across Eval calls for the lifetime of the model.
type scriptEngine struct {
	vm    *goja.Runtime
	model *MemoryModel
}

func newScriptEngine(m *MemoryModel) *scriptEngine {
	e := &scriptEngine{
		vm:    goja.New(),
		model: m,
	}
	e.bind()
	return e
}

func (e *scriptEngine) bind() {
	m := e.model
	obj := e.vm.NewObject()

	obj.Set("name", func() string { return m.Name() })
	obj.Set("rename", func(name string) { m.Rename(name) })
	obj.Set("units", func() string { return m.Units() })
	obj.Set("entityCount", func() int { return len(m.entities) })

	obj.Set("addGroup", func(name string, min, max []float64) int64 {
		return m.AddBox(KindGroup, name, vec3(min), vec3(max)).ID
	})
	obj.Set("addComponent", func(name string, min, max []float64) int64 {
		return m.AddBox(KindComponent, name, vec3(min), vec3(max)).ID
	})
	obj.Set("addFace", func(min, max []float64) int64 {
		return m.AddBox(KindFace, "", vec3(min), vec3(max)).ID
	})
	obj.Set("addEdge", func(min, max []float64) int64 {
		return m.AddBox(KindEdge, "", vec3(min), vec3(max)).ID
	})

	obj.Set("addMaterial", func(name string) { m.AddMaterial(name) })
	obj.Set("select", func(id int64) bool { return m.Select(id) })
	obj.Set("selectAll", func() { m.SelectAll() })
	obj.Set("clearSelection", func() { m.ClearSelection() })
	obj.Set("selectionCount", func() int { return len(m.Selection()) })

	e.vm.Set("model", obj)
}

// Eval runs code and returns the value of the final expression as text.
// Engine faults, including panics out of the interpreter, come back as
// errors carrying the raw fault text.
func (e *scriptEngine) Eval(code string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("script fault: %v", r)
		}
	}()

	v, runErr := e.vm.RunString(code)
	if runErr != nil {
		return "", runErr
	}
	if v == nil {
		return "", nil
	}
	return v.String(), nil
}

// vec3 adapts a script-side numeric array to a point, padding missing
// coordinates with zero.
func vec3(v []float64) [3]float64 {
	var p [3]float64
	for i := 0; i < 3 && i < len(v); i++ {
		p[i] = v[i]
	}
	return p
}
