package simulate

import (
	"fmt"
	"slices"

	"github.com/ethpandaops/renderlab/pkg/event"
)

// Profile describes how a scenario renders on every frame.
type Profile struct {
	Scenario    event.ScenarioID
	Description string

	frame func(f *frame)
}

var profiles = map[event.ScenarioID]Profile{
	event.ScenarioRerenders: {
		Description: "parent state change re-renders every child with equal props",
		frame: func(f *frame) {
			f.render(parentName)

			for i := range f.components {
				f.render(childName(i))
				f.observe(childName(i), map[string]any{
					"index":    i,
					"label":    fmt.Sprintf("item-%d", i),
					"onSelect": f.stableCallback(childName(i)),
				})
			}
		},
	},
	event.ScenarioUnstableReferences: {
		Description: "inline callbacks are recreated on every parent render",
		frame: func(f *frame) {
			f.render(parentName)

			for i := range f.components {
				f.render(childName(i))
				f.observe(childName(i), map[string]any{
					"index":    i,
					"onSelect": f.freshCallback(i),
				})
			}
		},
	},
	event.ScenarioContextFanout: {
		Description: "a provider value object changes identity and every consumer renders",
		frame: func(f *frame) {
			value := map[string]any{"theme": "dark", "frame": f.n}

			f.render("Provider")
			f.observe("Provider", map[string]any{"value": value})

			for i := range f.components {
				f.render(fmt.Sprintf("Consumer-%d", i))
			}
		},
	},
	event.ScenarioDerivedState: {
		Description: "a filtered list is derived into a new slice on every render",
		frame: func(f *frame) {
			f.render(parentName)

			visible := make([]int, 0, f.components)
			for i := range f.components {
				if i%2 == 0 {
					visible = append(visible, i)
				}
			}

			f.render("List")
			f.observe("List", map[string]any{
				"items": visible,
				"count": len(visible),
			})
		},
	},
	event.ScenarioKeyRemount: {
		Description: "a changing key remounts the child instead of updating it",
		frame: func(f *frame) {
			f.render(parentName)

			for i := range f.components {
				name := childName(i)
				if f.n > 0 {
					f.unmount(name)
				}

				f.render(name)
				f.observe(name, map[string]any{"key": f.n})
			}
		},
	},
	event.ScenarioListIdentity: {
		Description: "list items keyed by index receive shifted props when the list rotates",
		frame: func(f *frame) {
			f.render("List")

			for i := range f.components {
				item := f.items[(i+f.n)%len(f.items)]

				f.render(fmt.Sprintf("Row-%d", i))
				f.observe(fmt.Sprintf("Row-%d", i), map[string]any{"item": item})
			}
		},
	},
	event.ScenarioStrictMode: {
		Description: "development double-invocation mounts, unmounts and remounts once",
		frame: func(f *frame) {
			for i := range f.components {
				name := childName(i)

				f.render(name)
				f.observe(name, map[string]any{"index": i})

				if f.n == 0 {
					f.unmount(name)
					f.render(name)
					f.observe(name, map[string]any{"index": i})
				}
			}
		},
	},
	event.ScenarioEffectDeps: {
		Description: "an options object in effect dependencies changes on every render",
		frame: func(f *frame) {
			f.render("Search")
			f.observe("Search", map[string]any{
				"query":   "renderlab",
				"options": map[string]any{"limit": 10},
			})
		},
	},
	event.ScenarioTransitions: {
		Description: "urgent input renders every frame, the slow list every fourth",
		frame: func(f *frame) {
			f.render("Input")
			f.observe("Input", map[string]any{"text": f.text()})

			if f.n%4 == 0 {
				f.slowList()
			}
		},
	},
	event.ScenarioDeferredValue: {
		Description: "the slow list renders with a deferred value that lags one frame",
		frame: func(f *frame) {
			f.render("Input")
			f.observe("Input", map[string]any{"text": f.text()})

			if f.n%2 == 1 {
				f.slowList()
			}
		},
	},
}

// Profiles returns the known profiles in scenario menu order.
func Profiles() []Profile {
	out := make([]Profile, 0, len(event.Scenarios))

	for _, id := range event.Scenarios {
		if p, ok := LookupProfile(id); ok {
			out = append(out, p)
		}
	}

	return slices.Clip(out)
}

// LookupProfile returns the profile of id.
func LookupProfile(id event.ScenarioID) (Profile, bool) {
	p, ok := profiles[id]
	if !ok {
		return Profile{}, false
	}

	p.Scenario = id

	return p, true
}
