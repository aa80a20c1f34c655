package persist

import (
	"github.com/ValentinKolb/eKV/lib/ecs"
)

// Install wires the persister into a world: Hydrate runs as a startup system and
// Sync as an update system. A failing hydration aborts World.Startup. Errors of
// an update cycle are logged and do not stop the world.
func (p *Persister) Install(w *ecs.World) {
	w.AddStartupSystem(func(w *ecs.World) error {
		return p.Hydrate(w)
	})
	w.AddSystem(func(w *ecs.World) error {
		if err := p.Sync(w); err != nil {
			log.Errorf("persistence cycle %d: %v", p.cycle, err)
		}
		return nil
	})
}
