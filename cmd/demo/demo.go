package demo

import (
	"fmt"
	"io"

	"github.com/ValentinKolb/eKV/cmd/util"
	"github.com/ValentinKolb/eKV/lib/codec"
	"github.com/ValentinKolb/eKV/lib/ecs"
	"github.com/ValentinKolb/eKV/lib/persist"
	"github.com/spf13/cobra"
)

// Position is the location of a demo entity
type Position struct {
	X, Y int
}

// Name is the display name of a demo entity
type Name struct {
	Value string
}

const (
	PositionTag ecs.ComponentTag = "demo.Position"
	NameTag     ecs.ComponentTag = "demo.Name"
)

// DemoCmd runs a small world against the configured store
var DemoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a small world that persists its entities",
	Long: `Run a small world with named entities that move one step per update.

The first run spawns the entities, every later run restores them from the
store with the same stable ids and continues moving them. One entity is
marked as ignored and is never written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, _ := cmd.Flags().GetInt("steps")
		cfg, err := util.GetConfig().PersistConfig()
		if err != nil {
			return err
		}
		return Run(cmd.OutOrStdout(), cfg, steps)
	},
}

func init() {
	DemoCmd.Flags().Int("steps", 3, util.WrapString("Number of update cycles to run"))
}

// Registry returns the codec registry of the demo components
func Registry() *codec.Registry {
	r := codec.NewRegistry()
	codec.MustRegister[Position](r, codec.WithTag(PositionTag))
	codec.MustRegister[Name](r, codec.WithTag(NameTag))
	return r
}

// Run hydrates a world from the store in cfg, spawns the demo entities if the
// store was empty and runs steps update cycles.
func Run(w io.Writer, cfg persist.Config, steps int) error {
	p, err := persist.Open(cfg, Registry())
	if err != nil {
		return err
	}

	world := ecs.NewWorld()
	world.AddSystem(move)
	p.Install(world)

	if err := world.Startup(); err != nil {
		p.Close()
		return err
	}

	loaded, skipped := p.LastHydration().Total()
	fmt.Fprintf(w, "hydrated %d records (%d skipped) into %d entities\n", loaded, skipped, world.Len())

	if world.Len() == 0 {
		spawn(world)
		fmt.Fprintf(w, "spawned %d entities\n", world.Len())
	}

	for i := 0; i < steps; i++ {
		if err := world.Update(); err != nil {
			p.Close()
			return err
		}
	}
	// persists freshly spawned entities even with zero steps
	if err := p.Sync(world); err != nil {
		fmt.Fprintf(w, "persistence cycle failed: %v\n", err)
	}
	if err := p.Flush(); err != nil {
		fmt.Fprintf(w, "flush failed: %v\n", err)
	}

	fmt.Fprintf(w, "\nafter %d steps:\n", steps)
	printWorld(w, world, p)

	stats := p.Stats()
	fmt.Fprintf(w, "\ncycles=%d writes=%d deletes=%d errors=%d commit_mean=%s\n",
		stats.Cycles, stats.Writes, stats.Deletes, stats.WriteErrors, stats.CommitMean)

	return p.Close()
}

// spawn creates two named movers and one ignored entity
func spawn(world *ecs.World) {
	for i, n := range []string{"ada", "grace"} {
		e := world.Spawn()
		world.Insert(e, NameTag, Name{Value: n})
		world.Insert(e, PositionTag, Position{X: 0, Y: i})
	}

	scratch := world.Spawn()
	world.Insert(scratch, NameTag, Name{Value: "scratch"})
	world.Insert(scratch, PositionTag, Position{X: 100, Y: 100})
	world.Ignore(scratch)
}

// move advances every entity by one step on the x axis
func move(world *ecs.World) error {
	type update struct {
		e   ecs.Entity
		pos Position
	}
	var updates []update
	world.Each(PositionTag, func(e ecs.Entity, value any, _ uint64) bool {
		pos := value.(Position)
		pos.X++
		updates = append(updates, update{e, pos})
		return true
	})
	for _, u := range updates {
		world.Insert(u.e, PositionTag, u.pos)
	}
	return nil
}

func printWorld(w io.Writer, world *ecs.World, p *persist.Persister) {
	world.Each(PositionTag, func(e ecs.Entity, value any, _ uint64) bool {
		pos := value.(Position)
		name := ""
		if v, ok := world.Get(e, NameTag); ok {
			name = v.(Name).Value
		}
		id := "<not persisted>"
		if sid, ok := p.Identity().Lookup(e); ok {
			id = sid.String()
		}
		fmt.Fprintf(w, "  %-8s %-36s x=%-4d y=%d\n", name, id, pos.X, pos.Y)
		return true
	})
}
