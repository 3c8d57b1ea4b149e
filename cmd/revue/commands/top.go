package commands

import (
	"context"
	"fmt"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/spf13/cobra"

	"github.com/lguibr/revue"
	"github.com/lguibr/revue/runtime"
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Live dashboard of the scheduler's worker queues",
	Long: `top polls the scheduler's per-worker queue depth and steal
counters and renders them as a live table, an embedding-hook consumer of
the runtime handle rather than a core feature.`,
	RunE: runTop,
}

func runTop(cmd *cobra.Command, args []string) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("top: failed to init termui: %w", err)
	}
	defer ui.Close()

	ctx := context.Background()
	rt, err := runtime.New(ctx, runtime.Config{Workers: workers, Logger: logger()})
	if err != nil {
		return err
	}
	defer rt.Stop(ctx)

	keepBusy(rt.Engine)

	table := widgets.NewTable()
	table.Title = "revue scheduler"
	table.RowSeparator = false
	table.Rows = [][]string{{"worker", "queue", "stolen_from", "stolen_by"}}
	table.SetRect(0, 0, 60, 2+rt.Engine.NumWorkers())

	render := func() {
		rows := [][]string{{"worker", "queue", "stolen_from", "stolen_by"}}
		for _, st := range rt.Engine.WorkerStats() {
			rows = append(rows, []string{
				fmt.Sprintf("%d", st.ID),
				fmt.Sprintf("%d", st.QueueDepth),
				fmt.Sprintf("%d", st.StolenFrom),
				fmt.Sprintf("%d", st.StolenBy),
			})
		}
		table.Rows = rows
		ui.Render(table)
	}
	render()

	uiEvents := ui.PollEvents()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case e := <-uiEvents:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			}
		case <-ticker.C:
			render()
		}
	}
}

// keepBusy spawns a handful of actors that each wake themselves with a
// delayed bump every 20ms so the dashboard has something to show; it is
// purely a demo aid.
func keepBusy(e *revue.Engine) {
	for i := 0; i < 8; i++ {
		e.Spawn(func(ctx revue.Context) revue.Behavior {
			ctx.After(20*time.Millisecond, revue.NewMessage(bump{}))
			return revue.NewBehavior(
				revue.Case1[bump](func(bump) revue.Result {
					ctx.After(20*time.Millisecond, revue.NewMessage(bump{}))
					return revue.Handled()
				}),
			)
		})
	}
}
