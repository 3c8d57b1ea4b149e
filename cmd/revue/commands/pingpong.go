package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lguibr/revue"
	"github.com/lguibr/revue/runtime"
)

var roundsFlag int

var pingpongCmd = &cobra.Command{
	Use:   "pingpong",
	Short: "Run the ping-pong sync-send demo",
	Long: `pingpong spawns two actors, A and B, and has A sync-send B a ping
N times, printing each round-trip. This exercises Context.Request/Then end
to end, the scenario described as S1 in the core's testable properties.`,
	RunE: runPingpong,
}

func init() {
	pingpongCmd.Flags().IntVar(&roundsFlag, "rounds", 5, "Number of ping/pong round-trips")
}

type ping struct{ N int }
type pong struct{ N int }

func runPingpong(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := runtime.New(ctx, runtime.Config{Workers: workers, Logger: logger()})
	if err != nil {
		return err
	}
	defer rt.Stop(ctx)

	done := make(chan struct{})

	b := rt.Engine.Spawn(func(bctx revue.Context) revue.Behavior {
		return revue.NewBehavior(
			revue.Case1[ping](func(p ping) revue.Result {
				return revue.Reply(pong{N: p.N})
			}),
		)
	})

	rt.Engine.Spawn(func(actx revue.Context) revue.Behavior {
		var round int
		var step func()
		step = func() {
			if round >= roundsFlag {
				close(done)
				actx.Quit(revue.ExitNormal)
				return
			}
			h := actx.Request(b, revue.NewMessage(ping{N: round}))
			actx.ThenTimeout(h, 2*time.Second, func(m revue.Message) revue.Result {
				p := m.Get(0).(pong)
				fmt.Printf("round %d: ping %d -> pong %d\n", round, round, p.N)
				round++
				step()
				return revue.Handled()
			}, func() revue.Result {
				fmt.Println("round timed out")
				close(done)
				actx.Quit(revue.ExitUnhandledSyncTimeout)
				return revue.Handled()
			})
		}
		step()
		return revue.NewBehavior()
	})

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		return fmt.Errorf("pingpong: timed out waiting for completion")
	}
	return nil
}
