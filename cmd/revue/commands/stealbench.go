package commands

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/lguibr/revue"
	"github.com/lguibr/revue/runtime"
)

var (
	benchActors int
	benchPings  int
)

var stealBenchCmd = &cobra.Command{
	Use:   "steal-bench",
	Short: "Benchmark the work-stealing scheduler",
	Long: `steal-bench spawns a configurable number of actors, each bouncing
a fixed number of messages off a shared counter actor, and reports each
worker's queue depth and steal counters. This is scenario S6's "work gets
distributed" property made runnable.`,
	RunE: runStealBench,
}

func init() {
	stealBenchCmd.Flags().IntVar(&benchActors, "actors", 64, "Number of worker actors to spawn")
	stealBenchCmd.Flags().IntVar(&benchPings, "pings", 200, "Messages each actor sends the counter")
}

type bump struct{}
type readCount struct{}

func runStealBench(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := runtime.New(ctx, runtime.Config{Workers: workers, Logger: logger()})
	if err != nil {
		return err
	}
	defer rt.Stop(ctx)

	var total atomic.Int64
	counter := rt.Engine.Spawn(func(cctx revue.Context) revue.Behavior {
		var n int64
		return revue.NewBehavior(
			revue.Case1[bump](func(bump) revue.Result {
				n++
				return revue.Handled()
			}),
			revue.Case1[readCount](func(readCount) revue.Result {
				return revue.Reply(n)
			}),
		)
	})

	var wg sync.WaitGroup
	wg.Add(benchActors)
	start := time.Now()
	for i := 0; i < benchActors; i++ {
		rt.Engine.Spawn(func(actx revue.Context) revue.Behavior {
			sent := 0
			var step func()
			step = func() {
				if sent >= benchPings {
					total.Add(int64(sent))
					wg.Done()
					actx.Quit(revue.ExitNormal)
					return
				}
				actx.Send(counter, revue.NewMessage(bump{}))
				sent++
				step()
			}
			step()
			return revue.NewBehavior()
		})
	}
	wg.Wait()
	elapsed := time.Since(start)

	scoped := revue.NewScopedActor(rt.Engine)
	defer scoped.Close()
	var counted int64
	scoped.Do(func(bctx revue.BlockingContext) {
		h := bctx.Request(counter, revue.NewMessage(readCount{}))
		bctx.Await(h, func(m revue.Message) revue.Result {
			counted = m.Get(0).(int64)
			return revue.Handled()
		})
	})
	if counted != total.Load() {
		fmt.Printf("warning: counter actor saw %d bumps, senders report %d\n", counted, total.Load())
	}

	for _, st := range rt.Engine.WorkerStats() {
		fmt.Printf("worker %2d: queue=%-4d stolen_from=%-6d stolen_by=%-6d\n",
			st.ID, st.QueueDepth, st.StolenFrom, st.StolenBy)
	}
	fmt.Printf("sent %d bumps across %d actors in %s\n", total.Load(), benchActors, elapsed)
	return nil
}
