// Package dispatch routes task descriptors to execution lanes.
//
// A Dispatcher owns one pool.Engine per lane (cpu, io, throughput, mixed),
// resolves each descriptor's operation through a registry.Registry and wraps
// every execution in a profiler trace. Task-level failures are returned inside
// TaskResult; only resolution and lifecycle problems surface as errors.
//
// Basic usage:
//
//	prof := profiler.New()
//	d, err := dispatch.New(prof)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Close()
//
//	_ = d.RegisterOperation("sum", func(ctx context.Context, payload any, ec registry.ExecContext) (any, error) {
//	    xs := payload.([]int)
//	    total := 0
//	    for _, x := range xs {
//	        total += x
//	    }
//	    return total, nil
//	})
//
//	res, err := d.ExecuteTask(ctx, dispatch.TaskDescriptor{
//	    ID:        "t1",
//	    Operation: "sum",
//	    Payload:   []int{1, 2, 3},
//	    PoolClass: pool.CPU,
//	})
package dispatch
