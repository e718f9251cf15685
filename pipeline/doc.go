// Package pipeline provides composable, pull-based sequence operators.
//
// Pipelines are lazy: no work happens until values are pulled via Collect
// or Iter. Each stage pulls from the previous stage on demand,
// so a slow consumer naturally slows the producer.
//
// # Operators
//
//   - Map: transform each value
//   - Tap: side-effect without altering the value (logging, metrics)
//   - Pack: greedy size-bounded grouping into bins
//
// # Usage
//
//	records := pipeline.Map(pipeline.FromSlice(segments), toRecord)
//	bins := pipeline.Pack(records, 500000, sizeOf)
//	it := bins.Iter(ctx)
//	defer it.Close()
//	err := pipeline.DrainIter(ctx, it, send)
package pipeline
