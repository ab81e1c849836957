// Package sim provides a Parallel-DEVS simulation kernel: atomic models with
// internal, external and confluent transitions, coupled models that route
// time-stamped values between typed ports, and a reference event-list
// scheduler that drives them.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - timedomain.go: time types, fuzzy ordering, infinity handling
//   - atomic.go: the transition protocol and external-event admission
//   - coupled.go, coupling.go: hierarchy, IC/EIC/EOC sets, value transfer
//   - simulator.go: the reference scheduler (callback heap and event loop)
//
// # Time
//
// All kernel types take a time type parameter T paired with a TimeDomain[T].
// FloatTime compares with a tolerance so that accumulated rounding error does
// not turn a simultaneous event into a causality violation; IntegerTime
// (ticks, time.Duration) compares exactly.
//
// # Concurrency
//
// Each atomic model serializes its own transitions with a mutex. Distinct
// models may be driven from different goroutines. Output produced by λ is
// delivered after the producing model's mutex is released.
//
// # Sub-packages
//   - sim/models/: reusable models (counter, generator, processor, transducer)
//   - sim/topology/: YAML description of a model hierarchy, its builder and
//     feedback-loop detection
//   - sim/trace/: transition trace recording and summaries
package sim
