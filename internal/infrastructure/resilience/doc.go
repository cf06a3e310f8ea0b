/*
Package resilience provides the circuit breaker used by the runtime API client.

A breaker counts failures of one remote dependency and stops calling it for a
while once ReadyToTrip says so. IsSuccessful decides which errors count, so an
answer the server gives on purpose (a 409 for a busy shell) never opens the
circuit.

	breaker := resilience.New("runtime-api", resilience.Settings{
		MaxRequests: 1,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	err := breaker.Do(func() error { return client.Reset(ctx) })
	obs, err := resilience.Call(breaker, func() (*types.RunObservation, error) {
		return client.Run(ctx, args)
	})

States move Closed -> Open after tripping, Open -> HalfOpen after Timeout, and
HalfOpen -> Closed after MaxRequests successes (or back to Open on a failure).
Time comes from an injectable k8s.io/utils clock.
*/
package resilience
