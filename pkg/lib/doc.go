// Package lib provides a Go SDK to run analysis jobs programmatically.
//
// It submits a user background to the analysis service, polls the created
// task until it finishes and returns the report, without shelling out to the
// jobwatch CLI binary.
//
// # Quick Start
//
//	client, err := lib.New(ctx, lib.Config{Token: os.Getenv("JOBWATCH_TOKEN")})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	report, err := client.Analyze(ctx, bg, &lib.AnalyzeOpts{
//	    OnProgress: func(t lib.Task) { fmt.Println(t.Status) },
//	})
//
// # Services
//
//   - [ServiceHTTP]: The remote analysis service, authenticated with the
//     stored session or [Config].Token.
//   - [ServiceFake]: In-memory fake service that completes the jobs after a
//     fixed time. No network needed.
//
// # Cancellation
//
// Cancelling the context passed to [Client.Analyze] stops polling and cancels
// the task on the service.
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: The task does not exist.
//   - [ErrNotValid]: Invalid input.
//   - [ErrNotAuthenticated]: There is no session.
//   - [ErrTaskFailed]: The service reported the task as failed.
//   - [ErrCancelled]: The task was cancelled.
//   - [ErrTimeout]: The task did not finish in time.
//
// # Thread Safety
//
// A [Client] is safe for concurrent use, every [Client.Analyze] call runs its
// own polling loop.
package lib
