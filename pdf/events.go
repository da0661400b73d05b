package pdf

import "context"

// Event is a message from a background run. Progress events carry only
// Progress; the last event has Done set together with Result or Err.
type Event struct {
	Progress float64
	Done     bool
	Result   *Result
	Err      error
}

// Start runs Mute on a new goroutine and reports through the returned
// channel. Progress events never block the run: when the consumer falls
// behind, the stale value is replaced by the newest one, so the values
// received are still non-decreasing. Exactly one Done event is sent, then
// the channel is closed. opts.Progress, if set, is still called.
func Start(ctx context.Context, inFile, outFile string, opts Options) <-chan Event {
	events := make(chan Event, 2)

	push := func(ev Event) {
		for {
			select {
			case events <- ev:
				return
			default:
			}
			// Full: drop the oldest queued progress value
			select {
			case <-events:
			default:
			}
		}
	}

	userProgress := opts.Progress
	opts.Progress = func(percent float64) {
		push(Event{Progress: percent})
		if userProgress != nil {
			userProgress(percent)
		}
	}

	go func() {
		defer close(events)
		res, err := Mute(ctx, inFile, outFile, opts)
		if err != nil {
			push(Event{Done: true, Err: err})
			return
		}
		push(Event{Done: true, Progress: 100, Result: res})
	}()

	return events
}
