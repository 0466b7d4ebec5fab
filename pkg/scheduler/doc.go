// Package scheduler runs named background jobs on fixed schedules inside the
// process. It drives the subscription sweep and billing metrics refresh.
//
// A ticker checks registered jobs every check interval and runs the ones
// that are due. A job never overlaps with itself: if a run is still in
// progress when the job becomes due again, that tick is skipped.
//
//	s := scheduler.New(scheduler.WithCheckInterval(10 * time.Second))
//	_ = s.AddJob("subscription_sweep", scheduler.EveryInterval(time.Minute), func(ctx context.Context) error {
//		_, err := svc.Sweep(ctx)
//		return err
//	})
//	go s.Start(ctx)
//
// # Schedules
//
//	scheduler.EveryInterval(time.Hour) // an hour after the last start
//	scheduler.DailyAt(3, 30)           // 03:30 in the clock's location
//	scheduler.HourlyAt(15)             // minute 15 of every hour
//
// Jobs wait one schedule period before their first run unless the scheduler
// is built WithImmediateStart.
//
// # Operations
//
// RunNow runs a job outside its schedule and waits for it; it returns nil
// without running when the job is already in progress. Jobs reports each
// job's next run, run count and last error.
//
// A failing or panicking job is logged and keeps its schedule. Start returns
// once ctx is cancelled and every running job has returned.
package scheduler
