// Package driver runs the fixed-step walk loop against a simulator.
//
// Each iteration reads a [Snapshot], advances the simulator one step, and
// writes the next joint targets produced by a [gait.Pattern]:
//
//	d := driver.New(client, kf, driver.DefaultConfig())
//	d.AddObserver(driver.NewTextReporter(os.Stdout))
//	res, err := d.Run(ctx)
//
// # Lifecycle
//
// A driver moves through Connected, Running, Stopped and Disconnected, in
// that order and only once. Run owns the simulator from the moment it is
// called: whether the horizon elapses, ctx is cancelled or a call fails,
// Stop and then Close are issued exactly once before Run returns.
//
// Drivers are not safe for concurrent use.
package driver
