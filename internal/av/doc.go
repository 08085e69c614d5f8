// Package av is the room and source coordination engine.
//
// An Environment holds every Room and Source by numeric ID. Rooms route
// sources to numbered outputs (MainOutput is 1) and run two state machines:
//
//   - Source selection: SelectSourceAsync marks the output busy, updates the
//     current source and active-use counts, emits a Pending event and returns.
//     A worker then calls RoomHooks.SourceShouldLoad and emits Complete or
//     Failed. A second request for a busy output fails with ErrBusy.
//
//   - Power: PowerOn and PowerOff flip Room.Power immediately and run the
//     power hooks on a worker. PowerOff waits a bounded time for in-flight
//     selections, then clears them and continues.
//
// Hardware is reached only through the RoomHooks and ActiveUseHook
// interfaces. State changes are reported to the environment's Notifier and
// to Room.Subscribe listeners.
//
// Usage:
//
//	env := av.NewEnvironment(av.WithLogger(log), av.WithNotifier(events))
//	room, _ := av.NewRoom(env, av.RoomOptions{ID: 1, Name: "Boardroom", Hooks: drv})
//	pc, _ := av.NewSource(env, av.SourceOptions{ID: 10, Type: av.SourceTypePC})
//	_ = pc.AssignRoom(room)
//	op, err := room.SelectSourceAsync(pc, av.MainOutput)
package av
