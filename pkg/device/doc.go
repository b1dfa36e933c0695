// Package device implements the control core of a voice interaction
// device: the state machine, the single threaded control loop and the
// capture and playback audio pipelines.
//
// An Application is wired from a transport.Protocol, a CodecPort and
// optional collaborators, then driven by Run:
//
//	app, err := device.New(device.Options{
//		Protocol: proto,
//		Codec:    codec,
//		Voice:    vad,
//		Board:    board,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	go app.Run(ctx)
//	app.ToggleChatState()
//
// All state transitions happen on the control loop. Public methods enqueue
// work onto it and are safe to call from any goroutine. Heavy audio work,
// opus encode and decode, runs on serialized background lanes so the loop
// stays responsive; results are delivered back to the loop and dropped if
// the state changed while they were in flight.
package device
