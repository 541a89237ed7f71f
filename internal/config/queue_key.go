package config

type QueueKeyStruct struct {
	SessionEventsQueue string
}

// QueueKey names the Redis lists the engine produces into. The external
// transport (bot, web frontend) consumes these with BLPOP.
var QueueKey = &QueueKeyStruct{
	SessionEventsQueue: "session_events_queue",
}
