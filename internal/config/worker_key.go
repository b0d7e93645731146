package config

type WorkerKeyStruct struct {
	PersistSessionHistoryQueue string
	RoomJanitorTag             string
}

var WorkerKey = &WorkerKeyStruct{
	PersistSessionHistoryQueue: "persist_session_history_queue",
	RoomJanitorTag:             "room_janitor",
}
