package config

type WorkerKeyStruct struct {
	PersistAnswersQueue string
	PersistEventsQueue  string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue: "persist_answers_queue",
	PersistEventsQueue:  "persist_attempt_events_queue",
}
