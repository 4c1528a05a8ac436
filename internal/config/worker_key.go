package config

type WorkerKeyStruct struct {
	IntegrityCheckQueue string
}

var WorkerKey = &WorkerKeyStruct{
	IntegrityCheckQueue: "integrity_check_queue",
}
