package providers

import "unsafe"

//tracegen:provider
type SimpleProbes interface {
	Hello(who string)
	Greeting(greeting string, name string)
	RequestDone(status int, durationMillis int64)
	CacheHit(hit bool)
	BufferHandoff(buf unsafe.Pointer, length uint32)
	Heartbeat()
}

//tracegen:provider io_probes
type StorageTracing interface {
	BlockWritten(device string, sector uint64)
}
