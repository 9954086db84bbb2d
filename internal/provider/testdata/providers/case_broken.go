package providers

//tracegen:provider
type NotAnInterface struct {
	Field int
}

//tracegen:provider Has.Dots
type BadName interface {
	Probe()
}

//tracegen:provider
type MixedProbes interface {
	Fine(count int)
	ReturnsValue() error
	UnnamedArg(string)
	UnsupportedArg(ch chan int)
}

//tracegen:provider
type Embedder interface {
	MixedProbes
	OwnProbe(tag string)
}

//tracegen:provider simple_probes
type CollidesWithSimple interface {
	Whatever()
}
