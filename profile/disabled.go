//go:build !pprof

package profile

// Modes is empty when built without the pprof build tag.
func Modes() []string { return nil }

func start(Settings) Stopper { return nop{} }
