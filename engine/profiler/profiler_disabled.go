//go:build !profile

package profiler

// No-op versions when the "profile" build tag is not set.

func Init(capacity int) {}

func Start(scope string) func() { return noop }

func Dump(path string) error { return nil }

func Enabled() bool { return false }

func noop() {}
