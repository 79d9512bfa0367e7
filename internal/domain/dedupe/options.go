package dedupe

// Option applies a configuration option to the in-memory Keeper.
type Option func(*inMemoryKeeper)

// WithMaxSize sets the maximum number of keys to keep in memory.
// If maxSize > 0: bounded, oldest key evicted first.
// If maxSize <= 0: unbounded.
func WithMaxSize(maxSize int) Option {
	return func(k *inMemoryKeeper) {
		k.maxSize = maxSize
	}
}
