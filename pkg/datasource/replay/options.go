package replay

import "time"

type Option func(*Source)

func WithResolution(resolution time.Duration) Option {
	return func(s *Source) {
		if resolution > 0 {
			s.resolution = resolution
		}
	}
}

func WithDatasetOpener(opener Opener) Option {
	return func(s *Source) {
		s.opener = opener
	}
}

// WithProgressInterval logs replay progress every n cycles, zero disables it.
func WithProgressInterval(n int) Option {
	return func(s *Source) {
		s.progressInterval = n
	}
}
