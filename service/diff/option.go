package diff

// Option configures a Service.
type Option func(*Service)

// WithContextLines sets how many unchanged lines surround each hunk.
// Negative values keep the default.
func WithContextLines(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.contextLines = n
		}
	}
}
