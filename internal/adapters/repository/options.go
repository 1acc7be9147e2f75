package repository

// MemOption configures the in-memory store.
type MemOption func(*MemStore)

// WithNeutralScore sets the score assigned to newly created trust records.
func WithNeutralScore(s float64) MemOption {
	return func(m *MemStore) {
		m.neutral = s
	}
}

// WithHistoryLimit caps the number of history entries retained per entity.
func WithHistoryLimit(n int) MemOption {
	return func(m *MemStore) {
		if n > 0 {
			m.historyLimit = n
		}
	}
}
