package distribute

// Convenience wrappers binding a unit of work to a fixed selection: each one
// forces the selection, then runs fn inside the resulting strategy's scope.

// OnCPU selects all CPU devices and runs fn in the strategy's scope.
func (m *Manager) OnCPU(fn func() error) error {
	if err := m.SelectCPU(All); err != nil {
		return err
	}
	return m.InScope(fn)
}

// OnGPU0 selects GPU 0 and runs fn in the strategy's scope.
func (m *Manager) OnGPU0(fn func() error) error {
	return m.onGPU(0, fn)
}

// OnGPU1 selects GPU 1 and runs fn in the strategy's scope.
func (m *Manager) OnGPU1(fn func() error) error {
	return m.onGPU(1, fn)
}

// OnGPU2 selects GPU 2 and runs fn in the strategy's scope.
func (m *Manager) OnGPU2(fn func() error) error {
	return m.onGPU(2, fn)
}

// OnGPU3 selects GPU 3 and runs fn in the strategy's scope.
func (m *Manager) OnGPU3(fn func() error) error {
	return m.onGPU(3, fn)
}

func (m *Manager) onGPU(index int, fn func() error) error {
	if err := m.SelectGPU(index); err != nil {
		return err
	}
	return m.InScope(fn)
}
