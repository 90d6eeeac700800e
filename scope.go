package distribute

import (
	"github.com/gomlx/distribute/platform"
	"github.com/pkg/errors"
)

// Scope acquires the execution context of the current strategy, building the
// strategy first if needed. The returned scope must be closed by the caller
// on every exit path -- prefer InScope, which guarantees it.
func (m *Manager) Scope() (platform.Scope, error) {
	strategy, err := m.Strategy()
	if err != nil {
		return nil, err
	}
	scope, err := strategy.Scope()
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to enter strategy scope on platform %q",
			m.platform.Name())
	}
	return scope, nil
}

// InScope runs fn inside the current strategy's scope, releasing the scope
// on every exit path: on normal return, on error and on panic (the panic is
// re-raised after the scope is closed).
//
// It returns fn's error if any, otherwise the error from closing the scope.
func (m *Manager) InScope(fn func() error) (err error) {
	scope, err := m.Scope()
	if err != nil {
		return err
	}
	defer func() {
		closeErr := scope.Close()
		if err == nil {
			err = closeErr
		}
	}()
	return fn()
}
