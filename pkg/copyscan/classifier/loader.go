package classifier

import (
	"fmt"
	"time"
)

// Loader performs the expensive one-time template load in the background and
// lets jobs await readiness with a bounded timeout instead of polling.
type Loader struct {
	done     chan struct{}
	template *Template
	err      error
}

// StartLoader kicks off the background load and returns immediately.
func StartLoader(modelPath, classMapPath string) *Loader {
	l := &Loader{done: make(chan struct{})}
	go func() {
		l.template, l.err = LoadTemplate(modelPath, classMapPath)
		close(l.done)
	}()
	return l
}

// Await blocks until the template is loaded or the timeout elapses. A timed
// out wait fails deterministically; it never returns a half-loaded template.
func (l *Loader) Await(timeout time.Duration) (*Template, error) {
	select {
	case <-l.done:
		return l.template, l.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: still loading after %s", ErrModelLoad, timeout)
	}
}

// Ready reports whether the load already finished, without blocking.
func (l *Loader) Ready() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
