package pipe

import (
	"context"
	"sync"
)

// errorMerger allows to listen to multiple error channels.
type errorMerger struct {
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	errorChan chan error
}

// add error channels from all components into one.
func (m *errorMerger) add(errcList ...<-chan error) {
	m.wg.Add(len(errcList))
	for _, ec := range errcList {
		go m.listen(ec)
	}
}

// listen blocks until error is received or channel is closed. A received
// error cancels the branch context, unblocking the remaining stages.
// Cancellation only happens here: a gracefully finished branch leaves the
// context alone, components shared with other branches keep running.
func (m *errorMerger) listen(ec <-chan error) {
	if err, ok := <-ec; ok {
		m.cancel()
		select {
		case m.errorChan <- err:
		default:
		}
	}
	m.wg.Done()
}

// wait waits for all underlying error channels to be closed and then
// closes the output error channel. Only the first error is propagated.
func (m *errorMerger) wait() {
	m.wg.Wait()
	close(m.errorChan)
}
