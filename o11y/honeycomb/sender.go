package honeycomb

import (
	"errors"

	"github.com/hashicorp/go-multierror"
	"github.com/honeycombio/libhoney-go/transmission"
)

// MultiSender delivers each event to every one of Senders, so traces can go
// to the Honeycomb API and to local output at once.
type MultiSender struct {
	Senders []transmission.Sender
}

var _ transmission.Sender = (*MultiSender)(nil)

func (s *MultiSender) Start() error {
	if len(s.Senders) == 0 {
		return errors.New("no senders configured")
	}
	return s.each(transmission.Sender.Start)
}

// Stop stops every sender, reporting all the failures.
func (s *MultiSender) Stop() error {
	return s.each(transmission.Sender.Stop)
}

func (s *MultiSender) Flush() error {
	return s.each(transmission.Sender.Flush)
}

func (s *MultiSender) each(fn func(transmission.Sender) error) error {
	var result error
	for _, tx := range s.Senders {
		if err := fn(tx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

func (s *MultiSender) Add(ev *transmission.Event) {
	for _, tx := range s.Senders {
		tx.Add(ev)
	}
}

// TxResponses is the first sender's channel. The responses of the others
// are not read.
func (s *MultiSender) TxResponses() chan transmission.Response {
	return s.Senders[0].TxResponses()
}

// SendResponse passes r to every sender and reports whether any dropped it.
func (s *MultiSender) SendResponse(r transmission.Response) bool {
	dropped := false
	for _, tx := range s.Senders {
		if tx.SendResponse(r) {
			dropped = true
		}
	}
	return dropped
}
