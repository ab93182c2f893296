package client

// Stream is the caller's view of one exchange.
//
//	for s.Next() {
//		ev := s.Current()
//		...
//	}
//	if err := s.Err(); err != nil { ... }
//
// Next returns true for every text event and once more for the terminal
// event, then false.
type Stream struct {
	ex      *exchange
	client  *Client
	current Event
	err     error
	done    bool
}

// ID is the exchange id used in logs.
func (s *Stream) ID() string { return s.ex.id }

func (s *Stream) Next() bool {
	if s.done {
		return false
	}

	for {
		select {
		case ev := <-s.ex.text:
			if s.ex.isCancelled() {
				continue
			}
			s.current = ev
			return true

		case <-s.ex.finished:
			// text produced before the terminal event still goes first
			select {
			case ev := <-s.ex.text:
				if !s.ex.isCancelled() {
					s.current = ev
					return true
				}
				continue
			default:
			}

			s.current = s.ex.terminal
			s.err = s.ex.terminal.Err
			s.done = true
			return true
		}
	}
}

func (s *Stream) Current() Event {
	return s.current
}

// Err is the failure carried by the terminal event, nil on completion or
// cancellation.
func (s *Stream) Err() error {
	return s.err
}

func (s *Stream) State() State {
	return s.ex.State()
}

// Close cancels the exchange if it is still running. It does not affect an
// exchange that superseded this one.
func (s *Stream) Close() {
	s.client.cancelExchange(s.ex)
}
