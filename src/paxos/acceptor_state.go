package paxos

// AcceptorSlotState is the durable state an Acceptor keeps for one slot.
// MaxPrepare is the highest proposal number promised; AccNum and AccVal record
// the last proposal accepted. Nil fields mean "none".
type AcceptorSlotState struct {
	MaxPrepare *ProposalNumber
	AccNum     *ProposalNumber
	AccVal     Event
}

// CanPromise applies the Synod rule for prepare requests: the sentinel, an
// unset MaxPrepare, or a strictly greater proposal number.
func (s *AcceptorSlotState) CanPromise(n ProposalNumber) bool {
	return n.IsSentinel() ||
		s.MaxPrepare == nil ||
		n.Greater(*s.MaxPrepare)
}

// CanAccept applies the Synod rule for accept requests: the sentinel, an unset
// MaxPrepare, or a proposal number at least as high as MaxPrepare.
func (s *AcceptorSlotState) CanAccept(n ProposalNumber) bool {
	return n.IsSentinel() ||
		s.MaxPrepare == nil ||
		n.GreaterOrEqual(*s.MaxPrepare)
}

// HasAccepted reports whether the slot holds an accepted value.
func (s *AcceptorSlotState) HasAccepted() bool {
	return s.AccNum != nil && !s.AccVal.IsEmpty()
}

// Copy returns a deep copy of the state.
func (s *AcceptorSlotState) Copy() *AcceptorSlotState {
	c := &AcceptorSlotState{
		AccVal: s.AccVal.Copy(),
	}
	if s.MaxPrepare != nil {
		mp := *s.MaxPrepare
		c.MaxPrepare = &mp
	}
	if s.AccNum != nil {
		an := *s.AccNum
		c.AccNum = &an
	}
	return c
}
