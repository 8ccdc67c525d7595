package link

// Link is the command-link state described by spec.md §3's
// "Interfacing": the outbound frame queue, the monotonically
// increasing id counter, the waiting-to-execute queue (robot side),
// the in-flight command registry, and the byte receiver, all in one
// fixed-capacity structure. A single type serves both roles because a
// node may originate commands (the host) while also acknowledging and
// completing commands it receives (the robot) — only the methods
// relevant to a given role are ever exercised at either end.
type Link struct {
	recv     *Receiver
	outbound outboundQueue
	waiting  waitingQueue

	nextID   uint32
	commands map[uint32]*CommandHandle
}

// New creates an empty Link ready to send and receive frames.
func New() *Link {
	return &Link{
		recv:     NewReceiver(),
		commands: make(map[uint32]*CommandHandle, RegistryCapacity),
	}
}

// Execute assigns the next id, serializes and enqueues a
// Command(id, cmd) frame, and registers a CommandHandle tracking its
// lifecycle (spec.md §4.7 "Lifecycle"). It fails without enqueuing or
// registering anything if the command's encoding does not fit in a
// frame, the registry is already full, or the outbound queue is
// already full (spec.md §8 invariant 3: every successful call assigns
// a strictly increasing id).
func (l *Link) Execute(cmd Command, now Ticks) (uint32, error) {
	if len(l.commands) >= RegistryCapacity {
		return 0, ErrRegistryFull
	}
	if l.outbound.full() {
		return 0, ErrQueueFull
	}

	id := l.nextID
	frame, err := EncodeFrame(NewCommandMessage(id, cmd))
	if err != nil {
		return 0, err
	}
	if !l.outbound.push(frame) {
		return 0, ErrQueueFull
	}

	l.commands[id] = &CommandHandle{
		Command:        cmd,
		Status:         StatusNotStarted,
		EnqueueTime:    now,
		HasEnqueueTime: true,
	}
	l.nextID++
	return id, nil
}

// RetryTimedOut re-enqueues the Command frame for every handle still
// NotStarted whose enqueue time is more than RetryTimeout behind now,
// refreshing its enqueue time (spec.md §4.7 "Retransmission"). It
// returns the number of frames re-enqueued; a handle whose retry would
// overflow the outbound queue is left untouched and retried on a later
// call.
func (l *Link) RetryTimedOut(now Ticks) int {
	retried := 0
	for id, h := range l.commands {
		if h.Status != StatusNotStarted || !h.HasEnqueueTime {
			continue
		}
		if now.Since(h.EnqueueTime) <= RetryTimeout {
			continue
		}
		frame, err := EncodeFrame(NewCommandMessage(id, h.Command))
		if err != nil {
			continue
		}
		if l.outbound.push(frame) {
			h.EnqueueTime = now
			retried++
		}
	}
	return retried
}

// HandleByte feeds one received byte through the frame receiver. Once
// a full frame decodes, Ack/Done messages update the matching
// CommandHandle (returning ErrBadID, with state otherwise untouched,
// if the id is unknown) and Command messages register a new handle and
// enqueue the id for a task to pop via PopWaitingExecute. The decoded
// Message is always returned alongside any error so callers can log or
// trace on-wire traffic regardless of outcome.
func (l *Link) HandleByte(b byte) (*Message, error) {
	msg, err := l.recv.HandleByte(b)
	if err != nil || msg == nil {
		return msg, err
	}

	switch msg.Kind {
	case MsgAck:
		h, ok := l.commands[msg.ID]
		if !ok {
			return msg, ErrBadID
		}
		h.Status = StatusStarted

	case MsgDone:
		h, ok := l.commands[msg.ID]
		if !ok {
			return msg, ErrBadID
		}
		h.Status = StatusFinished

	case MsgCommand:
		if len(l.commands) >= RegistryCapacity {
			return msg, ErrRegistryFull
		}
		l.commands[msg.ID] = &CommandHandle{Command: msg.Command, Status: StatusNotStarted}
		if !l.waiting.push(msg.ID) {
			return msg, ErrQueueFull
		}
	}

	return msg, nil
}

// PopWaitingExecute returns the next received command id awaiting
// dispatch (robot side), or ok=false if none is queued.
func (l *Link) PopWaitingExecute() (id uint32, ok bool) {
	return l.waiting.pop()
}

// StartExecuting marks id Started and enqueues an Ack(id) frame
// (spec.md §4.7 "Server side").
func (l *Link) StartExecuting(id uint32) error {
	h, ok := l.commands[id]
	if !ok {
		return ErrBadID
	}
	frame, err := EncodeFrame(NewAckMessage(id))
	if err != nil {
		return err
	}
	if !l.outbound.push(frame) {
		return ErrQueueFull
	}
	h.Status = StatusStarted
	return nil
}

// FinishExecuting enqueues a Done(id) frame and removes id's handle
// (spec.md §4.7 "Server side").
func (l *Link) FinishExecuting(id uint32) error {
	if _, ok := l.commands[id]; !ok {
		return ErrBadID
	}
	frame, err := EncodeFrame(NewDoneMessage(id))
	if err != nil {
		return err
	}
	if !l.outbound.push(frame) {
		return ErrQueueFull
	}
	delete(l.commands, id)
	return nil
}

// AckFinish removes a Finished handle from the registry (host side),
// freeing its slot for future Execute calls.
func (l *Link) AckFinish(id uint32) error {
	h, ok := l.commands[id]
	if !ok || h.Status != StatusFinished {
		return ErrBadID
	}
	delete(l.commands, id)
	return nil
}

// Handle returns a copy of the CommandHandle registered for id, if
// any.
func (l *Link) Handle(id uint32) (CommandHandle, bool) {
	h, ok := l.commands[id]
	if !ok {
		return CommandHandle{}, false
	}
	return *h, true
}

// PopOutbound returns the next queued frame for the UART TX task to
// write, or ok=false if the outbound queue is empty.
func (l *Link) PopOutbound() (frame []byte, ok bool) {
	return l.outbound.pop()
}

// OutboundLen returns the number of frames currently queued for
// transmission.
func (l *Link) OutboundLen() int { return l.outbound.len() }

// RecvState exposes the underlying byte receiver's parsing state, for
// diagnostics and tests.
func (l *Link) RecvState() RecvState { return l.recv.State() }
