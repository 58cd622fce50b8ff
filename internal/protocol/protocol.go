package protocol

//go:generate go tool stringer -type=OpCode
type OpCode uintptr

// Handshake notices. The zero value is no valid notice.
const (
	// Ready: producer to consumer, Seq:Size of the message in the data region
	OpReady OpCode = 0x01

	// Done: consumer to producer, Seq of the message released
	OpDone OpCode = 0x02

	// 0x03-0x0F: Reserved
)

// Notice is the element type of the handshake rings.
type Notice struct {
	Op   OpCode
	Seq  uint64
	Size uint64
}

// Phase is where one side of the exchange stands within an iteration.
//
//go:generate go tool stringer -type=Phase -trimprefix=Phase
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseProducerWriting
	PhaseWaitingForConsumer
	PhaseConsumerReading
	PhaseWaitingForProducer
)

// Role identifies which end of the segment a process drives.
//
//go:generate go tool stringer -type=Role -trimprefix=Role
type Role uint8

const (
	RoleProducer Role = iota
	RoleConsumer
)
