package core

// commandKind describes an operation for the hub loop to execute.
type commandKind int

const (
	cmdRegister commandKind = iota
	cmdUnregister
	cmdJoinGroup
	cmdLeaveGroup
	cmdDropGroup
	cmdEvictUser
	cmdDispatch
	cmdDispatchDeletion
	cmdNotifyUsers
	cmdBroadcast
	cmdRoster
)

// command is a typed unit of work posted to the hub's single event
// loop. Synchronous results travel back on the reply channels, which
// are buffered so the loop never blocks on a caller.
type command struct {
	kind     commandKind
	client   *Client
	group    int64
	user     int64
	envelope Envelope
	origin   string
	event    *Event
	users    []int64

	report chan DeliveryReport
	roster chan []int64
}
