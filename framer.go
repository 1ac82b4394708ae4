package evtcp

// Framer finds message boundaries in a connection's buffered input.
//
// Check returns 0 when more bytes are needed, or the total length of the
// next complete message. It must depend only on the bytes already buffered
// (read through Receive, Peek and Buffered), since it is called again every
// time more data arrives. A Framer may Send a protocol error and Close the
// connection itself; the read handler stops once the connection is closed.
type Framer interface {
	Check(c Connection) int
}

type FramerFunc func(c Connection) int

func (f FramerFunc) Check(c Connection) int {
	return f(c)
}
