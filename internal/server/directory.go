package server

// Sender is the engine's view of a client connection.
type Sender interface {
	ID() string
	SendMessage(msg *Message) error
	Close() error
}

// Binding ties a connection to a member of a session.
type Binding struct {
	Code string
	Name string
}

type entry struct {
	conn    Sender
	binding *Binding
}

// Directory maps live connection IDs to their connections and, once
// joined, to the session member they speak for. It is owned by the engine
// goroutine and is not safe for concurrent use.
type Directory struct {
	entries map[string]*entry
}

func NewDirectory() *Directory {
	return &Directory{entries: make(map[string]*entry)}
}

// Add registers a newly accepted connection.
func (d *Directory) Add(conn Sender) {
	d.entries[conn.ID()] = &entry{conn: conn}
}

// Remove forgets a connection and returns its binding, if any.
func (d *Directory) Remove(connID string) (Binding, bool) {
	e, ok := d.entries[connID]
	if !ok {
		return Binding{}, false
	}
	delete(d.entries, connID)
	if e.binding == nil {
		return Binding{}, false
	}
	return *e.binding, true
}

// Conn resolves a connection ID to its connection.
func (d *Directory) Conn(connID string) (Sender, bool) {
	e, ok := d.entries[connID]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// Bind attaches a connection to a session member. Unknown connections are
// ignored.
func (d *Directory) Bind(connID, code, name string) bool {
	e, ok := d.entries[connID]
	if !ok {
		return false
	}
	e.binding = &Binding{Code: code, Name: name}
	return true
}

// Unbind detaches a connection from its session member and returns the
// previous binding.
func (d *Directory) Unbind(connID string) (Binding, bool) {
	e, ok := d.entries[connID]
	if !ok || e.binding == nil {
		return Binding{}, false
	}
	b := *e.binding
	e.binding = nil
	return b, true
}

// Lookup returns the binding of a connection.
func (d *Directory) Lookup(connID string) (Binding, bool) {
	e, ok := d.entries[connID]
	if !ok || e.binding == nil {
		return Binding{}, false
	}
	return *e.binding, true
}

// Conns returns every live connection.
func (d *Directory) Conns() []Sender {
	out := make([]Sender, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e.conn)
	}
	return out
}

// Len returns the number of live connections.
func (d *Directory) Len() int {
	return len(d.entries)
}
