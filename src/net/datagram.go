package net

// Datagram is a decoded Message together with the address it came from.
type Datagram struct {
	Message Message
	Source  string
}
