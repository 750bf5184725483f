// Package interfaces defines the interfaces shared between the process
// runner and its output consumers.
package interfaces

// DataHandler processes raw output data as it is read from the child.
type DataHandler interface {
	HandleData(data []byte)
}
