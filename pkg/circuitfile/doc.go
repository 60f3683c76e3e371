// Package circuitfile persists circuit source text and reloads it.
//
// Only source crosses this boundary: Save writes the text of a
// representation and Load rebuilds a representation by verifying the text
// it reads. A Watcher reloads the file on every write.
package circuitfile
