// Package archive reads and writes the length-prefixed bundle format used to
// ship the runtime and application trees.
//
// An archive is a plain sequence of records with no header, footer or entry
// count:
//
//	int32 LE  name length
//	[]byte    UTF-8 name, '/' or '\' separated, relative
//	int32 LE  content length
//	[]byte    content
//
// The archive ends where the underlying stream ends. Running out of bytes at
// a record boundary is a normal end; running out anywhere else is corruption.
//
// Streams are expected to be decompressed already; see package bundle for
// sniffing and decompressing bundle files.
package archive
