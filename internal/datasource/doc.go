// Package datasource loads tabular market and event data from flat files.
//
// Files are read through an afero.Fs so the same code serves the local
// disk, an in-memory tree in tests and files pulled from an ObjectStore.
// Every cell is kept as text; typed interpretation is left to the filter
// layer.
package datasource
