// Package script drives a backend through an external executable. Each
// operation runs the executable once and reads the operation time it prints.
//
// The executable runs in Dir with the configured environment plus a "skip"
// variable drawn at random from [0, QuerySetSize):
//
//	skip=417 ./search-test.sh command
//
// The first
// "OperationTime: N" line of the output becomes the operation's measurement.
// The script backend cannot be loaded, so it never takes part in warm-up.
package script
