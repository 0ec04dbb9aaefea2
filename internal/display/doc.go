// Package display prints dispatch progress to a terminal: the recognized
// query, the NL->SQL response, the statement, result tables rendered with
// tablewriter, errors, and an optional microphone level line.
package display
