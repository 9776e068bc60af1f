// Package presence tracks who is in the client's room.
//
// The Roster is rebuilt from every users:list the relay sends. It checks each
// announced key against the known-keys book and reports a RotationWarning
// the first time a username shows up with a key that differs from the one on
// record. A rotation clears the username's verified mark and drops every
// cached secret tied to that username, so nothing derived from the old key
// is reused.
package presence
