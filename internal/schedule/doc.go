// Package schedule runs a strategy's time-keyed action table.
//
// # Schedule
//
// A Schedule is built once from a map of trigger times ("09:30:00" or
// "09:30:00.500000") to Events. Trigger times are parsed at construction, so
// a malformed table fails before anything runs. Entries are kept sorted by
// trigger time and each one is either pending or fired.
//
// # Engine
//
// Engine.Run polls the clock until the configured end of day. On every cycle
// it fires the pending entries whose trigger has passed, in ascending trigger
// order, then sleeps for the poll interval. An entry fires at most once per
// Schedule; re-running an exhausted Schedule fires nothing. An action error
// aborts the run immediately and leaves that entry pending.
//
// The engine never logs. Callers that want logs, metrics or a journal attach
// an Observer.
package schedule
