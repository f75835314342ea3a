// Package notify fans recognition events out to independently configured sinks.
//
// Delivery is best effort. Each sink runs under its own bounded timeout and a
// failing, hanging or panicking sink is reported in the dispatch Report
// without affecting the other sinks or the caller. A console sink is always
// active so every event leaves at least a log line.
package notify
